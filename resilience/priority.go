package resilience

import (
	"fmt"
	"strings"
)

// Priority is a scheduling class. Lower values are served first.
type Priority uint8

const (
	// PriorityCritical is always admitted and always served first.
	PriorityCritical Priority = iota
	// PriorityHigh is always admitted.
	PriorityHigh
	// PriorityNormal is rejected under heavy backlog.
	PriorityNormal
	// PriorityLow is rejected under moderate backlog.
	PriorityLow
)

// NumPriorities is the size of the fixed priority set.
const NumPriorities = 4

// Priorities lists every priority in service order.
var Priorities = [NumPriorities]Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}

// Valid reports whether p is in the fixed set.
func (p Priority) Valid() bool {
	return p < NumPriorities
}

// String returns the lower-case name of p.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityNormal:
		return "normal"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}

// ParsePriority parses a priority name, case-insensitively.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical":
		return PriorityCritical, nil
	case "high":
		return PriorityHigh, nil
	case "normal", "":
		return PriorityNormal, nil
	case "low":
		return PriorityLow, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPriority, uint8(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Priority) UnmarshalText(text []byte) error {
	v, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
