package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Sentinel errors for cache operations.
var (
	ErrNilCache   = errors.New("cache: cache is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")

	// ErrInvalidValue is returned when a value is not a valid JSON document.
	// Values must be JSON so they round-trip through the warm tier log.
	ErrInvalidValue = errors.New("cache: value is not valid JSON")

	// ErrTierUnavailable wraps I/O failures of the warm tier. The tiered
	// cache recovers from it by degrading to the hot tier only.
	ErrTierUnavailable = errors.New("cache: tier unavailable")

	// ErrCorruptRecord marks an unreadable warm tier record. Scans skip
	// such records and continue.
	ErrCorruptRecord = errors.New("cache: corrupt record")
)

// Entry is a cached value together with its bookkeeping.
//
// An Entry is owned by the tier that holds it; the hot and warm copies of
// the same key are independent.
type Entry struct {
	Key         string
	Value       json.RawMessage
	CreatedAt   time.Time
	AccessCount uint64
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if key == "" || strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	// Keys are written verbatim into a line-delimited log
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}

// ValidateValue checks that value is a single well-formed JSON document.
func ValidateValue(value json.RawMessage) error {
	if len(value) == 0 || !json.Valid(value) {
		return ErrInvalidValue
	}
	return nil
}

// compactValue strips insignificant whitespace from value without escaping
// it, so every tier stores the same bytes.
func compactValue(value json.RawMessage) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, value); err != nil {
		return nil, ErrInvalidValue
	}
	return buf.Bytes(), nil
}
