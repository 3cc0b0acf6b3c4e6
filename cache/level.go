package cache

// Level selects one or more cache tiers.
//
// Level is a bitflag: LevelBoth is LevelL1|LevelL2. Tiered.Get reports the
// tier that answered using the same type, LevelNone meaning a miss.
type Level uint8

const (
	// LevelL1 is the in-memory hot tier.
	LevelL1 Level = 1 << iota
	// LevelL2 is the on-disk warm tier.
	LevelL2

	// LevelNone selects no tier.
	LevelNone Level = 0
	// LevelBoth selects the hot and the warm tier.
	LevelBoth = LevelL1 | LevelL2
)

// Has reports whether l includes every tier in other.
func (l Level) Has(other Level) bool {
	return other != LevelNone && l&other == other
}

// String returns the string representation of the level.
func (l Level) String() string {
	switch l {
	case LevelNone:
		return "none"
	case LevelL1:
		return "l1"
	case LevelL2:
		return "l2"
	case LevelBoth:
		return "both"
	default:
		return "unknown"
	}
}
