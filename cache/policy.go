package cache

import "strings"

// SkipRule determines whether to bypass the cache for a request.
// Returns true if caching should be skipped.
type SkipRule func(method string, tags []string) bool

// UnsafeTags are tags that indicate a request has side effects and should not be cached.
var UnsafeTags = []string{"write", "danger", "unsafe", "mutation", "delete"}

// DefaultSkipRule skips caching for requests with unsafe tags.
// Tag matching is case-insensitive.
func DefaultSkipRule(_ string, tags []string) bool {
	for _, tag := range tags {
		tagLower := strings.ToLower(tag)
		for _, unsafe := range UnsafeTags {
			if tagLower == unsafe {
				return true
			}
		}
	}
	return false
}

// Policy configures which requests are cached and where.
type Policy struct {
	// Levels selects the tiers results are written to.
	// LevelNone disables caching.
	Levels Level

	// AllowUnsafe permits caching requests with unsafe tags (write, danger, etc.)
	AllowUnsafe bool

	// SkipRule overrides DefaultSkipRule when set.
	SkipRule SkipRule
}

// DefaultPolicy returns the default caching policy.
// Levels: both tiers, AllowUnsafe: false
func DefaultPolicy() Policy {
	return Policy{
		Levels:      LevelBoth,
		AllowUnsafe: false,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{Levels: LevelNone}
}

// ShouldCache reports whether results of the request may be looked up in and
// written to the cache.
func (p Policy) ShouldCache(method string, tags []string) bool {
	if p.Levels == LevelNone {
		return false
	}
	if p.AllowUnsafe {
		return true
	}
	skip := p.SkipRule
	if skip == nil {
		skip = DefaultSkipRule
	}
	return !skip(method, tags)
}
