package cache

import "sync/atomic"

// TierStats contains per-tier counters.
//
// Counters only grow until the tier is cleared. HitRate is derived on read.
type TierStats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64

	// Corrupt counts warm tier records skipped because they could not be
	// decoded. Always zero for the hot tier.
	Corrupt uint64

	// SkippedWrites counts warm tier writes dropped because the log reached
	// its byte cap. Always zero for the hot tier.
	SkippedWrites uint64

	// Entries is the number of entries held (hot tier only).
	Entries int

	// Bytes is the size of the backing log (warm tier only).
	Bytes int64
}

// HitRate returns hits / (hits + misses), or 0 before any lookup.
func (s TierStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Stats aggregates the counters of a tiered cache.
type Stats struct {
	L1 TierStats
	L2 TierStats

	// L2Enabled reports whether a warm tier was configured.
	L2Enabled bool

	// L2Degraded reports that the warm tier failed and the cache is
	// serving from the hot tier only.
	L2Degraded bool
}

// Lookups returns the number of Get calls served by the tiered cache.
// Every lookup consults the hot tier first.
func (s Stats) Lookups() uint64 {
	return s.L1.Hits + s.L1.Misses
}

// HitRate returns the fraction of lookups answered by any tier.
func (s Stats) HitRate() float64 {
	lookups := s.Lookups()
	if lookups == 0 {
		return 0
	}
	return float64(s.L1.Hits+s.L2.Hits) / float64(lookups)
}

type counters struct {
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
	corrupt   atomic.Uint64
	skipped   atomic.Uint64
}

func (c *counters) snapshot() TierStats {
	return TierStats{
		Hits:          c.hits.Load(),
		Misses:        c.misses.Load(),
		Evictions:     c.evictions.Load(),
		Corrupt:       c.corrupt.Load(),
		SkippedWrites: c.skipped.Load(),
	}
}

func (c *counters) reset() {
	c.hits.Store(0)
	c.misses.Store(0)
	c.evictions.Store(0)
	c.corrupt.Store(0)
	c.skipped.Store(0)
}
