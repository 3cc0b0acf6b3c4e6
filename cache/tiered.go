package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"github.com/jonwraymond/toolgate/observe"
)

// Config configures a tiered cache.
type Config struct {
	// L1Size is the capacity of the hot tier.
	// Default: DefaultL1Size
	L1Size int

	// L2Path is the warm tier log location. Empty disables the warm tier.
	L2Path string

	// L2MaxBytes caps the warm tier log.
	// Default: DefaultL2MaxBytes
	L2MaxBytes int64

	// Logger receives degradation and corruption warnings.
	// Default: no-op logger
	Logger observe.Logger
}

// Tiered composes the hot and warm tiers.
//
// Contract:
// - Concurrency: safe for concurrent use; each tier serializes its own mutations.
// - Ordering: a Get issued after a completed Put on the same tier observes the new value.
// - Errors: warm tier failures never reach the caller. The cache degrades to
// the hot tier and keeps serving.
type Tiered struct {
	hot      *HotTier
	warm     *WarmTier
	degraded atomic.Bool
	logger   observe.Logger
}

// NewTiered creates a tiered cache. If the warm tier cannot be opened the
// cache starts degraded instead of failing.
func NewTiered(cfg Config) *Tiered {
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNoopLogger()
	}

	c := &Tiered{
		hot:    NewHotTier(cfg.L1Size),
		logger: cfg.Logger,
	}

	if cfg.L2Path != "" {
		warm, err := NewWarmTier(WarmTierConfig{
			Path:     cfg.L2Path,
			MaxBytes: cfg.L2MaxBytes,
			Logger:   cfg.Logger,
		})
		if err != nil {
			c.degrade(context.Background(), err)
		} else {
			c.warm = warm
		}
	}

	return c
}

// Get looks key up in the hot tier, then the warm tier. A warm hit is
// promoted into the hot tier before it is returned. The returned Level names
// the tier that answered; LevelNone means a miss.
//
// The returned value is shared with the hot tier and must not be modified.
func (c *Tiered) Get(ctx context.Context, key string) (json.RawMessage, Level) {
	if value, ok := c.hot.Get(ctx, key); ok {
		return value, LevelL1
	}

	warm := c.activeWarm()
	if warm == nil {
		return nil, LevelNone
	}

	entry, ok, err := warm.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrTierUnavailable) {
			c.degrade(ctx, err)
		}
		return nil, LevelNone
	}
	if !ok {
		return nil, LevelNone
	}

	c.hot.Put(ctx, key, entry.Value)
	return entry.Value, LevelL2
}

// Put stores value in the tiers selected by levels. LevelNone selects both.
// Invalid keys and non-JSON values are rejected; warm tier failures are not.
func (c *Tiered) Put(ctx context.Context, key string, value json.RawMessage, levels Level) error {
	if c == nil {
		return ErrNilCache
	}
	if err := ValidateKey(key); err != nil {
		return err
	}
	if err := ValidateValue(value); err != nil {
		return err
	}
	value, err := compactValue(value)
	if err != nil {
		return err
	}
	if levels == LevelNone {
		levels = LevelBoth
	}

	if levels.Has(LevelL1) {
		c.hot.Put(ctx, key, value)
	}

	if levels.Has(LevelL2) {
		if warm := c.activeWarm(); warm != nil {
			if err := warm.Put(ctx, key, value); err != nil {
				if !errors.Is(err, ErrTierUnavailable) {
					return err
				}
				c.degrade(ctx, err)
			}
		}
	}

	return nil
}

// Clear empties the tiers selected by levels. LevelNone selects both.
// Clearing the warm tier removes its log and lifts a previous degradation.
func (c *Tiered) Clear(ctx context.Context, levels Level) error {
	if levels == LevelNone {
		levels = LevelBoth
	}
	if levels.Has(LevelL1) {
		c.hot.Clear()
	}
	if levels.Has(LevelL2) && c.warm != nil {
		if err := c.warm.Clear(ctx); err != nil {
			c.degrade(ctx, err)
			return err
		}
		c.degraded.Store(false)
	}
	return nil
}

// Stats aggregates the counters of both tiers.
func (c *Tiered) Stats() Stats {
	s := Stats{
		L1:         c.hot.Stats(),
		L2Enabled:  c.warm != nil,
		L2Degraded: c.degraded.Load(),
	}
	if c.warm != nil {
		s.L2 = c.warm.Stats()
	}
	return s
}

// Degraded reports whether the cache is serving from the hot tier only
// because the warm tier failed.
func (c *Tiered) Degraded() bool {
	return c.degraded.Load()
}

// L1 returns the hot tier.
func (c *Tiered) L1() *HotTier {
	return c.hot
}

// L2 returns the warm tier, or nil when none is configured.
func (c *Tiered) L2() *WarmTier {
	return c.warm
}

// Close releases the warm tier log handle.
func (c *Tiered) Close() error {
	if c.warm == nil {
		return nil
	}
	return c.warm.Close()
}

func (c *Tiered) activeWarm() *WarmTier {
	if c.warm == nil || c.degraded.Load() {
		return nil
	}
	return c.warm
}

func (c *Tiered) degrade(ctx context.Context, err error) {
	if c.degraded.CompareAndSwap(false, true) {
		c.logger.Error(ctx, "warm cache tier unavailable, serving from memory only",
			observe.Field{Key: "error", Value: err.Error()},
		)
	}
}
