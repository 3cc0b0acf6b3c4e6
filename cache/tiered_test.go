package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonwraymond/toolgate/observe"
)

func newTestTiered(t *testing.T, cfg Config) *Tiered {
	t.Helper()
	if cfg.L2Path == "" {
		cfg.L2Path = filepath.Join(t.TempDir(), "cache.log")
	}
	c := NewTiered(cfg)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestTiered_PutThenGet(t *testing.T) {
	ctx := context.Background()

	for _, levels := range []Level{LevelL1, LevelL2, LevelBoth, LevelNone} {
		t.Run(levels.String(), func(t *testing.T) {
			c := newTestTiered(t, Config{})
			if err := c.Put(ctx, "k", raw(`{"v":"x"}`), levels); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			got, tier := c.Get(ctx, "k")
			if tier == LevelNone || string(got) != `{"v":"x"}` {
				t.Errorf("Get() = (%s, %v), want hit", got, tier)
			}
		})
	}
}

func TestTiered_GetReportsTier(t *testing.T) {
	ctx := context.Background()
	c := newTestTiered(t, Config{})

	_ = c.Put(ctx, "hot", raw(`1`), LevelL1)
	_ = c.Put(ctx, "warm", raw(`2`), LevelL2)

	if _, tier := c.Get(ctx, "hot"); tier != LevelL1 {
		t.Errorf("Get(hot) tier = %v, want l1", tier)
	}
	if _, tier := c.Get(ctx, "missing"); tier != LevelNone {
		t.Errorf("Get(missing) tier = %v, want none", tier)
	}
	if _, tier := c.Get(ctx, "warm"); tier != LevelL2 {
		t.Errorf("first Get(warm) tier = %v, want l2", tier)
	}
	// Promotion: the warm hit now lives in the hot tier.
	if _, tier := c.Get(ctx, "warm"); tier != LevelL1 {
		t.Errorf("second Get(warm) tier = %v, want l1", tier)
	}
}

func TestTiered_Stats(t *testing.T) {
	ctx := context.Background()
	c := newTestTiered(t, Config{})

	_ = c.Put(ctx, "a", raw(`1`), LevelL2)
	c.Get(ctx, "a") // l2 hit
	c.Get(ctx, "a") // l1 hit
	c.Get(ctx, "b") // miss

	s := c.Stats()
	if !s.L2Enabled || s.L2Degraded {
		t.Errorf("Stats() flags = %+v", s)
	}
	if s.Lookups() != 3 {
		t.Errorf("Lookups() = %d, want 3", s.Lookups())
	}
	if got, want := s.HitRate(), 2.0/3.0; got != want {
		t.Errorf("HitRate() = %v, want %v", got, want)
	}
}

func TestTiered_Validation(t *testing.T) {
	ctx := context.Background()
	c := newTestTiered(t, Config{})

	if err := c.Put(ctx, "", raw(`1`), LevelBoth); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("Put(empty key) error = %v, want ErrInvalidKey", err)
	}
	if err := c.Put(ctx, "k", raw(`{bad`), LevelBoth); !errors.Is(err, ErrInvalidValue) {
		t.Errorf("Put(bad json) error = %v, want ErrInvalidValue", err)
	}

	var nilCache *Tiered
	if err := nilCache.Put(ctx, "k", raw(`1`), LevelBoth); !errors.Is(err, ErrNilCache) {
		t.Errorf("nil Put() error = %v, want ErrNilCache", err)
	}
}

func TestTiered_MemoryOnly(t *testing.T) {
	ctx := context.Background()
	c := NewTiered(Config{L1Size: 2})

	if err := c.Put(ctx, "k", raw(`1`), LevelBoth); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if _, tier := c.Get(ctx, "k"); tier != LevelL1 {
		t.Errorf("Get() tier = %v, want l1", tier)
	}
	if c.Stats().L2Enabled || c.L2() != nil {
		t.Error("no warm tier should be configured")
	}
}

func TestTiered_ScenarioSmallL1(t *testing.T) {
	ctx := context.Background()
	c := NewTiered(Config{L1Size: 2})

	for _, k := range []string{"a", "b", "c"} {
		_ = c.Put(ctx, k, raw(`"`+k+`"`), LevelL1)
	}
	if _, tier := c.Get(ctx, "a"); tier != LevelNone {
		t.Errorf("Get(a) tier = %v, want miss", tier)
	}
	for _, k := range []string{"b", "c"} {
		if _, tier := c.Get(ctx, k); tier != LevelL1 {
			t.Errorf("Get(%s) tier = %v, want l1", k, tier)
		}
	}
}

func TestTiered_RoundTripAcrossInstances(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.log")

	first := NewTiered(Config{L2Path: path, L2MaxBytes: 2048})
	written := map[string]string{}
	for i := 0; i < 100; i++ {
		k := fmt.Sprintf("fp:m:%03d", i)
		v := fmt.Sprintf(`{"i":%d}`, i)
		sizeBefore := first.L2().Size()
		_ = first.Put(ctx, k, raw(v), LevelBoth)
		if first.L2().Size() > sizeBefore {
			written[k] = v
		}
	}
	_ = first.Close()

	if len(written) == 0 || len(written) == 100 {
		t.Fatalf("expected the cap to stop some writes, kept %d", len(written))
	}

	second := NewTiered(Config{L2Path: path, L2MaxBytes: 2048})
	defer second.Close()
	for k, v := range written {
		got, tier := second.Get(ctx, k)
		if tier != LevelL2 || string(got) != v {
			t.Errorf("Get(%s) = (%s, %v), want (%s, l2)", k, got, tier, v)
		}
	}
}

func TestTiered_TiersHoldSameBytes(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.log")
	const want = `{"html":"<b>&amp;</b>","n":[1,2]}`

	first := NewTiered(Config{L2Path: path})
	if err := first.Put(ctx, "k", raw("{ \"html\": \"<b>&amp;</b>\",\n  \"n\": [1, 2] }"), LevelBoth); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	hot, tier := first.Get(ctx, "k")
	if tier != LevelL1 {
		t.Fatalf("Get() tier = %v, want l1", tier)
	}
	_ = first.Close()

	second := NewTiered(Config{L2Path: path})
	defer second.Close()
	warm, tier := second.Get(ctx, "k")
	if tier != LevelL2 {
		t.Fatalf("Get() after reopen tier = %v, want l2", tier)
	}
	if !bytes.Equal(hot, warm) {
		t.Errorf("l1 value %s != l2 value %s", hot, warm)
	}
	if string(warm) != want {
		t.Errorf("l2 value = %s, want %s", warm, want)
	}
}

func TestTiered_DegradesWhenLogUnavailable(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "l2")
	var logs bytes.Buffer

	c := NewTiered(Config{
		L2Path: filepath.Join(dir, "cache.log"),
		Logger: observe.NewLoggerWithWriter("info", &logs),
	})
	defer c.Close()

	// The log is opened lazily, so removing its directory breaks the first append.
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("RemoveAll() error = %v", err)
	}

	if err := c.Put(ctx, "k", raw(`1`), LevelBoth); err != nil {
		t.Fatalf("Put() error = %v, want degraded success", err)
	}
	if !c.Degraded() || !c.Stats().L2Degraded {
		t.Fatal("cache should report degraded")
	}
	if _, tier := c.Get(ctx, "k"); tier != LevelL1 {
		t.Errorf("Get() tier = %v, want l1", tier)
	}
	if _, tier := c.Get(ctx, "other"); tier != LevelNone {
		t.Errorf("Get(other) tier = %v, want miss", tier)
	}
	if !bytes.Contains(logs.Bytes(), []byte("warm cache tier unavailable")) {
		t.Errorf("degradation should be logged, got %q", logs.String())
	}

	// Clearing the warm tier lifts the degradation.
	if err := os.MkdirAll(dir, 0750); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := c.Clear(ctx, LevelL2); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if c.Degraded() {
		t.Error("Clear(l2) should lift the degradation")
	}
}

func TestTiered_StartsDegradedOnBadPath(t *testing.T) {
	// A directory cannot serve as the log file.
	c := NewTiered(Config{L2Path: t.TempDir()})
	defer c.Close()

	if !c.Degraded() {
		t.Fatal("cache should start degraded")
	}
	ctx := context.Background()
	if err := c.Put(ctx, "k", raw(`1`), LevelBoth); err != nil {
		t.Errorf("Put() error = %v", err)
	}
	if _, tier := c.Get(ctx, "k"); tier != LevelL1 {
		t.Errorf("Get() tier = %v, want l1", tier)
	}
}

func TestTiered_Clear(t *testing.T) {
	ctx := context.Background()
	c := newTestTiered(t, Config{})
	_ = c.Put(ctx, "a", raw(`1`), LevelBoth)

	if err := c.Clear(ctx, LevelL1); err != nil {
		t.Fatalf("Clear(l1) error = %v", err)
	}
	if _, tier := c.Get(ctx, "a"); tier != LevelL2 {
		t.Errorf("after Clear(l1) tier = %v, want l2", tier)
	}

	if err := c.Clear(ctx, LevelNone); err != nil {
		t.Fatalf("Clear(both) error = %v", err)
	}
	if _, tier := c.Get(ctx, "a"); tier != LevelNone {
		t.Errorf("after Clear(both) tier = %v, want miss", tier)
	}
}
