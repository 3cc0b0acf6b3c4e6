// Package cache provides a two-tier request cache.
//
// Requests are keyed by Fingerprint, a SHA-256 digest of the method and the
// canonical JSON of its parameters, so key order never changes the key.
//
// The hot tier (HotTier) is a bounded in-memory map. A hit moves the entry
// to the most-recently-used position; eviction removes the entry inserted
// earliest. The warm tier (WarmTier) is an append-only JSON-lines log with a
// byte cap: the last record for a key wins, unreadable lines are skipped,
// and writes past the cap are dropped.
//
// Tiered composes both, promoting warm hits into the hot tier and degrading
// to the hot tier alone when the log becomes unavailable. Middleware puts a
// Tiered cache in front of request execution, bypassing it for requests
// whose tags mark side effects.
//
//	c := cache.NewTiered(cache.Config{
//	    L1Size: 1000,
//	    L2Path: "/var/cache/toolgate/l2.log",
//	})
//	defer c.Close()
//
//	key, _ := cache.Fingerprint("search", map[string]any{"q": "go"})
//	_ = c.Put(ctx, key, json.RawMessage(`{"hits":3}`), cache.LevelBoth)
//	value, tier := c.Get(ctx, key)
package cache
