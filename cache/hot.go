package cache

import (
	"bytes"
	"container/list"
	"context"
	"encoding/json"
	"sync"
	"time"
)

// DefaultL1Size is the default capacity of the hot tier.
const DefaultL1Size = 1000

// HotTier is the bounded in-memory cache tier.
//
// Lookups are O(1). A hit moves the entry to the most-recently-used position
// of the recency order. Eviction is FIFO on insert: when the tier is full the
// entry inserted earliest is dropped, regardless of how recently it was read.
type HotTier struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*hotEntry
	recency  *list.List // front is least recently used
	inserted *list.List // front is earliest inserted
	stats    counters
}

type hotEntry struct {
	entry      Entry
	recencyPos *list.Element
	insertPos  *list.Element
}

// NewHotTier creates a hot tier holding at most capacity entries.
// A capacity <= 0 uses DefaultL1Size.
func NewHotTier(capacity int) *HotTier {
	if capacity <= 0 {
		capacity = DefaultL1Size
	}
	return &HotTier{
		capacity: capacity,
		entries:  make(map[string]*hotEntry, capacity),
		recency:  list.New(),
		inserted: list.New(),
	}
}

// Get returns the value stored under key and counts a hit or a miss.
func (t *HotTier) Get(_ context.Context, key string) (json.RawMessage, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		t.stats.misses.Add(1)
		return nil, false
	}

	e.entry.AccessCount++
	t.recency.MoveToBack(e.recencyPos)
	t.stats.hits.Add(1)
	return e.entry.Value, true
}

// Put stores value under key, evicting the earliest inserted entry first
// when the tier is full. Overwriting a key keeps its insertion position.
func (t *HotTier) Put(_ context.Context, key string, value json.RawMessage) {
	value = bytes.Clone(value)

	t.mu.Lock()
	defer t.mu.Unlock()

	if e, ok := t.entries[key]; ok {
		e.entry.Value = value
		t.recency.MoveToBack(e.recencyPos)
		return
	}

	if len(t.entries) >= t.capacity {
		t.evictOldestLocked()
	}

	e := &hotEntry{
		entry: Entry{
			Key:       key,
			Value:     value,
			CreatedAt: time.Now(),
		},
	}
	e.recencyPos = t.recency.PushBack(key)
	e.insertPos = t.inserted.PushBack(key)
	t.entries[key] = e
}

// Peek returns a copy of the entry stored under key without counting a hit
// or changing its position.
func (t *HotTier) Peek(key string) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[key]
	if !ok {
		return Entry{}, false
	}
	return e.entry, true
}

// Keys returns the held keys from least to most recently used.
func (t *HotTier) Keys() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	keys := make([]string, 0, t.recency.Len())
	for el := t.recency.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(string))
	}
	return keys
}

// Len returns the number of held entries.
func (t *HotTier) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Capacity returns the maximum number of entries.
func (t *HotTier) Capacity() int {
	return t.capacity
}

// Clear drops all entries and resets the counters.
func (t *HotTier) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries = make(map[string]*hotEntry, t.capacity)
	t.recency.Init()
	t.inserted.Init()
	t.stats.reset()
}

// Stats returns the tier counters.
func (t *HotTier) Stats() TierStats {
	s := t.stats.snapshot()
	s.Entries = t.Len()
	return s
}

func (t *HotTier) evictOldestLocked() {
	front := t.inserted.Front()
	if front == nil {
		return
	}
	key := front.Value.(string)
	e := t.entries[key]

	t.inserted.Remove(front)
	t.recency.Remove(e.recencyPos)
	delete(t.entries, key)
	t.stats.evictions.Add(1)
}
