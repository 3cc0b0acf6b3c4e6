package cache

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/jonwraymond/toolgate/observe"
)

// DefaultL2MaxBytes is the default byte cap of the warm tier log (10 MiB).
const DefaultL2MaxBytes = 10 * 1024 * 1024

// WarmTierConfig configures the warm tier.
type WarmTierConfig struct {
	// Path is the location of the append-only log. Required.
	Path string

	// MaxBytes caps the size of the log. Writes that would grow the log past
	// the cap are skipped.
	// Default: DefaultL2MaxBytes
	MaxBytes int64

	// Logger receives corrupt-record warnings.
	// Default: no-op logger
	Logger observe.Logger
}

// WarmTier is the append-only on-disk cache tier.
//
// Every Put appends one JSON line; Get scans the whole log and the last
// matching record wins. The log is never compacted: once it reaches its byte
// cap further writes are dropped until Clear removes it.
type WarmTier struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	file     *os.File
	size     int64
	// needsNewline is set when the log ends in a partial line.
	needsNewline bool

	stats      counters
	logger     observe.Logger
	corruptLog rate.Sometimes
}

// record is the on-disk line format.
type record struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	Timestamp float64         `json:"timestamp"`
}

// NewWarmTier opens (or prepares to create) the log at cfg.Path.
// Errors wrap ErrTierUnavailable.
func NewWarmTier(cfg WarmTierConfig) (*WarmTier, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("%w: log path is required", ErrTierUnavailable)
	}
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultL2MaxBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNoopLogger()
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0750); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTierUnavailable, err)
	}

	t := &WarmTier{
		path:       cfg.Path,
		maxBytes:   cfg.MaxBytes,
		logger:     cfg.Logger,
		corruptLog: rate.Sometimes{Interval: time.Minute},
	}
	if err := t.loadSize(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTierUnavailable, err)
	}
	return t, nil
}

// Path returns the location of the log.
func (t *WarmTier) Path() string {
	return t.path
}

// MaxBytes returns the byte cap of the log.
func (t *WarmTier) MaxBytes() int64 {
	return t.maxBytes
}

// Size returns the current size of the log in bytes.
func (t *WarmTier) Size() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.size
}

// Get scans the log for key and returns the most recently appended record.
// A missing log is a miss. Errors wrap ErrTierUnavailable.
func (t *WarmTier) Get(ctx context.Context, key string) (Entry, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var (
		found Entry
		ok    bool
	)
	err := t.scanLocked(ctx, func(e Entry) bool {
		if e.Key == key {
			found, ok = e, true
		}
		return true
	})
	if err != nil {
		return Entry{}, false, err
	}

	if ok {
		t.stats.hits.Add(1)
	} else {
		t.stats.misses.Add(1)
	}
	return found, ok, nil
}

// Put appends a record for key. The value is stored compacted but otherwise
// unescaped. If the append would grow the log past its byte cap the write is
// skipped and counted, without error.
// Errors wrap ErrTierUnavailable.
func (t *WarmTier) Put(_ context.Context, key string, value json.RawMessage) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(record{
		Key:       key,
		Value:     value,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	})
	if err != nil {
		return ErrInvalidValue
	}
	line := buf.Bytes()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.needsNewline {
		line = append([]byte{'\n'}, line...)
	}
	if t.size+int64(len(line)) > t.maxBytes {
		t.stats.skipped.Add(1)
		return nil
	}

	if t.file == nil {
		f, err := os.OpenFile(t.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTierUnavailable, err)
		}
		t.file = f
	}

	n, err := t.file.Write(line)
	t.size += int64(n)
	if err != nil {
		t.needsNewline = n > 0
		return fmt.Errorf("%w: %v", ErrTierUnavailable, err)
	}
	t.needsNewline = false
	return nil
}

// Scan calls fn for every decodable record in append order until fn returns
// false. Corrupt records are skipped and counted.
func (t *WarmTier) Scan(ctx context.Context, fn func(Entry) bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.scanLocked(ctx, fn)
}

// Clear closes and deletes the log and resets the counters.
func (t *WarmTier) Clear(_ context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.closeLocked(); err != nil {
		return fmt.Errorf("%w: %v", ErrTierUnavailable, err)
	}
	if err := os.Remove(t.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrTierUnavailable, err)
	}
	t.size = 0
	t.needsNewline = false
	t.stats.reset()
	return nil
}

// Close releases the append handle. The tier reopens it on the next Put.
func (t *WarmTier) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closeLocked()
}

// Stats returns the tier counters.
func (t *WarmTier) Stats() TierStats {
	s := t.stats.snapshot()
	s.Bytes = t.Size()
	return s
}

func (t *WarmTier) closeLocked() error {
	if t.file == nil {
		return nil
	}
	err := t.file.Close()
	t.file = nil
	return err
}

func (t *WarmTier) loadSize() error {
	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%s is not a regular file", t.path)
	}
	t.size = info.Size()
	if t.size == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, t.size-1); err != nil {
		return err
	}
	t.needsNewline = last[0] != '\n'
	return nil
}

func (t *WarmTier) scanLocked(ctx context.Context, fn func(Entry) bool) error {
	f, err := os.Open(t.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTierUnavailable, err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 64*1024)
	for lineNo := 1; ; lineNo++ {
		if lineNo%256 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		line, readErr := r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			entry, err := decodeRecord(line)
			if err != nil {
				t.stats.corrupt.Add(1)
				t.corruptLog.Do(func() {
					t.logger.Warn(ctx, "skipping unreadable cache record",
						observe.Field{Key: "path", Value: t.path},
						observe.Field{Key: "line", Value: lineNo},
						observe.Field{Key: "error", Value: err.Error()},
					)
				})
			} else if !fn(entry) {
				return nil
			}
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("%w: %v", ErrTierUnavailable, readErr)
		}
	}
}

func decodeRecord(line []byte) (Entry, error) {
	var rec record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if rec.Key == "" || len(rec.Value) == 0 {
		return Entry{}, fmt.Errorf("%w: missing key or value", ErrCorruptRecord)
	}

	sec := int64(rec.Timestamp)
	nsec := int64((rec.Timestamp - float64(sec)) * float64(time.Second))
	return Entry{
		Key:       rec.Key,
		Value:     rec.Value,
		CreatedAt: time.Unix(sec, nsec),
	}, nil
}
