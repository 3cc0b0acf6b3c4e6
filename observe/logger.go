package observe

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel orders log severities.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// ParseLogLevel maps a level name to a LogLevel. Unknown names and "" are
// LevelInfo.
func ParseLogLevel(s string) LogLevel {
	for lvl, name := range levelNames {
		if strings.EqualFold(s, name) {
			return LogLevel(lvl)
		}
	}
	return LevelInfo
}

func (l LogLevel) String() string {
	if l < LevelDebug || l > LevelError {
		return levelNames[LevelInfo]
	}
	return levelNames[l]
}

// redacted is the set of field keys whose values never reach a sink,
// compared case-insensitively.
var redacted = func() map[string]struct{} {
	m := make(map[string]struct{}, len(RedactedFields))
	for _, k := range RedactedFields {
		m[strings.ToLower(k)] = struct{}{}
	}
	return m
}()

const redactedValue = "[REDACTED]"

func isRedactedField(key string) bool {
	_, ok := redacted[strings.ToLower(key)]
	return ok
}

// sink is shared by a logger and every logger derived from it.
type sink struct {
	mu  sync.Mutex
	w   io.Writer
	now func() time.Time
}

func (s *sink) write(line []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = s.w.Write(line)
}

// structuredLogger writes one JSON object per line: timestamp, level, msg,
// then bound fields, then call fields. Later keys overwrite earlier ones.
type structuredLogger struct {
	level LogLevel
	out   *sink
	bound []Field
}

// NewLogger returns a JSON logger writing to stderr.
func NewLogger(level string) Logger {
	return NewLoggerWithWriter(level, os.Stderr)
}

// NewLoggerWithWriter returns a JSON logger writing to w.
func NewLoggerWithWriter(level string, w io.Writer) Logger {
	return &structuredLogger{
		level: ParseLogLevel(level),
		out:   &sink{w: w, now: time.Now},
	}
}

// With returns a logger that adds fields to every entry.
func (l *structuredLogger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	bound := make([]Field, 0, len(l.bound)+len(fields))
	bound = append(bound, l.bound...)
	bound = append(bound, fields...)
	return &structuredLogger{level: l.level, out: l.out, bound: bound}
}

// WithRequest returns a logger that tags every entry with meta.
func (l *structuredLogger) WithRequest(meta RequestMeta) Logger {
	return l.With(meta.fields()...)
}

func (l *structuredLogger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelDebug, msg, fields)
}

func (l *structuredLogger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelInfo, msg, fields)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelWarn, msg, fields)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, LevelError, msg, fields)
}

func (l *structuredLogger) log(_ context.Context, level LogLevel, msg string, fields []Field) {
	if level < l.level {
		return
	}

	entry := make(map[string]any, len(l.bound)+len(fields)+3)
	entry["timestamp"] = l.out.now().UTC().Format(time.RFC3339Nano)
	entry["level"] = level.String()
	entry["msg"] = msg
	for _, set := range [][]Field{l.bound, fields} {
		for _, f := range set {
			if isRedactedField(f.Key) {
				entry[f.Key] = redactedValue
				continue
			}
			entry[f.Key] = f.Value
		}
	}

	line, err := json.Marshal(entry)
	if err != nil {
		// Unencodable values (channels, funcs) drop the entry.
		return
	}
	l.out.write(append(line, '\n'))
}

var _ Logger = (*structuredLogger)(nil)
