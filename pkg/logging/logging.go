// Package logging provides JSON-lines structured logging for sgc.
//
// Human-readable command output goes to stdout; log entries always go to
// stderr so that `--json` output stays parseable.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

// Level represents a log level.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

var levels = []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}

func (l Level) rank() int { return slices.Index(levels, l) }

// ParseLevel converts a config or flag value into a Level.
func ParseLevel(s string) (Level, error) {
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if l == "warning" {
		l = LevelWarn
	}
	if l.rank() < 0 {
		return "", fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// Fields are attached to a log entry.
type Fields = map[string]any

// Entry is one line of log output.
type Entry struct {
	Timestamp string `json:"timestamp"`
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	Fields    Fields `json:"fields,omitempty"`
}

// Logger writes entries at or above its level. Loggers derived with
// WithFields share the parent's writer and lock.
type Logger struct {
	mu     *sync.Mutex
	level  Level
	out    io.Writer
	fields Fields
	now    func() time.Time
}

// NewLoggerTo creates a logger writing to w.
func NewLoggerTo(level Level, w io.Writer) *Logger {
	return &Logger{mu: &sync.Mutex{}, level: level, out: w, now: time.Now}
}

// WithFields returns a child logger that adds fields to every entry.
func (l *Logger) WithFields(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	maps.Copy(merged, l.fields)
	maps.Copy(merged, fields)
	child := *l
	child.fields = merged
	return &child
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level Level) bool {
	return level.rank() >= l.level.rank()
}

func (l *Logger) Debug(msg string, fields ...Fields) { l.log(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Fields)  { l.log(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.log(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Fields) { l.log(LevelError, msg, fields) }

func (l *Logger) log(level Level, msg string, extra []Fields) {
	if !l.Enabled(level) {
		return
	}
	entry := Entry{
		Timestamp: l.now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
	}
	if len(l.fields) > 0 || len(extra) > 0 {
		entry.Fields = maps.Clone(l.fields)
		if entry.Fields == nil {
			entry.Fields = Fields{}
		}
		for _, f := range extra {
			maps.Copy(entry.Fields, f)
		}
		if len(entry.Fields) == 0 {
			entry.Fields = nil
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		data = []byte(`{"level":"error","message":"failed to marshal log entry"}`)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.out.Write(append(data, '\n'))
}

var (
	globalMu sync.RWMutex
	global   = NewLoggerTo(LevelWarn, os.Stderr)
)

// SetGlobal installs the logger used by the package-level functions.
func SetGlobal(l *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = l
}

// Global returns the logger used by the package-level functions.
func Global() *Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// Component returns a logger tagging every entry with the sgc component
// that produced it ("bundle", "verify", "publish").
func Component(name string) *Logger {
	return Global().WithFields(Fields{"component": name})
}

func Debug(msg string, fields ...Fields) { Global().Debug(msg, fields...) }
func Info(msg string, fields ...Fields)  { Global().Info(msg, fields...) }
func Warn(msg string, fields ...Fields)  { Global().Warn(msg, fields...) }
func Error(msg string, fields ...Fields) { Global().Error(msg, fields...) }

// WithFields returns a child of the global logger.
func WithFields(fields Fields) *Logger {
	return Global().WithFields(fields)
}
