// Package logger provides the leveled, structured logger that is handed to
// every stage of a build. There is no package-level default: callers create
// a Logger and pass it down explicitly.
package logger

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents the logging level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelSilent
)

// String returns the string representation of the level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelSilent:
		return "SILENT"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a case-insensitive level name to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	case "silent", "off":
		return LevelSilent, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger provides structured logging with configurable levels
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	WithFields(fields ...Field) Logger
	SetLevel(level Level)
	Enabled(level Level) bool
}

// Field represents a structured log field
type Field struct {
	Key   string
	Value any
}

// F is a convenience function for creating fields
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

// Options tweak how log lines are formatted.
type Options struct {
	Prefix     string // written before every line, e.g. "batesian"
	Timestamps bool
}

// shared state between a logger and the loggers derived from it with WithFields
type sink struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
	opts  Options
}

type standardLogger struct {
	sink   *sink
	fields []Field
}

// NewLogger creates a new logger with the specified level and output.
// Lines carry no timestamp so output is stable enough to assert on in tests.
func NewLogger(level Level, out io.Writer) Logger {
	return NewLoggerWithOptions(level, out, Options{})
}

// NewLoggerWithOptions creates a logger with explicit formatting options.
func NewLoggerWithOptions(level Level, out io.Writer, opts Options) Logger {
	if out == nil {
		out = os.Stderr
	}
	return &standardLogger{
		sink: &sink{out: out, level: level, opts: opts},
	}
}

// NewSilentLogger creates a logger that outputs nothing
func NewSilentLogger() Logger {
	return NewLogger(LevelSilent, io.Discard)
}

// SetLevel sets the minimum logging level. Derived loggers share the level.
func (l *standardLogger) SetLevel(level Level) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// Enabled reports whether messages at level would be written.
func (l *standardLogger) Enabled(level Level) bool {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return level >= l.sink.level && l.sink.level != LevelSilent
}

// WithFields returns a new logger with additional fields
func (l *standardLogger) WithFields(fields ...Field) Logger {
	newFields := make([]Field, len(l.fields)+len(fields))
	copy(newFields, l.fields)
	copy(newFields[len(l.fields):], fields)

	return &standardLogger{
		sink:   l.sink,
		fields: newFields,
	}
}

func (l *standardLogger) Debug(msg string, fields ...Field) {
	l.log(LevelDebug, msg, fields...)
}

func (l *standardLogger) Info(msg string, fields ...Field) {
	l.log(LevelInfo, msg, fields...)
}

func (l *standardLogger) Warn(msg string, fields ...Field) {
	l.log(LevelWarn, msg, fields...)
}

func (l *standardLogger) Error(msg string, fields ...Field) {
	l.log(LevelError, msg, fields...)
}

func (l *standardLogger) log(level Level, msg string, fields ...Field) {
	s := l.sink
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level || s.level == LevelSilent {
		return
	}

	var b strings.Builder
	if s.opts.Timestamps {
		b.WriteString(time.Now().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	if s.opts.Prefix != "" {
		b.WriteString(s.opts.Prefix)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "[%s] %s", level.String(), msg)

	all := make([]Field, 0, len(l.fields)+len(fields))
	all = append(all, l.fields...)
	all = append(all, fields...)
	if len(all) > 0 {
		b.WriteString(" |")
		for _, field := range all {
			fmt.Fprintf(&b, " %s=%s", field.Key, formatValue(field.Value))
		}
	}
	b.WriteByte('\n')

	_, _ = io.WriteString(s.out, b.String())
}

// formatValue renders string sets in a stable order so a diagnostic naming
// a set of keys reads the same on every run.
func formatValue(v any) string {
	switch val := v.(type) {
	case []string:
		sorted := append([]string(nil), val...)
		sort.Strings(sorted)
		return "[" + strings.Join(sorted, " ") + "]"
	case error:
		return val.Error()
	default:
		return fmt.Sprintf("%v", val)
	}
}
