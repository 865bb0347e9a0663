// Package logger defines the logging contract of dispatchers, handlers and
// scheduled tasks. NewJSON adapts go-logger; FmtLogger is a plain text
// fallback used when nothing is configured.
package logger

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"time"
)

type Logger interface {
	Trace(msg string, args ...any)
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	WithContext(ctx context.Context) Logger
}

// FieldsLogger is implemented by loggers that carry structured fields.
type FieldsLogger interface {
	WithFields(map[string]any) Logger
}

// Level orders severities from Trace to Fatal.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = [...]string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL"}

func (l Level) String() string {
	if l < LevelTrace || l > LevelFatal {
		return fmt.Sprintf("LEVEL(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel accepts level names in any case.
func ParseLevel(s string) (Level, bool) {
	for i, name := range levelNames {
		if strings.EqualFold(s, name) {
			return Level(i), true
		}
	}
	return LevelInfo, false
}

// FmtLogger writes one text line per entry: time, level, message and the
// sorted fields. Copies made by WithFields share the writer lock.
type FmtLogger struct {
	mu     *sync.Mutex
	out    io.Writer
	min    Level
	fields map[string]any
}

// NewFmtLogger logs every level to out, or to stdout when out is nil.
func NewFmtLogger(out io.Writer) *FmtLogger {
	if out == nil {
		out = os.Stdout
	}
	return &FmtLogger{mu: &sync.Mutex{}, out: out, min: LevelTrace}
}

// NewText is a FmtLogger dropping entries below level.
func NewText(out io.Writer, level string) Logger {
	min, _ := ParseLevel(level)
	return NewFmtLogger(out).WithLevel(min)
}

// WithLevel returns a copy dropping entries below min.
func (l *FmtLogger) WithLevel(min Level) *FmtLogger {
	cp := *l.orDefault()
	cp.min = min
	return &cp
}

func (l *FmtLogger) Trace(msg string, args ...any) { l.write(LevelTrace, msg, args) }
func (l *FmtLogger) Debug(msg string, args ...any) { l.write(LevelDebug, msg, args) }
func (l *FmtLogger) Info(msg string, args ...any)  { l.write(LevelInfo, msg, args) }
func (l *FmtLogger) Warn(msg string, args ...any)  { l.write(LevelWarn, msg, args) }
func (l *FmtLogger) Error(msg string, args ...any) { l.write(LevelError, msg, args) }
func (l *FmtLogger) Fatal(msg string, args ...any) { l.write(LevelFatal, msg, args) }

// WithContext is a no-op: text lines carry no context values.
func (l *FmtLogger) WithContext(context.Context) Logger {
	return l.orDefault()
}

func (l *FmtLogger) WithFields(fields map[string]any) Logger {
	cp := *l.orDefault()
	cp.fields = mergeFields(cp.fields, fields)
	return &cp
}

func (l *FmtLogger) orDefault() *FmtLogger {
	if l == nil {
		return NewFmtLogger(nil)
	}
	return l
}

func (l *FmtLogger) write(level Level, msg string, args []any) {
	l = l.orDefault()
	if level < l.min {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().UTC().Format(time.RFC3339Nano))
	fmt.Fprintf(&b, " %-5s ", level)
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	b.WriteString(strings.TrimSpace(msg))
	for _, k := range slices.Sorted(maps.Keys(l.fields)) {
		fmt.Fprintf(&b, " %s=%s", k, fieldValue(l.fields[k]))
	}
	b.WriteByte('\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.out, b.String())
}

func fieldValue(v any) string {
	s := fmt.Sprint(v)
	if strings.ContainsAny(s, " \t\n\"") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

// Normalize returns l, or a stdout FmtLogger when l is nil.
func Normalize(l Logger) Logger {
	if l == nil {
		return NewFmtLogger(nil)
	}
	return l
}

// WithFields decorates l with fields when it supports them.
func WithFields(l Logger, fields map[string]any) Logger {
	l = Normalize(l)
	if len(fields) == 0 {
		return l
	}
	if fl, ok := l.(FieldsLogger); ok {
		return fl.WithFields(fields)
	}
	return l
}

func mergeFields(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	maps.Copy(out, a)
	maps.Copy(out, b)
	return out
}
