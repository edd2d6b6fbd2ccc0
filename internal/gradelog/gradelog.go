// Package gradelog provides the structured, context-carried logger used
// throughout the grading pipeline. It mirrors the shape of
// go.chromium.org/luci/common/logging (Get(ctx)/Infof/Warningf/Errorf)
// without pulling in luci's appengine-flavored context plumbing.
package gradelog

import (
	"context"
	"fmt"
	"log"
	"os"
)

// Level is a log severity, ordered low to high.
type Level int

const (
	Debug Level = iota
	Info
	Warning
	Error
)

func (l Level) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warning:
		return "WARNING"
	case Error:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps the config file's log_level string to a Level, defaulting
// to Info for an empty or unrecognized value.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return Debug
	case "warning":
		return Warning
	case "error":
		return Error
	default:
		return Info
	}
}

// Logger is the interface the pipeline depends on. Fields() returns a copy
// of the logger with the given key/value pairs attached to every subsequent
// line, typically the submission/dataset/operation/shard identifiers a
// given stage is working on.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warningf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fields(kv ...interface{}) Logger
}

type ctxKey struct{}

// stdLogger writes to the standard library logger, prefixing every line
// with its level and any attached fields. This is the only logging backend
// shipped by the core; a production deployment's process-entry layer may
// install a richer one (e.g. one that forwards to Cloud Logging) by calling
// WithLogger with its own Logger implementation.
type stdLogger struct {
	out      *log.Logger
	minLevel Level
	fields   []interface{}
}

// New returns a Logger that writes structured lines to stderr at Info level
// and above.
func New() Logger {
	return NewWithLevel(Info)
}

// NewWithLevel returns a Logger that writes structured lines to stderr,
// suppressing anything below minLevel (the config file's log_level).
func NewWithLevel(minLevel Level) Logger {
	return &stdLogger{out: log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds), minLevel: minLevel}
}

func (l *stdLogger) log(level Level, format string, args ...interface{}) {
	if level < l.minLevel {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if len(l.fields) > 0 {
		l.out.Printf("[%s] %s %s", level, msg, formatFields(l.fields))
		return
	}
	l.out.Printf("[%s] %s", level, msg)
}

func formatFields(kv []interface{}) string {
	s := ""
	for i := 0; i+1 < len(kv); i += 2 {
		s += fmt.Sprintf("%v=%v ", kv[i], kv[i+1])
	}
	return s
}

func (l *stdLogger) Debugf(format string, args ...interface{})   { l.log(Debug, format, args...) }
func (l *stdLogger) Infof(format string, args ...interface{})    { l.log(Info, format, args...) }
func (l *stdLogger) Warningf(format string, args ...interface{}) { l.log(Warning, format, args...) }
func (l *stdLogger) Errorf(format string, args ...interface{})   { l.log(Error, format, args...) }

func (l *stdLogger) Fields(kv ...interface{}) Logger {
	merged := make([]interface{}, 0, len(l.fields)+len(kv))
	merged = append(merged, l.fields...)
	merged = append(merged, kv...)
	return &stdLogger{out: l.out, minLevel: l.minLevel, fields: merged}
}

// WithLogger attaches l to ctx, replacing whatever logger was previously
// attached.
func WithLogger(ctx context.Context, l Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// Get returns the Logger attached to ctx, or a default stderr logger if
// none was attached. It never returns nil, so callers never need a nil
// check before calling Infof/Warningf/Errorf.
func Get(ctx context.Context) Logger {
	if l, ok := ctx.Value(ctxKey{}).(Logger); ok {
		return l
	}
	return New()
}

func Debugf(ctx context.Context, format string, args ...interface{}) {
	Get(ctx).Debugf(format, args...)
}

func Infof(ctx context.Context, format string, args ...interface{}) {
	Get(ctx).Infof(format, args...)
}

func Warningf(ctx context.Context, format string, args ...interface{}) {
	Get(ctx).Warningf(format, args...)
}

func Errorf(ctx context.Context, format string, args ...interface{}) {
	Get(ctx).Errorf(format, args...)
}
