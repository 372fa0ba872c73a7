// Package logging provides the structured, leveled logger used throughout
// the driver in place of ad-hoc fmt.Printf/log.Println calls. It wraps
// go.uber.org/zap, matching the logging stack already present in the
// teacher's own dependency set, and mirrors the small, named-sub-logger
// shape demonstrated by go.viam.com/rdk/logging's test suite (Level with
// String/FromString, Named sub-loggers, a NewTestLogger constructor).
package logging

import (
	"fmt"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// Level is a logging severity, serializable to/from its lower-case name.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// LevelFromString parses a level name, accepting "warning" as an alias for
// WARN.
func LevelFromString(s string) (Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return DEBUG, nil
	case "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	default:
		return 0, fmt.Errorf("logging: unknown level %q", s)
	}
}

func (l Level) zapLevel() zap.AtomicLevel {
	switch l {
	case DEBUG:
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case WARN:
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case ERROR:
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}

// Logger is the structured logger passed to every driver component. It is
// a thin, named wrapper over *zap.SugaredLogger.
type Logger struct {
	name string
	zl   *zap.SugaredLogger
}

// NewLogger constructs a production logger named name, writing to stderr
// at INFO level.
func NewLogger(name string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = INFO.zapLevel()
	zl, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op logger rather than panicking at construction
		// time; logging must never be a fatal dependency.
		zl = zap.NewNop()
	}
	return Logger{name: name, zl: zl.Sugar().Named(name)}
}

// NewTestLogger constructs a Logger that writes to the given test's output,
// the same convenience the teacher's own test suite leans on throughout
// (logging.NewTestLogger(t)).
func NewTestLogger(t testing.TB) Logger {
	zl := zaptest.NewLogger(t)
	return Logger{name: "test", zl: zl.Sugar()}
}

// Named returns a child logger that prefixes its name with the parent's.
func (l Logger) Named(name string) Logger {
	return Logger{name: l.name + "." + name, zl: l.zl.Named(name)}
}

func (l Logger) Debugw(msg string, kv ...interface{}) { l.zl.Debugw(msg, kv...) }
func (l Logger) Infow(msg string, kv ...interface{})  { l.zl.Infow(msg, kv...) }
func (l Logger) Warnw(msg string, kv ...interface{})  { l.zl.Warnw(msg, kv...) }
func (l Logger) Errorw(msg string, kv ...interface{}) { l.zl.Errorw(msg, kv...) }

func (l Logger) Debugf(format string, args ...interface{}) { l.zl.Debugf(format, args...) }
func (l Logger) Infof(format string, args ...interface{})  { l.zl.Infof(format, args...) }
func (l Logger) Warnf(format string, args ...interface{})  { l.zl.Warnf(format, args...) }
func (l Logger) Errorf(format string, args ...interface{}) { l.zl.Errorf(format, args...) }
