// Package logger provides the leveled logging handle passed to every
// component of the pipeline. There is no package-level logger: callers build
// one at startup and inject it.
package logger

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Logger is the logging handle used by the pipeline components.
type Logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Warnf(format string, v ...any)
	Errorf(format string, v ...any)
	// WithPrefix returns a Logger sharing this one's output and level whose
	// lines are prefixed with prefix.
	WithPrefix(prefix string) Logger
}

// Level orders log severities; a logger emits lines at or below its level.
type Level int

const (
	LevelError Level = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l Level) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelInfo:
		return "info"
	case LevelDebug:
		return "debug"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ParseLevel maps a config value to a Level. The empty string means info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return LevelInfo, nil
	case "debug":
		return LevelDebug, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, errors.Errorf("unknown log level %q", s)
}

// NopLogger discards everything.
var NopLogger Logger = nopLogger{}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
func (nopLogger) Warnf(string, ...any)  {}
func (nopLogger) Errorf(string, ...any) {}

func (n nopLogger) WithPrefix(string) Logger { return n }

// standardLogger writes plain-text lines through a *log.Logger.
type standardLogger struct {
	mu     *sync.Mutex
	out    *log.Logger
	level  Level
	prefix string
}

// New returns a Logger writing to w with the standard log flags.
func New(w io.Writer, level Level) Logger {
	return NewWithFlags(w, level, log.LstdFlags)
}

// NewWithFlags is New with explicit log package flags; tests pass 0 to get
// stable output.
func NewWithFlags(w io.Writer, level Level, flags int) Logger {
	return &standardLogger{
		mu:    &sync.Mutex{},
		out:   log.New(w, "", flags),
		level: level,
	}
}

func (s *standardLogger) logf(l Level, format string, v ...any) {
	if l > s.level {
		return
	}
	msg := fmt.Sprintf(format, v...)
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.out.Output(3, s.prefix+msg)
}

func (s *standardLogger) Debugf(format string, v ...any) { s.logf(LevelDebug, format, v...) }
func (s *standardLogger) Infof(format string, v ...any)  { s.logf(LevelInfo, format, v...) }
func (s *standardLogger) Warnf(format string, v ...any)  { s.logf(LevelWarn, "WARN: "+format, v...) }
func (s *standardLogger) Errorf(format string, v ...any) { s.logf(LevelError, "ERROR: "+format, v...) }

func (s *standardLogger) WithPrefix(prefix string) Logger {
	return &standardLogger{
		mu:     s.mu,
		out:    s.out,
		level:  s.level,
		prefix: s.prefix + prefix,
	}
}
