// Package logger provides a simple logging interface for idrac-power components.
// It allows packages to log debug, info, warn, and error messages without
// being coupled to a specific logging implementation. The default
// implementation writes zerolog console output to stderr.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DebugEnvVar enables debug output for every env logger when set.
const DebugEnvVar = "IDRAC_POWER_DEBUG"

// Logger defines the interface for logging operations.
// All methods accept a format string and arguments, similar to fmt.Printf.
type Logger interface {
	Debug(format string, args ...interface{})
	Info(format string, args ...interface{})
	Warn(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// verbose is flipped by --verbose; it has the same effect as DebugEnvVar.
var verbose atomic.Bool

// SetVerbose enables or disables debug output for env loggers.
func SetVerbose(v bool) {
	verbose.Store(v)
}

func debugEnabled() bool {
	return verbose.Load() || os.Getenv(DebugEnvVar) != ""
}

// zeroLogger implements Logger on top of a zerolog.Logger.
type zeroLogger struct {
	log       zerolog.Logger
	component string
	// checkEnv re-evaluates debug enablement on every Debug call.
	checkEnv bool
}

// New creates a logger writing human-readable lines to w. The component is
// attached to every line (e.g., "tunnel" or "monitor").
func New(w io.Writer, component string, debug bool) Logger {
	level := zerolog.InfoLevel
	if debug {
		level = zerolog.DebugLevel
	}
	return &zeroLogger{
		log:       newZerolog(w).Level(level),
		component: component,
	}
}

// NewEnvLogger creates a stderr logger that respects IDRAC_POWER_DEBUG and
// SetVerbose for debug output.
func NewEnvLogger(component string) Logger {
	return &zeroLogger{
		log:       newZerolog(os.Stderr).Level(zerolog.DebugLevel),
		component: component,
		checkEnv:  true,
	}
}

func newZerolog(w io.Writer) zerolog.Logger {
	out := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func (l *zeroLogger) event(e *zerolog.Event) *zerolog.Event {
	if l.component != "" {
		e = e.Str("component", l.component)
	}
	return e
}

func (l *zeroLogger) Debug(format string, args ...interface{}) {
	if l.checkEnv && !debugEnabled() {
		return
	}
	l.event(l.log.Debug()).Msgf(format, args...)
}

func (l *zeroLogger) Info(format string, args ...interface{}) {
	l.event(l.log.Info()).Msgf(format, args...)
}

func (l *zeroLogger) Warn(format string, args ...interface{}) {
	l.event(l.log.Warn()).Msgf(format, args...)
}

func (l *zeroLogger) Error(format string, args ...interface{}) {
	l.event(l.log.Error()).Msgf(format, args...)
}

// noopLogger implements Logger but discards all messages.
type noopLogger struct{}

// Noop returns a logger that discards all messages.
func Noop() Logger {
	return &noopLogger{}
}

func (l *noopLogger) Debug(format string, args ...interface{}) {}
func (l *noopLogger) Info(format string, args ...interface{})  {}
func (l *noopLogger) Warn(format string, args ...interface{})  {}
func (l *noopLogger) Error(format string, args ...interface{}) {}

// LogMessage represents a captured log message.
type LogMessage struct {
	Level   string
	Message string
}

// BufferLogger captures log messages for testing.
// Safe for use from concurrent target workers.
type BufferLogger struct {
	mu       sync.Mutex
	Messages []LogMessage
}

// NewBufferLogger creates a logger that captures messages for inspection.
func NewBufferLogger() *BufferLogger {
	return &BufferLogger{
		Messages: make([]LogMessage, 0),
	}
}

func (l *BufferLogger) add(level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = append(l.Messages, LogMessage{Level: level, Message: fmt.Sprintf(format, args...)})
}

func (l *BufferLogger) Debug(format string, args ...interface{}) { l.add("debug", format, args...) }
func (l *BufferLogger) Info(format string, args ...interface{})  { l.add("info", format, args...) }
func (l *BufferLogger) Warn(format string, args ...interface{})  { l.add("warn", format, args...) }
func (l *BufferLogger) Error(format string, args ...interface{}) { l.add("error", format, args...) }

// HasLevel returns true if any message was logged at the given level.
func (l *BufferLogger) HasLevel(level string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.Messages {
		if m.Level == level {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the captured messages.
func (l *BufferLogger) Snapshot() []LogMessage {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogMessage, len(l.Messages))
	copy(out, l.Messages)
	return out
}

// Clear removes all captured messages.
func (l *BufferLogger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Messages = l.Messages[:0]
}

// defaultLogger is the package-level default logger.
var defaultLogger Logger = NewEnvLogger("")

// Default returns the default logger for the package.
func Default() Logger {
	return defaultLogger
}

// SetDefault sets the default logger for the package.
// This is useful for testing or to configure logging globally.
func SetDefault(l Logger) {
	defaultLogger = l
}
