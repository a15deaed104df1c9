// Package logging provides the structured logging abstraction used by every
// import pipeline component. Components depend on the Logger interface only;
// the logrus-backed adapter is wired at start-up.
package logging

import "sync"

// Logger defines the interface for structured logging throughout the application.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithError returns a new logger with an error field attached
	WithError(err error) Logger

	// WithField returns a new logger with a single field attached
	WithField(key string, value interface{}) Logger

	// WithFields returns a new logger with multiple fields attached
	WithFields(fields ...Field) Logger
}

// Field represents a key-value pair for structured logging.
type Field struct {
	Key   string
	Value interface{}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = NewLogrusAdapter("info", "text")
)

// GetLogger returns the process-wide default logger. Constructors fall back to
// it when they are handed a nil Logger.
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the process-wide default logger. Nil is ignored.
func SetDefault(logger Logger) {
	if logger == nil {
		return
	}
	defaultMu.Lock()
	defaultLogger = logger
	defaultMu.Unlock()
}

// OrDefault returns logger, or the default logger when logger is nil.
func OrDefault(logger Logger) Logger {
	if logger == nil {
		return GetLogger()
	}
	return logger
}
