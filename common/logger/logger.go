package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger provides a unified logging interface for the search service, backed
// by logrus. Packages log through the package-level functions so the backend
// can be swapped or silenced in one place.

// LogLevel represents log severity levels
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var log = newBackend()

func newBackend() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stdout)
	l.SetLevel(logrus.InfoLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	return l
}

// SetLevel sets the minimum log level
func SetLevel(level LogLevel) {
	switch level {
	case LevelDebug:
		log.SetLevel(logrus.DebugLevel)
	case LevelInfo:
		log.SetLevel(logrus.InfoLevel)
	case LevelWarn:
		log.SetLevel(logrus.WarnLevel)
	case LevelError:
		log.SetLevel(logrus.ErrorLevel)
	}
}

// SetLevelByName sets the level from a config string ("debug", "info", ...).
// Unknown names keep the current level.
func SetLevelByName(name string) {
	if lvl, err := logrus.ParseLevel(name); err == nil {
		log.SetLevel(lvl)
	}
}

// Debugf logs a debug message
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Infof logs an info message
func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warnf logs a warning message
func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Errorf logs an error message
func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}

// ContextLogger carries structured fields attached to every message.
type ContextLogger struct {
	entry *logrus.Entry
}

// WithContext creates a new logger with context
func WithContext(context map[string]interface{}) *ContextLogger {
	return &ContextLogger{entry: log.WithFields(logrus.Fields(context))}
}

// Debugf logs with context
func (c *ContextLogger) Debugf(format string, args ...interface{}) {
	c.entry.Debugf(format, args...)
}

// Infof logs with context
func (c *ContextLogger) Infof(format string, args ...interface{}) {
	c.entry.Infof(format, args...)
}

// Warnf logs with context
func (c *ContextLogger) Warnf(format string, args ...interface{}) {
	c.entry.Warnf(format, args...)
}

// Errorf logs with context
func (c *ContextLogger) Errorf(format string, args ...interface{}) {
	c.entry.Errorf(format, args...)
}
