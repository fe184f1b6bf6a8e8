// Package logging wraps logrus behind a narrow interface so the rest of
// the core never imports it directly, grounded on skipper's logging
// package conventions (structured fields, per-request context) adapted
// from skipper's access-log-centric design to this core's request-lifecycle
// logging (state transitions, rejections, aborts).
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the subset of *logrus.Logger / *logrus.Entry call sites in
// this module need.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// entry adapts *logrus.Entry to Logger.
type entry struct {
	e *logrus.Entry
}

// Options configures the process-wide root Logger.
type Options struct {
	Level  logrus.Level
	JSON   bool
	Output *os.File
}

// New builds a root Logger from Options. A zero Options produces
// Info-level, text-formatted output to stderr, matching logrus.New's own
// defaults; a zero Level (logrus.PanicLevel) is treated as unset.
func New(o Options) Logger {
	l := logrus.New()
	level := o.Level
	if level == 0 {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	if o.JSON {
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	if o.Output != nil {
		l.SetOutput(o.Output)
	}
	return &entry{e: logrus.NewEntry(l)}
}

func (l *entry) Debugf(format string, args ...interface{}) { l.e.Debugf(format, args...) }
func (l *entry) Infof(format string, args ...interface{})  { l.e.Infof(format, args...) }
func (l *entry) Warnf(format string, args ...interface{})  { l.e.Warnf(format, args...) }
func (l *entry) Errorf(format string, args ...interface{}) { l.e.Errorf(format, args...) }

func (l *entry) WithField(key string, value interface{}) Logger {
	return &entry{e: l.e.WithField(key, value)}
}

func (l *entry) WithFields(fields map[string]interface{}) Logger {
	return &entry{e: l.e.WithFields(logrus.Fields(fields))}
}

// ParseLevel exposes logrus.ParseLevel through this package's boundary, so
// the -application-log-level flag is parsed the same way New interprets
// Options.Level. config still references logrus.Level directly as a type
// for its own Config.ApplicationLogLevel field.
func ParseLevel(s string) (logrus.Level, error) {
	return logrus.ParseLevel(s)
}
