// Package logging wraps logrus with the small set of level-aware
// package functions the rest of this server calls, the same shape the
// teacher's own minilog exposed (package-level Debug/Info/Warn/Error),
// swapped for a library-backed logger so formatting, levels, and output
// routing are not reinvented.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var std = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.InfoLevel)
	return l
}

// SetLevel parses one of trace|debug|info|warn|error|fatal and applies
// it to the package logger. An unrecognized level is left unchanged.
func SetLevel(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	std.SetLevel(lvl)
	return nil
}

// WithField returns an entry carrying one structured field, for call
// sites that want to tag a line with a connection id, role, or key.
func WithField(key string, value interface{}) *logrus.Entry {
	return std.WithField(key, value)
}

func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { std.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { std.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }

func Info(args ...interface{})  { std.Info(args...) }
func Warn(args ...interface{})  { std.Warn(args...) }
func Error(args ...interface{}) { std.Error(args...) }
