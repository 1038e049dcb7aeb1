// Package logger provides the structured logging call shape used across
// sqliteweb, a thin layer over logrus so call sites read as
// logger.Info("message", logger.Ctx{"key": value}) regardless of which
// concrete logger is wired in underneath.
package logger

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Ctx is a set of structured logging fields attached to a single log entry.
type Ctx map[string]any

var root = newRoot()

func newRoot() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SetLevel adjusts the verbosity of the root logger ("debug", "info", "warn", "error").
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}

	root.SetLevel(lvl)
}

func entry(ctx Ctx) *logrus.Entry {
	if len(ctx) == 0 {
		return logrus.NewEntry(root)
	}

	return root.WithFields(logrus.Fields(ctx))
}

// Debug logs a debug-level message with optional structured context.
func Debug(msg string, ctx ...Ctx) {
	entry(merge(ctx)).Debug(msg)
}

// Info logs an info-level message with optional structured context.
func Info(msg string, ctx ...Ctx) {
	entry(merge(ctx)).Info(msg)
}

// Warn logs a warning-level message with optional structured context.
func Warn(msg string, ctx ...Ctx) {
	entry(merge(ctx)).Warn(msg)
}

// Error logs an error-level message with optional structured context.
func Error(msg string, ctx ...Ctx) {
	entry(merge(ctx)).Error(msg)
}

// Debugf logs a formatted debug-level message, for call sites that don't carry structured context.
func Debugf(format string, args ...any) {
	logrus.NewEntry(root).Debugf(format, args...)
}

func merge(ctxs []Ctx) Ctx {
	if len(ctxs) == 0 {
		return nil
	}

	if len(ctxs) == 1 {
		return ctxs[0]
	}

	out := Ctx{}
	for _, c := range ctxs {
		for k, v := range c {
			out[k] = v
		}
	}

	return out
}
