// Package logging provides the structured logger every ghs component takes
// as a dependency, mirroring the shape of the teacher protocol's own
// pluggable logger: callers may supply their own, or fall back to the
// default implementation built on logrus.
package logging

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-colorable"
	"github.com/sirupsen/logrus"
)

// Logger is the interface every package in this module depends on instead of
// a concrete logging library, so tests can swap in a no-op or a recording
// implementation.
type Logger interface {
	Info(v ...interface{})
	Infof(format string, v ...interface{})
	Warn(v ...interface{})
	Warnf(format string, v ...interface{})
	Error(v ...interface{})
	Errorf(format string, v ...interface{})
	Debug(v ...interface{})
	Debugf(format string, v ...interface{})
	ToggleDebug(value bool) bool
}

// DefaultLogger is the logger used when a caller does not provide its own.
// It wraps a logrus.Logger configured with a colorized text formatter so a
// node's console trail stays readable across a run with many agents.
type DefaultLogger struct {
	entry *logrus.Logger
}

// NewDefaultLogger builds a DefaultLogger writing to w with a label
// (typically the agent's id) attached to every line as its "agent" field.
func NewDefaultLogger(w io.Writer, label string) *DefaultLogger {
	l := logrus.New()
	l.Out = w
	l.SetFormatter(&logrus.TextFormatter{
		ForceColors:     true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	l.AddHook(&labelHook{label: label})
	return &DefaultLogger{entry: l}
}

// NewConsoleLogger builds a DefaultLogger writing to a colorable stdout, the
// way an interactive demo binary wants its trail to look.
func NewConsoleLogger(label string) *DefaultLogger {
	return NewDefaultLogger(colorable.NewColorableStdout(), label)
}

func (l *DefaultLogger) Info(v ...interface{})  { l.entry.Info(v...) }
func (l *DefaultLogger) Warn(v ...interface{})  { l.entry.Warn(v...) }
func (l *DefaultLogger) Error(v ...interface{}) { l.entry.Error(v...) }
func (l *DefaultLogger) Debug(v ...interface{}) { l.entry.Debug(v...) }

func (l *DefaultLogger) Infof(format string, v ...interface{})  { l.entry.Infof(format, v...) }
func (l *DefaultLogger) Warnf(format string, v ...interface{})  { l.entry.Warnf(format, v...) }
func (l *DefaultLogger) Errorf(format string, v ...interface{}) { l.entry.Errorf(format, v...) }
func (l *DefaultLogger) Debugf(format string, v ...interface{}) { l.entry.Debugf(format, v...) }

// ToggleDebug flips the logger's minimum level between Info and Debug,
// returning the new state.
func (l *DefaultLogger) ToggleDebug(value bool) bool {
	if value {
		l.entry.SetLevel(logrus.DebugLevel)
	} else {
		l.entry.SetLevel(logrus.InfoLevel)
	}
	return value
}

// labelHook tags every entry with the owning agent's label, colored so
// several agents' interleaved output stays distinguishable on a terminal.
type labelHook struct {
	label string
}

func (h *labelHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *labelHook) Fire(e *logrus.Entry) error {
	e.Data["agent"] = color.CyanString(h.label)
	return nil
}

// NoopLogger discards everything. Useful in tests that exercise a component
// requiring a Logger but don't care about its output.
type NoopLogger struct{}

func (NoopLogger) Info(v ...interface{})                      {}
func (NoopLogger) Infof(format string, v ...interface{})      {}
func (NoopLogger) Warn(v ...interface{})                      {}
func (NoopLogger) Warnf(format string, v ...interface{})      {}
func (NoopLogger) Error(v ...interface{})                     {}
func (NoopLogger) Errorf(format string, v ...interface{})     {}
func (NoopLogger) Debug(v ...interface{})                     {}
func (NoopLogger) Debugf(format string, v ...interface{})     {}
func (NoopLogger) ToggleDebug(value bool) bool                { return value }

var _ Logger = (*DefaultLogger)(nil)
var _ Logger = NoopLogger{}

// StderrDefault builds a DefaultLogger writing to os.Stderr, matching the
// teacher's os.Stderr default. No component in this module calls it.
func StderrDefault(label string) *DefaultLogger {
	return NewDefaultLogger(os.Stderr, label)
}
