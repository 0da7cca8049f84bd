package sftpd

import "github.com/sirupsen/logrus"

// Logger is the structured logging sink the session loop and
// dispatcher write to: a small leveled, field-carrying interface so a
// caller can plug in any backend.
type Logger interface {
	Debug(msg string, fields logrus.Fields)
	Info(msg string, fields logrus.Fields)
	Error(msg string, fields logrus.Fields)
}

// logrusLogger adapts a *logrus.Logger to Logger.
type logrusLogger struct {
	entry *logrus.Entry
}

// NewLogrusLogger wraps l as a Logger. Passing nil uses logrus's
// package-level standard logger.
func NewLogrusLogger(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.StandardLogger()
	}
	return &logrusLogger{entry: logrus.NewEntry(l)}
}

func (l *logrusLogger) Debug(msg string, fields logrus.Fields) { l.entry.WithFields(fields).Debug(msg) }
func (l *logrusLogger) Info(msg string, fields logrus.Fields)  { l.entry.WithFields(fields).Info(msg) }
func (l *logrusLogger) Error(msg string, fields logrus.Fields) { l.entry.WithFields(fields).Error(msg) }

type nopLogger struct{}

func (nopLogger) Debug(string, logrus.Fields) {}
func (nopLogger) Info(string, logrus.Fields)  {}
func (nopLogger) Error(string, logrus.Fields) {}

// NopLogger discards everything; it is the default when a session is
// constructed without an explicit Logger.
var NopLogger Logger = nopLogger{}
