// Package logging provides the pluggable logging hook shared by the
// sigchain and client packages and the pks command. It generalizes the teacher
// package's per-process Logger/SetLogger pair (misc.go, context.go) into a
// value that is injected per component instead of held in a package
// global, so that two Clients in the same process can log independently.
package logging

import "github.com/sirupsen/logrus"

// Logger is the logging hook used throughout this module.
type Logger interface {
	Logf(format string, a ...interface{})
}

type dummyLogger struct{}

func (dummyLogger) Logf(format string, a ...interface{}) {}

// Discard is a Logger that drops everything written to it. It is the
// default for any component that is not given an explicit Logger.
var Discard Logger = dummyLogger{}

// logrusLogger adapts a *logrus.Logger to the Logger interface.
type logrusLogger struct {
	l *logrus.Logger
}

// NewLogrus wraps l as a Logger.
func NewLogrus(l *logrus.Logger) Logger {
	if l == nil {
		l = logrus.New()
	}
	return logrusLogger{l: l}
}

func (lg logrusLogger) Logf(format string, a ...interface{}) {
	lg.l.Infof(format, a...)
}
