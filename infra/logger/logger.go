package logger

import corelogger "github.com/kilianp07/retrieverd/core/logger"

// Logger is the core logging contract.
type Logger = corelogger.Logger

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debugf(string, ...any)         {}
func (NopLogger) Debugw(string, map[string]any) {}
func (NopLogger) Infof(string, ...any)          {}
func (NopLogger) Warnf(string, ...any)          {}
func (NopLogger) Errorf(string, ...any)         {}

// New returns the process logger for a component.
func New(component string) Logger {
	return NewZerologLogger(component)
}
