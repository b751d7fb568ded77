package main

import (
	"fmt"

	"github.com/goliatone/go-logger/glog"
)

// logAdapter lets glog loggers serve the printf style signup.Logger
type logAdapter struct {
	l glog.Logger
}

func (a logAdapter) Debug(format string, args ...any) {
	a.l.Debug(fmt.Sprintf(format, args...))
}

func (a logAdapter) Info(format string, args ...any) {
	a.l.Info(fmt.Sprintf(format, args...))
}

func (a logAdapter) Warn(format string, args ...any) {
	a.l.Warn(fmt.Sprintf(format, args...))
}

func (a logAdapter) Error(format string, args ...any) {
	a.l.Error(fmt.Sprintf(format, args...))
}
