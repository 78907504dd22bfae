package transport

import (
	"context"

	"github.com/jabolina/relt/pkg/relt"
)

type discardLogger struct{}

func (discardLogger) Info(v ...interface{})                  {}
func (discardLogger) Infof(format string, v ...interface{})  {}
func (discardLogger) Warn(v ...interface{})                  {}
func (discardLogger) Warnf(format string, v ...interface{})  {}
func (discardLogger) Error(v ...interface{})                 {}
func (discardLogger) Errorf(format string, v ...interface{}) {}
func (discardLogger) Debug(v ...interface{})                 {}
func (discardLogger) Debugf(format string, v ...interface{}) {}
func (discardLogger) ToggleDebug(value bool) bool            { return value }

func contextBackground() context.Context {
	return context.Background()
}

func recvOf(data []byte) relt.Recv {
	return relt.Recv{Data: data}
}
