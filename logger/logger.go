package log

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var Debug bool

var sugar atomic.Pointer[zap.SugaredLogger]

func init() {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	sugar.Store(l.Sugar())
}

// SetLogger replaces the process logger. A nil logger silences output.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	sugar.Store(l.Sugar())
}

// Logger returns the process logger for components that take a *zap.Logger.
func Logger() *zap.Logger {
	return sugar.Load().Desugar()
}

func Printf(format string, v ...interface{}) {
	if Debug {
		sugar.Load().Debugf(format, v...)
	}
}

func Infof(format string, v ...interface{}) {
	sugar.Load().Infof(format, v...)
}

func Errorf(format string, v ...interface{}) {
	sugar.Load().Errorf(format, v...)
}

func Fatalf(format string, v ...interface{}) {
	sugar.Load().Fatalf(format, v...)
}
