package logger

import (
	"context"
	"io"

	"github.com/goliatone/go-logger/glog"
)

type glogAdapter struct {
	logger glog.Logger
}

// FromGlog adapts a go-logger logger.
func FromGlog(l glog.Logger) Logger {
	if l == nil {
		return NewFmtLogger(nil)
	}
	return glogAdapter{logger: l}
}

// NewJSON builds a go-logger JSON logger writing to w at level.
func NewJSON(w io.Writer, level string) Logger {
	if level == "" {
		level = "info"
	}
	return FromGlog(glog.NewLogger(
		glog.WithWriter(w),
		glog.WithLoggerTypeJSON(),
		glog.WithLevel(level),
	))
}

func (l glogAdapter) Trace(msg string, args ...any) { l.logger.Trace(msg, args...) }
func (l glogAdapter) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }
func (l glogAdapter) Info(msg string, args ...any)  { l.logger.Info(msg, args...) }
func (l glogAdapter) Warn(msg string, args ...any)  { l.logger.Warn(msg, args...) }
func (l glogAdapter) Error(msg string, args ...any) { l.logger.Error(msg, args...) }
func (l glogAdapter) Fatal(msg string, args ...any) { l.logger.Fatal(msg, args...) }

func (l glogAdapter) WithContext(ctx context.Context) Logger {
	return glogAdapter{logger: l.logger.WithContext(ctx)}
}

func (l glogAdapter) WithFields(fields map[string]any) Logger {
	if fl, ok := l.logger.(glog.FieldsLogger); ok {
		return glogAdapter{logger: fl.WithFields(fields)}
	}
	return l
}
