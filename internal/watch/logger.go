package watch

import (
	"github.com/ThreeDotsLabs/watermill"
	"go.uber.org/zap"
)

// zapAdapter lets watermill log through the service logger.
type zapAdapter struct {
	l *zap.Logger
}

func NewLoggerAdapter(l *zap.Logger) watermill.LoggerAdapter {
	return &zapAdapter{l: l.Named("watermill")}
}

func (a *zapAdapter) Error(msg string, err error, fields watermill.LogFields) {
	a.l.Error(msg, append(zapFields(fields), zap.Error(err))...)
}

func (a *zapAdapter) Info(msg string, fields watermill.LogFields) {
	a.l.Info(msg, zapFields(fields)...)
}

func (a *zapAdapter) Debug(msg string, fields watermill.LogFields) {
	a.l.Debug(msg, zapFields(fields)...)
}

// Trace is very chatty in watermill; it goes to debug.
func (a *zapAdapter) Trace(msg string, fields watermill.LogFields) {
	a.l.Debug(msg, zapFields(fields)...)
}

func (a *zapAdapter) With(fields watermill.LogFields) watermill.LoggerAdapter {
	return &zapAdapter{l: a.l.With(zapFields(fields)...)}
}

func zapFields(fields watermill.LogFields) []zap.Field {
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}
