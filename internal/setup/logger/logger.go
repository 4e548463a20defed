package logger

import (
	axlogger "github.com/jaxron/axonet/pkg/client/logger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the application logger at the configured level.
func New(level string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

// Axonet adapts a zap.Logger to the axonet logger.Logger interface so the
// HTTP client middleware chain logs through the application logger.
type Axonet struct {
	zap *zap.Logger
}

// NewAxonet wraps a zap logger for use by the axonet HTTP client.
func NewAxonet(zapLogger *zap.Logger) axlogger.Logger {
	return &Axonet{zap: zapLogger}
}

func (l *Axonet) Debug(msg string)                     { l.zap.Debug(msg) }
func (l *Axonet) Info(msg string)                      { l.zap.Info(msg) }
func (l *Axonet) Warn(msg string)                      { l.zap.Warn(msg) }
func (l *Axonet) Error(msg string)                     { l.zap.Error(msg) }
func (l *Axonet) Debugf(format string, args ...any)    { l.zap.Sugar().Debugf(format, args...) }
func (l *Axonet) Infof(format string, args ...any)     { l.zap.Sugar().Infof(format, args...) }
func (l *Axonet) Warnf(format string, args ...any)     { l.zap.Sugar().Warnf(format, args...) }
func (l *Axonet) Errorf(format string, args ...any)    { l.zap.Sugar().Errorf(format, args...) }

// WithFields creates a new logger carrying additional context fields.
func (l *Axonet) WithFields(fields ...axlogger.Field) axlogger.Logger {
	zapFields := make([]zap.Field, len(fields))
	for i, f := range fields {
		zapFields[i] = zap.Any(f.Key, f.Value)
	}

	return &Axonet{zap: l.zap.With(zapFields...)}
}
