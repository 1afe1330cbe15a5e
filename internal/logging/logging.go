// Package logging builds the application's zap logger and keeps a ring of
// recent entries that the API can list and stream.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// OutcomeSuccess marks an info entry as a success for log consumers.
var OutcomeSuccess = zap.String("outcome", "success")

// New creates the process logger. When ring is non-nil every entry is also
// recorded there.
func New(env string, ring *Ring) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if env == "dev" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var opts []zap.Option
	if ring != nil {
		opts = append(opts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, ring.Core(cfg.Level))
		}))
	}
	return cfg.Build(opts...)
}
