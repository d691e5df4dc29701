package observability

import (
	"context"
	"fmt"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field represents a structured log field.
type Field = zap.Field

// LoggerConfig controls how the process logger is built
type LoggerConfig struct {
	Level  string // debug, info, warn, error
	Format string // json or text
}

// NewLogger builds the process logger. The text format uses the zap
// development console encoder.
func NewLogger(cfg LoggerConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	switch strings.ToLower(cfg.Format) {
	case "", "json":
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.TimeKey = "timestamp"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	case "text", "console":
		zapCfg = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Format)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// LoggerFromContext returns base annotated with the request ID carried by
// ctx, if any.
func LoggerFromContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if requestID := chimw.GetReqID(ctx); requestID != "" {
		return base.With(zap.String("request_id", requestID))
	}
	return base
}
