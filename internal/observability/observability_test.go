package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LoggerConfig
		level   zapcore.Level
		wantErr bool
	}{
		{name: "json info", cfg: LoggerConfig{Level: "info", Format: "json"}, level: zapcore.InfoLevel},
		{name: "text debug", cfg: LoggerConfig{Level: "debug", Format: "text"}, level: zapcore.DebugLevel},
		{name: "default format", cfg: LoggerConfig{Level: "WARN"}, level: zapcore.WarnLevel},
		{name: "invalid level", cfg: LoggerConfig{Level: "verbose", Format: "json"}, wantErr: true},
		{name: "invalid format", cfg: LoggerConfig{Level: "info", Format: "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.level))
			assert.False(t, logger.Core().Enabled(tt.level-1))
		})
	}
}

func TestLoggerFromContext(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := context.WithValue(context.Background(), chimw.RequestIDKey, "req-123")
	LoggerFromContext(ctx, base).Info("with id")
	LoggerFromContext(context.Background(), base).Info("without id")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestPrometheusMetrics(t *testing.T) {
	ctx := context.Background()
	m := NewPrometheusMetrics()

	m.RecordAttempt(ctx, AttemptLabels{Backend: "ModelA", Position: 0, Status: "rejected"}, time.Second)
	m.RecordAttempt(ctx, AttemptLabels{Backend: "ModelB", Position: 1, Status: "success"}, 2*time.Second)
	m.RecordResolution(ctx, ResolutionLabels{Model: "ModelB", Status: "success"}, 3*time.Second)
	m.RecordResolution(ctx, ResolutionLabels{Status: "failure"}, 6*time.Second)
	m.RecordBatch(ctx, "success", 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("ModelA", "0", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attemptsTotal.WithLabelValues("ModelB", "1", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutionsTotal.WithLabelValues("ModelB", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.resolutionsTotal.WithLabelValues("", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.batchesTotal.WithLabelValues("success")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "detector_backend_attempts_total")
	assert.Contains(t, rec.Body.String(), "detector_resolution_seconds")
}

func TestNopMetrics(t *testing.T) {
	var m Metrics = NopMetrics{}
	assert.NotPanics(t, func() {
		m.RecordAttempt(context.Background(), AttemptLabels{}, 0)
		m.RecordResolution(context.Background(), ResolutionLabels{}, 0)
		m.RecordBatch(context.Background(), "success", 0)
	})
}
