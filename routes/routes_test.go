package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/answer-detector/app"
	"github.com/upb/answer-detector/config"
	"github.com/upb/answer-detector/handlers"
	"github.com/upb/answer-detector/services/classifier"
	"github.com/upb/answer-detector/services/resolver"
	"go.uber.org/zap"
)

type constSource float64

func (s constSource) Float64() float64 { return float64(s) }

func newServer(t *testing.T, draw float64, metrics bool) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 3000, WriteTimeout: 5 * time.Second},
		Classifiers: config.ClassifiersConfig{
			Chain: []classifier.SimulatedConfig{
				{Name: "ModelA", SuccessRate: 0.9},
				{Name: "ModelB", SuccessRate: 0.7},
				{Name: "ModelC", SuccessRate: 0.95},
			},
		},
		Resolver:      config.ResolverConfig{MaxBatchSize: 5, BatchMode: resolver.BatchAllOrNothing},
		Observability: config.ObservabilityConfig{LogLevel: "info", MetricsEnabled: metrics},
		Questions:     config.DefaultQuestions(),
	}

	deps, err := app.NewDependencies(context.Background(), cfg, zap.NewNop(), app.WithRandomSource(constSource(draw)))
	require.NoError(t, err)

	srv := httptest.NewServer(SetupRoutes(deps))
	t.Cleanup(srv.Close)
	return srv
}

func TestResultsEndpoint(t *testing.T) {
	t.Run("default questions", func(t *testing.T) {
		srv := newServer(t, 0.8, false)

		resp, err := http.Get(srv.URL + "/results")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

		var results []handlers.ResultResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
		require.Len(t, results, 5)
		for i, result := range results {
			assert.Equal(t, config.DefaultQuestions()[i], result.Question)
			// 0.8 passes ModelA's 0.9 rate
			assert.Equal(t, "ModelA", result.Model)
			assert.Equal(t, "AI", result.Result)
			assert.GreaterOrEqual(t, result.Confidence, 0.5)
			assert.Less(t, result.Confidence, 1.0)
		}
	})

	t.Run("falls through to the last backend", func(t *testing.T) {
		// 0.92 fails ModelA and ModelB, passes ModelC
		srv := newServer(t, 0.92, false)

		resp, err := http.Get(srv.URL + "/results?question=Why+Go")
		require.NoError(t, err)
		defer resp.Body.Close()

		var results []handlers.ResultResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&results))
		require.Len(t, results, 1)
		assert.Equal(t, "ModelC", results[0].Model)
		assert.Equal(t, "Why Go", results[0].Question)
	})

	t.Run("every backend fails", func(t *testing.T) {
		srv := newServer(t, 0.99, false)

		resp, err := http.Get(srv.URL + "/results")
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, map[string]string{"error": "all models failed"}, body)
	})
}

func TestAPIRoutes(t *testing.T) {
	srv := newServer(t, 0, true)

	t.Run("classify", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api/v1/classify", "application/json",
			bytes.NewBufferString(`{"questions":["a","b"]}`))
		require.NoError(t, err)
		defer resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data handlers.ClassifyResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, 2, body.Data.Succeeded)
		require.Len(t, body.Data.Results, 2)
		assert.Equal(t, "Human", body.Data.Results[0].Result)
	})

	t.Run("backends", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/backends")
		require.NoError(t, err)
		defer resp.Body.Close()

		var body struct {
			Data handlers.BackendsResponse `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		require.Len(t, body.Data.Backends, 3)
		assert.Equal(t, "ModelB", body.Data.Backends[1].Name)
	})

	t.Run("health", func(t *testing.T) {
		for _, path := range []string{"/healthz", "/readyz"} {
			resp, err := http.Get(srv.URL + path)
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		}
	})

	t.Run("metrics", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		var buf bytes.Buffer
		_, err = buf.ReadFrom(resp.Body)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, buf.String(), "detector_resolutions_total")
	})

	t.Run("unknown route", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/nope")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestMetricsDisabled(t *testing.T) {
	srv := newServer(t, 0, false)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
