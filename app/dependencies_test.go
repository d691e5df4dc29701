package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/answer-detector/config"
	"github.com/upb/answer-detector/services/classifier"
	"github.com/upb/answer-detector/services/resolver"
	"go.uber.org/zap/zaptest"
)

// constSource returns the same draw forever
type constSource float64

func (s constSource) Float64() float64 { return float64(s) }

type stubBackend struct{ name string }

func (b stubBackend) Name() string { return b.name }

func (b stubBackend) Classify(context.Context, *classifier.Request) (*classifier.Verdict, error) {
	return &classifier.Verdict{Model: b.name, Confidence: 0.99, Result: classifier.LabelAI}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Environment: "development",
		Server:      config.ServerConfig{Host: "127.0.0.1", Port: 3000},
		Classifiers: config.ClassifiersConfig{
			Chain: []classifier.SimulatedConfig{
				{Name: "ModelA", SuccessRate: 0.9},
				{Name: "ModelB", SuccessRate: 0.7},
				{Name: "ModelC", SuccessRate: 0.95},
			},
		},
		Resolver: config.ResolverConfig{
			MaxBatchSize: 20,
			BatchMode:    resolver.BatchAllOrNothing,
		},
		Observability: config.ObservabilityConfig{LogLevel: "debug", MetricsEnabled: true},
		Questions:     config.DefaultQuestions(),
	}
}

func TestNewDependencies(t *testing.T) {
	ctx := context.Background()

	t.Run("successful initialization with all components", func(t *testing.T) {
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t), WithRandomSource(constSource(0)))
		require.NoError(t, err)
		require.NotNil(t, deps)

		assert.NotNil(t, deps.Config)
		assert.NotNil(t, deps.Logger)
		assert.NotNil(t, deps.Metrics)
		assert.Equal(t, []string{"ModelA", "ModelB", "ModelC"}, deps.Chain.Names())
		assert.Same(t, deps.Chain, deps.Resolver.Chain())

		outcome, err := deps.Resolver.ResolveOne(ctx, "Tell me about yourself")
		require.NoError(t, err)
		assert.Equal(t, "ModelA", outcome.Model)
		assert.Equal(t, 0.5, outcome.Confidence)
		assert.Equal(t, classifier.LabelHuman, outcome.Result)

		assert.NoError(t, deps.Close(ctx))
	})

	t.Run("every simulated backend fails", func(t *testing.T) {
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t), WithRandomSource(constSource(0.99)))
		require.NoError(t, err)

		_, err = deps.Resolver.ResolveOne(ctx, "Why this company?")
		assert.ErrorIs(t, err, resolver.ErrAllBackendsFailed)
	})

	t.Run("extra backend runs last", func(t *testing.T) {
		deps, err := NewDependencies(ctx, testConfig(t), zaptest.NewLogger(t),
			WithRandomSource(constSource(0.99)),
			WithBackend(stubBackend{name: "Fallback"}))
		require.NoError(t, err)
		assert.Equal(t, []string{"ModelA", "ModelB", "ModelC", "Fallback"}, deps.Chain.Names())

		outcome, err := deps.Resolver.ResolveOne(ctx, "Greatest weakness?")
		require.NoError(t, err)
		assert.Equal(t, "Fallback", outcome.Model)
		assert.Equal(t, 4, outcome.Attempts)
	})

	t.Run("metrics disabled", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Observability.MetricsEnabled = false

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.Nil(t, deps.Metrics)
	})

	t.Run("invalid chain", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Classifiers.Chain[1].SuccessRate = 2

		deps, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		assert.Nil(t, deps)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize classifier chain")
	})

	t.Run("negative attempt timeout", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Resolver.AttemptTimeout = -1

		_, err := NewDependencies(ctx, cfg, zaptest.NewLogger(t))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to initialize resolver")
	})

	t.Run("missing config", func(t *testing.T) {
		_, err := NewDependencies(ctx, nil, nil)
		assert.Error(t, err)
	})
}
