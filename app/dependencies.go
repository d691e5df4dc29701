package app

import (
	"context"
	"fmt"

	"github.com/upb/answer-detector/config"
	"github.com/upb/answer-detector/internal/observability"
	"github.com/upb/answer-detector/services/classifier"
	"github.com/upb/answer-detector/services/resolver"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Metrics is nil when metrics are disabled
	Metrics *observability.PrometheusMetrics

	// Classification
	Chain    *classifier.Chain
	Resolver *resolver.Resolver
}

// Option customizes dependency construction
type Option func(*options)

type options struct {
	rng      classifier.RandomSource
	backends []classifier.Backend
}

// WithRandomSource makes every simulated backend draw from rng
func WithRandomSource(rng classifier.RandomSource) Option {
	return func(o *options) { o.rng = rng }
}

// WithBackend appends an already built backend after the configured chain
func WithBackend(backend classifier.Backend) Option {
	return func(o *options) { o.backends = append(o.backends, backend) }
}

// NewDependencies creates and wires up all application dependencies. The
// resolver is built once here and shared by every request.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	deps.initMetrics(cfg)

	if err := deps.initChain(cfg, o); err != nil {
		return nil, fmt.Errorf("failed to initialize classifier chain: %w", err)
	}

	if err := deps.initResolver(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize resolver: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.Strings("chain", deps.Chain.Names()),
		zap.Bool("metrics_enabled", deps.Metrics != nil))
	return deps, nil
}

func (d *Dependencies) initMetrics(cfg *config.Config) {
	if !cfg.Observability.MetricsEnabled {
		d.Logger.Info("metrics disabled")
		return
	}
	d.Metrics = observability.NewPrometheusMetrics()
}

// initChain builds the backend chain in configured priority order
func (d *Dependencies) initChain(cfg *config.Config, o *options) error {
	rng := o.rng
	if rng == nil {
		rng = classifier.NewRandomSource(cfg.Classifiers.Seed)
	}

	builder := classifier.NewChainBuilder(rng)
	for _, backend := range o.backends {
		builder.WithBackend(backend)
	}

	chain, err := builder.Build(cfg.Classifiers.Chain)
	if err != nil {
		return err
	}

	for _, info := range chain.Describe() {
		d.Logger.Debug("backend registered",
			zap.Int("position", info.Position),
			zap.String("backend", info.Name),
			zap.Int64("latency_ms", info.LatencyMs),
			zap.Float64("success_rate", info.SuccessRate))
	}

	d.Chain = chain
	return nil
}

func (d *Dependencies) initResolver(cfg *config.Config) error {
	var metrics observability.Metrics = observability.NopMetrics{}
	if d.Metrics != nil {
		metrics = d.Metrics
	}

	r, err := resolver.NewResolver(d.Chain, resolver.Config{
		AttemptTimeout: cfg.Resolver.AttemptTimeout,
		MaxConcurrency: cfg.Resolver.MaxConcurrency,
	}, d.Logger, metrics)
	if err != nil {
		return err
	}

	d.Resolver = r
	return nil
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	// Sync logger; stderr/stdout sync errors are expected on some platforms
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	return nil
}
