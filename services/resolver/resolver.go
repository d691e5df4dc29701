package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/answer-detector/internal/observability"
	"github.com/upb/answer-detector/services/classifier"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Resolution statuses recorded in metrics
const (
	StatusSuccess  = "success"
	StatusFailure  = "failure"
	StatusCanceled = "canceled"
)

// Config holds configuration for the resolver
type Config struct {
	// AttemptTimeout bounds each backend attempt. Zero disables the bound.
	AttemptTimeout time.Duration

	// MaxConcurrency limits how many questions of a batch resolve at once.
	// Zero means no limit.
	MaxConcurrency int
}

// DefaultConfig returns the resolver defaults: no attempt bound and no
// batch limit
func DefaultConfig() Config {
	return Config{}
}

// Outcome is a successful classification with its provenance
type Outcome struct {
	ResolutionID string
	Model        string
	Confidence   float64
	Result       classifier.Label
	Question     string

	// Elapsed covers the whole resolution, including every failed attempt
	// before the one that succeeded
	Elapsed time.Duration

	// Attempts is the number of backends tried, the successful one included
	Attempts int
}

// TimeTakenMs returns Elapsed in whole milliseconds
func (o *Outcome) TimeTakenMs() int64 {
	return o.Elapsed.Milliseconds()
}

// Resolver drives questions through a chain of backends in priority order
// and returns the first success. It holds no per-request state and is safe
// for concurrent use.
type Resolver struct {
	chain   *classifier.Chain
	config  Config
	logger  *zap.Logger
	metrics observability.Metrics
}

// NewResolver creates a new resolver. A nil metrics records nothing.
func NewResolver(chain *classifier.Chain, config Config, logger *zap.Logger, metrics observability.Metrics) (*Resolver, error) {
	if chain == nil || chain.Len() == 0 {
		return nil, classifier.ErrEmptyChain
	}
	if config.AttemptTimeout < 0 {
		return nil, errors.New("attempt timeout cannot be negative")
	}
	if config.MaxConcurrency < 0 {
		return nil, errors.New("max concurrency cannot be negative")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = observability.NopMetrics{}
	}

	return &Resolver{
		chain:   chain,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}, nil
}

// Chain returns the chain the resolver walks
func (r *Resolver) Chain() *classifier.Chain {
	return r.chain
}

// ResolveOne classifies a single question. It returns exactly one of an
// Outcome or a *ResolutionError.
func (r *Resolver) ResolveOne(ctx context.Context, question string) (*Outcome, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	resolutionID := uuid.New().String()
	logger := observability.LoggerFromContext(ctx, r.logger).With(
		zap.String("resolution_id", resolutionID),
		zap.String("question", question))

	req := &classifier.Request{Question: question}
	failures := make([]AttemptFailure, 0, r.chain.Len())
	start := time.Now()

	for i := 0; i < r.chain.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, r.abandon(ctx, logger, question, failures, start, err)
		}

		backend := r.chain.At(i)
		attemptStart := time.Now()
		verdict, err := r.attempt(ctx, backend, req)
		elapsed := time.Since(start)

		if err == nil {
			r.metrics.RecordAttempt(ctx, observability.AttemptLabels{
				Backend:  backend.Name(),
				Position: i,
				Status:   "success",
			}, time.Since(attemptStart))

			outcome := &Outcome{
				ResolutionID: resolutionID,
				Model:        verdict.Model,
				Confidence:   verdict.Confidence,
				Result:       verdict.Result,
				Question:     question,
				Elapsed:      elapsed,
				Attempts:     i + 1,
			}

			r.metrics.RecordResolution(ctx, observability.ResolutionLabels{
				Model:  outcome.Model,
				Status: StatusSuccess,
			}, elapsed)

			logger.Info("classification resolved",
				zap.String("backend", outcome.Model),
				zap.Int("attempt", i+1),
				zap.Float64("confidence", outcome.Confidence),
				zap.String("result", string(outcome.Result)),
				zap.Int64("elapsed_ms", elapsed.Milliseconds()))

			return outcome, nil
		}

		backendErr := classifier.AsBackendError(backend.Name(), err)
		failures = append(failures, AttemptFailure{
			Backend:  backend.Name(),
			Position: i,
			Code:     backendErr.Code,
			Reason:   backendErr.Error(),
			Elapsed:  elapsed,
		})

		r.metrics.RecordAttempt(ctx, observability.AttemptLabels{
			Backend:  backend.Name(),
			Position: i,
			Status:   backendErr.Code,
		}, time.Since(attemptStart))

		// A caller that went away is not a backend fault
		level := zapcore.WarnLevel
		if backendErr.Code == classifier.CodeCanceled {
			level = zapcore.DebugLevel
		}
		logger.Log(level, "backend failed",
			zap.String("backend", backend.Name()),
			zap.Int("attempt", i+1),
			zap.String("code", backendErr.Code),
			zap.Error(backendErr),
			zap.Int64("elapsed_ms", elapsed.Milliseconds()))
	}

	cause := ErrAllBackendsFailed
	if err := ctx.Err(); err != nil {
		cause = err
	}
	return nil, r.abandon(ctx, logger, question, failures, start, cause)
}

// abandon builds, logs, and records the terminal failure of a resolution
func (r *Resolver) abandon(ctx context.Context, logger *zap.Logger, question string, failures []AttemptFailure, start time.Time, cause error) *ResolutionError {
	elapsed := time.Since(start)
	resErr := &ResolutionError{
		Question: question,
		Failures: failures,
		Cause:    cause,
	}

	fields := []zap.Field{
		zap.Int("attempts", len(failures)),
		zap.Strings("reasons", resErr.Reasons()),
		zap.Error(cause),
		zap.Int64("elapsed_ms", elapsed.Milliseconds()),
	}

	// Siblings of a failed all-or-nothing batch end here once the batch
	// context is canceled; only real failures count as failures.
	if errors.Is(cause, context.Canceled) {
		r.metrics.RecordResolution(ctx, observability.ResolutionLabels{Status: StatusCanceled}, elapsed)
		logger.Info("classification canceled", fields...)
		return resErr
	}

	r.metrics.RecordResolution(ctx, observability.ResolutionLabels{Status: StatusFailure}, elapsed)
	logger.Error("classification failed", fields...)

	return resErr
}

// attempt runs one backend call, bounded by the attempt timeout when set,
// and checks the verdict it returns
func (r *Resolver) attempt(ctx context.Context, backend classifier.Backend, req *classifier.Request) (*classifier.Verdict, error) {
	var (
		verdict *classifier.Verdict
		err     error
	)

	if r.config.AttemptTimeout <= 0 {
		verdict, err = safeClassify(ctx, backend, req)
	} else {
		verdict, err = r.boundedClassify(ctx, backend, req)
	}
	if err != nil {
		return nil, err
	}

	if err := verdict.Validate(); err != nil {
		return nil, classifier.NewBackendError(backend.Name(), classifier.CodeInvalidVerdict,
			backend.Name()+" returned an invalid verdict", err)
	}
	if verdict.Model == "" {
		verdict.Model = backend.Name()
	}

	return verdict, nil
}

type classifyResult struct {
	verdict *classifier.Verdict
	err     error
}

// boundedClassify gives up on a backend once the attempt timeout expires,
// even if the backend ignores its context
func (r *Resolver) boundedClassify(ctx context.Context, backend classifier.Backend, req *classifier.Request) (*classifier.Verdict, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.config.AttemptTimeout)
	defer cancel()

	done := make(chan classifyResult, 1)
	go func() {
		verdict, err := safeClassify(attemptCtx, backend, req)
		done <- classifyResult{verdict: verdict, err: err}
	}()

	select {
	case res := <-done:
		return res.verdict, res.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return nil, classifier.AsBackendError(backend.Name(), ctx.Err())
		}
		return nil, classifier.NewBackendError(backend.Name(), classifier.CodeTimeout,
			fmt.Sprintf("%s timed out after %s", backend.Name(), r.config.AttemptTimeout), attemptCtx.Err())
	}
}

// safeClassify turns a backend panic into a failed attempt
func safeClassify(ctx context.Context, backend classifier.Backend, req *classifier.Request) (verdict *classifier.Verdict, err error) {
	defer func() {
		if p := recover(); p != nil {
			verdict = nil
			err = classifier.NewBackendError(backend.Name(), classifier.CodeInternal,
				fmt.Sprintf("%s panicked: %v", backend.Name(), p), nil)
		}
	}()

	verdict, err = backend.Classify(ctx, req)
	if err == nil && verdict == nil {
		err = classifier.NewBackendError(backend.Name(), classifier.CodeInvalidVerdict,
			backend.Name()+" returned no verdict", nil)
	}
	return verdict, err
}
