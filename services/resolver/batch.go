package resolver

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/upb/answer-detector/internal/observability"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchMode selects how a batch reports failures
type BatchMode string

const (
	// BatchAllOrNothing fails the whole batch when any question fails
	BatchAllOrNothing BatchMode = "all_or_nothing"

	// BatchPartial reports a result or an error for every question
	BatchPartial BatchMode = "partial"
)

// Valid reports whether m is a known batch mode
func (m BatchMode) Valid() bool {
	return m == BatchAllOrNothing || m == BatchPartial
}

// BatchItem is the result of one question in a partial batch. Exactly one of
// Outcome and Err is set.
type BatchItem struct {
	Index    int
	Question string
	Outcome  *Outcome
	Err      error
}

// ResolveBatch resolves every question concurrently. Outcomes are returned
// in input order. The first failure cancels the questions still in flight
// and is returned as a *BatchError instead of any outcome.
func (r *Resolver) ResolveBatch(ctx context.Context, questions []string) ([]*Outcome, error) {
	logger := r.batchLogger(ctx, len(questions), BatchAllOrNothing)
	outcomes := make([]*Outcome, len(questions))

	g, gCtx := errgroup.WithContext(ctx)
	if r.config.MaxConcurrency > 0 {
		g.SetLimit(r.config.MaxConcurrency)
	}

	for i, question := range questions {
		g.Go(func() error {
			outcome, err := r.ResolveOne(gCtx, question)
			if err != nil {
				return &BatchError{Index: i, Question: question, Err: err}
			}
			outcomes[i] = outcome
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var batchErr *BatchError
		if errors.As(err, &batchErr) {
			logger.Error("batch failed",
				zap.Int("index", batchErr.Index),
				zap.String("question", batchErr.Question),
				zap.Error(batchErr.Err))
		}
		r.metrics.RecordBatch(ctx, "failure", len(questions))
		return nil, err
	}

	r.metrics.RecordBatch(ctx, "success", len(questions))
	logger.Debug("batch resolved")
	return outcomes, nil
}

// ResolveBatchPartial resolves every question concurrently and independently.
// A failing question never affects the others.
func (r *Resolver) ResolveBatchPartial(ctx context.Context, questions []string) []BatchItem {
	logger := r.batchLogger(ctx, len(questions), BatchPartial)
	items := make([]BatchItem, len(questions))

	var g errgroup.Group
	if r.config.MaxConcurrency > 0 {
		g.SetLimit(r.config.MaxConcurrency)
	}

	for i, question := range questions {
		g.Go(func() error {
			outcome, err := r.ResolveOne(ctx, question)
			items[i] = BatchItem{Index: i, Question: question, Outcome: outcome, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, item := range items {
		if item.Err != nil {
			failed++
		}
	}

	status := "success"
	if failed > 0 {
		status = "partial"
		logger.Warn("batch resolved with failures",
			zap.Int("failed", failed),
			zap.Int("succeeded", len(items)-failed))
	}
	r.metrics.RecordBatch(ctx, status, len(questions))

	return items
}

func (r *Resolver) batchLogger(ctx context.Context, size int, mode BatchMode) *zap.Logger {
	return observability.LoggerFromContext(ctx, r.logger).With(
		zap.String("batch_id", uuid.New().String()),
		zap.Int("batch_size", size),
		zap.String("batch_mode", string(mode)))
}
