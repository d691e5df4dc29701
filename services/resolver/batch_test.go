package resolver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/answer-detector/internal/observability"
	"github.com/upb/answer-detector/services/classifier"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var defaultQuestions = []string{
	"Tell me about yourself",
	"Why this company?",
	"Greatest weakness?",
	"Describe a challenge you solved",
	"Where do you see yourself in 5 years?",
}

// questionBackend fails only for the listed questions
type questionBackend struct {
	name    string
	delay   time.Duration
	failFor map[string]bool
}

func (b *questionBackend) Name() string { return b.name }

func (b *questionBackend) Classify(ctx context.Context, req *classifier.Request) (*classifier.Verdict, error) {
	select {
	case <-time.After(b.delay):
	case <-ctx.Done():
		return nil, classifier.AsBackendError(b.name, ctx.Err())
	}
	if b.failFor[req.Question] {
		return nil, classifier.NewBackendError(b.name, classifier.CodeRejected, b.name+" failed", nil)
	}
	return &classifier.Verdict{Model: b.name, Confidence: 0.9, Result: classifier.LabelHuman}, nil
}

func TestResolveBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("every question answered in order", func(t *testing.T) {
		chain, err := classifier.NewChainBuilder(nil).Build([]classifier.SimulatedConfig{
			{Name: "ModelA", SuccessRate: 1},
			{Name: "ModelB", SuccessRate: 1},
			{Name: "ModelC", SuccessRate: 1},
		})
		require.NoError(t, err)
		r, err := NewResolver(chain, DefaultConfig(), zap.NewNop(), nil)
		require.NoError(t, err)

		outcomes, err := r.ResolveBatch(ctx, defaultQuestions)
		require.NoError(t, err)
		require.Len(t, outcomes, len(defaultQuestions))

		seen := make(map[string]bool)
		for i, outcome := range outcomes {
			require.NotNil(t, outcome)
			assert.Equal(t, defaultQuestions[i], outcome.Question)
			assert.Equal(t, "ModelA", outcome.Model)
			seen[outcome.Question] = true
		}
		assert.Len(t, seen, len(defaultQuestions))
	})

	t.Run("questions resolve concurrently", func(t *testing.T) {
		backend := &questionBackend{name: "ModelA", delay: 50 * time.Millisecond}
		r := newTestResolver(t, DefaultConfig(), backend)

		start := time.Now()
		outcomes, err := r.ResolveBatch(ctx, defaultQuestions)
		require.NoError(t, err)
		assert.Len(t, outcomes, 5)
		assert.Less(t, time.Since(start), 200*time.Millisecond)
	})

	t.Run("concurrency limit", func(t *testing.T) {
		backend := &questionBackend{name: "ModelA", delay: 20 * time.Millisecond}
		r := newTestResolver(t, Config{MaxConcurrency: 1}, backend)

		start := time.Now()
		_, err := r.ResolveBatch(ctx, defaultQuestions)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	})

	t.Run("one failure fails the batch", func(t *testing.T) {
		failing := map[string]bool{"Greatest weakness?": true}
		r := newTestResolver(t, DefaultConfig(),
			&questionBackend{name: "ModelA", delay: 5 * time.Millisecond, failFor: failing},
			&questionBackend{name: "ModelB", delay: 5 * time.Millisecond, failFor: failing},
		)

		outcomes, err := r.ResolveBatch(ctx, defaultQuestions)
		assert.Nil(t, outcomes)
		require.Error(t, err)

		var batchErr *BatchError
		require.ErrorAs(t, err, &batchErr)
		assert.Equal(t, 2, batchErr.Index)
		assert.Equal(t, "Greatest weakness?", batchErr.Question)
		assert.ErrorIs(t, err, ErrAllBackendsFailed)
	})

	t.Run("empty batch", func(t *testing.T) {
		r := newTestResolver(t, DefaultConfig(), newFake("ModelA", 0, false, nil))

		outcomes, err := r.ResolveBatch(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, outcomes)
	})

	t.Run("records batch metrics", func(t *testing.T) {
		metrics := new(MockMetrics)
		metrics.On("RecordAttempt", mock.Anything, mock.Anything, mock.Anything)
		metrics.On("RecordResolution", mock.Anything, mock.Anything, mock.Anything)
		metrics.On("RecordBatch", mock.Anything, "success", 5).Once()

		chain, err := classifier.NewChain(newFake("ModelA", 0, false, nil))
		require.NoError(t, err)
		r, err := NewResolver(chain, DefaultConfig(), zap.NewNop(), metrics)
		require.NoError(t, err)

		_, err = r.ResolveBatch(ctx, defaultQuestions)
		require.NoError(t, err)
		metrics.AssertExpectations(t)
	})
}

// stallingBackend rejects one question at once and holds every other
// question until its context is done
type stallingBackend struct {
	name   string
	reject string
}

func (b *stallingBackend) Name() string { return b.name }

func (b *stallingBackend) Classify(ctx context.Context, req *classifier.Request) (*classifier.Verdict, error) {
	if req.Question == b.reject {
		return nil, classifier.NewBackendError(b.name, classifier.CodeRejected, b.name+" failed", nil)
	}
	select {
	case <-time.After(5 * time.Second):
		return &classifier.Verdict{Model: b.name, Confidence: 0.9, Result: classifier.LabelAI}, nil
	case <-ctx.Done():
		return nil, classifier.AsBackendError(b.name, ctx.Err())
	}
}

func TestResolveBatchCanceledSiblings(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	metrics := new(MockMetrics)
	metrics.On("RecordAttempt", mock.Anything, mock.Anything, mock.Anything)
	metrics.On("RecordResolution", mock.Anything, observability.ResolutionLabels{Status: StatusFailure}, mock.Anything).Once()
	metrics.On("RecordResolution", mock.Anything, observability.ResolutionLabels{Status: StatusCanceled}, mock.Anything).Times(4)
	metrics.On("RecordBatch", mock.Anything, "failure", 5).Once()

	chain, err := classifier.NewChain(&stallingBackend{name: "ModelA", reject: "Greatest weakness?"})
	require.NoError(t, err)
	r, err := NewResolver(chain, DefaultConfig(), zap.New(core), metrics)
	require.NoError(t, err)

	start := time.Now()
	_, err = r.ResolveBatch(context.Background(), defaultQuestions)
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, "Greatest weakness?", batchErr.Question)
	assert.ErrorIs(t, err, ErrAllBackendsFailed)

	assert.Equal(t, 1, logs.FilterMessage("classification failed").Len())
	assert.Equal(t, 4, logs.FilterMessage("classification canceled").Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).FilterMessage("backend failed").Len())
	metrics.AssertExpectations(t)
}

func TestResolveBatchPartial(t *testing.T) {
	ctx := context.Background()
	failing := map[string]bool{"Why this company?": true, "Greatest weakness?": true}
	r := newTestResolver(t, DefaultConfig(),
		&questionBackend{name: "ModelA", delay: time.Millisecond, failFor: failing},
		&questionBackend{name: "ModelB", delay: time.Millisecond, failFor: map[string]bool{"Why this company?": true}},
	)

	items := r.ResolveBatchPartial(ctx, defaultQuestions)
	require.Len(t, items, len(defaultQuestions))

	for i, item := range items {
		assert.Equal(t, i, item.Index)
		assert.Equal(t, defaultQuestions[i], item.Question)
		assert.True(t, (item.Outcome == nil) != (item.Err == nil), "exactly one of outcome and error")
	}

	assert.ErrorIs(t, items[1].Err, ErrAllBackendsFailed)
	require.NotNil(t, items[2].Outcome)
	assert.Equal(t, "ModelB", items[2].Outcome.Model)
	assert.Equal(t, 2, items[2].Outcome.Attempts)
	assert.Equal(t, "ModelA", items[0].Outcome.Model)
}

func TestBatchModeValid(t *testing.T) {
	assert.True(t, BatchAllOrNothing.Valid())
	assert.True(t, BatchPartial.Valid())
	assert.False(t, BatchMode("best_effort").Valid())
}
