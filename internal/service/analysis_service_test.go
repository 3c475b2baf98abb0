package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/analysis-service/internal/domain"
	"github.com/phrazzld/analysis-service/internal/platform/logger"
	"github.com/phrazzld/analysis-service/internal/queue"
)

func newTestService(t *testing.T, engine *stubEngine) (AnalysisService, *queue.JobQueue) {
	t.Helper()
	q, _ := newTestQueue(t)
	svc, err := NewAnalysisService(q, newTestFastPath(q, engine, time.Second), Options{
		MaxContentSize: 1000,
		MaxRetries:     2,
	}, logger.DiscardLogger())
	require.NoError(t, err)
	return svc, q
}

func TestNewAnalysisService_NilQueue(t *testing.T) {
	_, err := NewAnalysisService(nil, nil, Options{}, nil)
	var svcErr *AnalysisServiceError
	assert.ErrorAs(t, err, &svcErr)
}

func TestSubmit_Validation(t *testing.T) {
	svc, _ := newTestService(t, &stubEngine{})

	tests := []struct {
		name string
		req  domain.AnalysisRequest
		is   error
	}{
		{"empty content", textRequest("   "), domain.ErrEmptyContent},
		{"too large", textRequest(strings.Repeat("x", 1001)), domain.ErrContentTooLarge},
		{"missing prompt", domain.NewTextRequest("rec", "content", domain.Params{}), domain.ErrValidation},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Submit(context.Background(), tc.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.ErrorIs(t, err, tc.is)
		})
	}
}

func TestSubmit_InlineCompletion(t *testing.T) {
	svc, _ := newTestService(t, &stubEngine{})

	resp, err := svc.Submit(context.Background(), textRequest("short text"))
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, resp.Status)
	require.NotNil(t, resp.Result)
	assert.Equal(t, "Inline Result", resp.Result.AnalysisName)

	poll, err := svc.Poll(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusComplete, poll.Status)
	assert.Equal(t, resp.Result.AnalysisResult, poll.Result.AnalysisResult)
}

func TestSubmit_InlineQualityFailure(t *testing.T) {
	svc, _ := newTestService(t, &stubEngine{quality: domain.ResultStatusFailed})

	resp, err := svc.Submit(context.Background(), textRequest("short text"))
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, resp.Status)
	require.NotNil(t, resp.Result)
	assert.Equal(t, domain.ResultStatusFailed, resp.Result.Status)
}

func TestSubmit_FallsBackToQueue(t *testing.T) {
	svc, q := newTestService(t, &stubEngine{})

	resp, err := svc.Submit(context.Background(), textRequest("part one|part two"))
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, resp.Status)
	assert.Nil(t, resp.Result)

	job, err := svc.GetJob(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)
	assert.Equal(t, 2, job.MaxRetries)

	stats, err := q.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)

	poll, err := svc.Poll(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, poll.Status)
}

func TestSubmit_FileRequestIsQueued(t *testing.T) {
	svc, _ := newTestService(t, &stubEngine{})
	req := domain.NewFileRequest("rec", []string{"https://codahosted.io/a.txt"}, "", domain.Params{UserPrompt: "x"})

	resp, err := svc.Submit(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, resp.Status)
}

func TestPoll(t *testing.T) {
	svc, q := newTestService(t, &stubEngine{})
	ctx := context.Background()

	t.Run("unknown job", func(t *testing.T) {
		_, err := svc.Poll(ctx, "missing")
		assert.ErrorIs(t, err, ErrJobNotFound)
	})

	t.Run("failed job without result", func(t *testing.T) {
		resp, err := svc.Submit(ctx, textRequest("a|b"))
		require.NoError(t, err)

		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NoError(t, q.Fail(ctx, job, "engine unavailable"))

		poll, err := svc.Poll(ctx, resp.JobID)
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, poll.Status)
		assert.Equal(t, "engine unavailable", poll.Error)
	})

	t.Run("result of a job being retried is not reported", func(t *testing.T) {
		resp, err := svc.Submit(ctx, textRequest("c|d"))
		require.NoError(t, err)

		job, err := q.Dequeue(ctx)
		require.NoError(t, err)
		require.NoError(t, q.StoreResult(ctx, job.ID, &domain.Result{Status: domain.ResultStatusSuccess}))
		retried, err := q.Retry(ctx, job)
		require.NoError(t, err)
		require.True(t, retried)

		poll, err := svc.Poll(ctx, resp.JobID)
		require.NoError(t, err)
		assert.Equal(t, StatusProcessing, poll.Status)
		assert.Nil(t, poll.Result)
	})
}

func TestHealth(t *testing.T) {
	svc, _ := newTestService(t, &stubEngine{})

	report, err := svc.Health(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Healthy)
	assert.Zero(t, report.Stats.Pending)
}
