package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/analysis-service/internal/domain"
	"github.com/phrazzld/analysis-service/internal/platform/logger"
	"github.com/phrazzld/analysis-service/internal/platform/redisstore"
	"github.com/phrazzld/analysis-service/internal/queue"
	"github.com/phrazzld/analysis-service/internal/task"
)

// stubEngine answers every engine call with fixed values.
type stubEngine struct {
	processFn func(ctx context.Context, chunk string) (string, error)
	quality   domain.ResultStatus
}

func (e *stubEngine) Process(ctx context.Context, chunk string, _ domain.Params) (string, error) {
	if e.processFn != nil {
		return e.processFn(ctx, chunk)
	}
	return "analysis of " + chunk, nil
}

func (e *stubEngine) AssessQuality(context.Context, string, domain.Params) (domain.ResultStatus, error) {
	if e.quality != "" {
		return e.quality, nil
	}
	return domain.ResultStatusSuccess, nil
}

func (e *stubEngine) NameResult(context.Context, string, domain.Params) (string, error) {
	return "Inline Result", nil
}

func (e *stubEngine) ReconcileFormat(_ context.Context, combined string, _ domain.Params) (string, error) {
	return combined, nil
}

// pipeChunker splits content on "|".
type pipeChunker struct{}

func (pipeChunker) Chunk(content string, _ int) []string { return strings.Split(content, "|") }
func (pipeChunker) PromptOverhead(string, string) int    { return 0 }

func newTestQueue(t *testing.T) (*queue.JobQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := redisstore.New(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return queue.New(store, queue.Options{
		JobTTL:         24 * time.Hour,
		DequeueTimeout: time.Second,
		SyncCounterTTL: 5 * time.Minute,
	}, logger.DiscardLogger()), mr
}

var errCounterDown = errors.New("counter unavailable")

// counterDownStore is a working store whose counter updates fail.
type counterDownStore struct {
	*redisstore.Store
}

func (counterDownStore) IncrBy(context.Context, string, int64, time.Duration) (int64, error) {
	return 0, errCounterDown
}

func newCounterDownQueue(t *testing.T) (*queue.JobQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := redisstore.New(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return queue.New(counterDownStore{Store: store}, queue.Options{
		JobTTL:         24 * time.Hour,
		DequeueTimeout: time.Second,
		SyncCounterTTL: 5 * time.Minute,
	}, logger.DiscardLogger()), mr
}

func newTestFastPath(q *queue.JobQueue, engine *stubEngine, timeout time.Duration) *FastPath {
	pipeline := task.NewPipeline(pipeChunker{}, engine, task.PipelineOptions{}, logger.DiscardLogger())
	return NewFastPath(pipeline, q, FastPathOptions{
		Enabled:  true,
		MaxChars: 100,
		Timeout:  timeout,
	}, logger.DiscardLogger())
}

func textRequest(content string) domain.AnalysisRequest {
	return domain.NewTextRequest("rec-1", content, domain.Params{UserPrompt: "Summarize"})
}
