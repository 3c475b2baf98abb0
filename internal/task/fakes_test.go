package task

import (
	"context"
	"strings"
	"sync"

	"github.com/phrazzld/analysis-service/internal/domain"
)

// fakeEngine is a scriptable generation.Engine.
type fakeEngine struct {
	mu sync.Mutex

	ProcessFn   func(ctx context.Context, chunk string, params domain.Params) (string, error)
	QualityFn   func(ctx context.Context, text string) (domain.ResultStatus, error)
	NameFn      func(ctx context.Context, text string) (string, error)
	ReconcileFn func(ctx context.Context, combined string) (string, error)

	processed  []string
	qualityCnt int
	nameCnt    int
	reconCnt   int
}

func (f *fakeEngine) Process(ctx context.Context, chunk string, params domain.Params) (string, error) {
	f.mu.Lock()
	f.processed = append(f.processed, chunk)
	f.mu.Unlock()
	if f.ProcessFn != nil {
		return f.ProcessFn(ctx, chunk, params)
	}
	return "analysis of " + chunk, nil
}

func (f *fakeEngine) AssessQuality(ctx context.Context, text string, _ domain.Params) (domain.ResultStatus, error) {
	f.mu.Lock()
	f.qualityCnt++
	f.mu.Unlock()
	if f.QualityFn != nil {
		return f.QualityFn(ctx, text)
	}
	return domain.ResultStatusSuccess, nil
}

func (f *fakeEngine) NameResult(ctx context.Context, text string, _ domain.Params) (string, error) {
	f.mu.Lock()
	f.nameCnt++
	f.mu.Unlock()
	if f.NameFn != nil {
		return f.NameFn(ctx, text)
	}
	return "Quarterly Review Summary", nil
}

func (f *fakeEngine) ReconcileFormat(ctx context.Context, combined string, _ domain.Params) (string, error) {
	f.mu.Lock()
	f.reconCnt++
	f.mu.Unlock()
	if f.ReconcileFn != nil {
		return f.ReconcileFn(ctx, combined)
	}
	return "reconciled: " + combined, nil
}

func (f *fakeEngine) processedChunks() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.processed...)
}

// fakeChunker splits content on "|".
type fakeChunker struct{}

func (fakeChunker) Chunk(content string, _ int) []string {
	return strings.Split(content, "|")
}

func (fakeChunker) PromptOverhead(_, _ string) int { return 0 }

// fakeNotifier records deliveries.
type fakeNotifier struct {
	mu        sync.Mutex
	err       error
	delivered []*domain.Result
}

func (n *fakeNotifier) Deliver(_ context.Context, _ domain.WebhookTarget, payload any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if r, ok := payload.(*domain.Result); ok {
		n.delivered = append(n.delivered, r)
	}
	return n.err
}

func (n *fakeNotifier) deliveries() []*domain.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*domain.Result(nil), n.delivered...)
}

// fakeResolver returns fixed text for file requests.
type fakeResolver struct {
	text string
	err  error
}

func (r fakeResolver) ResolveText(_ context.Context, _ domain.AnalysisRequest) (string, error) {
	return r.text, r.err
}
