package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/phrazzld/analysis-service/internal/config"
	"github.com/phrazzld/analysis-service/internal/domain"
	"github.com/phrazzld/analysis-service/internal/generation"
	"github.com/phrazzld/analysis-service/internal/redact"
)

const (
	maxChunkErrorLength = 200
	// QualitySkipped is recorded as the quality status when the gate did not run.
	QualitySkipped = "SKIPPED"
)

var (
	combinedHeader = strings.Repeat("=", 50) + " COMBINED ANALYSIS RESULTS " + strings.Repeat("=", 50) + "\n\n"
	chunkSeparator = "\n\n" + strings.Repeat("=", 50) + " CHUNK SEPARATOR " + strings.Repeat("=", 50) + "\n\n"
)

// Chunker splits content into fragments that fit the engine's budget.
type Chunker interface {
	Chunk(content string, promptOverhead int) []string
	PromptOverhead(systemPrompt, userPrompt string) int
}

// PipelineOptions bounds the engine calls of one pipeline run.
type PipelineOptions struct {
	InterChunkDelay  time.Duration
	ChunkTimeout     time.Duration
	ReconcileTimeout time.Duration
	QualityTimeout   time.Duration
	NamingTimeout    time.Duration
}

// PipelineOptionsFromConfig maps LLM configuration to PipelineOptions.
func PipelineOptionsFromConfig(cfg config.LLMConfig) PipelineOptions {
	return PipelineOptions{
		InterChunkDelay:  cfg.InterChunkDelay,
		ChunkTimeout:     cfg.ChunkTimeout,
		ReconcileTimeout: cfg.ReconcileTimeout,
		QualityTimeout:   cfg.QualityTimeout,
		NamingTimeout:    cfg.NamingTimeout,
	}
}

// ChunkError records the failure of one fragment.
type ChunkError struct {
	// Index is 1-based.
	Index int
	Err   error
}

func (e ChunkError) Error() string {
	return fmt.Sprintf("chunk %d: %v", e.Index, e.Err)
}

func (e ChunkError) Unwrap() error {
	return e.Err
}

// Analysis is the outcome of one pipeline run.
type Analysis struct {
	Text          string
	Title         string
	Status        domain.ResultStatus
	QualityStatus string
	ChunkCount    int
	ChunkErrors   []ChunkError
	Reconciled    bool
	Duration      time.Duration
}

// HasChunkErrors reports whether any fragment failed.
func (a Analysis) HasChunkErrors() bool {
	return len(a.ChunkErrors) > 0
}

// Err joins the chunk errors, or returns nil when every fragment succeeded.
func (a Analysis) Err() error {
	if !a.HasChunkErrors() {
		return nil
	}
	errs := make([]error, len(a.ChunkErrors))
	for i, ce := range a.ChunkErrors {
		errs[i] = ce
	}
	return errors.Join(errs...)
}

// Permanent reports whether any chunk failed with an error that a retry
// cannot fix.
func (a Analysis) Permanent() bool {
	for _, ce := range a.ChunkErrors {
		if generation.IsPermanent(ce.Err) {
			return true
		}
	}
	return false
}

// Stats returns the processing stats recorded on the Result.
func (a Analysis) Stats(path string, retryCount int) map[string]any {
	return map[string]any{
		domain.StatChunkCount:    a.ChunkCount,
		domain.StatFailedChunks:  len(a.ChunkErrors),
		domain.StatReconciled:    a.Reconciled,
		domain.StatQualityStatus: a.QualityStatus,
		domain.StatProcessingMS:  a.Duration.Milliseconds(),
		domain.StatRetryCount:    retryCount,
		domain.StatPath:          path,
	}
}

// Result converts the analysis into a Result. A FAILED analysis keeps its
// text and carries an error message.
func (a Analysis) Result(recordID, path string, retryCount int) *domain.Result {
	result := &domain.Result{
		RecordID:        recordID,
		Status:          a.Status,
		AnalysisResult:  a.Text,
		AnalysisName:    a.Title,
		ProcessingStats: a.Stats(path, retryCount),
	}
	switch {
	case a.HasChunkErrors():
		result.ErrorMessage = fmt.Sprintf("%d of %d chunks failed", len(a.ChunkErrors), a.ChunkCount)
	case a.Status == domain.ResultStatusFailed:
		result.ErrorMessage = "analysis did not pass quality review"
	}
	return result
}

// Pipeline turns content into an analysis: chunking, sequential engine
// calls, combination, format reconciliation, quality gate and titling.
type Pipeline struct {
	chunker Chunker
	engine  generation.Engine
	opts    PipelineOptions
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a Pipeline.
func NewPipeline(chunker Chunker, engine generation.Engine, opts PipelineOptions, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		chunker: chunker,
		engine:  engine,
		opts:    opts,
		logger:  logger.With("component", "pipeline"),
		sleep:   sleepContext,
	}
}

// Chunk splits content for the given prompts.
func (p *Pipeline) Chunk(params domain.Params, content string) []string {
	return p.chunker.Chunk(content, p.chunker.PromptOverhead(params.SystemPrompt, params.UserPrompt))
}

// Run chunks content and analyzes it.
func (p *Pipeline) Run(ctx context.Context, params domain.Params, content string) Analysis {
	return p.RunChunks(ctx, params, p.Chunk(params, content))
}

// RunChunks analyzes already chunked content. It never returns an error:
// chunk failures are reported in Analysis.ChunkErrors and secondary calls
// fail open.
func (p *Pipeline) RunChunks(ctx context.Context, params domain.Params, chunks []string) Analysis {
	start := time.Now()
	analysis := Analysis{ChunkCount: len(chunks)}

	outputs := make([]string, len(chunks))
	for i, c := range chunks {
		if i > 0 && p.opts.InterChunkDelay > 0 {
			_ = p.sleep(ctx, p.opts.InterChunkDelay)
		}

		p.logger.DebugContext(ctx, "processing chunk", "chunk", i+1, "chunks", len(chunks))
		out, err := p.processChunk(ctx, c, params)
		if err != nil {
			p.logger.WarnContext(ctx, "chunk failed",
				"chunk", i+1,
				"chunks", len(chunks),
				"error", redact.Error(err))
			analysis.ChunkErrors = append(analysis.ChunkErrors, ChunkError{Index: i + 1, Err: err})
			outputs[i] = fmt.Sprintf("[Error processing chunk %d: %s]", i+1, truncate(redact.Error(err), maxChunkErrorLength))
			continue
		}
		outputs[i] = out
	}

	analysis.Text = combine(outputs)

	if analysis.HasChunkErrors() {
		analysis.Status = domain.ResultStatusFailed
		analysis.QualityStatus = QualitySkipped
		analysis.Title = generation.ErrorTitle
		analysis.Duration = time.Since(start)
		return analysis
	}

	if len(outputs) > 1 {
		analysis.Text, analysis.Reconciled = p.reconcile(ctx, analysis.Text, params)
	}

	analysis.Status = p.assessQuality(ctx, analysis.Text, params)
	analysis.QualityStatus = string(analysis.Status)
	analysis.Title = p.nameResult(ctx, analysis.Text, params)
	analysis.Duration = time.Since(start)

	p.logger.InfoContext(ctx, "pipeline finished",
		"chunks", analysis.ChunkCount,
		"status", analysis.Status,
		"reconciled", analysis.Reconciled,
		"duration_ms", analysis.Duration.Milliseconds())
	return analysis
}

func (p *Pipeline) processChunk(ctx context.Context, chunk string, params domain.Params) (string, error) {
	ctx, cancel := withOptionalTimeout(ctx, p.opts.ChunkTimeout)
	defer cancel()
	return p.engine.Process(ctx, chunk, params)
}

func (p *Pipeline) reconcile(ctx context.Context, combined string, params domain.Params) (string, bool) {
	ctx, cancel := withOptionalTimeout(ctx, p.opts.ReconcileTimeout)
	defer cancel()

	text, err := p.engine.ReconcileFormat(ctx, combined, params)
	if err != nil {
		p.logger.WarnContext(ctx, "format reconciliation failed, keeping combined text",
			"error", redact.Error(err))
		return combined, false
	}
	return text, true
}

func (p *Pipeline) assessQuality(ctx context.Context, text string, params domain.Params) domain.ResultStatus {
	ctx, cancel := withOptionalTimeout(ctx, p.opts.QualityTimeout)
	defer cancel()

	status, err := p.engine.AssessQuality(ctx, text, params)
	if err != nil {
		p.logger.WarnContext(ctx, "quality gate failed, treating as success",
			"error", redact.Error(err))
		return domain.ResultStatusSuccess
	}
	return status
}

func (p *Pipeline) nameResult(ctx context.Context, text string, params domain.Params) string {
	ctx, cancel := withOptionalTimeout(ctx, p.opts.NamingTimeout)
	defer cancel()

	title, err := p.engine.NameResult(ctx, text, params)
	if err != nil || strings.TrimSpace(title) == "" {
		p.logger.WarnContext(ctx, "title generation failed, using default title",
			"error", err)
		return generation.DefaultTitle
	}
	return title
}

func combine(outputs []string) string {
	if len(outputs) == 1 {
		return outputs[0]
	}
	return combinedHeader + strings.Join(outputs, chunkSeparator)
}

func withOptionalTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
