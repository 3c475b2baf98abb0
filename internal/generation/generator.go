package generation

import (
	"context"

	"github.com/phrazzld/analysis-service/internal/domain"
)

// Completion is a single request to a text-generation model.
type Completion struct {
	Model       string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
	// ThinkingBudget enables extended thinking when positive.
	ThinkingBudget int
	// IncludeThinking keeps the model's thinking in the returned text.
	IncludeThinking bool
}

// Completer sends one completion to a provider and returns the text.
// Implementations return errors wrapping the sentinels in errors.go.
type Completer interface {
	Complete(ctx context.Context, c Completion) (string, error)
}

// Engine defines the analysis operations the worker pipeline relies on.
// This interface serves as a boundary between the application core and
// external LLM services.
type Engine interface {
	// Process analyzes one chunk of content with the request's prompts.
	Process(ctx context.Context, chunk string, params domain.Params) (string, error)

	// AssessQuality classifies an analysis as SUCCESS, or FAILED when it is a
	// refusal or a request for clarification instead of an analysis.
	AssessQuality(ctx context.Context, text string, params domain.Params) (domain.ResultStatus, error)

	// NameResult produces a short display title for an analysis.
	NameResult(ctx context.Context, text string, params domain.Params) (string, error)

	// ReconcileFormat rewrites a multi-chunk analysis with consistent formatting.
	ReconcileFormat(ctx context.Context, combined string, params domain.Params) (string, error)
}
