package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/phrazzld/analysis-service/internal/generation"
)

// Completer implements generation.Completer using the Gemini API.
type Completer struct {
	client *genai.Client
	logger *slog.Logger
}

var _ generation.Completer = (*Completer)(nil)

// NewCompleter creates a Gemini-backed Completer.
//
// Parameters:
//   - ctx: Context for client construction
//   - apiKey: Gemini API key
//   - logger: A structured logger for operation logging
//
// Returns:
//   - A Completer or an error wrapping generation.ErrInvalidConfig
func NewCompleter(ctx context.Context, apiKey string, logger *slog.Logger) (*Completer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return &Completer{
		client: client,
		logger: logger.With("component", "gemini"),
	}, nil
}

// Complete sends one GenerateContent request.
func (g *Completer) Complete(ctx context.Context, c generation.Completion) (string, error) {
	g.logger.DebugContext(ctx, "calling Gemini",
		"model", c.Model,
		"prompt_length", len(c.Prompt),
		"max_tokens", c.MaxTokens,
		"thinking_budget", c.ThinkingBudget)

	resp, err := g.client.Models.GenerateContent(ctx, c.Model, genai.Text(c.Prompt), buildConfig(c))
	if err != nil {
		return "", classifyError(ctx, err)
	}

	return extractText(resp, c.IncludeThinking)
}

// buildConfig maps a completion onto Gemini generation settings.
func buildConfig(c generation.Completion) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(c.Temperature)),
		MaxOutputTokens: int32(c.MaxTokens),
	}
	if c.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: c.System}},
		}
	}
	if c.ThinkingBudget > 0 {
		cfg.ThinkingConfig = &genai.ThinkingConfig{
			IncludeThoughts: c.IncludeThinking,
			ThinkingBudget:  genai.Ptr(int32(c.ThinkingBudget)),
		}
	}
	return cfg
}

// extractText concatenates the text parts of the first candidate. Thought
// parts are kept only when includeThinking is set.
func extractText(resp *genai.GenerateContentResponse, includeThinking bool) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates in response", generation.ErrProtocol)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", generation.ErrContentBlocked
	}
	if candidate.Content == nil {
		return "", fmt.Errorf("%w: empty content in response", generation.ErrProtocol)
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		if part.Thought && !includeThinking {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String(), nil
}

// classifyError maps a Gemini client error onto the generation taxonomy.
func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return fmt.Errorf("%w: %v", generation.ErrTimeout, err)
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return statusError(apiErr.Code, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return statusError(apiErrPtr.Code, err)
	}

	return fmt.Errorf("%w: %v", generation.ErrUnavailable, err)
}

func statusError(code int, err error) error {
	if sentinel := generation.ErrorForStatus(code); sentinel != nil {
		return fmt.Errorf("%w: %v", sentinel, err)
	}
	return fmt.Errorf("%w: %v", generation.ErrUnavailable, err)
}
