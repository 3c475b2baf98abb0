// Package openai provides an implementation of the generation.Completer
// interface on the OpenAI chat completions API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/phrazzld/analysis-service/internal/generation"
)

// Completer implements generation.Completer with OpenAI chat completions.
type Completer struct {
	client openai.Client
	logger *slog.Logger
}

var _ generation.Completer = (*Completer)(nil)

// NewCompleter creates an OpenAI-backed Completer. The SDK's own retries are
// disabled; the generation package owns retry policy.
func NewCompleter(apiKey string, logger *slog.Logger, opts ...option.RequestOption) (*Completer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: openai API key cannot be empty", generation.ErrInvalidConfig)
	}

	opts = append([]option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}, opts...)

	return &Completer{
		client: openai.NewClient(opts...),
		logger: logger.With("component", "openai"),
	}, nil
}

// Complete sends one chat completion request.
func (c *Completer) Complete(ctx context.Context, comp generation.Completion) (string, error) {
	if comp.ThinkingBudget > 0 {
		c.logger.DebugContext(ctx, "extended thinking is not supported by this provider, ignoring",
			"thinking_budget", comp.ThinkingBudget)
	}

	completion, err := c.client.Chat.Completions.New(ctx, buildParams(comp))
	if err != nil {
		return "", classifyError(ctx, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices returned", generation.ErrProtocol)
	}

	choice := completion.Choices[0]
	if choice.FinishReason == "content_filter" {
		return "", generation.ErrContentBlocked
	}
	return choice.Message.Content, nil
}

func buildParams(comp generation.Completion) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if comp.System != "" {
		messages = append(messages, openai.SystemMessage(comp.System))
	}
	messages = append(messages, openai.UserMessage(comp.Prompt))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(comp.Model),
		Messages:    messages,
		Temperature: openai.Float(comp.Temperature),
	}
	if comp.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(comp.MaxTokens))
	}
	return params
}

// classifyError maps an SDK error onto the generation taxonomy.
func classifyError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
		return fmt.Errorf("%w: %v", generation.ErrTimeout, err)
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if sentinel := generation.ErrorForStatus(apiErr.StatusCode); sentinel != nil {
			return fmt.Errorf("%w: %v", sentinel, err)
		}
	}

	return fmt.Errorf("%w: %v", generation.ErrUnavailable, err)
}
