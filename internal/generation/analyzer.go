package generation

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/phrazzld/analysis-service/internal/config"
	"github.com/phrazzld/analysis-service/internal/domain"
)

// Title rules.
const (
	DefaultTitle         = "AI Analysis Result"
	ErrorTitle           = "Processing Error"
	maxTitleLength       = 50
	minTitledTextLength  = 50
	errorCodeScanLength  = 200
	secondaryInputLength = 1500
)

// Limits of the secondary calls.
const (
	qualityMaxTokens   = 10
	titleMaxTokens     = 30
	titleTemperature   = 0.1
	reconcileMaxTokens = domain.MaxOutputTokens
	reconcileTemp      = 0.1
)

// AnalyzerOptions configures an Analyzer.
type AnalyzerOptions struct {
	// QualityModel and NamingModel serve the cheap secondary calls.
	QualityModel string
	NamingModel  string
	// MaxAttempts bounds call-site retries of Process.
	MaxAttempts int
	// BackoffBase and BackoffMax bound the delay between attempts.
	BackoffBase time.Duration
	BackoffMax  time.Duration
	// MaxOutputTokens caps every call's output budget.
	MaxOutputTokens int
}

// AnalyzerOptionsFromConfig builds AnalyzerOptions from LLM configuration.
func AnalyzerOptionsFromConfig(cfg config.LLMConfig) AnalyzerOptions {
	return AnalyzerOptions{
		QualityModel:    cfg.QualityModel,
		NamingModel:     cfg.NamingModel,
		MaxAttempts:     cfg.MaxAttempts,
		BackoffBase:     cfg.BackoffBase,
		BackoffMax:      cfg.BackoffMax,
		MaxOutputTokens: cfg.MaxOutputTokens,
	}
}

// Analyzer implements Engine on top of a Completer.
type Analyzer struct {
	completer Completer
	opts      AnalyzerOptions
	logger    *slog.Logger
	// sleep waits between retry attempts; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

var _ Engine = (*Analyzer)(nil)

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(completer Completer, opts AnalyzerOptions, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.MaxOutputTokens <= 0 {
		opts.MaxOutputTokens = domain.MaxOutputTokens
	}
	return &Analyzer{
		completer: completer,
		opts:      opts,
		logger:    logger.With("component", "analyzer"),
		sleep:     sleepContext,
	}
}

// Process analyzes one chunk. Transient failures are retried with
// exponential backoff; permanent ones are returned immediately.
func (a *Analyzer) Process(ctx context.Context, chunk string, params domain.Params) (string, error) {
	params = params.WithDefaults()
	c := Completion{
		Model:           params.Model,
		System:          params.SystemPrompt,
		Prompt:          InjectContent(params.UserPrompt, chunk),
		MaxTokens:       min(params.MaxTokens, a.opts.MaxOutputTokens),
		Temperature:     params.EffectiveTemperature(),
		ThinkingBudget:  params.EffectiveThinkingBudget(),
		IncludeThinking: params.IncludeThinking,
	}

	text, err := a.completeWithRetry(ctx, c)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty response", ErrProtocol)
	}
	return text, nil
}

// completeWithRetry makes a completion call with exponential backoff.
//
// The delay before attempt n+1 is BackoffBase * 2^n * jitter, where jitter is
// drawn from [0.5, 1.0), capped at BackoffMax. Errors that are not classified
// as permanent are treated as transient.
func (a *Analyzer) completeWithRetry(ctx context.Context, c Completion) (string, error) {
	var lastErr error

	for attempt := 0; attempt < a.opts.MaxAttempts; attempt++ {
		text, err := a.completer.Complete(ctx, c)
		if err == nil {
			if attempt > 0 {
				a.logger.InfoContext(ctx, "engine call succeeded after retry", "attempt", attempt+1)
			}
			return text, nil
		}
		lastErr = err

		if IsPermanent(err) {
			a.logger.WarnContext(ctx, "permanent engine error, not retrying",
				"error", err,
				"model", c.Model)
			return "", err
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		if attempt == a.opts.MaxAttempts-1 {
			break
		}

		delay := a.backoff(attempt)
		a.logger.WarnContext(ctx, "engine call failed, retrying",
			"error", err,
			"attempt", attempt+1,
			"max_attempts", a.opts.MaxAttempts,
			"delay", delay)

		if err := a.sleep(ctx, delay); err != nil {
			return "", fmt.Errorf("%w: %w", ErrTimeout, err)
		}
	}

	if !IsTransient(lastErr) {
		lastErr = fmt.Errorf("%w: %w", ErrUnavailable, lastErr)
	}
	return "", fmt.Errorf("engine call failed after %d attempts: %w", a.opts.MaxAttempts, lastErr)
}

func (a *Analyzer) backoff(attempt int) time.Duration {
	backoff := float64(a.opts.BackoffBase) * math.Pow(2, float64(attempt))
	jitter := 0.5 + rand.Float64()*0.5
	return min(time.Duration(backoff*jitter), a.opts.BackoffMax)
}

// AssessQuality classifies text with a single short call. Any answer other
// than FAILED counts as SUCCESS.
func (a *Analyzer) AssessQuality(ctx context.Context, text string, _ domain.Params) (domain.ResultStatus, error) {
	prompt, err := renderPrompt("quality.tmpl", struct{ Response string }{truncateRunes(text, secondaryInputLength)})
	if err != nil {
		return "", err
	}
	system, err := renderPrompt("quality_system.tmpl", nil)
	if err != nil {
		return "", err
	}

	answer, err := a.completer.Complete(ctx, Completion{
		Model:       a.opts.QualityModel,
		System:      system,
		Prompt:      prompt,
		MaxTokens:   qualityMaxTokens,
		Temperature: 0,
	})
	if err != nil {
		return "", err
	}

	verdict := strings.ToUpper(strings.TrimSpace(answer))
	switch domain.ResultStatus(verdict) {
	case domain.ResultStatusSuccess, domain.ResultStatusFailed:
		return domain.ResultStatus(verdict), nil
	default:
		a.logger.WarnContext(ctx, "unexpected quality verdict, treating as success", "verdict", verdict)
		return domain.ResultStatusSuccess, nil
	}
}

// LooksLikeError reports whether an analysis is an error report rather than
// an analysis.
func LooksLikeError(text string) bool {
	return strings.HasPrefix(text, "[Error processing") ||
		strings.Contains(truncateRunes(text, errorCodeScanLength), "Error code:")
}

// NameResult produces a title of at most 50 characters. Error reports are
// titled ErrorTitle and very short texts DefaultTitle, without an engine call.
func (a *Analyzer) NameResult(ctx context.Context, text string, _ domain.Params) (string, error) {
	if LooksLikeError(text) {
		return ErrorTitle, nil
	}
	if len([]rune(strings.TrimSpace(text))) < minTitledTextLength {
		return DefaultTitle, nil
	}

	prompt, err := renderPrompt("title.tmpl", struct{ Analysis string }{truncateRunes(text, secondaryInputLength)})
	if err != nil {
		return "", err
	}

	title, err := a.completer.Complete(ctx, Completion{
		Model:       a.opts.NamingModel,
		Prompt:      prompt,
		MaxTokens:   titleMaxTokens,
		Temperature: titleTemperature,
	})
	if err != nil {
		return "", err
	}

	return CleanTitle(title), nil
}

// CleanTitle trims quotes, periods and whitespace from a generated title and
// caps it at 50 characters. An empty title becomes DefaultTitle.
func CleanTitle(title string) string {
	title = strings.Trim(strings.TrimSpace(title), `"'.`)
	title = strings.TrimSpace(truncateRunes(title, maxTitleLength))
	if title == "" {
		return DefaultTitle
	}
	return title
}

// ReconcileFormat asks the request's model to normalize formatting across a
// combined multi-chunk analysis.
func (a *Analyzer) ReconcileFormat(ctx context.Context, combined string, params domain.Params) (string, error) {
	params = params.WithDefaults()
	prompt, err := renderPrompt("reconcile.tmpl", struct {
		UserPrompt string
		Combined   string
	}{params.UserPrompt, combined})
	if err != nil {
		return "", err
	}

	text, err := a.completer.Complete(ctx, Completion{
		Model:       params.Model,
		Prompt:      prompt,
		MaxTokens:   min(reconcileMaxTokens, a.opts.MaxOutputTokens),
		Temperature: reconcileTemp,
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty reconciliation", ErrProtocol)
	}
	return text, nil
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
