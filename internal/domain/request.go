package domain

import (
	"fmt"
	"strings"
)

// RequestKind distinguishes text requests from file-bearing requests.
// The kind is decided once at ingestion and never re-derived from content.
type RequestKind string

// Possible request kinds
const (
	RequestKindText RequestKind = "text"
	RequestKindFile RequestKind = "file"
)

// Parameter defaults and limits applied to every request.
const (
	DefaultModel       = "gemini-2.0-flash"
	DefaultMaxTokens   = 2000
	MaxOutputTokens    = 8192
	DefaultTemperature = 0.2
	MinThinkingBudget  = 1024
	DefaultThinking    = 2048
	thinkingHeadroom   = 200
)

// Params holds the prompt and model parameters of an analysis request.
type Params struct {
	SystemPrompt     string         `json:"system_prompt,omitempty"`
	UserPrompt       string         `json:"user_prompt"`
	Model            string         `json:"model,omitempty"`
	MaxTokens        int            `json:"max_tokens,omitempty"`
	Temperature      float64        `json:"temperature"`
	ExtendedThinking bool           `json:"extended_thinking,omitempty"`
	ThinkingBudget   *int           `json:"thinking_budget,omitempty"`
	IncludeThinking  bool           `json:"include_thinking,omitempty"`
	TemplateConfig   map[string]any `json:"template_config,omitempty"`
	ProjectMetadata  map[string]any `json:"project_metadata,omitempty"`
}

// WebhookTarget is the caller-supplied push destination for a finished job.
type WebhookTarget struct {
	URL        string `json:"url"`
	Credential string `json:"credential,omitempty"`
}

// AnalysisRequest is the typed request threaded from ingestion through the
// queue to the worker.
type AnalysisRequest struct {
	Kind     RequestKind    `json:"kind"`
	RecordID string         `json:"record_id"`
	Content  string         `json:"content,omitempty"`
	FileRefs []string       `json:"file_refs,omitempty"`
	Params   Params         `json:"params"`
	Webhook  *WebhookTarget `json:"webhook,omitempty"`
}

// NewTextRequest builds a text request with defaulted parameters.
func NewTextRequest(recordID, content string, params Params) AnalysisRequest {
	return AnalysisRequest{
		Kind:     RequestKindText,
		RecordID: recordID,
		Content:  content,
		Params:   params.WithDefaults(),
	}
}

// NewFileRequest builds a file-bearing request. Content is optional text
// that accompanies the referenced files.
func NewFileRequest(recordID string, refs []string, content string, params Params) AnalysisRequest {
	return AnalysisRequest{
		Kind:     RequestKindFile,
		RecordID: recordID,
		Content:  content,
		FileRefs: refs,
		Params:   params.WithDefaults(),
	}
}

// IsFile reports whether the request references files.
func (r AnalysisRequest) IsFile() bool {
	return r.Kind == RequestKindFile
}

// Validate checks the request shape. Errors wrap ErrValidation.
func (r AnalysisRequest) Validate() error {
	switch r.Kind {
	case RequestKindText:
		if strings.TrimSpace(r.Content) == "" {
			return fmt.Errorf("%w: %w", ErrValidation, ErrEmptyContent)
		}
	case RequestKindFile:
		if len(r.FileRefs) == 0 {
			return fmt.Errorf("%w: file request has no file references", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown request kind %q", ErrValidation, r.Kind)
	}

	if r.Webhook != nil && strings.TrimSpace(r.Webhook.URL) == "" {
		return fmt.Errorf("%w: webhook target has empty URL", ErrValidation)
	}

	return r.Params.Validate()
}

// Validate checks parameter ranges. Errors wrap ErrValidation.
func (p Params) Validate() error {
	if strings.TrimSpace(p.UserPrompt) == "" {
		return fmt.Errorf("%w: user prompt is required", ErrValidation)
	}
	if p.MaxTokens < 0 {
		return fmt.Errorf("%w: max_tokens must not be negative", ErrValidation)
	}
	if p.Temperature < 0 || p.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be between 0 and 2", ErrValidation)
	}
	if p.ThinkingBudget != nil && *p.ThinkingBudget < 0 {
		return fmt.Errorf("%w: thinking_budget must not be negative", ErrValidation)
	}
	return nil
}

// WithDefaults returns a copy with the model and token limits filled in and
// the output budget capped.
func (p Params) WithDefaults() Params {
	if p.Model == "" {
		p.Model = DefaultModel
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.MaxTokens > MaxOutputTokens {
		p.MaxTokens = MaxOutputTokens
	}
	return p
}

// EffectiveThinkingBudget clamps the requested thinking budget to
// [MinThinkingBudget, MaxTokens-200], starting from DefaultThinking when no
// budget was requested. It returns 0 when extended thinking is off.
func (p Params) EffectiveThinkingBudget() int {
	if !p.ExtendedThinking {
		return 0
	}

	budget := DefaultThinking
	if p.ThinkingBudget != nil {
		budget = *p.ThinkingBudget
	}
	budget = min(budget, p.MaxTokens-thinkingHeadroom)
	return max(MinThinkingBudget, budget)
}

// EffectiveTemperature returns the sampling temperature. Extended thinking
// requires a temperature of 1.
func (p Params) EffectiveTemperature() float64 {
	if p.ExtendedThinking {
		return 1
	}
	return p.Temperature
}
