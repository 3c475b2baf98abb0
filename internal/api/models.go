package api

import (
	"errors"
	"strings"
	"time"

	"github.com/phrazzld/analysis-service/internal/domain"
	"github.com/phrazzld/analysis-service/internal/service"
)

// ErrNoContent is returned when a webhook request carries neither content
// nor file URLs.
var ErrNoContent = errors.New("content or file_urls is required")

// PromptFields are the prompt and model parameters shared by both
// submission endpoints.
type PromptFields struct {
	RecordID         string         `json:"record_id" validate:"required,max=256"`
	SystemPrompt     string         `json:"system_prompt,omitempty"`
	UserPrompt       string         `json:"user_prompt" validate:"required"`
	Model            string         `json:"model,omitempty" validate:"max=128"`
	MaxTokens        int            `json:"max_tokens,omitempty" validate:"gte=0"`
	Temperature      *float64       `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	ExtendedThinking bool           `json:"extended_thinking,omitempty"`
	ThinkingBudget   *int           `json:"thinking_budget,omitempty" validate:"omitempty,gte=0"`
	IncludeThinking  bool           `json:"include_thinking,omitempty"`
	TemplateConfig   map[string]any `json:"template_config,omitempty"`
	ProjectMetadata  map[string]any `json:"project_metadata,omitempty"`
}

// Params converts the prompt fields to domain parameters. An absent model
// takes defaultModel and an absent temperature takes the domain default.
func (p PromptFields) Params(defaultModel string) domain.Params {
	model := p.Model
	if model == "" {
		model = defaultModel
	}
	temperature := domain.DefaultTemperature
	if p.Temperature != nil {
		temperature = *p.Temperature
	}
	return domain.Params{
		SystemPrompt:     p.SystemPrompt,
		UserPrompt:       p.UserPrompt,
		Model:            model,
		MaxTokens:        p.MaxTokens,
		Temperature:      temperature,
		ExtendedThinking: p.ExtendedThinking,
		ThinkingBudget:   p.ThinkingBudget,
		IncludeThinking:  p.IncludeThinking,
		TemplateConfig:   p.TemplateConfig,
		ProjectMetadata:  p.ProjectMetadata,
	}.WithDefaults()
}

// WebhookAnalysisRequest is the body of POST /api/analyze. The result is
// pushed to WebhookURL when the job finishes.
type WebhookAnalysisRequest struct {
	PromptFields
	Content      string   `json:"content,omitempty"`
	FileURLs     []string `json:"file_urls,omitempty" validate:"omitempty,dive,required"`
	WebhookURL   string   `json:"webhook_url" validate:"required,url"`
	WebhookToken string   `json:"webhook_token,omitempty"`
}

// Validate requires content or at least one file URL.
func (r WebhookAnalysisRequest) Validate() error {
	if strings.TrimSpace(r.Content) == "" && len(r.FileURLs) == 0 {
		return ErrNoContent
	}
	return nil
}

// PollingAnalysisRequest is the body of POST /api/analyze/sync. Callers with
// per-field size limits split content across the numbered fields.
type PollingAnalysisRequest struct {
	PromptFields
	Source1 string `json:"source1" validate:"required"`
	Source2 string `json:"source2,omitempty"`
	Source3 string `json:"source3,omitempty"`
	Source4 string `json:"source4,omitempty"`
	Source5 string `json:"source5,omitempty"`
	Source6 string `json:"source6,omitempty"`
	Target1 string `json:"target1,omitempty"`
	Target2 string `json:"target2,omitempty"`
	Target3 string `json:"target3,omitempty"`
	Target4 string `json:"target4,omitempty"`
	Target5 string `json:"target5,omitempty"`
	Target6 string `json:"target6,omitempty"`
}

// PollingContent gathers the numbered fields in order.
func (r PollingAnalysisRequest) PollingContent() domain.PollingContent {
	return domain.PollingContent{
		Sources: [domain.PollingFieldCount]string{r.Source1, r.Source2, r.Source3, r.Source4, r.Source5, r.Source6},
		Targets: [domain.PollingFieldCount]string{r.Target1, r.Target2, r.Target3, r.Target4, r.Target5, r.Target6},
	}
}

// SubmitResponse is returned by both submission endpoints.
type SubmitResponse struct {
	JobID    string         `json:"job_id"`
	RecordID string         `json:"record_id"`
	Status   string         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Result   *domain.Result `json:"result,omitempty"`
}

// JobResponse describes a job record without its request payload.
type JobResponse struct {
	JobID        string     `json:"job_id"`
	RecordID     string     `json:"record_id"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
}

// ResultResponse is returned by the poll endpoint.
type ResultResponse struct {
	JobID  string         `json:"job_id"`
	Status string         `json:"status"`
	Result *domain.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status         string    `json:"status"`
	Service        string    `json:"service"`
	Timestamp      time.Time `json:"timestamp"`
	PendingJobs    int64     `json:"pending_jobs"`
	ProcessingJobs int64     `json:"processing_jobs"`
	SyncActive     int64     `json:"sync_active"`
}

func toJobResponse(job *domain.Job) JobResponse {
	return JobResponse{
		JobID:        job.ID,
		RecordID:     job.RecordID,
		Status:       string(job.Status),
		CreatedAt:    job.CreatedAt,
		StartedAt:    job.StartedAt,
		CompletedAt:  job.CompletedAt,
		ErrorMessage: job.ErrorMessage,
		RetryCount:   job.RetryCount,
		MaxRetries:   job.MaxRetries,
	}
}

func toSubmitResponse(resp service.SubmitResponse) SubmitResponse {
	out := SubmitResponse{
		JobID:    resp.JobID,
		RecordID: resp.RecordID,
		Status:   string(resp.Status),
		Result:   resp.Result,
	}
	if resp.Status == service.StatusProcessing {
		out.Message = "Analysis queued"
	}
	return out
}

func toResultResponse(resp service.PollResponse) ResultResponse {
	return ResultResponse{
		JobID:  resp.JobID,
		Status: string(resp.Status),
		Result: resp.Result,
		Error:  resp.Error,
	}
}
