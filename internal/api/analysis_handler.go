package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/analysis-service/internal/api/shared"
	"github.com/phrazzld/analysis-service/internal/domain"
	"github.com/phrazzld/analysis-service/internal/platform/logger"
	"github.com/phrazzld/analysis-service/internal/service"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "analysis-service"

// ReferencePolicy decides which file references a request may carry.
type ReferencePolicy interface {
	// ExtractReferences returns the acceptable FILE_URL references in content.
	ExtractReferences(content string) []string
	// ValidateReferences rejects disallowed references or too many of them.
	ValidateReferences(refs []string) error
}

// HandlerOptions tunes request decoding.
type HandlerOptions struct {
	// MaxBodyBytes bounds request bodies; zero means unbounded.
	MaxBodyBytes int64
	// DefaultModel is used when a request names no model.
	DefaultModel string
}

// AnalysisHandler serves the analysis endpoints.
type AnalysisHandler struct {
	service service.AnalysisService
	refs    ReferencePolicy
	opts    HandlerOptions
	now     func() time.Time
}

// NewAnalysisHandler creates an AnalysisHandler.
func NewAnalysisHandler(svc service.AnalysisService, refs ReferencePolicy, opts HandlerOptions) *AnalysisHandler {
	return &AnalysisHandler{
		service: svc,
		refs:    refs,
		opts:    opts,
		now:     time.Now,
	}
}

// Analyze handles POST /api/analyze. The request is always queued and the
// result is pushed to the caller's webhook.
func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var body WebhookAnalysisRequest
	if !h.decodeAndValidate(w, r, &body) {
		return
	}

	explicit := body.FileURLs
	if err := h.refs.ValidateReferences(explicit); err != nil {
		h.respondError(w, r, err)
		return
	}
	refs := append(append([]string(nil), explicit...), h.refs.ExtractReferences(body.Content)...)

	req, err := h.buildRequest(body.RecordID, body.Content, refs, body.Params(h.opts.DefaultModel))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	req.Webhook = &domain.WebhookTarget{URL: body.WebhookURL, Credential: body.WebhookToken}

	resp, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	logger.FromContext(r.Context()).Info("analysis accepted",
		"job_id", resp.JobID,
		"record_id", resp.RecordID,
		"kind", req.Kind)
	shared.RespondWithJSON(w, r, http.StatusAccepted, toSubmitResponse(resp))
}

// AnalyzeSync handles POST /api/analyze/sync. Small text requests are served
// inline; everything else is queued for polling.
func (h *AnalysisHandler) AnalyzeSync(w http.ResponseWriter, r *http.Request) {
	var body PollingAnalysisRequest
	if !h.decodeAndValidate(w, r, &body) {
		return
	}

	content := body.PollingContent().Reconstruct()
	req, err := h.buildRequest(body.RecordID, content, h.refs.ExtractReferences(content), body.Params(h.opts.DefaultModel))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp, err := h.service.Submit(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	status := http.StatusOK
	if resp.Status == service.StatusProcessing {
		status = http.StatusAccepted
	}
	shared.RespondWithJSON(w, r, status, toSubmitResponse(resp))
}

// GetJob handles GET /api/jobs/{id}.
func (h *AnalysisHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	jobID, err := getPathJobID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	job, err := h.service.GetJob(r.Context(), jobID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toJobResponse(job))
}

// GetResult handles GET /api/jobs/{id}/result.
func (h *AnalysisHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	jobID, err := getPathJobID(r, "id")
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	resp, err := h.service.Poll(r.Context(), jobID)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, toResultResponse(resp))
}

// Health handles GET /health.
func (h *AnalysisHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:    "healthy",
		Service:   ServiceName,
		Timestamp: h.now().UTC(),
	}

	report, err := h.service.Health(r.Context())
	if err != nil {
		logger.FromContext(r.Context()).Warn("health check failed", "error", err)
		resp.Status = "unhealthy"
		shared.RespondWithJSON(w, r, http.StatusServiceUnavailable, resp)
		return
	}

	resp.PendingJobs = report.Stats.Pending
	resp.ProcessingJobs = report.Stats.Processing
	resp.SyncActive = report.Stats.SyncActive
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// buildRequest decides the request kind once: any references make it a
// file request.
func (h *AnalysisHandler) buildRequest(recordID, content string, refs []string, params domain.Params) (domain.AnalysisRequest, error) {
	if len(refs) == 0 {
		return domain.NewTextRequest(recordID, content, params), nil
	}
	if err := h.refs.ValidateReferences(refs); err != nil {
		return domain.AnalysisRequest{}, err
	}
	return domain.NewFileRequest(recordID, refs, content, params), nil
}

func (h *AnalysisHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := shared.DecodeJSON(w, r, v, h.opts.MaxBodyBytes); err != nil {
		h.respondError(w, r, err)
		return false
	}
	if err := shared.ValidateRequest(v); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return false
	}
	return true
}

func (h *AnalysisHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, SanitizeValidationError(err), err)
		return
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
