package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/analysis-service/internal/domain"
	"github.com/phrazzld/analysis-service/internal/files"
	"github.com/phrazzld/analysis-service/internal/platform/logger"
	"github.com/phrazzld/analysis-service/internal/queue"
	"github.com/phrazzld/analysis-service/internal/service"
)

const testJobID = "4f8c2b6e-9a1d-4c3e-8f7a-2b5d6e9c1a3f"

type fakeService struct {
	submitted []domain.AnalysisRequest
	submitFn  func(req domain.AnalysisRequest) (service.SubmitResponse, error)
	pollFn    func(jobID string) (service.PollResponse, error)
	jobFn     func(jobID string) (*domain.Job, error)
	healthErr error
}

func (f *fakeService) Submit(_ context.Context, req domain.AnalysisRequest) (service.SubmitResponse, error) {
	f.submitted = append(f.submitted, req)
	if f.submitFn != nil {
		return f.submitFn(req)
	}
	return service.SubmitResponse{JobID: testJobID, RecordID: req.RecordID, Status: service.StatusProcessing}, nil
}

func (f *fakeService) Poll(_ context.Context, jobID string) (service.PollResponse, error) {
	if f.pollFn != nil {
		return f.pollFn(jobID)
	}
	return service.PollResponse{JobID: jobID, Status: service.StatusProcessing}, nil
}

func (f *fakeService) GetJob(_ context.Context, jobID string) (*domain.Job, error) {
	if f.jobFn != nil {
		return f.jobFn(jobID)
	}
	return nil, service.ErrJobNotFound
}

func (f *fakeService) Health(context.Context) (service.HealthReport, error) {
	if f.healthErr != nil {
		return service.HealthReport{}, f.healthErr
	}
	return service.HealthReport{Healthy: true, Stats: queue.Stats{Pending: 3, Processing: 1}}, nil
}

func newTestRouter(svc *fakeService) http.Handler {
	resolver := files.NewResolver(http.DefaultClient, files.Options{
		MaxFiles:     3,
		AllowedHosts: files.DefaultAllowedHosts,
	}, logger.DiscardLogger())
	return NewRouter(NewAnalysisHandler(svc, resolver, HandlerOptions{MaxBodyBytes: 1 << 20, DefaultModel: "gemini-test"}), logger.DiscardLogger())
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestAnalyze(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, req domain.AnalysisRequest)
	}{
		{
			name:       "text request",
			body:       `{"record_id":"rec-1","content":"hello","user_prompt":"summarise","webhook_url":"https://hooks.example.com/a","webhook_token":"tok"}`,
			wantStatus: http.StatusAccepted,
			check: func(t *testing.T, req domain.AnalysisRequest) {
				assert.Equal(t, domain.RequestKindText, req.Kind)
				assert.Equal(t, "hello", req.Content)
				require.NotNil(t, req.Webhook)
				assert.Equal(t, "https://hooks.example.com/a", req.Webhook.URL)
				assert.Equal(t, "tok", req.Webhook.Credential)
				assert.Equal(t, domain.DefaultTemperature, req.Params.Temperature)
				assert.Equal(t, domain.DefaultMaxTokens, req.Params.MaxTokens)
				assert.Equal(t, "gemini-test", req.Params.Model)
			},
		},
		{
			name:       "file urls become a file request",
			body:       `{"record_id":"rec-2","file_urls":["https://codahosted.io/a.docx"],"user_prompt":"p","webhook_url":"https://hooks.example.com/a"}`,
			wantStatus: http.StatusAccepted,
			check: func(t *testing.T, req domain.AnalysisRequest) {
				assert.Equal(t, domain.RequestKindFile, req.Kind)
				assert.Equal(t, []string{"https://codahosted.io/a.docx"}, req.FileRefs)
			},
		},
		{
			name:       "content references are extracted",
			body:       `{"record_id":"rec-3","content":"notes FILE_URL:https://codahosted.io/b.csv","user_prompt":"p","webhook_url":"https://hooks.example.com/a","temperature":0,"max_tokens":99999}`,
			wantStatus: http.StatusAccepted,
			check: func(t *testing.T, req domain.AnalysisRequest) {
				assert.Equal(t, domain.RequestKindFile, req.Kind)
				assert.Equal(t, []string{"https://codahosted.io/b.csv"}, req.FileRefs)
				assert.Equal(t, 0.0, req.Params.Temperature)
				assert.Equal(t, domain.MaxOutputTokens, req.Params.MaxTokens)
			},
		},
		{
			name:       "missing webhook url",
			body:       `{"record_id":"rec-4","content":"hello","user_prompt":"p"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "no content or files",
			body:       `{"record_id":"rec-5","user_prompt":"p","webhook_url":"https://hooks.example.com/a"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "disallowed file host",
			body:       `{"record_id":"rec-6","file_urls":["https://evil.example.com/a.txt"],"user_prompt":"p","webhook_url":"https://hooks.example.com/a"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"record_id":`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{}
			w := do(t, newTestRouter(svc), http.MethodPost, "/api/analyze", tc.body)

			assert.Equal(t, tc.wantStatus, w.Code, w.Body.String())
			if tc.check == nil {
				assert.Empty(t, svc.submitted)
				return
			}
			require.Len(t, svc.submitted, 1)
			tc.check(t, svc.submitted[0])

			resp := decode[SubmitResponse](t, w)
			assert.Equal(t, testJobID, resp.JobID)
			assert.Equal(t, "processing", resp.Status)
		})
	}
}

func TestAnalyzeSync(t *testing.T) {
	t.Run("inline completion", func(t *testing.T) {
		svc := &fakeService{submitFn: func(req domain.AnalysisRequest) (service.SubmitResponse, error) {
			return service.SubmitResponse{
				JobID:    testJobID,
				RecordID: req.RecordID,
				Status:   service.StatusComplete,
				Result:   &domain.Result{RecordID: req.RecordID, Status: domain.ResultStatusSuccess, AnalysisResult: "done"},
			}, nil
		}}

		w := do(t, newTestRouter(svc), http.MethodPost, "/api/analyze/sync",
			`{"record_id":"rec-1","user_prompt":"p","source1":"ab","source2":"cd","target1":"xy"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		require.Len(t, svc.submitted, 1)
		assert.Equal(t, "**TARGET CONTENT:**\nxy\n\n**SOURCE CONTENT:**\nabcd", svc.submitted[0].Content)
		assert.Nil(t, svc.submitted[0].Webhook)

		resp := decode[SubmitResponse](t, w)
		assert.Equal(t, "complete", resp.Status)
		require.NotNil(t, resp.Result)
		assert.Equal(t, "done", resp.Result.AnalysisResult)
	})

	t.Run("queued", func(t *testing.T) {
		svc := &fakeService{}
		w := do(t, newTestRouter(svc), http.MethodPost, "/api/analyze/sync",
			`{"record_id":"rec-2","user_prompt":"p","source1":"FILE_URL:https://codahosted.io/a.txt"}`)

		assert.Equal(t, http.StatusAccepted, w.Code)
		require.Len(t, svc.submitted, 1)
		assert.Equal(t, domain.RequestKindFile, svc.submitted[0].Kind)
	})

	t.Run("content too large", func(t *testing.T) {
		svc := &fakeService{submitFn: func(domain.AnalysisRequest) (service.SubmitResponse, error) {
			return service.SubmitResponse{}, errors.Join(domain.ErrValidation, domain.ErrContentTooLarge)
		}}
		w := do(t, newTestRouter(svc), http.MethodPost, "/api/analyze/sync",
			`{"record_id":"rec-3","user_prompt":"p","source1":"x"}`)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})

	t.Run("missing source", func(t *testing.T) {
		svc := &fakeService{}
		w := do(t, newTestRouter(svc), http.MethodPost, "/api/analyze/sync",
			`{"record_id":"rec-4","user_prompt":"p"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "source1")
	})
}

func TestGetJob(t *testing.T) {
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := &fakeService{jobFn: func(jobID string) (*domain.Job, error) {
		if jobID != testJobID {
			return nil, service.ErrJobNotFound
		}
		return &domain.Job{
			ID:         testJobID,
			RecordID:   "rec-1",
			Status:     domain.JobStatusPending,
			CreatedAt:  created,
			MaxRetries: 2,
			Request:    domain.NewTextRequest("rec-1", "secret content", domain.Params{UserPrompt: "p"}),
		}, nil
	}}
	router := newTestRouter(svc)

	w := do(t, router, http.MethodGet, "/api/jobs/"+testJobID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret content")
	resp := decode[JobResponse](t, w)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, created, resp.CreatedAt)

	w = do(t, router, http.MethodGet, "/api/jobs/9d2f1c3a-7b4e-4a6d-8c5f-1e2d3c4b5a69", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, router, http.MethodGet, "/api/jobs/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetResult(t *testing.T) {
	svc := &fakeService{pollFn: func(jobID string) (service.PollResponse, error) {
		return service.PollResponse{
			JobID:  jobID,
			Status: service.StatusFailed,
			Error:  "Job processing failed: upstream unavailable",
			Result: domain.NewFailedResult("rec-1", "upstream unavailable", nil),
		}, nil
	}}

	w := do(t, newTestRouter(svc), http.MethodGet, "/api/jobs/"+testJobID+"/result", "")
	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode[ResultResponse](t, w)
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, testJobID, resp.JobID)
	require.NotNil(t, resp.Result)
	assert.Equal(t, domain.ResultStatusFailed, resp.Result.Status)
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		w := do(t, newTestRouter(&fakeService{}), http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusOK, w.Code)
		resp := decode[HealthResponse](t, w)
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, ServiceName, resp.Service)
		assert.EqualValues(t, 3, resp.PendingJobs)
		assert.EqualValues(t, 1, resp.ProcessingJobs)
	})

	t.Run("store unreachable", func(t *testing.T) {
		w := do(t, newTestRouter(&fakeService{healthErr: errors.New("connection refused")}), http.MethodGet, "/health", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", decode[HealthResponse](t, w).Status)
	})
}

func TestTraceIDOnErrors(t *testing.T) {
	w := do(t, newTestRouter(&fakeService{}), http.MethodGet, "/api/jobs/not-a-uuid", "")
	var body struct {
		TraceID string `json:"trace_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.TraceID)
	assert.Equal(t, body.TraceID, w.Header().Get("X-Trace-ID"))
}
