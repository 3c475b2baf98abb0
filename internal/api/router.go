package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	apiMiddleware "github.com/phrazzld/analysis-service/internal/api/middleware"
)

// NewRouter mounts the analysis endpoints behind the standard middleware.
func NewRouter(h *AnalysisHandler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(apiMiddleware.Trace(logger))
	r.Use(chimw.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/analyze", h.Analyze)
		r.Post("/analyze/sync", h.AnalyzeSync)
		r.Get("/jobs/{id}", h.GetJob)
		r.Get("/jobs/{id}/result", h.GetResult)
	})
	r.Get("/health", h.Health)

	return r
}
