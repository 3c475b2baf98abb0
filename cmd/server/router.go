package main

import (
	"net/http"

	"github.com/phrazzld/analysis-service/internal/api"
)

// bodyLimit bounds request bodies. Content is counted in characters, so
// allow four bytes per character plus room for the other fields.
func (app *application) bodyLimit() int64 {
	return int64(app.config.Server.MaxContentSize)*4 + 64<<10
}

func (app *application) setupRouter() http.Handler {
	handler := api.NewAnalysisHandler(app.analysisService, app.resolver, api.HandlerOptions{
		MaxBodyBytes: app.bodyLimit(),
		DefaultModel: app.config.LLM.DefaultModel,
	})
	return api.NewRouter(handler, app.logger)
}
