// Package api adapts HTTP to the analysis service. It decodes and validates
// submissions, decides at ingestion whether a request is text or file
// bearing, and maps service errors to status codes and safe messages.
//
// Endpoints:
//
//	POST /api/analyze           queue a request; the result goes to a webhook
//	POST /api/analyze/sync      serve inline when small, otherwise queue for polling
//	GET  /api/jobs/{id}         job record
//	GET  /api/jobs/{id}/result  poll for a result
//	GET  /health                store connectivity and queue load
package api
