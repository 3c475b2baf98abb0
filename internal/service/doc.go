// Package service contains the application-level use cases of the analysis
// service. It sits between the delivery mechanism (the HTTP API) and the job
// queue, and decides how each request is fulfilled.
//
// Key components:
//
// 1. AnalysisService:
//   - Admits requests: validation and the content size limit
//   - Serves small requests inline through FastPath
//   - Enqueues everything else and answers polls from stored results
//
// 2. FastPath:
//   - Runs the analysis pipeline inline for single-chunk text requests
//   - Bounds the whole attempt with one timeout and falls back silently
//   - Tracks in-flight inline requests in the store's sync counter
//
// 3. Error Handling:
//   - Queue-level not-found errors are translated to ErrJobNotFound
//   - Other failures are wrapped in AnalysisServiceError
package service
