// Package task runs analysis jobs in the background. Pipeline performs the
// analysis of one piece of content: chunking, sequential engine calls with
// per-chunk failure containment, combination and format reconciliation, the
// quality gate and titling. Runner drives queued jobs through the pipeline,
// persists their results, delivers webhooks, and applies the job-level retry
// policy. It also recovers jobs stuck in processing.
package task
