// Package queue implements the job state machine on top of a durable store
// offering list, key-value, set and counter primitives.
//
// Jobs move PENDING -> PROCESSING -> SUCCESS | FAILED. A failed attempt may
// return a job to PENDING while it has retries left; each such transition
// consumes one retry. Results are stored under their own keys so they can
// exist without a job record.
package queue
