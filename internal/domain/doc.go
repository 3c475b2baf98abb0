// Package domain contains the core entities of the analysis service: jobs,
// results, and the typed analysis request that flows from ingestion through
// the queue to the worker. It is independent of any storage or transport.
package domain
