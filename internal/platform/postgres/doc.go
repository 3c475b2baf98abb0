// Package postgres provides a PostgreSQL implementation of the queue.Store
// primitives, for deployments that run the job queue on an existing
// PostgreSQL database instead of Redis.
//
// Keys, lists and sets live in three tables created by the embedded goose
// migrations. Expiry is evaluated at read time and expired rows are removed
// by PurgeExpired. BlockingPop claims rows with FOR UPDATE SKIP LOCKED, so
// concurrent workers never receive the same element.
package postgres
