package apperrors

import "errors"

var (
	// ErrEmptySchema is returned when a table has no discoverable columns.
	// Permanent for that table; callers skip the table rather than abort the run.
	ErrEmptySchema = errors.New("table has no columns")

	// ErrSourceUnreachable indicates a transient datasource connectivity failure.
	ErrSourceUnreachable = errors.New("datasource unreachable")

	// ErrEmbeddingProvider indicates the embedding provider failed after retries.
	ErrEmbeddingProvider = errors.New("embedding provider failure")

	// ErrIndexWrite indicates a vector index write failed. The affected schema's
	// fingerprint must not be updated so a future run retries it.
	ErrIndexWrite = errors.New("vector index write failed")

	ErrUnknownSourceType  = errors.New("unknown datasource type")
	ErrCollectionNotFound = errors.New("collection not found")
)
