// Package embedding provides OpenAI-compatible embedding client functionality.
package embedding

import (
	"context"
)

// Provider turns text into fixed-length vectors. Vector dimensionality is
// provider-defined and opaque to callers; treat it as a fixed-length numeric
// array and never assume a specific dimension in logic.
// Use this interface for dependency injection to enable mocking in tests.
type Provider interface {
	// Embed generates an embedding vector for the input text.
	Embed(ctx context.Context, input string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple inputs in one request.
	EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error)

	// Model returns the configured model name.
	Model() string
}

// Ensure Client implements Provider at compile time.
var _ Provider = (*Client)(nil)
