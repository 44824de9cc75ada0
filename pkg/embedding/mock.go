package embedding

import (
	"context"
)

// MockProvider is a configurable mock for testing embedding-dependent code.
// Set the function fields to control behavior in tests.
type MockProvider struct {
	// EmbedFunc is called when Embed is invoked.
	// If nil, returns a small fixed vector and nil error.
	EmbedFunc func(ctx context.Context, input string) ([]float32, error)

	// EmbedBatchFunc is called when EmbedBatch is invoked.
	// If nil, returns one fixed vector per input and nil error.
	EmbedBatchFunc func(ctx context.Context, inputs []string) ([][]float32, error)

	// ModelName is returned by Model. Defaults to "mock-embedding".
	ModelName string

	// Call tracking for verification
	EmbedCalls      int
	EmbedBatchCalls int
}

// NewMockProvider creates a new mock with sensible defaults.
func NewMockProvider() *MockProvider {
	return &MockProvider{ModelName: "mock-embedding"}
}

// Embed implements Provider.
func (m *MockProvider) Embed(ctx context.Context, input string) ([]float32, error) {
	m.EmbedCalls++
	if m.EmbedFunc != nil {
		return m.EmbedFunc(ctx, input)
	}
	return []float32{1, 0, 0}, nil
}

// EmbedBatch implements Provider.
func (m *MockProvider) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	m.EmbedBatchCalls++
	if m.EmbedBatchFunc != nil {
		return m.EmbedBatchFunc(ctx, inputs)
	}
	vectors := make([][]float32, len(inputs))
	for i := range inputs {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

// Model implements Provider.
func (m *MockProvider) Model() string {
	if m.ModelName == "" {
		return "mock-embedding"
	}
	return m.ModelName
}

var _ Provider = (*MockProvider)(nil)
