package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/retry"
)

// Client provides access to OpenAI-compatible embedding endpoints.
type Client struct {
	client    *openai.Client
	endpoint  string
	model     string
	batchSize int
	retryCfg  *retry.Config
	logger    *zap.Logger
}

// Config holds configuration for creating an embedding client.
type Config struct {
	Endpoint  string // Base URL, e.g., "https://api.openai.com/v1"
	Model     string // Model name, e.g., "text-embedding-3-small"
	APIKey    string // Optional for local endpoints
	BatchSize int    // Max inputs per request; defaults to 64
}

// NewClient creates a new OpenAI-compatible embedding client.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 64
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")

	return &Client{
		client:    openai.NewClientWithConfig(clientConfig),
		endpoint:  cfg.Endpoint,
		model:     cfg.Model,
		batchSize: batchSize,
		retryCfg:  retry.DefaultConfig(),
		logger:    logger.Named("embedding"),
	}, nil
}

// Embed generates an embedding vector for the input text.
func (c *Client) Embed(ctx context.Context, input string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{input})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch generates embeddings for multiple inputs. Inputs beyond the
// configured batch size are split across requests; transient provider errors
// are retried with bounded backoff.
func (c *Client) EmbedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += c.batchSize {
		end := start + c.batchSize
		if end > len(inputs) {
			end = len(inputs)
		}

		batch, err := c.embedBatch(ctx, inputs[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}

	return vectors, nil
}

func (c *Client) embedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	start := time.Now()

	resp, err := retry.DoWithResult(ctx, c.retryCfg, func() (openai.EmbeddingResponse, error) {
		return c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Model: openai.EmbeddingModel(c.model),
			Input: inputs,
		})
	})
	if err != nil {
		c.logger.Error("embedding request failed",
			zap.Int("inputs", len(inputs)),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return nil, ClassifyError(err)
	}

	if len(resp.Data) != len(inputs) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d inputs, got %d vectors", len(inputs), len(resp.Data))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at position %d", i)
		}
		vectors[i] = d.Embedding
	}

	c.logger.Debug("embedding request completed",
		zap.Int("inputs", len(inputs)),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Duration("elapsed", time.Since(start)))

	return vectors, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Endpoint returns the configured endpoint.
func (c *Client) Endpoint() string {
	return c.endpoint
}
