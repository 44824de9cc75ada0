package config

import (
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the schema retrieval engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	Env     string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version string `yaml:"-"` // Set at load time, not from config

	// Index holds vector index and build settings.
	Index IndexConfig `yaml:"index"`

	// Embedding holds the embedding provider endpoint settings.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Engine holds the engine's own PostgreSQL database settings, used by the
	// postgres vector index backend and the fingerprint store.
	Engine EngineDBConfig `yaml:"engine_db"`

	// Milvus holds the milvus backend settings (only read when
	// index.backend is "milvus").
	Milvus MilvusConfig `yaml:"milvus"`

	// Retrieval holds query-time ranking settings.
	Retrieval RetrievalConfig `yaml:"retrieval"`

	// SourcesFile is the path to the YAML file declaring datasources and
	// source-detection keyword rules.
	SourcesFile string `yaml:"sources_file" env:"SOURCES_FILE" env-default:"sources.yaml"`
}

// IndexConfig holds vector index lifecycle and build settings.
type IndexConfig struct {
	// Backend selects the vector index implementation: memory, postgres, milvus.
	Backend string `yaml:"backend" env:"INDEX_BACKEND" env-default:"postgres"`
	// CollectionName is the named partition of the index holding schema entries.
	CollectionName string `yaml:"collection_name" env:"INDEX_COLLECTION" env-default:"database_schemas"`
	// SampleRowLimit bounds the number of sample rows rendered into documents.
	// Zero disables sample data entirely.
	SampleRowLimit int `yaml:"sample_row_limit" env:"INDEX_SAMPLE_ROW_LIMIT" env-default:"3"`
	// MaxTables caps tables indexed per run. Zero means no cap.
	MaxTables int `yaml:"max_tables" env:"INDEX_MAX_TABLES" env-default:"0"`
	// IncludeViews controls whether views are indexed alongside base tables.
	IncludeViews bool `yaml:"include_views" env:"INDEX_INCLUDE_VIEWS" env-default:"true"`
	// Concurrency bounds concurrent per-table metadata tasks within a schema.
	Concurrency int `yaml:"concurrency" env:"INDEX_CONCURRENCY" env-default:"6"`
}

// EmbeddingConfig holds the OpenAI-compatible embedding endpoint settings.
type EmbeddingConfig struct {
	Endpoint string `yaml:"endpoint" env:"EMBEDDING_ENDPOINT" env-default:"https://api.openai.com/v1"`
	Model    string `yaml:"model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey   string `yaml:"-" env:"EMBEDDING_API_KEY"` // Secret - not in YAML
	// BatchSize caps inputs per embedding request.
	BatchSize int `yaml:"batch_size" env:"EMBEDDING_BATCH_SIZE" env-default:"64"`
}

// EngineDBConfig holds the engine's PostgreSQL database configuration.
type EngineDBConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"dqagent"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"dqagent"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
}

// ConnectionString returns a PostgreSQL connection string.
func (c *EngineDBConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// MilvusConfig holds milvus connection settings.
type MilvusConfig struct {
	Address        string `yaml:"address" env:"MILVUS_ADDRESS" env-default:"localhost:19530"`
	Username       string `yaml:"username" env:"MILVUS_USERNAME" env-default:""`
	Password       string `yaml:"-" env:"MILVUS_PASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"MILVUS_DATABASE" env-default:""`
	TimeoutSeconds int    `yaml:"timeout_seconds" env:"MILVUS_TIMEOUT_SECONDS" env-default:"10"`
	// Dimension must match the embedding model's output size. Milvus requires
	// it at collection creation; the other backends infer it from stored data.
	Dimension int `yaml:"dimension" env:"MILVUS_DIMENSION" env-default:"1536"`
}

// RetrievalConfig holds query-time ranking settings.
// Boost weights are the named constants behind the additive-capped scheme;
// callers that need different weights change config, not code.
type RetrievalConfig struct {
	TopK         int     `yaml:"top_k" env:"RETRIEVAL_TOP_K" env-default:"3"`
	MinRelevance float64 `yaml:"min_relevance" env:"RETRIEVAL_MIN_RELEVANCE" env-default:"0.20"`
	SourceBoost  float64 `yaml:"source_boost" env:"RETRIEVAL_SOURCE_BOOST" env-default:"0.30"`
	NameBoost    float64 `yaml:"name_boost" env:"RETRIEVAL_NAME_BOOST" env-default:"0.20"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Index.Backend {
	case "memory", "postgres", "milvus":
	default:
		return fmt.Errorf("invalid index backend %q (want memory, postgres or milvus)", c.Index.Backend)
	}
	if c.Index.Concurrency < 1 {
		return fmt.Errorf("index concurrency must be at least 1, got %d", c.Index.Concurrency)
	}
	if c.Retrieval.MinRelevance < 0 || c.Retrieval.MinRelevance > 1 {
		return fmt.Errorf("min_relevance must be in [0,1], got %v", c.Retrieval.MinRelevance)
	}
	return nil
}
