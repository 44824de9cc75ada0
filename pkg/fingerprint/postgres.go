package fingerprint

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/database"
)

// PostgresCache persists fingerprints in the engine database so the
// skip-if-unchanged check survives restarts.
type PostgresCache struct {
	db *database.DB
}

// NewPostgresCache creates a cache backed by the engine database.
func NewPostgresCache(db *database.DB) *PostgresCache {
	return &PostgresCache{db: db}
}

func (c *PostgresCache) Get(ctx context.Context, sourceID, schemaName string) (*Fingerprint, error) {
	const query = `
		SELECT source_id, schema_name, content_hash, indexed_at
		FROM schema_fingerprints
		WHERE source_id = $1 AND schema_name = $2
	`

	var fp Fingerprint
	err := c.db.Pool.QueryRow(ctx, query, sourceID, schemaName).
		Scan(&fp.SourceID, &fp.SchemaName, &fp.ContentHash, &fp.IndexedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query fingerprint: %w", err)
	}
	return &fp, nil
}

func (c *PostgresCache) Put(ctx context.Context, fp Fingerprint) error {
	if fp.IndexedAt.IsZero() {
		fp.IndexedAt = time.Now().UTC()
	}

	const query = `
		INSERT INTO schema_fingerprints (source_id, schema_name, content_hash, indexed_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (source_id, schema_name)
		DO UPDATE SET content_hash = EXCLUDED.content_hash, indexed_at = EXCLUDED.indexed_at
	`

	if _, err := c.db.Pool.Exec(ctx, query, fp.SourceID, fp.SchemaName, fp.ContentHash, fp.IndexedAt); err != nil {
		return fmt.Errorf("store fingerprint: %w", err)
	}
	return nil
}

func (c *PostgresCache) HasChanged(ctx context.Context, sourceID, schemaName, newHash string) (bool, error) {
	fp, err := c.Get(ctx, sourceID, schemaName)
	if err != nil {
		return true, err
	}
	return fp == nil || fp.ContentHash != newHash, nil
}

var _ Cache = (*PostgresCache)(nil)
