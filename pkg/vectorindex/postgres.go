package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/database"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
)

// PostgresStore persists entries in the engine database and scores
// similarity in-process with brute-force cosine. This avoids a vector
// extension and stays exact; schema metadata corpora are small enough
// (thousands of tables, not millions) that a full scan per query is
// cheap.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a store backed by the schema_embeddings table.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Upsert(ctx context.Context, collection string, entries []Entry) error {
	const query = `
		INSERT INTO schema_embeddings (collection, entry_id, source_id, qualified_name, embedding, record, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (collection, entry_id)
		DO UPDATE SET
			source_id = EXCLUDED.source_id,
			qualified_name = EXCLUDED.qualified_name,
			embedding = EXCLUDED.embedding,
			record = EXCLUDED.record,
			updated_at = now()
	`

	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin upsert transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, e := range entries {
		recordJSON, err := json.Marshal(e.Record)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", e.Record.QualifiedName, err)
		}
		if _, err := tx.Exec(ctx, query,
			collection, e.ID, e.Record.SourceID, e.Record.QualifiedName, e.Vector, recordJSON,
		); err != nil {
			return fmt.Errorf("upsert entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit upsert transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteCollection(ctx context.Context, collection string) error {
	if _, err := s.db.Pool.Exec(ctx,
		`DELETE FROM schema_embeddings WHERE collection = $1`, collection,
	); err != nil {
		return fmt.Errorf("delete collection %s: %w", collection, err)
	}
	return nil
}

func (s *PostgresStore) ListAll(ctx context.Context, collection string) ([]*metadata.TableMetadataRecord, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT record FROM schema_embeddings WHERE collection = $1 ORDER BY qualified_name`, collection)
	if err != nil {
		return nil, fmt.Errorf("list collection %s: %w", collection, err)
	}
	defer rows.Close()

	var records []*metadata.TableMetadataRecord
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		var record metadata.TableMetadataRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}

	return records, nil
}

func (s *PostgresStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Match, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT embedding, record FROM schema_embeddings WHERE collection = $1`, collection)
	if err != nil {
		return nil, fmt.Errorf("scan collection %s: %w", collection, err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var embedding []float32
		var raw []byte
		if err := rows.Scan(&embedding, &raw); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		var record metadata.TableMetadataRecord
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("unmarshal record: %w", err)
		}
		matches = append(matches, Match{
			Record:   &record,
			Distance: cosineDistance(vector, embedding),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}

	sortMatches(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

var _ Store = (*PostgresStore)(nil)
