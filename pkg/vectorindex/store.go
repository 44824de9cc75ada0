// Package vectorindex owns the persistent vector index: upserting table
// metadata with embeddings, collection lifecycle, enumeration, and
// similarity search.
package vectorindex

import (
	"context"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
)

// Entry is one indexed table: its deterministic id, embedding vector and
// full metadata record.
type Entry struct {
	ID     string
	Vector []float32
	Record *metadata.TableMetadataRecord
}

// Match is a similarity search hit. Distance is normalized to [0,1],
// where 0 means identical direction and 1 means opposite; callers turn
// it into a relevance score as 1 - distance.
type Match struct {
	Record   *metadata.TableMetadataRecord
	Distance float64
}

// Store is the persistent vector index.
//
// Upsert is idempotent per entry id: re-upserting an id replaces the
// prior embedding and metadata. Search and ListAll against a collection
// that does not exist return empty results, not an error, so retrieval
// degrades to "no candidates". Search results are ordered by ascending
// distance with ties broken by qualified_name ascending.
type Store interface {
	Upsert(ctx context.Context, collection string, entries []Entry) error
	DeleteCollection(ctx context.Context, collection string) error
	ListAll(ctx context.Context, collection string) ([]*metadata.TableMetadataRecord, error)
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]Match, error)
}
