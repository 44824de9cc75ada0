package vectorindex

import (
	"context"
	"sync"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
)

// MemoryStore is an in-process Store for tests and small local runs.
// Nothing survives a restart.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]map[string]Entry)}
}

func (s *MemoryStore) Upsert(_ context.Context, collection string, entries []Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll, ok := s.collections[collection]
	if !ok {
		coll = make(map[string]Entry)
		s.collections[collection] = coll
	}
	for _, e := range entries {
		coll[e.ID] = e
	}
	return nil
}

func (s *MemoryStore) DeleteCollection(_ context.Context, collection string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collections, collection)
	return nil
}

func (s *MemoryStore) ListAll(_ context.Context, collection string) ([]*metadata.TableMetadataRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]
	records := make([]*metadata.TableMetadataRecord, 0, len(coll))
	for _, e := range coll {
		records = append(records, e.Record)
	}
	return records, nil
}

func (s *MemoryStore) Search(_ context.Context, collection string, vector []float32, limit int) ([]Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coll := s.collections[collection]
	matches := make([]Match, 0, len(coll))
	for _, e := range coll {
		matches = append(matches, Match{
			Record:   e.Record,
			Distance: cosineDistance(vector, e.Vector),
		})
	}

	sortMatches(matches)
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

var _ Store = (*MemoryStore)(nil)
