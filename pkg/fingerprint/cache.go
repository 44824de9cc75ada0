package fingerprint

import (
	"context"
	"sync"
	"time"
)

// Cache stores schema fingerprints between indexing runs. The cache is
// advisory: a stale "changed" answer only costs redundant embedding
// work, so implementations favor availability over strictness.
type Cache interface {
	// Get returns the stored fingerprint, or nil when none exists.
	Get(ctx context.Context, sourceID, schemaName string) (*Fingerprint, error)

	// Put stores or replaces the fingerprint for its (source, schema) key.
	Put(ctx context.Context, fp Fingerprint) error

	// HasChanged reports whether the schema must be reindexed: true when
	// no prior fingerprint exists or the stored hash differs from newHash.
	HasChanged(ctx context.Context, sourceID, schemaName, newHash string) (bool, error)
}

// MemoryCache is an in-process Cache. Fingerprints do not survive a
// restart, so every schema looks changed on the first run.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]Fingerprint
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]Fingerprint)}
}

func (c *MemoryCache) Get(_ context.Context, sourceID, schemaName string) (*Fingerprint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	fp, ok := c.items[Key(sourceID, schemaName)]
	if !ok {
		return nil, nil
	}
	return &fp, nil
}

func (c *MemoryCache) Put(_ context.Context, fp Fingerprint) error {
	if fp.IndexedAt.IsZero() {
		fp.IndexedAt = time.Now().UTC()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[Key(fp.SourceID, fp.SchemaName)] = fp
	return nil
}

func (c *MemoryCache) HasChanged(ctx context.Context, sourceID, schemaName, newHash string) (bool, error) {
	fp, err := c.Get(ctx, sourceID, schemaName)
	if err != nil {
		return true, err
	}
	return fp == nil || fp.ContentHash != newHash, nil
}

var _ Cache = (*MemoryCache)(nil)
