package fingerprint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
)

func TestHashSchema_OrderIndependent(t *testing.T) {
	customers := TableColumns{
		TableName: "customers",
		Columns: []metadata.Column{
			{Name: "id", DeclaredType: "integer"},
			{Name: "name", DeclaredType: "text"},
		},
	}
	orders := TableColumns{
		TableName: "orders",
		Columns: []metadata.Column{
			{Name: "order_id", DeclaredType: "bigint"},
		},
	}

	forward := HashSchema([]TableColumns{customers, orders})
	reversed := HashSchema([]TableColumns{orders, customers})
	assert.Equal(t, forward, reversed)

	shuffledColumns := TableColumns{
		TableName: "customers",
		Columns: []metadata.Column{
			{Name: "name", DeclaredType: "text"},
			{Name: "id", DeclaredType: "integer"},
		},
	}
	assert.Equal(t, forward, HashSchema([]TableColumns{orders, shuffledColumns}))
}

func TestHashSchema_TypeChangeChangesHash(t *testing.T) {
	before := HashSchema([]TableColumns{{
		TableName: "customers",
		Columns:   []metadata.Column{{Name: "id", DeclaredType: "integer"}},
	}})
	after := HashSchema([]TableColumns{{
		TableName: "customers",
		Columns:   []metadata.Column{{Name: "id", DeclaredType: "bigint"}},
	}})
	assert.NotEqual(t, before, after)
}

func TestHashSchema_TableRenameChangesHash(t *testing.T) {
	columns := []metadata.Column{{Name: "id", DeclaredType: "integer"}}
	a := HashSchema([]TableColumns{{TableName: "customers", Columns: columns}})
	b := HashSchema([]TableColumns{{TableName: "clients", Columns: columns}})
	assert.NotEqual(t, a, b)
}

func TestHashSchema_Empty(t *testing.T) {
	assert.Equal(t, HashSchema(nil), HashSchema([]TableColumns{}))
}

func TestMemoryCache_HasChanged(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	changed, err := cache.HasChanged(ctx, "postgres", "public", "abc")
	require.NoError(t, err)
	assert.True(t, changed, "missing fingerprint must report changed")

	require.NoError(t, cache.Put(ctx, Fingerprint{
		SourceID:    "postgres",
		SchemaName:  "public",
		ContentHash: "abc",
	}))

	changed, err = cache.HasChanged(ctx, "postgres", "public", "abc")
	require.NoError(t, err)
	assert.False(t, changed)

	changed, err = cache.HasChanged(ctx, "postgres", "public", "def")
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestMemoryCache_PutReplaces(t *testing.T) {
	ctx := context.Background()
	cache := NewMemoryCache()

	require.NoError(t, cache.Put(ctx, Fingerprint{SourceID: "s", SchemaName: "public", ContentHash: "one"}))
	require.NoError(t, cache.Put(ctx, Fingerprint{SourceID: "s", SchemaName: "public", ContentHash: "two"}))

	fp, err := cache.Get(ctx, "s", "public")
	require.NoError(t, err)
	require.NotNil(t, fp)
	assert.Equal(t, "two", fp.ContentHash)
	assert.False(t, fp.IndexedAt.IsZero())
}
