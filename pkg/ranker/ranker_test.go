package ranker

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/embedding"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/preference"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/vectorindex"
)

const testCollection = "database_schemas"

// vecWithCos returns a unit vector whose cosine similarity to the query
// vector {1, 0} is exactly c, which makes base_score = (1+c)/2.
func vecWithCos(c float64) []float32 {
	return []float32{float32(c), float32(math.Sqrt(1 - c*c))}
}

func queryVector() []float32 { return []float32{1, 0} }

func indexedRecord(sourceID, qualifiedName, shortName string) *metadata.TableMetadataRecord {
	return &metadata.TableMetadataRecord{
		SourceID:      sourceID,
		QualifiedName: qualifiedName,
		ShortName:     shortName,
		Columns:       []metadata.Column{{Name: "id", DeclaredType: "integer"}},
	}
}

func newTestSearcher(t *testing.T, store vectorindex.Store, sourceIDs []string) *Searcher {
	t.Helper()
	provider := &embedding.MockProvider{
		EmbedFunc: func(context.Context, string) ([]float32, error) {
			return queryVector(), nil
		},
	}
	mapper := preference.NewMapper(sourceIDs, nil, func(ctx context.Context) ([]*metadata.TableMetadataRecord, error) {
		return store.ListAll(ctx, testCollection)
	})
	return NewSearcher(store, provider, mapper, Config{Collection: testCollection}, nil)
}

func upsert(t *testing.T, store vectorindex.Store, record *metadata.TableMetadataRecord, vector []float32) {
	t.Helper()
	require.NoError(t, store.Upsert(context.Background(), testCollection, []vectorindex.Entry{
		{ID: record.EntryID(), Vector: vector, Record: record},
	}))
}

func TestSearch_SourceHintWins(t *testing.T) {
	store := vectorindex.NewMemoryStore()
	snowflake := indexedRecord("snowflake", "SALES.PUBLIC.CUSTOMERS", "CUSTOMERS")
	postgres := indexedRecord("postgres", "appdb.public.customers", "customers")

	// The postgres table is semantically closer, but the explicit
	// "snowflake" mention outweighs the similarity gap.
	upsert(t, store, snowflake, vecWithCos(-0.4)) // base 0.30
	upsert(t, store, postgres, vecWithCos(-0.2))  // base 0.40

	s := newTestSearcher(t, store, []string{"snowflake", "postgres"})
	result, err := s.Search(context.Background(), "snowflake customers", 3, 0.1)
	require.NoError(t, err)

	require.NotEmpty(t, result.Candidates)
	top := result.Candidates[0]
	assert.Equal(t, "snowflake", top.Record.SourceID)
	assert.Equal(t, 1, top.Rank)
	assert.Greater(t, top.BoostedScore, top.BaseScore)
}

func TestSearch_NoHintsMeansNoBoosts(t *testing.T) {
	store := vectorindex.NewMemoryStore()
	upsert(t, store, indexedRecord("postgres", "appdb.public.shipments", "shipments"), vecWithCos(0.6))
	upsert(t, store, indexedRecord("snowflake", "SALES.PUBLIC.INVENTORY", "INVENTORY"), vecWithCos(0.2))

	s := newTestSearcher(t, store, []string{"snowflake", "postgres"})
	result, err := s.Search(context.Background(), "total revenue last quarter", 3, 0.1)
	require.NoError(t, err)

	require.Len(t, result.Candidates, 2)
	for _, c := range result.Candidates {
		assert.Equal(t, c.BaseScore, c.BoostedScore, "no signal fired for %s", c.Record.QualifiedName)
	}
	assert.Equal(t, "appdb.public.shipments", result.Candidates[0].Record.QualifiedName)
}

func TestSearch_NearMissWhenNothingMeetsThreshold(t *testing.T) {
	store := vectorindex.NewMemoryStore()
	upsert(t, store, indexedRecord("postgres", "appdb.public.shipments", "shipments"), vecWithCos(0.2))

	s := newTestSearcher(t, store, []string{"postgres"})
	result, err := s.Search(context.Background(), "quarterly marketing spend", 3, 0.9)
	require.NoError(t, err)

	assert.Empty(t, result.Candidates)
	require.NotNil(t, result.NearMiss)
	assert.Equal(t, "appdb.public.shipments", result.NearMiss.Record.QualifiedName)
	assert.InDelta(t, 0.6, result.NearMiss.BoostedScore, 1e-6)
}

func TestSearch_ThresholdIsInclusive(t *testing.T) {
	store := vectorindex.NewMemoryStore()
	upsert(t, store, indexedRecord("postgres", "appdb.public.shipments", "shipments"), queryVector())

	s := newTestSearcher(t, store, []string{"postgres"})
	// base_score is exactly 1.0; an inclusive bound keeps it.
	result, err := s.Search(context.Background(), "warehouse outbound volume", 3, 1.0)
	require.NoError(t, err)

	require.Len(t, result.Candidates, 1)
	assert.Nil(t, result.NearMiss)
}

func TestSearch_BoostMonotonicity(t *testing.T) {
	store := vectorindex.NewMemoryStore()
	preferred := indexedRecord("snowflake", "SALES.PUBLIC.ZONES", "ZONES")
	other := indexedRecord("postgres", "appdb.public.areas", "areas")

	upsert(t, store, preferred, vecWithCos(0.0))
	upsert(t, store, other, vecWithCos(0.0))

	s := newTestSearcher(t, store, []string{"snowflake", "postgres"})
	result, err := s.Search(context.Background(), "snowflake coverage regions", 3, 0.1)
	require.NoError(t, err)

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, "snowflake", result.Candidates[0].Record.SourceID)
	assert.Greater(t, result.Candidates[0].BoostedScore, result.Candidates[1].BoostedScore)
}

func TestSearch_NameMatchHandlesPlurals(t *testing.T) {
	store := vectorindex.NewMemoryStore()
	upsert(t, store, indexedRecord("postgres", "appdb.public.customer", "customer"), vecWithCos(0.0))
	upsert(t, store, indexedRecord("postgres", "appdb.public.vendor_feed", "vendor_feed"), vecWithCos(0.0))

	s := newTestSearcher(t, store, []string{"postgres"})
	result, err := s.Search(context.Background(), "customers by region", 3, 0.1)
	require.NoError(t, err)

	require.Len(t, result.Candidates, 2)
	top := result.Candidates[0]
	assert.Equal(t, "appdb.public.customer", top.Record.QualifiedName)
	assert.InDelta(t, NameBoost, top.BoostedScore-top.BaseScore, 1e-6)
}

func TestSearch_EmptyIndex(t *testing.T) {
	store := vectorindex.NewMemoryStore()
	s := newTestSearcher(t, store, []string{"postgres"})

	result, err := s.Search(context.Background(), "anything at all", 3, 0.2)
	require.NoError(t, err)
	assert.Empty(t, result.Candidates)
	assert.Nil(t, result.NearMiss)
}

func TestSearch_TopKLimitsResults(t *testing.T) {
	store := vectorindex.NewMemoryStore()
	upsert(t, store, indexedRecord("postgres", "appdb.public.aa", "aa"), vecWithCos(0.9))
	upsert(t, store, indexedRecord("postgres", "appdb.public.bb", "bb"), vecWithCos(0.8))
	upsert(t, store, indexedRecord("postgres", "appdb.public.cc", "cc"), vecWithCos(0.7))

	s := newTestSearcher(t, store, []string{"postgres"})
	result, err := s.Search(context.Background(), "shipment history", 2, 0.1)
	require.NoError(t, err)

	require.Len(t, result.Candidates, 2)
	assert.Equal(t, []int{1, 2}, []int{result.Candidates[0].Rank, result.Candidates[1].Rank})
}

func TestSearch_RejectsBadArguments(t *testing.T) {
	store := vectorindex.NewMemoryStore()
	s := newTestSearcher(t, store, nil)

	_, err := s.Search(context.Background(), "   ", 3, 0.2)
	assert.Error(t, err)

	_, err = s.Search(context.Background(), "valid query", 0, 0.2)
	assert.Error(t, err)
}
