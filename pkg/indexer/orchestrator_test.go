package indexer

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/embedding"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/fingerprint"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/preference"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/retry"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/vectorindex"
)

const testCollection = "database_schemas"

type fixture struct {
	store        *vectorindex.MemoryStore
	provider     *embedding.MockProvider
	fingerprints *fingerprint.MemoryCache
	mapper       *preference.Mapper
	orchestrator *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := vectorindex.NewMemoryStore()
	provider := &embedding.MockProvider{}
	cache := fingerprint.NewMemoryCache()
	mapper := preference.NewMapper([]string{"postgres", "snowflake"}, nil,
		func(ctx context.Context) ([]*metadata.TableMetadataRecord, error) {
			return store.ListAll(ctx, testCollection)
		})
	orch := NewOrchestrator(store, provider, cache, mapper, Config{
		Collection:     testCollection,
		SampleRowLimit: 3,
		IncludeViews:   true,
		Concurrency:    2,
	}, nil)
	orch.retryCfg = fastRetry()
	return &fixture{store: store, provider: provider, fingerprints: cache, mapper: mapper, orchestrator: orch}
}

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}
}

// twoTableAdapter serves a single schema with customers and orders.
func twoTableAdapter() *datasource.MockAdapter {
	return &datasource.MockAdapter{
		CatalogNameFunc: func(context.Context) (string, error) { return "appdb", nil },
		ListSchemasFunc: func(context.Context) ([]string, error) { return []string{"public"}, nil },
		ListTablesFunc: func(_ context.Context, schema string) ([]datasource.TableInfo, error) {
			return []datasource.TableInfo{
				{Name: "customers", Type: datasource.TableTypeBase},
				{Name: "orders", Type: datasource.TableTypeBase},
			}, nil
		},
		DescribeColumnsFunc: func(_ context.Context, _, table string) ([]datasource.ColumnInfo, error) {
			return []datasource.ColumnInfo{
				{Name: "id", DataType: "integer"},
				{Name: "created_at", DataType: "timestamptz", IsNullable: true},
			}, nil
		},
	}
}

func TestBuild_IndexesAllTables(t *testing.T) {
	f := newFixture(t)

	summary, err := f.orchestrator.Build(context.Background(), "postgres", twoTableAdapter(), AllSchemas(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SchemasProcessed)
	assert.Equal(t, 2, summary.TablesIndexed)
	assert.Zero(t, summary.TablesSkipped)

	records, err := f.store.ListAll(context.Background(), testCollection)
	require.NoError(t, err)
	require.Len(t, records, 2)

	names := []string{records[0].QualifiedName, records[1].QualifiedName}
	assert.ElementsMatch(t, []string{"appdb.public.customers", "appdb.public.orders"}, names)
}

func TestBuild_FingerprintShortCircuit(t *testing.T) {
	f := newFixture(t)
	adapter := twoTableAdapter()

	first, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.NoError(t, err)
	require.Equal(t, 2, first.TablesIndexed)
	firstEmbedCalls := f.provider.EmbedBatchCalls

	second, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.NoError(t, err)

	assert.Zero(t, second.TablesIndexed, "unchanged schema must not be re-embedded")
	assert.Equal(t, 1, second.SchemasSkipped)
	assert.Equal(t, firstEmbedCalls, f.provider.EmbedBatchCalls)
}

func TestBuild_SchemaChangeTriggersReindex(t *testing.T) {
	f := newFixture(t)
	adapter := twoTableAdapter()

	_, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.NoError(t, err)

	adapter.DescribeColumnsFunc = func(_ context.Context, _, table string) ([]datasource.ColumnInfo, error) {
		return []datasource.ColumnInfo{{Name: "id", DataType: "bigint"}}, nil
	}

	summary, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TablesIndexed)
}

func TestBuild_RecreateReplacesCollection(t *testing.T) {
	f := newFixture(t)

	_, err := f.orchestrator.Build(context.Background(), "postgres", twoTableAdapter(), AllSchemas(), false)
	require.NoError(t, err)

	replacement := &datasource.MockAdapter{
		CatalogNameFunc: func(context.Context) (string, error) { return "salesdw", nil },
		ListSchemasFunc: func(context.Context) ([]string, error) { return []string{"analytics"}, nil },
		ListTablesFunc: func(_ context.Context, _ string) ([]datasource.TableInfo, error) {
			return []datasource.TableInfo{{Name: "facts", Type: datasource.TableTypeBase}}, nil
		},
		DescribeColumnsFunc: func(_ context.Context, _, _ string) ([]datasource.ColumnInfo, error) {
			return []datasource.ColumnInfo{{Name: "id", DataType: "integer"}}, nil
		},
	}

	summary, err := f.orchestrator.Build(context.Background(), "snowflake", replacement, AllSchemas(), true)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TablesIndexed)

	records, err := f.store.ListAll(context.Background(), testCollection)
	require.NoError(t, err)
	require.Len(t, records, 1, "recreate must drop everything from prior builds")
	assert.Equal(t, "salesdw.analytics.facts", records[0].QualifiedName)
}

func TestBuild_RecreateIgnoresFingerprints(t *testing.T) {
	f := newFixture(t)
	adapter := twoTableAdapter()

	_, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.NoError(t, err)

	summary, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), true)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TablesIndexed, "recreate treats every schema as changed")
}

func TestBuild_SkipsTableWithoutColumns(t *testing.T) {
	f := newFixture(t)
	adapter := twoTableAdapter()
	adapter.DescribeColumnsFunc = func(_ context.Context, _, table string) ([]datasource.ColumnInfo, error) {
		if table == "orders" {
			return nil, nil
		}
		return []datasource.ColumnInfo{{Name: "id", DataType: "integer"}}, nil
	}

	summary, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TablesIndexed)
	assert.Equal(t, 1, summary.TablesSkipped)
	require.Len(t, summary.SkipReasons, 1)
	assert.Contains(t, summary.SkipReasons[0], "orders")
}

func TestBuild_SkipsTableOnDescribeFailure(t *testing.T) {
	f := newFixture(t)
	adapter := twoTableAdapter()
	adapter.DescribeColumnsFunc = func(_ context.Context, _, table string) ([]datasource.ColumnInfo, error) {
		if table == "customers" {
			return nil, errors.New("permission denied")
		}
		return []datasource.ColumnInfo{{Name: "id", DataType: "integer"}}, nil
	}

	summary, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.TablesIndexed)
	assert.Equal(t, 1, summary.TablesSkipped)
}

func TestBuild_SampleFailureDoesNotSkipTable(t *testing.T) {
	f := newFixture(t)
	adapter := twoTableAdapter()
	adapter.SampleRowsFunc = func(_ context.Context, _, _ string, _ int) (*datasource.SampleSet, error) {
		return nil, errors.New("permission denied on select")
	}

	summary, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.TablesIndexed, "tables index without samples when sampling fails")
	assert.Zero(t, summary.TablesSkipped)
}

func TestBuild_PermanentEmbeddingFailureAbortsRun(t *testing.T) {
	f := newFixture(t)
	f.provider.EmbedBatchFunc = func(context.Context, []string) ([][]float32, error) {
		return nil, &embedding.Error{Message: "authentication failed", Retryable: false}
	}

	_, err := f.orchestrator.Build(context.Background(), "postgres", twoTableAdapter(), AllSchemas(), false)
	require.Error(t, err)

	records, listErr := f.store.ListAll(context.Background(), testCollection)
	require.NoError(t, listErr)
	assert.Empty(t, records)
}

func TestBuild_PermanentEmbeddingFailurePreservesCommittedSchemas(t *testing.T) {
	f := newFixture(t)
	adapter := twoTableAdapter()
	adapter.ListSchemasFunc = func(context.Context) ([]string, error) {
		return []string{"public", "audit"}, nil
	}

	f.provider.EmbedBatchFunc = func(_ context.Context, inputs []string) ([][]float32, error) {
		if f.provider.EmbedBatchCalls > 1 {
			return nil, &embedding.Error{Message: "authentication failed", Retryable: false}
		}
		vectors := make([][]float32, len(inputs))
		for i := range vectors {
			vectors[i] = []float32{1, 0, 0}
		}
		return vectors, nil
	}

	summary, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.Error(t, err)
	assert.Equal(t, 1, summary.SchemasProcessed, "first schema stays committed")

	records, listErr := f.store.ListAll(context.Background(), testCollection)
	require.NoError(t, listErr)
	assert.Len(t, records, 2)

	// The committed schema keeps its fingerprint; the aborted one has none
	// and will be retried next run.
	fp, fpErr := f.fingerprints.Get(context.Background(), "postgres", "public")
	require.NoError(t, fpErr)
	assert.NotNil(t, fp)
	fp, fpErr = f.fingerprints.Get(context.Background(), "postgres", "audit")
	require.NoError(t, fpErr)
	assert.Nil(t, fp)
}

func TestBuild_TransientEmbeddingFailureSkipsSchemaAndContinues(t *testing.T) {
	f := newFixture(t)
	adapter := twoTableAdapter()
	adapter.ListSchemasFunc = func(context.Context) ([]string, error) {
		return []string{"public", "audit"}, nil
	}

	// The first schema's batch fails after the client exhausted its own
	// retries; the second schema must still be embedded and committed.
	f.provider.EmbedBatchFunc = func(_ context.Context, inputs []string) ([][]float32, error) {
		if f.provider.EmbedBatchCalls == 1 {
			return nil, &embedding.Error{Message: "rate limited", Retryable: true}
		}
		vectors := make([][]float32, len(inputs))
		for i := range vectors {
			vectors[i] = []float32{1, 0, 0}
		}
		return vectors, nil
	}

	summary, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.NoError(t, err, "a transient batch failure must not abort the run")

	assert.Equal(t, 1, summary.SchemasProcessed)
	assert.Equal(t, 1, summary.SchemasSkipped)
	require.NotEmpty(t, summary.SkipReasons)
	assert.Contains(t, summary.SkipReasons[0], "embed batch failed")

	// The skipped schema has no fingerprint, so the next run retries it.
	fp, fpErr := f.fingerprints.Get(context.Background(), "postgres", "public")
	require.NoError(t, fpErr)
	assert.Nil(t, fp)
	fp, fpErr = f.fingerprints.Get(context.Background(), "postgres", "audit")
	require.NoError(t, fpErr)
	assert.NotNil(t, fp)
}

func TestBuild_RetriesTransientListTables(t *testing.T) {
	f := newFixture(t)
	adapter := twoTableAdapter()

	listCalls := 0
	underlying := adapter.ListTablesFunc
	adapter.ListTablesFunc = func(ctx context.Context, schema string) ([]datasource.TableInfo, error) {
		listCalls++
		if listCalls == 1 {
			return nil, errors.New("dial tcp: connection refused")
		}
		return underlying(ctx, schema)
	}

	summary, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, listCalls, "transient listing failure must be retried")
	assert.Equal(t, 2, summary.TablesIndexed)
	assert.Zero(t, summary.SchemasSkipped)
}

// flakyStore fails the first Upsert attempts with a transient error.
type flakyStore struct {
	*vectorindex.MemoryStore
	upsertFailures int
	upsertCalls    int
}

func (s *flakyStore) Upsert(ctx context.Context, collection string, entries []vectorindex.Entry) error {
	s.upsertCalls++
	if s.upsertCalls <= s.upsertFailures {
		return errors.New("write: connection reset by peer")
	}
	return s.MemoryStore.Upsert(ctx, collection, entries)
}

func TestBuild_RetriesTransientUpsert(t *testing.T) {
	store := &flakyStore{MemoryStore: vectorindex.NewMemoryStore(), upsertFailures: 1}
	mapper := preference.NewMapper([]string{"postgres"}, nil,
		func(ctx context.Context) ([]*metadata.TableMetadataRecord, error) {
			return store.ListAll(ctx, testCollection)
		})
	orch := NewOrchestrator(store, &embedding.MockProvider{}, fingerprint.NewMemoryCache(), mapper, Config{
		Collection:  testCollection,
		Concurrency: 2,
	}, nil)
	orch.retryCfg = fastRetry()

	summary, err := orch.Build(context.Background(), "postgres", twoTableAdapter(), AllSchemas(), false)
	require.NoError(t, err)

	assert.Equal(t, 2, store.upsertCalls, "transient write failure must be retried")
	assert.Equal(t, 2, summary.TablesIndexed)
	assert.Zero(t, summary.SchemasSkipped)

	records, listErr := store.ListAll(context.Background(), testCollection)
	require.NoError(t, listErr)
	assert.Len(t, records, 2)
}

func TestBuild_ExcludesViewsWhenConfigured(t *testing.T) {
	f := newFixture(t)
	f.orchestrator.config.IncludeViews = false

	adapter := twoTableAdapter()
	adapter.ListTablesFunc = func(_ context.Context, _ string) ([]datasource.TableInfo, error) {
		return []datasource.TableInfo{
			{Name: "customers", Type: datasource.TableTypeBase},
			{Name: "active_customers", Type: datasource.TableTypeView},
		}, nil
	}

	summary, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.TablesIndexed)
}

func TestBuild_MaxTablesCap(t *testing.T) {
	f := newFixture(t)
	f.orchestrator.config.MaxTables = 2

	adapter := twoTableAdapter()
	adapter.ListTablesFunc = func(_ context.Context, _ string) ([]datasource.TableInfo, error) {
		var tables []datasource.TableInfo
		for i := 0; i < 5; i++ {
			tables = append(tables, datasource.TableInfo{
				Name: fmt.Sprintf("t%d", i), Type: datasource.TableTypeBase,
			})
		}
		return tables, nil
	}

	summary, err := f.orchestrator.Build(context.Background(), "postgres", adapter, AllSchemas(), false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TablesIndexed)
}

func TestBuild_CancelledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orchestrator.Build(ctx, "postgres", twoTableAdapter(), AllSchemas(), false)
	assert.ErrorIs(t, err, context.Canceled)
}
