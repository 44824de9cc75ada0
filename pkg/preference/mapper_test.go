package preference

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/config"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
)

func record(sourceID, qualifiedName string) *metadata.TableMetadataRecord {
	return &metadata.TableMetadataRecord{SourceID: sourceID, QualifiedName: qualifiedName}
}

func TestRebuild_TokensFromLeadingSegment(t *testing.T) {
	mapping := Rebuild([]*metadata.TableMetadataRecord{
		record("snowflake", "SALES_DW.PUBLIC.CUSTOMERS"),
		record("postgres", "appdb.public.orders"),
	})

	assert.Equal(t, "snowflake", mapping["sales"])
	assert.Equal(t, "postgres", mapping["appdb"])
	_, hasDW := mapping["dw"]
	assert.False(t, hasDW, "tokens shorter than 3 chars are discarded")
	_, hasTable := mapping["customers"]
	assert.False(t, hasTable, "only the leading path segment contributes tokens")
}

func TestRebuild_MostFrequentSourceWins(t *testing.T) {
	mapping := Rebuild([]*metadata.TableMetadataRecord{
		record("postgres", "warehouse.public.a"),
		record("snowflake", "warehouse.public.b"),
		record("snowflake", "warehouse.public.c"),
	})
	assert.Equal(t, "snowflake", mapping["warehouse"])
}

func TestRebuild_TieGoesToFirstSeen(t *testing.T) {
	mapping := Rebuild([]*metadata.TableMetadataRecord{
		record("postgres", "warehouse.public.a"),
		record("snowflake", "warehouse.public.b"),
	})
	assert.Equal(t, "postgres", mapping["warehouse"])
}

func TestDetect_ExplicitSourceNameWins(t *testing.T) {
	m := NewMapper([]string{"snowflake", "postgres"}, nil, listOf(
		record("postgres", "snowflake_mirror.public.t"),
	))

	got, err := m.Detect(context.Background(), "show snowflake customers")
	require.NoError(t, err)
	assert.Equal(t, "snowflake", got)
}

func TestDetect_MultipleSourceNamesIsAmbiguous(t *testing.T) {
	m := NewMapper([]string{"snowflake", "postgres"}, nil, listOf(
		record("postgres", "appdb.public.orders"),
	))

	got, err := m.Detect(context.Background(), "compare snowflake and postgres customers")
	require.NoError(t, err)
	assert.Empty(t, got, "naming several sources gives none of them a boost")
}

func TestDetect_KeywordRuleBeforeLearnedMapping(t *testing.T) {
	rules := []config.KeywordRule{{Pattern: "warehouse", SourceID: "snowflake"}}
	m := NewMapper([]string{"snowflake", "postgres"}, rules, listOf(
		record("postgres", "warehouse.public.t"),
	))

	got, err := m.Detect(context.Background(), "warehouse revenue by month")
	require.NoError(t, err)
	assert.Equal(t, "snowflake", got)
}

func TestDetect_LearnedMapping(t *testing.T) {
	m := NewMapper([]string{"snowflake", "postgres"}, nil, listOf(
		record("postgres", "appdb.public.orders"),
	))

	got, err := m.Detect(context.Background(), "orders in appdb")
	require.NoError(t, err)
	assert.Equal(t, "postgres", got)
}

func TestDetect_NoPreference(t *testing.T) {
	m := NewMapper([]string{"snowflake", "postgres"}, nil, listOf(
		record("postgres", "appdb.public.orders"),
	))

	got, err := m.Detect(context.Background(), "total revenue last quarter")
	require.NoError(t, err)
	assert.Empty(t, got, "no signal is a valid result, not an error")
}

func TestInvalidate_RebuildsOnNextDetect(t *testing.T) {
	records := []*metadata.TableMetadataRecord{
		record("postgres", "appdb.public.orders"),
	}
	calls := 0
	m := NewMapper([]string{"snowflake", "postgres"}, nil, func(context.Context) ([]*metadata.TableMetadataRecord, error) {
		calls++
		return records, nil
	})

	_, err := m.Detect(context.Background(), "appdb orders")
	require.NoError(t, err)
	_, err = m.Detect(context.Background(), "appdb orders")
	require.NoError(t, err)
	assert.Equal(t, 1, calls, "mapping is cached between detects")

	records = append(records, record("snowflake", "salesdw.public.customers"))
	m.Invalidate()

	got, err := m.Detect(context.Background(), "salesdw customers")
	require.NoError(t, err)
	assert.Equal(t, "snowflake", got)
	assert.Equal(t, 2, calls)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"sales", "revenue", "2024"}, Tokenize("Sales/revenue (2024) q1"))
	assert.Empty(t, Tokenize("a b c"))
}

func listOf(records ...*metadata.TableMetadataRecord) ListRecordsFunc {
	return func(context.Context) ([]*metadata.TableMetadataRecord, error) {
		return records, nil
	}
}
