package datasource

import "context"

// Adapter enumerates structural metadata from one connected datasource.
// Each implementation owns its connection and must be closed when done.
// All calls may fail with a source-unreachable or permission error; the
// indexing orchestrator treats these as per-table or per-schema skip
// conditions, not process-fatal.
type Adapter interface {
	// CatalogName returns the catalog (database) portion used in qualified
	// table names. Sources without a catalog concept return their database name.
	CatalogName(ctx context.Context) (string, error)

	// CurrentSchema returns the session's default schema.
	CurrentSchema(ctx context.Context) (string, error)

	// ListSchemas returns all user schemas (excludes system schemas).
	ListSchemas(ctx context.Context) ([]string, error)

	// ListTables returns tables and views in a schema.
	ListTables(ctx context.Context, schemaName string) ([]TableInfo, error)

	// DescribeColumns returns columns for a table in the source's natural
	// column order.
	DescribeColumns(ctx context.Context, schemaName, tableName string) ([]ColumnInfo, error)

	// SampleRows returns up to limit rows with stringified values, used only
	// to enrich metadata documents.
	SampleRows(ctx context.Context, schemaName, tableName string, limit int) (*SampleSet, error)

	// RowCountEstimate returns an approximate row count, or nil when the
	// source cannot provide one cheaply.
	RowCountEstimate(ctx context.Context, schemaName, tableName string) (*int64, error)

	// Close releases the database connection.
	Close() error
}

// TableType distinguishes base tables from views.
type TableType string

const (
	TableTypeBase TableType = "BASE TABLE"
	TableTypeView TableType = "VIEW"
)

// TableInfo represents a discovered table or view.
type TableInfo struct {
	Name string
	Type TableType
}

// ColumnInfo represents a discovered column.
type ColumnInfo struct {
	Name       string
	DataType   string
	IsNullable bool
}

// SampleSet holds a bounded sample of rows with stringified values.
// Row order is whatever the source returned; it carries no meaning.
type SampleSet struct {
	Columns []string
	Rows    [][]string
}
