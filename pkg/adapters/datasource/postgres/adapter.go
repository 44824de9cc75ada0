package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/apperrors"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/logging"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/sqlsafe"
)

// Adapter implements datasource.Adapter for PostgreSQL.
type Adapter struct {
	pool   *pgxpool.Pool
	config *Config
	logger *zap.Logger
}

// NewAdapter connects to PostgreSQL and verifies the connection.
// If logger is nil, a no-op logger is used.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pool, err := pgxpool.New(ctx, cfg.connectionString())
	if err != nil {
		return nil, fmt.Errorf("%w: connect to postgres: %s", apperrors.ErrSourceUnreachable, logging.SanitizeError(err))
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping postgres: %s", apperrors.ErrSourceUnreachable, logging.SanitizeError(err))
	}

	return &Adapter{pool: pool, config: cfg, logger: logger}, nil
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	a.pool.Close()
	return nil
}

// CatalogName returns the connected database name.
func (a *Adapter) CatalogName(ctx context.Context) (string, error) {
	var name string
	if err := a.pool.QueryRow(ctx, "SELECT current_database()").Scan(&name); err != nil {
		return "", fmt.Errorf("query current database: %w", err)
	}
	return name, nil
}

// CurrentSchema returns the session's default schema.
func (a *Adapter) CurrentSchema(ctx context.Context) (string, error) {
	var name string
	if err := a.pool.QueryRow(ctx, "SELECT current_schema()").Scan(&name); err != nil {
		return "", fmt.Errorf("query current schema: %w", err)
	}
	return name, nil
}

// ListSchemas returns all user schemas (excludes system schemas).
func (a *Adapter) ListSchemas(ctx context.Context) ([]string, error) {
	const query = `
		SELECT schema_name
		FROM information_schema.schemata
		WHERE schema_name NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		ORDER BY schema_name
	`

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query schemas: %w", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("scan schema: %w", err)
		}
		schemas = append(schemas, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schemas: %w", err)
	}

	return schemas, nil
}

// ListTables returns tables and views in a schema.
func (a *Adapter) ListTables(ctx context.Context, schemaName string) ([]datasource.TableInfo, error) {
	const query = `
		SELECT table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name
	`

	rows, err := a.pool.Query(ctx, query, schemaName)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableInfo
	for rows.Next() {
		var name, tableType string
		if err := rows.Scan(&name, &tableType); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, datasource.TableInfo{
			Name: name,
			Type: datasource.TableType(tableType),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// DescribeColumns returns columns for a table in ordinal position order.
func (a *Adapter) DescribeColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnInfo, error) {
	const query = `
		SELECT
			column_name,
			data_type,
			is_nullable = 'YES' AS is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1
		  AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := a.pool.Query(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnInfo
	for rows.Next() {
		var c datasource.ColumnInfo
		if err := rows.Scan(&c.Name, &c.DataType, &c.IsNullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// SampleRows returns up to limit rows with stringified values.
func (a *Adapter) SampleRows(ctx context.Context, schemaName, tableName string, limit int) (*datasource.SampleSet, error) {
	if limit <= 0 {
		return &datasource.SampleSet{}, nil
	}
	if err := sqlsafe.ValidateIdentifier(schemaName); err != nil {
		return nil, fmt.Errorf("schema name: %w", err)
	}
	if err := sqlsafe.ValidateIdentifier(tableName); err != nil {
		return nil, fmt.Errorf("table name: %w", err)
	}

	query := fmt.Sprintf("SELECT * FROM %s.%s LIMIT %d",
		pgx.Identifier{schemaName}.Sanitize(),
		pgx.Identifier{tableName}.Sanitize(),
		limit)

	rows, err := a.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sample rows: %w", err)
	}
	defer rows.Close()

	sample := &datasource.SampleSet{}
	for _, fd := range rows.FieldDescriptions() {
		sample.Columns = append(sample.Columns, string(fd.Name))
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("read sample row: %w", err)
		}
		sample.Rows = append(sample.Rows, stringifyValues(values))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows: %w", err)
	}

	return sample, nil
}

// RowCountEstimate returns the planner's row estimate from pg_class.
// Returns nil for tables the planner has no statistics for.
func (a *Adapter) RowCountEstimate(ctx context.Context, schemaName, tableName string) (*int64, error) {
	const query = `
		SELECT c.reltuples::bigint
		FROM pg_class c
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1 AND c.relname = $2
	`

	var estimate int64
	err := a.pool.QueryRow(ctx, query, schemaName, tableName).Scan(&estimate)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query row estimate: %w", err)
	}
	if estimate < 0 {
		// reltuples is -1 for never-analyzed tables
		return nil, nil
	}
	return &estimate, nil
}

func stringifyValues(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = "NULL"
			continue
		}
		out[i] = fmt.Sprintf("%v", v)
	}
	return out
}

var _ datasource.Adapter = (*Adapter)(nil)
