package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // registers the sqlserver driver
	"go.uber.org/zap"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/apperrors"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/logging"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/sqlsafe"
)

// Adapter implements datasource.Adapter for Microsoft SQL Server.
type Adapter struct {
	db     *sql.DB
	config *Config
	logger *zap.Logger
}

// NewAdapter connects to SQL Server and verifies the connection.
// If logger is nil, a no-op logger is used.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlserver", cfg.connectionString())
	if err != nil {
		return nil, fmt.Errorf("%w: open sqlserver: %s", apperrors.ErrSourceUnreachable, logging.SanitizeError(err))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping sqlserver: %s", apperrors.ErrSourceUnreachable, logging.SanitizeError(err))
	}

	return &Adapter{db: db, config: cfg, logger: logger}, nil
}

// Close releases the database connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// CatalogName returns the connected database name.
func (a *Adapter) CatalogName(ctx context.Context) (string, error) {
	var name string
	if err := a.db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&name); err != nil {
		return "", fmt.Errorf("query database name: %w", err)
	}
	return name, nil
}

// CurrentSchema returns the session's default schema.
func (a *Adapter) CurrentSchema(ctx context.Context) (string, error) {
	var name string
	if err := a.db.QueryRowContext(ctx, "SELECT SCHEMA_NAME()").Scan(&name); err != nil {
		return "", fmt.Errorf("query current schema: %w", err)
	}
	return name, nil
}

// ListSchemas returns all user schemas (excludes system schemas).
func (a *Adapter) ListSchemas(ctx context.Context) ([]string, error) {
	const query = `
	SET NOCOUNT ON;
	SELECT s.name
	FROM sys.schemas s
	JOIN sys.database_principals p ON s.principal_id = p.principal_id
	WHERE s.name NOT IN ('sys', 'INFORMATION_SCHEMA', 'guest',
		'db_owner', 'db_accessadmin', 'db_securityadmin', 'db_ddladmin',
		'db_backupoperator', 'db_datareader', 'db_datawriter',
		'db_denydatareader', 'db_denydatawriter')
	ORDER BY s.name
	`

	rows, err := a.db.QueryContext(ctx, query)
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
	SET NOCOUNT ON;
	SELECT table_name, table_type
	FROM INFORMATION_SCHEMA.TABLES
	WHERE table_schema = @schema
	  AND table_type IN ('BASE TABLE', 'VIEW')
	ORDER BY table_name
	`

	rows, err := a.db.QueryContext(ctx, query, sql.Named("schema", schemaName))
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

// DescribeColumns returns columns for a table in column_id order.
func (a *Adapter) DescribeColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnInfo, error) {
	const query = `
	SET NOCOUNT ON;
	SELECT
	    c.name AS column_name,
	    tp.name AS data_type,
	    c.is_nullable
	FROM sys.columns c
	INNER JOIN sys.types tp ON c.user_type_id = tp.user_type_id
	WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
	ORDER BY c.column_id
	`

	rows, err := a.db.QueryContext(ctx, query,
		sql.Named("schema", schemaName),
		sql.Named("table", tableName),
	)
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

	query := fmt.Sprintf("SELECT TOP (%d) * FROM %s.%s",
		limit,
		sqlsafe.QuoteBracket(schemaName),
		sqlsafe.QuoteBracket(tableName))

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query sample rows: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read sample columns: %w", err)
	}

	sample := &datasource.SampleSet{Columns: columns}
	values := make([]any, len(columns))
	scanTargets := make([]any, len(columns))
	for i := range values {
		scanTargets[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}
		sample.Rows = append(sample.Rows, stringifyValues(values))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows: %w", err)
	}

	return sample, nil
}

// RowCountEstimate returns the partition row count from sys.partitions.
func (a *Adapter) RowCountEstimate(ctx context.Context, schemaName, tableName string) (*int64, error) {
	const query = `
	SET NOCOUNT ON;
	SELECT SUM(p.rows)
	FROM sys.tables t
	INNER JOIN sys.partitions p ON t.object_id = p.object_id
	WHERE p.index_id IN (0, 1)
	  AND SCHEMA_NAME(t.schema_id) = @schema
	  AND t.name = @table
	`

	var estimate sql.NullInt64
	err := a.db.QueryRowContext(ctx, query,
		sql.Named("schema", schemaName),
		sql.Named("table", tableName),
	).Scan(&estimate)
	if err == sql.ErrNoRows || (err == nil && !estimate.Valid) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query row estimate: %w", err)
	}
	return &estimate.Int64, nil
}

func stringifyValues(values []any) []string {
	out := make([]string, len(values))
	for i, v := range values {
		if v == nil {
			out[i] = "NULL"
			continue
		}
		if b, ok := v.([]byte); ok {
			out[i] = string(b)
			continue
		}
		out[i] = fmt.Sprintf("%v", v)
	}
	return out
}

var _ datasource.Adapter = (*Adapter)(nil)
