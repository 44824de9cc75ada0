package snowflake

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/snowflakedb/gosnowflake" // registers the snowflake driver
	"go.uber.org/zap"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/apperrors"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/logging"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/sqlsafe"
)

// Adapter implements datasource.Adapter for Snowflake.
// Snowflake's INFORMATION_SCHEMA carries row counts directly, so
// RowCountEstimate reads TABLES.ROW_COUNT rather than sampling statistics.
type Adapter struct {
	db     *sql.DB
	config *Config
	logger *zap.Logger
}

// NewAdapter connects to Snowflake and verifies the connection.
// If logger is nil, a no-op logger is used.
func NewAdapter(ctx context.Context, cfg *Config, logger *zap.Logger) (*Adapter, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	dsn, err := cfg.dsn()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("snowflake", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: open snowflake: %s", apperrors.ErrSourceUnreachable, logging.SanitizeError(err))
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: ping snowflake: %s", apperrors.ErrSourceUnreachable, logging.SanitizeError(err))
	}

	return &Adapter{db: db, config: cfg, logger: logger}, nil
}

// Close releases the database connection.
func (a *Adapter) Close() error {
	return a.db.Close()
}

// CatalogName returns the current database name.
func (a *Adapter) CatalogName(ctx context.Context) (string, error) {
	var name string
	if err := a.db.QueryRowContext(ctx, "SELECT CURRENT_DATABASE()").Scan(&name); err != nil {
		return "", fmt.Errorf("query current database: %w", err)
	}
	return name, nil
}

// CurrentSchema returns the session's default schema.
func (a *Adapter) CurrentSchema(ctx context.Context) (string, error) {
	var name sql.NullString
	if err := a.db.QueryRowContext(ctx, "SELECT CURRENT_SCHEMA()").Scan(&name); err != nil {
		return "", fmt.Errorf("query current schema: %w", err)
	}
	if !name.Valid || name.String == "" {
		// No default schema on the session; PUBLIC is snowflake's default.
		return "PUBLIC", nil
	}
	return name.String, nil
}

// ListSchemas returns all schemas in the current database except
// INFORMATION_SCHEMA.
func (a *Adapter) ListSchemas(ctx context.Context) ([]string, error) {
	const query = `
		SELECT SCHEMA_NAME
		FROM INFORMATION_SCHEMA.SCHEMATA
		WHERE SCHEMA_NAME != 'INFORMATION_SCHEMA'
		ORDER BY SCHEMA_NAME
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
		SELECT TABLE_NAME, TABLE_TYPE
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_TYPE IN ('BASE TABLE', 'VIEW')
		ORDER BY TABLE_NAME
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName)
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
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`

	rows, err := a.db.QueryContext(ctx, query, schemaName, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnInfo
	for rows.Next() {
		var c datasource.ColumnInfo
		var nullable string
		if err := rows.Scan(&c.Name, &c.DataType, &nullable); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.IsNullable = nullable == "YES"
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
		sqlsafe.QuoteIdentifier(schemaName),
		sqlsafe.QuoteIdentifier(tableName),
		limit)

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

// RowCountEstimate reads ROW_COUNT from INFORMATION_SCHEMA.TABLES.
// Views have no row count; nil is returned for them.
func (a *Adapter) RowCountEstimate(ctx context.Context, schemaName, tableName string) (*int64, error) {
	const query = `
		SELECT ROW_COUNT
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ?
		  AND TABLE_NAME = ?
	`

	var estimate sql.NullInt64
	err := a.db.QueryRowContext(ctx, query, schemaName, tableName).Scan(&estimate)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query row count: %w", err)
	}
	if !estimate.Valid {
		return nil, nil
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
		out[i] = strings.TrimSpace(fmt.Sprintf("%v", v))
	}
	return out
}

var _ datasource.Adapter = (*Adapter)(nil)
