package datasource

import "context"

// MockAdapter is a function-field test double for Adapter.
type MockAdapter struct {
	CatalogNameFunc      func(ctx context.Context) (string, error)
	CurrentSchemaFunc    func(ctx context.Context) (string, error)
	ListSchemasFunc      func(ctx context.Context) ([]string, error)
	ListTablesFunc       func(ctx context.Context, schemaName string) ([]TableInfo, error)
	DescribeColumnsFunc  func(ctx context.Context, schemaName, tableName string) ([]ColumnInfo, error)
	SampleRowsFunc       func(ctx context.Context, schemaName, tableName string, limit int) (*SampleSet, error)
	RowCountEstimateFunc func(ctx context.Context, schemaName, tableName string) (*int64, error)
	CloseFunc            func() error
}

func (m *MockAdapter) CatalogName(ctx context.Context) (string, error) {
	if m.CatalogNameFunc != nil {
		return m.CatalogNameFunc(ctx)
	}
	return "testdb", nil
}

func (m *MockAdapter) CurrentSchema(ctx context.Context) (string, error) {
	if m.CurrentSchemaFunc != nil {
		return m.CurrentSchemaFunc(ctx)
	}
	return "public", nil
}

func (m *MockAdapter) ListSchemas(ctx context.Context) ([]string, error) {
	if m.ListSchemasFunc != nil {
		return m.ListSchemasFunc(ctx)
	}
	return []string{"public"}, nil
}

func (m *MockAdapter) ListTables(ctx context.Context, schemaName string) ([]TableInfo, error) {
	if m.ListTablesFunc != nil {
		return m.ListTablesFunc(ctx, schemaName)
	}
	return nil, nil
}

func (m *MockAdapter) DescribeColumns(ctx context.Context, schemaName, tableName string) ([]ColumnInfo, error) {
	if m.DescribeColumnsFunc != nil {
		return m.DescribeColumnsFunc(ctx, schemaName, tableName)
	}
	return nil, nil
}

func (m *MockAdapter) SampleRows(ctx context.Context, schemaName, tableName string, limit int) (*SampleSet, error) {
	if m.SampleRowsFunc != nil {
		return m.SampleRowsFunc(ctx, schemaName, tableName, limit)
	}
	return &SampleSet{}, nil
}

func (m *MockAdapter) RowCountEstimate(ctx context.Context, schemaName, tableName string) (*int64, error) {
	if m.RowCountEstimateFunc != nil {
		return m.RowCountEstimateFunc(ctx, schemaName, tableName)
	}
	return nil, nil
}

func (m *MockAdapter) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

var _ Adapter = (*MockAdapter)(nil)
