package mssql

import (
	"context"

	"go.uber.org/zap"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "sqlserver",
			DisplayName: "Microsoft SQL Server",
			Description: "Connect to SQL Server 2017+, Azure SQL",
		},
		Factory: func(ctx context.Context, settings map[string]any, logger *zap.Logger) (datasource.Adapter, error) {
			cfg, err := FromMap(settings)
			if err != nil {
				return nil, err
			}
			return NewAdapter(ctx, cfg, logger)
		},
	})
}
