package datasource

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/apperrors"
)

// AdapterInfo describes a registered adapter type.
type AdapterInfo struct {
	Type        string // "postgres", "sqlserver", "snowflake"
	DisplayName string // "PostgreSQL", "Microsoft SQL Server", "Snowflake"
	Description string
}

// AdapterRegistration contains info + factory for creating adapters.
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory func(ctx context.Context, settings map[string]any, logger *zap.Logger) (Adapter, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapter types.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	return result
}

// Open creates an adapter for a datasource type using its registered factory.
func Open(ctx context.Context, dsType string, settings map[string]any, logger *zap.Logger) (Adapter, error) {
	registryMu.RLock()
	reg, ok := registry[dsType]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", apperrors.ErrUnknownSourceType, dsType)
	}
	return reg.Factory(ctx, settings, logger)
}

// IsRegistered checks if an adapter type is available.
func IsRegistered(dsType string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[dsType]
	return ok
}
