package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/config"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/indexer"
)

// OpenAdapterFunc opens a connected adapter for a configured source.
type OpenAdapterFunc func(ctx context.Context, source *config.SourceConfig) (datasource.Adapter, error)

// IndexToolDeps contains dependencies for the index build tool.
type IndexToolDeps struct {
	Orchestrator *indexer.Orchestrator
	Sources      *config.SourcesFile
	OpenAdapter  OpenAdapterFunc
	Logger       *zap.Logger
}

// RegisterIndexTools registers the index lifecycle MCP tools.
func RegisterIndexTools(s *server.MCPServer, deps *IndexToolDeps) {
	registerBuildSchemaIndexTool(s, deps)
}

func registerBuildSchemaIndexTool(s *server.MCPServer, deps *IndexToolDeps) {
	tool := mcp.NewTool(
		"build_schema_index",
		mcp.WithDescription(
			"Index table schema metadata from a configured data source into the "+
				"vector index so search_tables can find it. Builds are incremental: "+
				"unchanged schemas are skipped, and other sources already in the "+
				"index are left alone unless recreate is set. "+
				"Example: build_schema_index(source_id='snowflake') indexes every "+
				"schema of the snowflake source.",
		),
		mcp.WithString(
			"source_id",
			mcp.Required(),
			mcp.Description("Identifier of the configured source to index"),
		),
		mcp.WithString(
			"schemas",
			mcp.Description("Comma-separated schema names to index; omit to auto-discover all schemas"),
		),
		mcp.WithBoolean(
			"current_only",
			mcp.Description("Index only the connection's default schema"),
		),
		mcp.WithBoolean(
			"recreate",
			mcp.Description("Drop the whole collection first; destroys entries from every source"),
		),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sourceID, err := req.RequireString("source_id")
		if err != nil {
			return nil, err
		}

		source := deps.Sources.Source(sourceID)
		if source == nil {
			return NewErrorResult("unknown_source",
				fmt.Sprintf("no configured source %q; check the sources file", sourceID)), nil
		}

		args, _ := req.Params.Arguments.(map[string]any)
		currentOnly, _ := args["current_only"].(bool)
		recreate, _ := args["recreate"].(bool)
		schemasArg, _ := args["schemas"].(string)

		if currentOnly && schemasArg != "" {
			return NewErrorResult("invalid_parameters", "schemas and current_only are mutually exclusive"), nil
		}

		selector := indexer.AllSchemas()
		switch {
		case currentOnly:
			selector = indexer.CurrentSchemaOnly()
		case schemasArg != "":
			var names []string
			for _, name := range strings.Split(schemasArg, ",") {
				if trimmed := strings.TrimSpace(name); trimmed != "" {
					names = append(names, trimmed)
				}
			}
			if len(names) == 0 {
				return NewErrorResult("invalid_parameters", "schemas must name at least one schema"), nil
			}
			selector = indexer.ExplicitSchemas(names...)
		}

		adapter, err := deps.OpenAdapter(ctx, source)
		if err != nil {
			return NewErrorResult("source_unreachable",
				fmt.Sprintf("could not connect to source %q: %v", sourceID, err)), nil
		}
		defer func() {
			if closeErr := adapter.Close(); closeErr != nil {
				deps.Logger.Warn("Failed to close adapter", zap.String("source_id", sourceID), zap.Error(closeErr))
			}
		}()

		summary, err := deps.Orchestrator.Build(ctx, sourceID, adapter, selector, recreate)
		if err != nil {
			return nil, fmt.Errorf("index build for %s: %w", sourceID, err)
		}

		jsonResult, err := json.Marshal(summary)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
