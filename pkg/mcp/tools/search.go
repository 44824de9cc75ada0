package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/config"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/ranker"
)

// maxTopK bounds how many candidates a single call may request.
const maxTopK = 25

// SearchToolDeps contains dependencies for the search tool.
type SearchToolDeps struct {
	Searcher *ranker.Searcher
	Defaults config.RetrievalConfig
	Logger   *zap.Logger
}

// searchResponse is the tool's JSON payload.
type searchResponse struct {
	Query      string             `json:"query"`
	Candidates []ranker.Candidate `json:"candidates"`
	NearMiss   *ranker.Candidate  `json:"near_miss,omitempty"`
	Message    string             `json:"message,omitempty"`
}

// RegisterSearchTools registers the table retrieval MCP tools.
func RegisterSearchTools(s *server.MCPServer, deps *SearchToolDeps) {
	registerSearchTablesTool(s, deps)
}

func registerSearchTablesTool(s *server.MCPServer, deps *SearchToolDeps) {
	tool := mcp.NewTool(
		"search_tables",
		mcp.WithDescription(
			"Find the tables most relevant to a natural-language question. "+
				"Returns ranked candidates with full schema metadata. Mentioning a "+
				"source name (e.g. 'snowflake') or a table name in the query boosts "+
				"matching candidates. "+
				"Example: search_tables(query='snowflake customer orders') returns "+
				"the best-matching tables with their columns and sample data.",
		),
		mcp.WithString(
			"query",
			mcp.Required(),
			mcp.Description("Natural-language description of the data you need"),
		),
		mcp.WithNumber(
			"top_k",
			mcp.Description(fmt.Sprintf("Maximum number of candidates to return (default %d, max %d)", deps.Defaults.TopK, maxTopK)),
		),
		mcp.WithNumber(
			"min_relevance",
			mcp.Description(fmt.Sprintf("Inclusive relevance threshold in [0,1] (default %.2f)", deps.Defaults.MinRelevance)),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return nil, err
		}
		query = strings.TrimSpace(query)
		if query == "" {
			return NewErrorResult("invalid_parameters", "query parameter cannot be empty"), nil
		}

		topK := deps.Defaults.TopK
		if v, ok := req.Params.Arguments.(map[string]any)["top_k"]; ok {
			if f, ok := v.(float64); ok {
				topK = int(f)
			}
		}
		if topK <= 0 {
			return NewErrorResult("invalid_parameters", "top_k must be positive"), nil
		}
		if topK > maxTopK {
			topK = maxTopK
		}

		minRelevance := deps.Defaults.MinRelevance
		if v, ok := req.Params.Arguments.(map[string]any)["min_relevance"]; ok {
			if f, ok := v.(float64); ok {
				minRelevance = f
			}
		}
		if minRelevance < 0 || minRelevance > 1 {
			return NewErrorResult("invalid_parameters", "min_relevance must be between 0 and 1"), nil
		}

		result, err := deps.Searcher.Search(ctx, query, topK, minRelevance)
		if err != nil {
			return nil, err
		}

		response := searchResponse{
			Query:      query,
			Candidates: result.Candidates,
			NearMiss:   result.NearMiss,
		}
		if len(result.Candidates) == 0 {
			if result.NearMiss != nil {
				response.Message = fmt.Sprintf(
					"No table met the relevance threshold %.2f; closest was %s at %.0f%%.",
					minRelevance, result.NearMiss.Record.QualifiedName, result.NearMiss.BoostedScore*100)
			} else {
				response.Message = "The index returned no candidates. Has an index build run yet?"
			}
		}

		jsonResult, err := json.Marshal(response)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", err)
		}
		return mcp.NewToolResultText(string(jsonResult)), nil
	})
}
