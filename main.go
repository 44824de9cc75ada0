package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // database/sql driver for migrations
	"go.uber.org/zap"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource"
	_ "github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource/mssql"
	_ "github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource/postgres"
	_ "github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource/snowflake"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/config"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/database"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/embedding"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/fingerprint"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/indexer"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/logging"
	mcpserver "github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/mcp"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/mcp/tools"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/preference"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/ranker"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/vectorindex"
)

// Version is set at build time via ldflags
var Version = "dev"

const usage = `Usage: llm-dq-agent <command> [flags]

Commands:
  index    build or refresh the schema index for one source
  search   query the index for relevant tables
  mcp      serve the search and index tools over MCP stdio
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load(Version)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	switch os.Args[1] {
	case "index":
		runErr = runIndex(ctx, cfg, logger, os.Args[2:])
	case "search":
		runErr = runSearch(ctx, cfg, logger, os.Args[2:])
	case "mcp":
		runErr = runMCP(ctx, cfg, logger)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if runErr != nil {
		logger.Fatal("Command failed", zap.String("command", os.Args[1]), zap.Error(runErr))
	}
}

// components holds the wired engine, shared by every command.
type components struct {
	sources      *config.SourcesFile
	store        vectorindex.Store
	fingerprints fingerprint.Cache
	mapper       *preference.Mapper
	searcher     *ranker.Searcher
	orchestrator *indexer.Orchestrator
	close        func()
}

func wire(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*components, error) {
	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewClient(&embedding.Config{
		Endpoint:  cfg.Embedding.Endpoint,
		Model:     cfg.Embedding.Model,
		APIKey:    cfg.Embedding.APIKey,
		BatchSize: cfg.Embedding.BatchSize,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	var (
		store        vectorindex.Store
		fingerprints fingerprint.Cache
		closeFn      = func() {}
	)

	switch cfg.Index.Backend {
	case "memory":
		store = vectorindex.NewMemoryStore()
		fingerprints = fingerprint.NewMemoryCache()

	case "postgres":
		engineDB, err := connectEngineDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		store = vectorindex.NewPostgresStore(engineDB)
		fingerprints = fingerprint.NewPostgresCache(engineDB)
		closeFn = engineDB.Close

	case "milvus":
		engineDB, err := connectEngineDB(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}

		connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Milvus.TimeoutSeconds)*time.Second)
		defer cancel()
		milvusStore, err := vectorindex.NewMilvusStore(connectCtx, vectorindex.MilvusConfig{
			Address:   cfg.Milvus.Address,
			Username:  cfg.Milvus.Username,
			Password:  cfg.Milvus.Password,
			Database:  cfg.Milvus.Database,
			Dimension: cfg.Milvus.Dimension,
		}, logger)
		if err != nil {
			engineDB.Close()
			return nil, err
		}

		store = milvusStore
		fingerprints = fingerprint.NewPostgresCache(engineDB)
		closeFn = func() {
			if err := milvusStore.Close(context.Background()); err != nil {
				logger.Warn("Failed to close milvus client", zap.Error(err))
			}
			engineDB.Close()
		}

	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}

	sourceIDs := make([]string, len(sources.Sources))
	for i, s := range sources.Sources {
		sourceIDs[i] = s.SourceID
	}

	collection := cfg.Index.CollectionName
	mapper := preference.NewMapper(sourceIDs, sources.Keywords,
		func(ctx context.Context) ([]*metadata.TableMetadataRecord, error) {
			return store.ListAll(ctx, collection)
		})

	searcher := ranker.NewSearcher(store, embedder, mapper, ranker.Config{
		Collection:  collection,
		SourceBoost: cfg.Retrieval.SourceBoost,
		NameBoost:   cfg.Retrieval.NameBoost,
	}, logger)

	orchestrator := indexer.NewOrchestrator(store, embedder, fingerprints, mapper, indexer.Config{
		Collection:     collection,
		SampleRowLimit: cfg.Index.SampleRowLimit,
		MaxTables:      cfg.Index.MaxTables,
		IncludeViews:   cfg.Index.IncludeViews,
		Concurrency:    cfg.Index.Concurrency,
	}, logger)

	return &components{
		sources:      sources,
		store:        store,
		fingerprints: fingerprints,
		mapper:       mapper,
		searcher:     searcher,
		orchestrator: orchestrator,
		close:        closeFn,
	}, nil
}

func connectEngineDB(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*database.DB, error) {
	url := cfg.Engine.ConnectionString()

	migrationDB, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open engine database for migrations: %w", err)
	}
	if err := database.RunMigrations(migrationDB, logger); err != nil {
		migrationDB.Close()
		return nil, err
	}
	migrationDB.Close()

	engineDB, err := database.NewConnection(ctx, &database.Config{
		URL:            url,
		MaxConnections: cfg.Engine.MaxConnections,
	})
	if err != nil {
		return nil, fmt.Errorf("connect engine database: %w", err)
	}
	return engineDB, nil
}

func openAdapter(ctx context.Context, source *config.SourceConfig, logger *zap.Logger) (datasource.Adapter, error) {
	return datasource.Open(ctx, source.Type, source.Settings, logger)
}

func runIndex(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	sourceID := fs.String("source", "", "source_id from the sources file (required)")
	schemas := fs.String("schemas", "", "comma-separated schema names; omit to auto-discover")
	exclude := fs.String("exclude", "", "comma-separated schema names to skip during discovery")
	currentOnly := fs.Bool("current", false, "index only the connection's default schema")
	recreate := fs.Bool("recreate", false, "drop the collection before indexing")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *sourceID == "" {
		return fmt.Errorf("-source is required")
	}

	c, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	source := c.sources.Source(*sourceID)
	if source == nil {
		return fmt.Errorf("no configured source %q in %s", *sourceID, cfg.SourcesFile)
	}

	selector := indexer.AllSchemas(splitList(*exclude)...)
	switch {
	case *currentOnly:
		selector = indexer.CurrentSchemaOnly()
	case *schemas != "":
		selector = indexer.ExplicitSchemas(splitList(*schemas)...)
	}

	adapter, err := openAdapter(ctx, source, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := adapter.Close(); err != nil {
			logger.Warn("Failed to close adapter", zap.Error(err))
		}
	}()

	summary, err := c.orchestrator.Build(ctx, *sourceID, adapter, selector, *recreate)
	if summary != nil {
		printJSON(summary)
	}
	return err
}

func runSearch(ctx context.Context, cfg *config.Config, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	query := fs.String("query", "", "natural-language query (required unless -list)")
	topK := fs.Int("top-k", cfg.Retrieval.TopK, "maximum candidates to return")
	minRelevance := fs.Float64("min-relevance", cfg.Retrieval.MinRelevance, "inclusive relevance threshold")
	listAll := fs.Bool("list", false, "list every indexed entry instead of searching")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*listAll && strings.TrimSpace(*query) == "" {
		return fmt.Errorf("-query is required")
	}

	c, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	if *listAll {
		records, err := c.store.ListAll(ctx, cfg.Index.CollectionName)
		if err != nil {
			return err
		}
		printJSON(records)
		return nil
	}

	result, err := c.searcher.Search(ctx, *query, *topK, *minRelevance)
	if err != nil {
		return err
	}
	printJSON(result)
	return nil
}

func runMCP(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	c, err := wire(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	srv := mcpserver.NewServer("llm-dq-agent", cfg.Version, logger)
	tools.RegisterSearchTools(srv.MCP(), &tools.SearchToolDeps{
		Searcher: c.searcher,
		Defaults: cfg.Retrieval,
		Logger:   logger,
	})
	tools.RegisterIndexTools(srv.MCP(), &tools.IndexToolDeps{
		Orchestrator: c.orchestrator,
		Sources:      c.sources,
		OpenAdapter: func(ctx context.Context, source *config.SourceConfig) (datasource.Adapter, error) {
			return openAdapter(ctx, source, logger)
		},
		Logger: logger,
	})

	logger.Info("Serving MCP over stdio", zap.String("version", cfg.Version))
	return srv.ServeStdio()
}

func splitList(csv string) []string {
	if csv == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(csv, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func printJSON(v any) {
	fmt.Println(mustJSON(v))
}

func mustJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
