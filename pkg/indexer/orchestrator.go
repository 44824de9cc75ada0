package indexer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/embedding"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/fingerprint"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/preference"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/retry"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/vectorindex"
)

const defaultConcurrency = 6

// Config tunes an index build.
type Config struct {
	Collection     string
	SampleRowLimit int
	MaxTables      int // 0 means unlimited
	IncludeViews   bool
	Concurrency    int // bounded worker pool size for per-table work
}

// BuildSummary reports what one build run did. SkipReasons carries one
// human-readable line per skipped schema or table.
type BuildSummary struct {
	SchemasProcessed int      `json:"schemas_processed"`
	SchemasSkipped   int      `json:"schemas_skipped"`
	TablesIndexed    int      `json:"tables_indexed"`
	TablesSkipped    int      `json:"tables_skipped"`
	SkipReasons      []string `json:"skip_reasons,omitempty"`
}

// Orchestrator runs index builds against one data source at a time.
type Orchestrator struct {
	store        vectorindex.Store
	embedder     embedding.Provider
	fingerprints fingerprint.Cache
	mapper       *preference.Mapper
	config       Config
	retryCfg     *retry.Config
	logger       *zap.Logger
}

// NewOrchestrator creates an Orchestrator. If logger is nil, a no-op
// logger is used.
func NewOrchestrator(store vectorindex.Store, embedder embedding.Provider, fingerprints fingerprint.Cache, mapper *preference.Mapper, cfg Config, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	return &Orchestrator{
		store:        store,
		embedder:     embedder,
		fingerprints: fingerprints,
		mapper:       mapper,
		config:       cfg,
		retryCfg:     retry.DefaultConfig(),
		logger:       logger,
	}
}

// Build indexes the selected schemas of one source. Per-table and
// per-schema failures, including a transient embedding failure that
// exhausted its retries, are logged, counted and skipped; a permanent
// embedding provider failure aborts the remaining run but everything
// already committed stays committed. The preference mapping is
// invalidated on the way out so the next search sees the new index
// state.
func (o *Orchestrator) Build(ctx context.Context, sourceID string, adapter datasource.Adapter, selector SchemaSelector, recreate bool) (*BuildSummary, error) {
	summary := &BuildSummary{}
	defer o.mapper.Invalidate()

	// Recreate clears the whole collection exactly once, up front; every
	// schema is then treated as changed regardless of fingerprint state.
	if recreate {
		if err := o.store.DeleteCollection(ctx, o.config.Collection); err != nil {
			return summary, fmt.Errorf("recreate collection %s: %w", o.config.Collection, err)
		}
		o.logger.Info("Recreating collection", zap.String("collection", o.config.Collection))
	}

	catalog, err := adapter.CatalogName(ctx)
	if err != nil {
		return summary, fmt.Errorf("resolve catalog name: %w", err)
	}

	schemas, err := selector.Resolve(ctx, adapter)
	if err != nil {
		return summary, err
	}

	for _, schemaName := range schemas {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		if err := o.buildSchema(ctx, sourceID, catalog, schemaName, adapter, recreate, summary); err != nil {
			return summary, err
		}
	}

	return summary, nil
}

// transientEmbedFailure reports whether an embedding error is classified
// transient. Unclassified errors count as permanent: retrying a failure
// of unknown shape on every remaining schema helps nobody.
func transientEmbedFailure(err error) bool {
	var embErr *embedding.Error
	return errors.As(err, &embErr) && embErr.Retryable
}

// tableWork carries one table through the per-schema pipeline.
type tableWork struct {
	info    datasource.TableInfo
	columns []metadata.Column
	record  *metadata.TableMetadataRecord
	skip    string // non-empty reason marks the table skipped
}

func (o *Orchestrator) buildSchema(ctx context.Context, sourceID, catalog, schemaName string, adapter datasource.Adapter, recreate bool, summary *BuildSummary) error {
	logger := o.logger.With(zap.String("source_id", sourceID), zap.String("schema", schemaName))

	tables, err := retry.DoWithResult(ctx, o.retryCfg, func() ([]datasource.TableInfo, error) {
		return adapter.ListTables(ctx, schemaName)
	})
	if err != nil {
		summary.SchemasSkipped++
		summary.SkipReasons = append(summary.SkipReasons, fmt.Sprintf("%s: list tables failed: %v", schemaName, err))
		logger.Warn("Skipping schema, table listing failed", zap.Error(err))
		return nil
	}

	if !o.config.IncludeViews {
		kept := tables[:0]
		for _, t := range tables {
			if t.Type != datasource.TableTypeView {
				kept = append(kept, t)
			}
		}
		tables = kept
	}
	if o.config.MaxTables > 0 && len(tables) > o.config.MaxTables {
		logger.Warn("Capping table count", zap.Int("limit", o.config.MaxTables), zap.Int("discovered", len(tables)))
		tables = tables[:o.config.MaxTables]
	}
	if len(tables) == 0 {
		summary.SchemasSkipped++
		summary.SkipReasons = append(summary.SkipReasons, fmt.Sprintf("%s: no tables", schemaName))
		logger.Info("Skipping schema, no tables")
		return nil
	}

	work := make([]tableWork, len(tables))
	for i, t := range tables {
		work[i] = tableWork{info: t}
	}

	// Column discovery feeds both the fingerprint and the documents.
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)
	for i := range work {
		g.Go(func() error {
			w := &work[i]
			cols, err := retry.DoWithResult(gctx, o.retryCfg, func() ([]datasource.ColumnInfo, error) {
				return adapter.DescribeColumns(gctx, schemaName, w.info.Name)
			})
			if err != nil {
				w.skip = fmt.Sprintf("%s.%s: describe columns failed: %v", schemaName, w.info.Name, err)
				return nil
			}
			w.columns = make([]metadata.Column, len(cols))
			for j, c := range cols {
				w.columns[j] = metadata.Column{Name: c.Name, DeclaredType: c.DataType, Nullable: c.IsNullable}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var hashInput []fingerprint.TableColumns
	for _, w := range work {
		if w.skip == "" {
			hashInput = append(hashInput, fingerprint.TableColumns{TableName: w.info.Name, Columns: w.columns})
		}
	}
	contentHash := fingerprint.HashSchema(hashInput)

	if !recreate {
		changed, err := o.fingerprints.HasChanged(ctx, sourceID, schemaName, contentHash)
		if err != nil {
			logger.Warn("Fingerprint lookup failed, treating schema as changed", zap.Error(err))
		} else if !changed {
			summary.SchemasSkipped++
			summary.SkipReasons = append(summary.SkipReasons, fmt.Sprintf("%s: unchanged since last index", schemaName))
			logger.Info("Skipping schema, structure unchanged")
			return nil
		}
	}

	// Document construction runs per table on the same bounded pool; a
	// single bad table (permissions on samples, empty schema) is skipped
	// with a warning rather than failing the run.
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(o.config.Concurrency)
	for i := range work {
		g.Go(func() error {
			w := &work[i]
			if w.skip != "" {
				return nil
			}

			sample, err := retry.DoWithResult(gctx, o.retryCfg, func() (*datasource.SampleSet, error) {
				return adapter.SampleRows(gctx, schemaName, w.info.Name, o.config.SampleRowLimit)
			})
			if err != nil {
				logger.Warn("Sample read failed, indexing without samples",
					zap.String("table", w.info.Name), zap.Error(err))
				sample = nil
			}

			rowCount, err := retry.DoWithResult(gctx, o.retryCfg, func() (*int64, error) {
				return adapter.RowCountEstimate(gctx, schemaName, w.info.Name)
			})
			if err != nil {
				logger.Warn("Row count estimate failed",
					zap.String("table", w.info.Name), zap.Error(err))
				rowCount = nil
			}

			record, err := metadata.BuildRecord(metadata.BuildInput{
				SourceID:         sourceID,
				QualifiedName:    fmt.Sprintf("%s.%s.%s", catalog, schemaName, w.info.Name),
				ShortName:        w.info.Name,
				TableType:        w.info.Type,
				Columns:          w.columns,
				RowCountEstimate: rowCount,
				Sample:           sample,
				SampleRowLimit:   o.config.SampleRowLimit,
			})
			if err != nil {
				w.skip = fmt.Sprintf("%s.%s: %v", schemaName, w.info.Name, err)
				return nil
			}
			w.record = record
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var records []*metadata.TableMetadataRecord
	for _, w := range work {
		if w.skip != "" {
			summary.TablesSkipped++
			summary.SkipReasons = append(summary.SkipReasons, w.skip)
			logger.Warn("Skipping table", zap.String("reason", w.skip))
			continue
		}
		records = append(records, w.record)
	}
	if len(records) == 0 {
		summary.SchemasSkipped++
		summary.SkipReasons = append(summary.SkipReasons, fmt.Sprintf("%s: no indexable tables", schemaName))
		return nil
	}

	documents := make([]string, len(records))
	for i, r := range records {
		documents[i] = r.DocumentText
	}

	// A transient provider failure that outlasted the client's retries
	// costs only this schema's batch; with no fingerprint written it is
	// retried next run. Permanent failures (bad key, unknown model) would
	// fail every remaining batch the same way, so they abort the run.
	vectors, err := o.embedder.EmbedBatch(ctx, documents)
	if err != nil {
		if transientEmbedFailure(err) {
			summary.SchemasSkipped++
			summary.SkipReasons = append(summary.SkipReasons, fmt.Sprintf("%s: embed batch failed: %v", schemaName, err))
			logger.Warn("Embedding batch failed, continuing with remaining schemas", zap.Error(err))
			return nil
		}
		return fmt.Errorf("embed schema %s: %w", schemaName, err)
	}
	if len(vectors) != len(records) {
		return fmt.Errorf("embed schema %s: got %d vectors for %d documents", schemaName, len(vectors), len(records))
	}

	entries := make([]vectorindex.Entry, len(records))
	for i, r := range records {
		entries[i] = vectorindex.Entry{ID: r.EntryID(), Vector: vectors[i], Record: r}
	}

	// A failed index write skips the fingerprint update so a future run
	// retries this schema.
	err = retry.Do(ctx, o.retryCfg, func() error {
		return o.store.Upsert(ctx, o.config.Collection, entries)
	})
	if err != nil {
		summary.SchemasSkipped++
		summary.SkipReasons = append(summary.SkipReasons, fmt.Sprintf("%s: index write failed: %v", schemaName, err))
		logger.Error("Index write failed, fingerprint left stale", zap.Error(err))
		return nil
	}

	if err := o.fingerprints.Put(ctx, fingerprint.Fingerprint{
		SourceID:    sourceID,
		SchemaName:  schemaName,
		ContentHash: contentHash,
	}); err != nil {
		logger.Warn("Failed to store fingerprint", zap.Error(err))
	}

	summary.SchemasProcessed++
	summary.TablesIndexed += len(records)
	logger.Info("Indexed schema", zap.Int("tables", len(records)))
	return nil
}
