package vectorindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
	"go.uber.org/zap"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
)

// MilvusConfig holds connection settings for a Milvus deployment.
type MilvusConfig struct {
	Address   string
	Username  string
	Password  string
	Database  string
	Dimension int
}

// MilvusStore is a Store backed by Milvus. Entries use the deterministic
// entry id as a varchar primary key, so Milvus upserts replace prior
// content for the same table. Search uses the COSINE metric; scores come
// back as similarities and are mapped onto the [0,1] distance contract.
type MilvusStore struct {
	client    *milvusclient.Client
	dimension int
	logger    *zap.Logger
}

// NewMilvusStore connects to Milvus. If logger is nil, a no-op logger is
// used.
func NewMilvusStore(ctx context.Context, cfg MilvusConfig, logger *zap.Logger) (*MilvusStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &MilvusStore{client: c, dimension: cfg.Dimension, logger: logger}, nil
}

// Close closes the Milvus client connection.
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func (s *MilvusStore) ensureCollection(ctx context.Context, collection string) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	schema := entity.NewSchema().
		WithName(collection).
		WithDescription("table schema metadata embeddings")

	schema.WithField(
		entity.NewField().
			WithName("entry_id").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64).
			WithIsPrimaryKey(true),
	)
	schema.WithField(
		entity.NewField().
			WithName("embedding").
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(s.dimension)),
	)
	schema.WithField(
		entity.NewField().
			WithName("source_id").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(255),
	)
	schema.WithField(
		entity.NewField().
			WithName("qualified_name").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(1024),
	)
	schema.WithField(
		entity.NewField().
			WithName("record").
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535),
	)

	if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(collection, schema)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	createIdxTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(collection, "embedding", idx))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := createIdxTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for index creation: %w", err)
	}

	s.logger.Info("Created milvus collection", zap.String("collection", collection))
	return s.loadCollection(ctx, collection)
}

func (s *MilvusStore) loadCollection(ctx context.Context, collection string) error {
	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(collection))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

func (s *MilvusStore) Upsert(ctx context.Context, collection string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, collection); err != nil {
		return err
	}

	ids := make([]string, len(entries))
	vectors := make([][]float32, len(entries))
	sourceIDs := make([]string, len(entries))
	qualifiedNames := make([]string, len(entries))
	records := make([]string, len(entries))

	for i, e := range entries {
		recordJSON, err := json.Marshal(e.Record)
		if err != nil {
			return fmt.Errorf("marshal record %s: %w", e.Record.QualifiedName, err)
		}
		ids[i] = e.ID
		vectors[i] = e.Vector
		sourceIDs[i] = e.Record.SourceID
		qualifiedNames[i] = e.Record.QualifiedName
		records[i] = string(recordJSON)
	}

	_, err := s.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collection,
		column.NewColumnVarChar("entry_id", ids),
		column.NewColumnFloatVector("embedding", s.dimension, vectors),
		column.NewColumnVarChar("source_id", sourceIDs),
		column.NewColumnVarChar("qualified_name", qualifiedNames),
		column.NewColumnVarChar("record", records),
	))
	if err != nil {
		return fmt.Errorf("failed to upsert entries: %w", err)
	}

	// Flush so the entries are visible to the next search.
	flushTask, err := s.client.Flush(ctx, milvusclient.NewFlushOption(collection))
	if err != nil {
		return fmt.Errorf("failed to flush collection: %w", err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for flush: %w", err)
	}
	return nil
}

func (s *MilvusStore) DeleteCollection(ctx context.Context, collection string) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collection)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

func (s *MilvusStore) ListAll(ctx context.Context, collection string) ([]*metadata.TableMetadataRecord, error) {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return nil, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return nil, nil
	}
	if err := s.loadCollection(ctx, collection); err != nil {
		return nil, err
	}

	result, err := s.client.Query(ctx, milvusclient.NewQueryOption(collection).
		WithFilter(`entry_id != ""`).
		WithOutputFields("record"))
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	var records []*metadata.TableMetadataRecord
	for _, field := range result.Fields {
		col, ok := field.(*column.ColumnVarChar)
		if !ok || col.Name() != "record" {
			continue
		}
		for _, raw := range col.Data() {
			var record metadata.TableMetadataRecord
			if err := json.Unmarshal([]byte(raw), &record); err != nil {
				return nil, fmt.Errorf("unmarshal record: %w", err)
			}
			records = append(records, &record)
		}
	}
	return records, nil
}

func (s *MilvusStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]Match, error) {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(collection))
	if err != nil {
		return nil, fmt.Errorf("failed to check collection existence: %w", err)
	}
	if !exists {
		return nil, nil
	}
	if err := s.loadCollection(ctx, collection); err != nil {
		return nil, err
	}

	results, err := s.client.Search(ctx, milvusclient.NewSearchOption(
		collection,
		limit,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField("embedding").
		WithSearchParam("nprobe", "16").
		WithOutputFields("record"))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	matches := make([]Match, 0, results[0].ResultCount)
	for i := 0; i < results[0].ResultCount; i++ {
		var record *metadata.TableMetadataRecord
		for _, field := range results[0].Fields {
			col, ok := field.(*column.ColumnVarChar)
			if !ok || col.Name() != "record" {
				continue
			}
			var r metadata.TableMetadataRecord
			if err := json.Unmarshal([]byte(col.Data()[i]), &r); err != nil {
				return nil, fmt.Errorf("unmarshal record: %w", err)
			}
			record = &r
		}
		if record == nil {
			continue
		}
		// COSINE scores are similarities in [-1,1].
		matches = append(matches, Match{
			Record:   record,
			Distance: (1 - float64(results[0].Scores[i])) / 2,
		})
	}

	sortMatches(matches)
	return matches, nil
}

var _ Store = (*MilvusStore)(nil)
