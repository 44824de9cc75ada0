// Package metadata builds the canonical table metadata records and the
// text documents that get embedded into the vector index.
package metadata

import (
	"github.com/google/uuid"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource"
)

// entryNamespace scopes deterministic entry IDs to this subsystem.
var entryNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Column is one column of an indexed table.
type Column struct {
	Name         string `json:"name"`
	DeclaredType string `json:"declared_type"`
	Nullable     bool   `json:"nullable"`
}

// TableMetadataRecord is the structured metadata stored alongside each
// embedding. source_id, qualified_name and short_name are the stable
// persisted contract; everything else may evolve.
type TableMetadataRecord struct {
	SourceID         string               `json:"source_id"`
	QualifiedName    string               `json:"qualified_name"`
	ShortName        string               `json:"short_name"`
	TableType        datasource.TableType `json:"table_type,omitempty"`
	Columns          []Column             `json:"columns"`
	RowCountEstimate *int64               `json:"row_count_estimate,omitempty"`
	SampleColumns    []string             `json:"sample_columns,omitempty"`
	SampleRows       [][]string           `json:"sample_rows,omitempty"`
	DocumentText     string               `json:"document_text"`
}

// EntryID derives a deterministic vector index entry id for a record.
// Re-indexing the same table always produces the same id, so upserts
// replace rather than duplicate.
func (r *TableMetadataRecord) EntryID() string {
	return uuid.NewSHA1(entryNamespace, []byte(r.SourceID+"\x00"+r.QualifiedName)).String()
}
