// Package fingerprint detects structural schema changes between indexing
// runs so unchanged schemas can be skipped.
package fingerprint

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
)

// Fingerprint records the structural hash of one schema the last time it
// was indexed.
type Fingerprint struct {
	SourceID    string
	SchemaName  string
	ContentHash string
	IndexedAt   time.Time
}

// TableColumns pairs a table name with its columns for hashing.
type TableColumns struct {
	TableName string
	Columns   []metadata.Column
}

// HashSchema computes an order-independent hash over a schema's
// (table, column, type) tuples. Table and column ordering do not affect
// the result; a changed column type does. The hash covers raw structural
// fields only, never rendered document text.
func HashSchema(tables []TableColumns) string {
	tuples := make([]string, 0, len(tables))
	for _, t := range tables {
		for _, c := range t.Columns {
			tuples = append(tuples, t.TableName+"\x00"+c.Name+"\x00"+c.DeclaredType)
		}
	}
	sort.Strings(tuples)

	h := xxhash.New()
	for _, tuple := range tuples {
		h.WriteString(tuple)
		h.WriteString("\x1e")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Key returns the cache key for a (source, schema) pair.
func Key(sourceID, schemaName string) string {
	return strings.ToLower(sourceID) + "/" + schemaName
}
