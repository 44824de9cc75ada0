// Package indexer drives the end-to-end index build: schema selection,
// table discovery, document construction, fingerprint short-circuiting,
// embedding and index writes.
package indexer

import (
	"context"
	"fmt"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/adapters/datasource"
)

// SelectorMode picks how schemas are chosen for a build.
type SelectorMode string

const (
	// SelectAll discovers every schema the adapter reports, minus an
	// exclude set.
	SelectAll SelectorMode = "all"
	// SelectExplicit indexes a caller-provided schema list.
	SelectExplicit SelectorMode = "explicit"
	// SelectCurrent indexes only the session's default schema.
	SelectCurrent SelectorMode = "current"
)

// SchemaSelector chooses the schemas an index build covers.
type SchemaSelector struct {
	Mode    SelectorMode
	Schemas []string // explicit list for SelectExplicit
	Exclude []string // names filtered out of SelectAll discovery
}

// AllSchemas auto-discovers every schema, filtering the exclude set.
func AllSchemas(exclude ...string) SchemaSelector {
	return SchemaSelector{Mode: SelectAll, Exclude: exclude}
}

// ExplicitSchemas indexes exactly the named schemas.
func ExplicitSchemas(names ...string) SchemaSelector {
	return SchemaSelector{Mode: SelectExplicit, Schemas: names}
}

// CurrentSchemaOnly indexes the adapter session's default schema.
func CurrentSchemaOnly() SchemaSelector {
	return SchemaSelector{Mode: SelectCurrent}
}

// Resolve turns the selector into a concrete schema list for one source.
func (s SchemaSelector) Resolve(ctx context.Context, adapter datasource.Adapter) ([]string, error) {
	switch s.Mode {
	case SelectAll:
		schemas, err := adapter.ListSchemas(ctx)
		if err != nil {
			return nil, fmt.Errorf("list schemas: %w", err)
		}
		excluded := make(map[string]bool, len(s.Exclude))
		for _, name := range s.Exclude {
			excluded[name] = true
		}
		kept := schemas[:0]
		for _, name := range schemas {
			if !excluded[name] {
				kept = append(kept, name)
			}
		}
		return kept, nil

	case SelectExplicit:
		if len(s.Schemas) == 0 {
			return nil, fmt.Errorf("explicit schema selector requires at least one schema")
		}
		return s.Schemas, nil

	case SelectCurrent:
		current, err := adapter.CurrentSchema(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve current schema: %w", err)
		}
		return []string{current}, nil

	default:
		return nil, fmt.Errorf("unknown schema selector mode %q", s.Mode)
	}
}
