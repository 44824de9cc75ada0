// Package preference derives a mapping from naming tokens to source
// identifiers, learned from what is already indexed, and uses it to
// interpret ambiguous query terms.
package preference

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/config"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
)

// minTokenLength drops tokens too short to be a useful signal.
const minTokenLength = 3

// Mapping maps a lower-cased naming token to a source id. It is a
// derived read-model: always recomputed from the index, never persisted.
type Mapping map[string]string

// ListRecordsFunc enumerates all indexed records, used to rebuild the
// mapping on demand.
type ListRecordsFunc func(ctx context.Context) ([]*metadata.TableMetadataRecord, error)

// Mapper resolves a query's source preference. The learned mapping is
// cached and rebuilt lazily after Invalidate, with a read-mostly lock so
// concurrent readers never observe a partial rebuild.
type Mapper struct {
	sourceIDs []string
	keywords  []config.KeywordRule
	list      ListRecordsFunc

	mu      sync.RWMutex
	mapping Mapping // nil means stale
}

// NewMapper creates a mapper. sourceIDs is the stable list of configured
// source identifiers; keywords are configuration-supplied (pattern,
// source_id) pairs checked before the learned mapping.
func NewMapper(sourceIDs []string, keywords []config.KeywordRule, list ListRecordsFunc) *Mapper {
	return &Mapper{
		sourceIDs: sourceIDs,
		keywords:  keywords,
		list:      list,
	}
}

// Invalidate marks the cached mapping stale. The next Detect rebuilds it.
func (m *Mapper) Invalidate() {
	m.mu.Lock()
	m.mapping = nil
	m.mu.Unlock()
}

// Detect returns the preferred source id for a query, or "" when no
// signal fires. "No preference" is a common, valid result.
func (m *Mapper) Detect(ctx context.Context, query string) (string, error) {
	mapping, err := m.currentMapping(ctx)
	if err != nil {
		return "", err
	}
	return m.detect(query, mapping), nil
}

func (m *Mapper) currentMapping(ctx context.Context) (Mapping, error) {
	m.mu.RLock()
	mapping := m.mapping
	m.mu.RUnlock()
	if mapping != nil {
		return mapping, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mapping != nil {
		return m.mapping, nil
	}

	records, err := m.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexed records: %w", err)
	}
	m.mapping = Rebuild(records)
	return m.mapping, nil
}

func (m *Mapper) detect(query string, mapping Mapping) string {
	lowered := strings.ToLower(query)

	// An explicit source name in the query is the highest-confidence
	// signal and always wins. A query naming several sources is
	// ambiguous; boosting any one of them would be a guess, so none is
	// preferred.
	var explicit []string
	for _, id := range m.sourceIDs {
		if strings.Contains(lowered, strings.ToLower(id)) {
			explicit = append(explicit, id)
		}
	}
	if len(explicit) == 1 {
		return explicit[0]
	}
	if len(explicit) > 1 {
		return ""
	}

	for _, rule := range m.keywords {
		if rule.Pattern != "" && strings.Contains(lowered, strings.ToLower(rule.Pattern)) {
			return rule.SourceID
		}
	}

	for _, token := range Tokenize(query) {
		if sourceID, ok := mapping[token]; ok {
			return sourceID
		}
	}

	return ""
}

// Rebuild derives a Mapping from the full set of indexed records.
// Tokens come from the leading path segment of each qualified name (the
// catalog/database portion), split on non-alphanumeric boundaries,
// lower-cased, length >= 3. Each token maps to the source id most
// frequently associated with it; ties go to the source seen first.
func Rebuild(records []*metadata.TableMetadataRecord) Mapping {
	type tally struct {
		counts    map[string]int
		firstSeen []string
	}
	tallies := make(map[string]*tally)

	for _, r := range records {
		segment, _, _ := strings.Cut(r.QualifiedName, ".")
		for _, token := range splitTokens(segment) {
			t, ok := tallies[token]
			if !ok {
				t = &tally{counts: make(map[string]int)}
				tallies[token] = t
			}
			if t.counts[r.SourceID] == 0 {
				t.firstSeen = append(t.firstSeen, r.SourceID)
			}
			t.counts[r.SourceID]++
		}
	}

	mapping := make(Mapping, len(tallies))
	for token, t := range tallies {
		best := ""
		bestCount := 0
		for _, sourceID := range t.firstSeen {
			if t.counts[sourceID] > bestCount {
				best = sourceID
				bestCount = t.counts[sourceID]
			}
		}
		mapping[token] = best
	}
	return mapping
}

// Tokenize splits free text into lower-cased tokens of length >= 3.
func Tokenize(text string) []string {
	return splitTokens(text)
}

func splitTokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		if len(f) >= minTokenLength {
			tokens = append(tokens, f)
		}
	}
	return tokens
}
