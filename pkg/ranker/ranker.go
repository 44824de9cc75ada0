// Package ranker turns a free-text query into a relevance-sorted,
// threshold-filtered list of table candidates.
package ranker

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/embedding"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/metadata"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/preference"
	"github.com/HTEC-CGiray-Oner/llm-dq-agent/pkg/vectorindex"
)

// Boost weights. Additive and applied in this fixed order, each
// independently capped at 1.0 before the next is added, so later boosts
// compose predictably if more signals are added.
const (
	SourceBoost = 0.30
	NameBoost   = 0.20
)

// minOverFetch is the floor on raw candidates pulled from the index;
// boosting can promote results from outside the unboosted top-k.
const minOverFetch = 6

// Candidate is one ranked table.
type Candidate struct {
	Record       *metadata.TableMetadataRecord `json:"record"`
	BaseScore    float64                       `json:"base_score"`
	BoostedScore float64                       `json:"boosted_score"`
	Rank         int                           `json:"rank"`
}

// Result is a structured search outcome. A search never fails for "no
// good match": when every raw candidate falls below the threshold,
// Candidates is empty and NearMiss carries the best unfiltered candidate
// so callers can report "closest was X at Y%".
type Result struct {
	Candidates []Candidate `json:"candidates"`
	NearMiss   *Candidate  `json:"near_miss,omitempty"`
}

// Config tunes a Searcher. Zero boost values fall back to the package
// defaults.
type Config struct {
	Collection  string
	SourceBoost float64
	NameBoost   float64
}

// Searcher ranks indexed tables against natural-language queries. It is
// stateless between calls apart from the preference mapper's cached
// mapping.
type Searcher struct {
	store       vectorindex.Store
	embedder    embedding.Provider
	mapper      *preference.Mapper
	collection  string
	sourceBoost float64
	nameBoost   float64
	logger      *zap.Logger
}

// NewSearcher creates a Searcher. If logger is nil, a no-op logger is
// used.
func NewSearcher(store vectorindex.Store, embedder embedding.Provider, mapper *preference.Mapper, cfg Config, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SourceBoost == 0 {
		cfg.SourceBoost = SourceBoost
	}
	if cfg.NameBoost == 0 {
		cfg.NameBoost = NameBoost
	}
	return &Searcher{
		store:       store,
		embedder:    embedder,
		mapper:      mapper,
		collection:  cfg.Collection,
		sourceBoost: cfg.SourceBoost,
		nameBoost:   cfg.NameBoost,
		logger:      logger,
	}
}

// Search embeds the query, runs a similarity search with over-fetch,
// applies source-preference and name-match boosts, filters on the
// inclusive minRelevance threshold and returns the top topK candidates.
func (s *Searcher) Search(ctx context.Context, query string, topK int, minRelevance float64) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query must not be empty")
	}
	if topK <= 0 {
		return nil, fmt.Errorf("top_k must be positive, got %d", topK)
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	overFetch := topK * 2
	if overFetch < minOverFetch {
		overFetch = minOverFetch
	}

	matches, err := s.store.Search(ctx, s.collection, vector, overFetch)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	if len(matches) == 0 {
		return &Result{Candidates: []Candidate{}}, nil
	}

	preferredSource, err := s.mapper.Detect(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("detect source preference: %w", err)
	}

	queryTokens := strings.Fields(strings.ToLower(query))

	scored := make([]Candidate, 0, len(matches))
	for _, m := range matches {
		base := 1 - m.Distance
		scored = append(scored, Candidate{
			Record:       m.Record,
			BaseScore:    base,
			BoostedScore: s.boost(base, m.Record, preferredSource, queryTokens),
		})
	}

	sortCandidates(scored)

	kept := make([]Candidate, 0, len(scored))
	for _, c := range scored {
		if c.BoostedScore >= minRelevance {
			kept = append(kept, c)
		}
	}

	result := &Result{}
	if len(kept) == 0 {
		best := scored[0]
		result.Candidates = []Candidate{}
		result.NearMiss = &best
		s.logger.Debug("No candidate met the relevance threshold",
			zap.String("query", query),
			zap.Float64("min_relevance", minRelevance),
			zap.String("closest", best.Record.QualifiedName),
			zap.Float64("closest_score", best.BoostedScore))
		return result, nil
	}

	if len(kept) > topK {
		kept = kept[:topK]
	}
	for i := range kept {
		kept[i].Rank = i + 1
	}
	result.Candidates = kept
	return result, nil
}

func (s *Searcher) boost(base float64, record *metadata.TableMetadataRecord, preferredSource string, queryTokens []string) float64 {
	score := base

	if preferredSource != "" && record.SourceID == preferredSource {
		score = capAtOne(score + s.sourceBoost)
	}
	if nameMatches(record.ShortName, queryTokens) {
		score = capAtOne(score + s.nameBoost)
	}
	return score
}

// nameMatches reports whether any query token equals or is contained in
// the table's short name. Plural tokens also match their singular form,
// so "customers" hits a table named "customer".
func nameMatches(shortName string, queryTokens []string) bool {
	name := strings.ToLower(shortName)
	if name == "" {
		return false
	}
	for _, token := range queryTokens {
		if token == name || strings.Contains(name, token) {
			return true
		}
		if singular := inflection.Singular(token); singular != token && strings.Contains(name, singular) {
			return true
		}
	}
	return false
}

func capAtOne(score float64) float64 {
	if score > 1.0 {
		return 1.0
	}
	return score
}

// sortCandidates orders by boosted score descending, ties broken by
// qualified_name ascending.
func sortCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].BoostedScore != candidates[j].BoostedScore {
			return candidates[i].BoostedScore > candidates[j].BoostedScore
		}
		return candidates[i].Record.QualifiedName < candidates[j].Record.QualifiedName
	})
}
