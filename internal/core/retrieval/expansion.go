package retrieval

import (
	"context"
	"strings"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

const maxExpandedQueries = 5

// auditExpansions maps trigger vocabulary to audit/compliance synonyms
// appended to the query before searching.
var auditExpansions = map[string][]string{
	"sox":               {"SOX 404", "Sarbanes-Oxley", "internal controls", "financial reporting"},
	"access_review":     {"user access", "permissions", "authorization", "access controls"},
	"material_weakness": {"material weakness", "significant deficiency", "control deficiency"},
	"compliance":        {"compliance", "regulatory", "audit", "governance"},
	"risk":              {"risk assessment", "risk management", "risk mitigation"},
	"financial":         {"financial", "accounting", "reconciliation", "month-end close"},
}

var expansionCategories = []string{
	"access_review",
	"compliance",
	"financial",
	"material_weakness",
	"risk",
	"sox",
}

// QueryExpansionStrategy rewrites the query with domain synonyms and
// unions the per-variant dense searches. Candidates carry the
// expansion term that surfaced them.
type QueryExpansionStrategy struct {
	searcher semanticSearcher
}

func NewQueryExpansionStrategy(embedder ports.Embedder, vector ports.VectorStore) *QueryExpansionStrategy {
	return &QueryExpansionStrategy{searcher: semanticSearcher{embedder: embedder, vector: vector}}
}

func (s *QueryExpansionStrategy) Kind() Kind { return KindQueryExpansion }

func (s *QueryExpansionStrategy) Execute(ctx context.Context, q domain.RetrievalQuery) ([]domain.Candidate, error) {
	variants := expandQuery(q.Text)

	perVariant := q.Limit / len(variants)
	if perVariant < 1 {
		perVariant = 1
	}

	all := make([]domain.Candidate, 0, q.Limit*2)
	for _, v := range variants {
		found, err := s.searcher.search(ctx, v.query, perVariant, q.Filter)
		if err != nil {
			return nil, err
		}
		for _, c := range found {
			c.MatchedExpansion = v.term
			all = append(all, c)
		}
	}

	out := dedupeByChunkID(all)
	sortByRawScore(out)
	return trimCandidates(out, q.Limit), nil
}

type queryVariant struct {
	query string
	term  string
}

// expandQuery returns the original query plus synonym-augmented
// variants for every expansion category the query mentions, capped at
// maxExpandedQueries. Categories are walked in fixed order so the
// variant set is deterministic.
func expandQuery(query string) []queryVariant {
	variants := []queryVariant{{query: query}}
	lower := strings.ToLower(query)

	for _, category := range expansionCategories {
		terms := auditExpansions[category]
		if !mentionsCategory(lower, category, terms) {
			continue
		}
		for _, term := range terms {
			if len(variants) >= maxExpandedQueries {
				return variants
			}
			variants = append(variants, queryVariant{
				query: query + " " + term,
				term:  term,
			})
		}
	}
	return variants
}

func mentionsCategory(lowerQuery, category string, terms []string) bool {
	triggers := []string{strings.ReplaceAll(category, "_", " ")}
	if len(terms) > 2 {
		terms = terms[:2]
	}
	triggers = append(triggers, terms...)

	for _, trigger := range triggers {
		if strings.Contains(lowerQuery, strings.ToLower(trigger)) {
			return true
		}
	}
	return false
}
