package retrieval

import (
	"context"
	"strings"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

const (
	multiHopCount      = 2
	salientSourceDocs  = 3
	salientTermsPerDoc = 3
	salientTermsTotal  = 3
	salientMinLength   = 6
)

// MultiHopStrategy runs a first-pass search, extracts salient terms
// from the top results, and issues a second pass with those terms
// appended. Both passes are unioned.
type MultiHopStrategy struct {
	searcher semanticSearcher
}

func NewMultiHopStrategy(embedder ports.Embedder, vector ports.VectorStore) *MultiHopStrategy {
	return &MultiHopStrategy{searcher: semanticSearcher{embedder: embedder, vector: vector}}
}

func (s *MultiHopStrategy) Kind() Kind { return KindMultiHop }

func (s *MultiHopStrategy) Execute(ctx context.Context, q domain.RetrievalQuery) ([]domain.Candidate, error) {
	perHop := q.Limit / multiHopCount
	if perHop < 1 {
		perHop = 1
	}

	first, err := s.searcher.search(ctx, q.Text, perHop, q.Filter)
	if err != nil {
		return nil, err
	}

	all := append([]domain.Candidate(nil), first...)

	followUp := followUpQuery(q.Text, first)
	if followUp != q.Text {
		second, err := s.searcher.search(ctx, followUp, perHop, q.Filter)
		if err != nil {
			return nil, err
		}
		all = append(all, second...)
	}

	out := dedupeByChunkID(all)
	sortByRawScore(out)
	return trimCandidates(out, q.Limit), nil
}

// followUpQuery appends salient terms from the top first-pass results.
// Terms already present in the query are skipped so the second hop
// actually moves somewhere new.
func followUpQuery(query string, results []domain.Candidate) string {
	queryTokens := toTokenSet(query)

	terms := make([]string, 0, salientTermsTotal)
	seen := make(map[string]struct{})

	docs := results
	if len(docs) > salientSourceDocs {
		docs = docs[:salientSourceDocs]
	}

	for _, r := range docs {
		picked := 0
		for _, token := range splitAlphaNumLower(r.Text) {
			if len(terms) >= salientTermsTotal {
				break
			}
			if picked >= salientTermsPerDoc {
				break
			}
			if len(token) < salientMinLength || !isAlpha(token) {
				continue
			}
			if _, dup := seen[token]; dup {
				continue
			}
			if _, inQuery := queryTokens[token]; inQuery {
				continue
			}
			seen[token] = struct{}{}
			terms = append(terms, token)
			picked++
		}
	}

	if len(terms) == 0 {
		return query
	}
	return query + " " + strings.Join(terms, " ")
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return s != ""
}
