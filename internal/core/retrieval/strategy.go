package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

// Kind tags a retrieval strategy. Dispatch always goes through the
// Strategy interface; the tag exists for weights, logs and metrics.
type Kind string

const (
	KindHybrid         Kind = "hybrid"
	KindQueryExpansion Kind = "query_expansion"
	KindMultiHop       Kind = "multi_hop"
	KindMetadata       Kind = "metadata"
	KindConversational Kind = "conversational"
	KindClassification Kind = "classification_enhanced"
)

// Kinds returns every known strategy kind in stable order.
func Kinds() []Kind {
	return []Kind{
		KindHybrid,
		KindQueryExpansion,
		KindMultiHop,
		KindMetadata,
		KindConversational,
		KindClassification,
	}
}

// Strategy produces a scored candidate list for a query. A strategy
// that does not apply to the given query (e.g. metadata strategy with
// no filter) returns an empty list and no error. Within one strategy's
// list every chunk id appears at most once.
type Strategy interface {
	Kind() Kind
	Execute(ctx context.Context, q domain.RetrievalQuery) ([]domain.Candidate, error)
}

// semanticSearcher embeds the query text and runs a dense search; the
// shared first step of most strategies.
type semanticSearcher struct {
	embedder ports.Embedder
	vector   ports.VectorStore
}

func (s semanticSearcher) search(ctx context.Context, text string, limit int, filter domain.SearchFilter) ([]domain.Candidate, error) {
	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	candidates, err := s.vector.Search(ctx, vector, limit, filter)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	return candidates, nil
}

// dedupeByChunkID keeps the highest-scoring occurrence of each chunk.
// Order of the surviving entries follows their first appearance.
func dedupeByChunkID(candidates []domain.Candidate) []domain.Candidate {
	index := make(map[string]int, len(candidates))
	out := make([]domain.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if at, ok := index[c.ChunkID]; ok {
			if c.RawScore > out[at].RawScore {
				out[at] = c
			}
			continue
		}
		index[c.ChunkID] = len(out)
		out = append(out, c)
	}
	return out
}

// sortByRawScore orders candidates descending by raw score with chunk
// id as the deterministic tie-break.
func sortByRawScore(candidates []domain.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].RawScore != candidates[j].RawScore {
			return candidates[i].RawScore > candidates[j].RawScore
		}
		return candidates[i].ChunkID < candidates[j].ChunkID
	})
}

func trimCandidates(candidates []domain.Candidate, limit int) []domain.Candidate {
	if limit <= 0 || len(candidates) <= limit {
		return candidates
	}
	return candidates[:limit]
}
