package retrieval

import (
	"context"
	"fmt"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

// Fixed blend between dense similarity and lexical match. A chunk
// found by only one side keeps that side's contribution; it is not
// penalized twice.
const (
	hybridSemanticWeight = 0.7
	hybridKeywordWeight  = 0.3
)

// HybridStrategy merges dense semantic search with lexical search into
// one raw score per chunk.
type HybridStrategy struct {
	searcher semanticSearcher
	vector   ports.VectorStore
}

func NewHybridStrategy(embedder ports.Embedder, vector ports.VectorStore) *HybridStrategy {
	return &HybridStrategy{
		searcher: semanticSearcher{embedder: embedder, vector: vector},
		vector:   vector,
	}
}

func (s *HybridStrategy) Kind() Kind { return KindHybrid }

func (s *HybridStrategy) Execute(ctx context.Context, q domain.RetrievalQuery) ([]domain.Candidate, error) {
	// Over-fetch on both sides so the blend has something to rerank.
	fetch := q.Limit * 2

	semantic, err := s.searcher.search(ctx, q.Text, fetch, q.Filter)
	if err != nil {
		return nil, err
	}

	lexical, err := s.vector.SearchLexical(ctx, q.Text, fetch, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	type blended struct {
		candidate domain.Candidate
		semantic  float64
		keyword   float64
	}

	acc := make(map[string]*blended, len(semantic)+len(lexical))
	order := make([]string, 0, len(semantic)+len(lexical))

	for _, c := range semantic {
		acc[c.ChunkID] = &blended{candidate: c, semantic: c.RawScore}
		order = append(order, c.ChunkID)
	}
	for _, c := range lexical {
		if b, ok := acc[c.ChunkID]; ok {
			b.keyword = c.RawScore
			continue
		}
		acc[c.ChunkID] = &blended{candidate: c, keyword: c.RawScore}
		order = append(order, c.ChunkID)
	}

	out := make([]domain.Candidate, 0, len(acc))
	for _, chunkID := range order {
		b := acc[chunkID]
		c := b.candidate
		c.RawScore = hybridSemanticWeight*b.semantic + hybridKeywordWeight*b.keyword
		out = append(out, c)
	}

	sortByRawScore(out)
	return trimCandidates(out, q.Limit), nil
}
