package retrieval

import (
	"context"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

// MetadataStrategy restricts the search space to chunks matching the
// request's filter before scoring. Not applicable without a filter.
type MetadataStrategy struct {
	searcher semanticSearcher
}

func NewMetadataStrategy(embedder ports.Embedder, vector ports.VectorStore) *MetadataStrategy {
	return &MetadataStrategy{searcher: semanticSearcher{embedder: embedder, vector: vector}}
}

func (s *MetadataStrategy) Kind() Kind { return KindMetadata }

func (s *MetadataStrategy) Execute(ctx context.Context, q domain.RetrievalQuery) ([]domain.Candidate, error) {
	if q.Filter.IsZero() {
		return nil, nil
	}

	found, err := s.searcher.search(ctx, q.Text, q.Limit, q.Filter)
	if err != nil {
		return nil, err
	}
	sortByRawScore(found)
	return trimCandidates(found, q.Limit), nil
}
