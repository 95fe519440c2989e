package retrieval

import (
	"context"
	"strings"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

const classifiedTypeBoost = 0.2

// ClassificationEnhancedStrategy boosts chunks whose document type
// matches the type previously classified for the active document in
// this session. Not applicable without a classified type.
type ClassificationEnhancedStrategy struct {
	searcher semanticSearcher
}

func NewClassificationEnhancedStrategy(embedder ports.Embedder, vector ports.VectorStore) *ClassificationEnhancedStrategy {
	return &ClassificationEnhancedStrategy{searcher: semanticSearcher{embedder: embedder, vector: vector}}
}

func (s *ClassificationEnhancedStrategy) Kind() Kind { return KindClassification }

func (s *ClassificationEnhancedStrategy) Execute(ctx context.Context, q domain.RetrievalQuery) ([]domain.Candidate, error) {
	activeType := strings.TrimSpace(q.Session.ActiveDocumentType)
	if activeType == "" || activeType == domain.DocumentTypeUnclassified {
		return nil, nil
	}

	found, err := s.searcher.search(ctx, q.Text, q.Limit*2, q.Filter)
	if err != nil {
		return nil, err
	}

	for i := range found {
		if strings.EqualFold(found[i].Metadata.DocumentType, activeType) {
			found[i].RawScore *= 1.0 + classifiedTypeBoost
		}
	}

	sortByRawScore(found)
	return trimCandidates(found, q.Limit), nil
}
