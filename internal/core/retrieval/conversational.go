package retrieval

import (
	"context"
	"strings"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

const (
	continuityDocumentBoost = 0.15
	continuityTopicBoost    = 0.05
)

// ConversationalStrategy applies soft boosts to chunks from documents
// and topics seen in earlier turns of the session. Not applicable to
// sessionless requests.
type ConversationalStrategy struct {
	searcher semanticSearcher
}

func NewConversationalStrategy(embedder ports.Embedder, vector ports.VectorStore) *ConversationalStrategy {
	return &ConversationalStrategy{searcher: semanticSearcher{embedder: embedder, vector: vector}}
}

func (s *ConversationalStrategy) Kind() Kind { return KindConversational }

func (s *ConversationalStrategy) Execute(ctx context.Context, q domain.RetrievalQuery) ([]domain.Candidate, error) {
	if len(q.Session.RecentDocumentIDs) == 0 && len(q.Session.RecentTopics) == 0 {
		return nil, nil
	}

	found, err := s.searcher.search(ctx, q.Text, q.Limit*2, q.Filter)
	if err != nil {
		return nil, err
	}

	recentDocs := make(map[string]struct{}, len(q.Session.RecentDocumentIDs))
	for _, id := range q.Session.RecentDocumentIDs {
		recentDocs[id] = struct{}{}
	}
	topics := make([]string, 0, len(q.Session.RecentTopics))
	for _, topic := range q.Session.RecentTopics {
		topic = strings.ToLower(strings.TrimSpace(topic))
		if topic != "" {
			topics = append(topics, topic)
		}
	}

	for i := range found {
		boost := 1.0
		if _, ok := recentDocs[found[i].DocumentID]; ok {
			boost += continuityDocumentBoost
		}
		if matchesTopic(found[i].Text, topics) {
			boost += continuityTopicBoost
		}
		found[i].RawScore *= boost
	}

	sortByRawScore(found)
	return trimCandidates(found, q.Limit), nil
}

func matchesTopic(text string, topics []string) bool {
	if len(topics) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, topic := range topics {
		if strings.Contains(lower, topic) {
			return true
		}
	}
	return false
}
