package ports

import (
	"context"
	"io"

	"github.com/auditwise/docqa/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor is the inbound contract for asynchronous document processing.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// DocumentReader is the inbound read model for document metadata/state.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
}

// DocumentRemover deletes a document and invalidates derived retrieval state.
type DocumentRemover interface {
	Remove(ctx context.Context, documentID string) error
}

// Retriever is the single retrieval entry point exposed to the chat
// and workflow layers.
type Retriever interface {
	Retrieve(ctx context.Context, query string, limit int, filter domain.SearchFilter, session domain.SessionContext) (domain.FusionResult, error)
	Invalidate(documentID string) int
	CacheStats() CacheStats
}

// ClassificationModeSelector decides the fast/fallback classification
// path for a fusion result.
type ClassificationModeSelector interface {
	Decide(result domain.FusionResult, override *domain.ClassificationMode) domain.ClassificationDecision
}

// ChatService answers a question over the document corpus.
type ChatService interface {
	Answer(ctx context.Context, req domain.ChatRequest) (*domain.Answer, error)
}
