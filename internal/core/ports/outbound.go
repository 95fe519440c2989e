package ports

import (
	"context"
	"io"
	"time"

	"github.com/auditwise/docqa/internal/core/domain"
)

// DocumentRepository persists and reads document state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SaveClassification(ctx context.Context, id string, cls domain.Classification) error
	Delete(ctx context.Context, id string) error
}

// ObjectStorage stores source documents.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// MessageQueue publishes/consumes document lifecycle events. Updated
// events fire after a document is (re)indexed or deleted and drive
// retrieval cache invalidation in the API process.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
	PublishDocumentUpdated(ctx context.Context, documentID string) error
	SubscribeDocumentUpdated(ctx context.Context, handler func(context.Context, string) error) error
}

// TextExtractor extracts plain text from a stored document.
type TextExtractor interface {
	Extract(ctx context.Context, doc *domain.Document) (string, error)
}

// DocumentClassifier classifies extracted text into audit metadata.
type DocumentClassifier interface {
	Classify(ctx context.Context, text string) (domain.Classification, error)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits text into semantically usable chunks.
type Chunker interface {
	Split(text string) []string
}

// VectorStore indexes chunks and performs dense and lexical search.
type VectorStore interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.Candidate, error)
	SearchLexical(ctx context.Context, queryText string, limit int, filter domain.SearchFilter) ([]domain.Candidate, error)
	DeleteDocument(ctx context.Context, documentID string) error
}

// AnswerGenerator creates the final user-facing answer.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, candidates []domain.Candidate) (string, error)
	GenerateFromPrompt(ctx context.Context, prompt string) (string, error)
}

// WebSearchProvider augments answers with external compliance
// guidance. Optional: callers tolerate a nil implementation.
type WebSearchProvider interface {
	SearchComplianceGuidance(ctx context.Context, query, documentType, framework string) (*domain.WebGuidance, error)
}

// SessionStore records per-conversation retrieval history used to
// build the SessionContext for follow-up questions.
type SessionStore interface {
	EnsureSession(ctx context.Context, conversationID string) error
	RecordRetrieval(ctx context.Context, conversationID string, documentIDs []string, topics []string, documentType string) error
	LoadContext(ctx context.Context, conversationID string) (domain.SessionContext, error)
}

// CacheStats is the stats record exposed by the result cache.
type CacheStats struct {
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Evictions uint64  `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// ResultCache is the bounded TTL+LRU store for fused retrieval
// results. It is advisory: implementations must never let an internal
// fault abort the surrounding retrieval.
type ResultCache interface {
	Get(query string, limit int, filter domain.SearchFilter) (domain.FusionResult, bool)
	Set(query string, limit int, filter domain.SearchFilter, value domain.FusionResult, ttl time.Duration)
	InvalidatePattern(pattern string) int
	InvalidateDocument(documentID string) int
	Clear()
	Stats() CacheStats
}
