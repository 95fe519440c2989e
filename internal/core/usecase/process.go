package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	repo       ports.DocumentRepository
	extractor  ports.TextExtractor
	classifier ports.DocumentClassifier
	chunker    ports.Chunker
	embedder   ports.Embedder
	vectorDB   ports.VectorStore
	queue      ports.MessageQueue
	logger     *slog.Logger
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	classifier ports.DocumentClassifier,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		repo:       repo,
		extractor:  extractor,
		classifier: classifier,
		chunker:    chunker,
		embedder:   embedder,
		vectorDB:   vectorDB,
		queue:      queue,
		logger:     logger,
	}
}

func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	if err := uc.markStatus(ctx, documentID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}

	doc, classification, err := uc.processPipeline(ctx, documentID)
	if err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.persistClassification(ctx, doc.ID, classification); err != nil {
		if failErr := uc.markFailed(ctx, documentID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, documentID, domain.StatusReady, ""); err != nil {
		return fmt.Errorf("set status=ready: %w", err)
	}

	// Retrieval caches keyed on this document are stale from here on.
	if err := uc.queue.PublishDocumentUpdated(ctx, documentID); err != nil {
		uc.logger.Warn("document updated event publish failed",
			"document_id", documentID,
			"error", err,
		)
	}

	return nil
}

func (uc *ProcessDocumentUseCase) processPipeline(ctx context.Context, documentID string) (*domain.Document, domain.Classification, error) {
	doc, err := uc.loadDocument(ctx, documentID)
	if err != nil {
		return nil, domain.Classification{}, err
	}

	text, err := uc.extractText(ctx, doc)
	if err != nil {
		return nil, domain.Classification{}, err
	}

	classification := uc.classify(ctx, doc.ID, text)

	chunks, err := uc.chunk(ctx, text)
	if err != nil {
		return nil, domain.Classification{}, err
	}

	vectors, err := uc.embed(ctx, chunks)
	if err != nil {
		return nil, domain.Classification{}, err
	}

	uc.applyClassification(doc, classification)

	if err := uc.index(ctx, doc, chunks, vectors); err != nil {
		return nil, domain.Classification{}, err
	}

	return doc, classification, nil
}

func (uc *ProcessDocumentUseCase) loadDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("fetch document by id: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) (string, error) {
	text, err := uc.extractor.Extract(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	if text == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", errors.New("empty extracted text"))
	}
	return text, nil
}

// classify never fails the pipeline. A document the classifier cannot
// handle is indexed as unclassified and stays searchable.
func (uc *ProcessDocumentUseCase) classify(ctx context.Context, documentID, text string) domain.Classification {
	classification, err := uc.classifier.Classify(ctx, text)
	if err != nil {
		uc.logger.Warn("document classification failed",
			"document_id", documentID,
			"error", err,
		)
		return domain.Unclassified()
	}
	return classification
}

func (uc *ProcessDocumentUseCase) chunk(_ context.Context, text string) ([]string, error) {
	chunks := uc.chunker.Split(text)
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document", errors.New("chunking produced zero chunks"))
	}
	return chunks, nil
}

func (uc *ProcessDocumentUseCase) embed(ctx context.Context, chunks []string) ([][]float32, error) {
	vectors, err := uc.embedder.Embed(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed chunks",
			fmt.Errorf("vectors/chunks mismatch: %d/%d", len(vectors), len(chunks)),
		)
	}
	return vectors, nil
}

// index replaces the document's chunks wholesale so reprocessing never
// leaves stale vectors behind.
func (uc *ProcessDocumentUseCase) index(ctx context.Context, doc *domain.Document, chunks []string, vectors [][]float32) error {
	if err := uc.vectorDB.DeleteDocument(ctx, doc.ID); err != nil {
		return fmt.Errorf("delete stale chunks: %w", err)
	}
	if err := uc.vectorDB.IndexChunks(ctx, doc, chunks, vectors); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) persistClassification(ctx context.Context, documentID string, classification domain.Classification) error {
	if err := uc.repo.SaveClassification(ctx, documentID, classification); err != nil {
		return fmt.Errorf("save classification: %w", err)
	}
	return nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}

func (uc *ProcessDocumentUseCase) markFailed(ctx context.Context, documentID string, processErr error) error {
	if processErr == nil {
		return nil
	}
	return uc.markStatus(ctx, documentID, domain.StatusFailed, processErr.Error())
}

func (uc *ProcessDocumentUseCase) applyClassification(doc *domain.Document, classification domain.Classification) {
	doc.DocumentType = classification.DocumentType
	doc.ComplianceFramework = classification.ComplianceFramework
	doc.RiskLevel = classification.RiskLevel
	doc.Company = classification.Company
	doc.Confidence = classification.Confidence
	doc.Summary = classification.Summary
}
