package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/auditwise/docqa/internal/core/ports"
)

// RemoveDocumentUseCase deletes a document everywhere it lives: the
// vector index, object storage, and the metadata row. The updated
// event fires last so subscribers invalidate retrieval caches after
// the chunks are already gone.
type RemoveDocumentUseCase struct {
	repo     ports.DocumentRepository
	storage  ports.ObjectStorage
	vectorDB ports.VectorStore
	queue    ports.MessageQueue
	logger   *slog.Logger
}

func NewRemoveDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	vectorDB ports.VectorStore,
	queue ports.MessageQueue,
	logger *slog.Logger,
) *RemoveDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RemoveDocumentUseCase{
		repo:     repo,
		storage:  storage,
		vectorDB: vectorDB,
		queue:    queue,
		logger:   logger,
	}
}

func (uc *RemoveDocumentUseCase) Remove(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	if err := uc.vectorDB.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete indexed chunks: %w", err)
	}

	// The source file is best-effort: the index and metadata row are
	// authoritative, an orphaned blob is only disk space.
	if err := uc.storage.Remove(ctx, doc.StoragePath); err != nil {
		uc.logger.Warn("stored file removal failed",
			"document_id", documentID,
			"storage_path", doc.StoragePath,
			"error", err,
		)
	}

	if err := uc.repo.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("delete document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentUpdated(ctx, documentID); err != nil {
		uc.logger.Warn("document updated event publish failed",
			"document_id", documentID,
			"error", err,
		)
	}

	return nil
}
