package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

// IngestDocumentUseCase accepts an uploaded file, persists it to
// object storage and the metadata store, and hands the rest of the
// pipeline to the worker over the queue. The upload path stays cheap
// so the API can acknowledge quickly.
type IngestDocumentUseCase struct {
	repo    ports.DocumentRepository
	storage ports.ObjectStorage
	queue   ports.MessageQueue
}

func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
) *IngestDocumentUseCase {
	return &IngestDocumentUseCase{
		repo:    repo,
		storage: storage,
		queue:   queue,
	}
}

func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("filename is required"))
	}

	doc := newUploadedDocument(filename, mimeType)

	// Storage goes first: a row pointing at a missing blob is worse
	// than an orphaned blob.
	if err := uc.storage.Save(ctx, doc.StoragePath, body); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}
	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}
	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

func newUploadedDocument(filename, mimeType string) *domain.Document {
	id := uuid.NewString()
	now := time.Now().UTC()
	return &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: fmt.Sprintf("%s_%s", id, sanitizeFilename(filename)),
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// sanitizeFilename keeps storage keys safe for the filesystem backend:
// only ASCII letters, digits, dots, dashes, and underscores survive.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range filepath.Base(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "document.bin"
	}
	return b.String()
}
