package usecase

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/auditwise/docqa/internal/core/domain"
)

type removeRepoFake struct {
	doc        *domain.Document
	getErr     error
	deleteErr  error
	deletedIDs []string
}

func (f *removeRepoFake) Create(context.Context, *domain.Document) error { return nil }

func (f *removeRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *removeRepoFake) UpdateStatus(context.Context, string, domain.DocumentStatus, string) error {
	return nil
}

func (f *removeRepoFake) SaveClassification(context.Context, string, domain.Classification) error {
	return nil
}

func (f *removeRepoFake) Delete(_ context.Context, id string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedIDs = append(f.deletedIDs, id)
	return nil
}

type removeStorageFake struct {
	removedKeys []string
	removeErr   error
}

func (f *removeStorageFake) Save(context.Context, string, io.Reader) error { return nil }

func (f *removeStorageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (f *removeStorageFake) Remove(_ context.Context, key string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	f.removedKeys = append(f.removedKeys, key)
	return nil
}

func removeFixture() (*removeRepoFake, *removeStorageFake, *processVectorFake, *processQueueFake, *RemoveDocumentUseCase) {
	repo := &removeRepoFake{doc: &domain.Document{ID: "doc-1", StoragePath: "doc-1_report.pdf"}}
	storage := &removeStorageFake{}
	vector := &processVectorFake{}
	queue := &processQueueFake{}
	uc := NewRemoveDocumentUseCase(repo, storage, vector, queue, nil)
	return repo, storage, vector, queue, uc
}

func TestRemoveDeletesEverywhere(t *testing.T) {
	repo, storage, vector, queue, uc := removeFixture()

	if err := uc.Remove(context.Background(), "doc-1"); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if len(vector.deletedDocs) != 1 || vector.deletedDocs[0] != "doc-1" {
		t.Fatalf("expected vector chunks deleted, got %v", vector.deletedDocs)
	}
	if len(storage.removedKeys) != 1 || storage.removedKeys[0] != "doc-1_report.pdf" {
		t.Fatalf("expected stored file removed, got %v", storage.removedKeys)
	}
	if len(repo.deletedIDs) != 1 || repo.deletedIDs[0] != "doc-1" {
		t.Fatalf("expected metadata row deleted, got %v", repo.deletedIDs)
	}
	if len(queue.updatedIDs) != 1 || queue.updatedIDs[0] != "doc-1" {
		t.Fatalf("expected document updated event, got %v", queue.updatedIDs)
	}
}

func TestRemoveUnknownDocument(t *testing.T) {
	repo, _, vector, _, uc := removeFixture()
	repo.getErr = domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("no rows"))

	err := uc.Remove(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected not found error, got %v", err)
	}
	if len(vector.deletedDocs) != 0 {
		t.Fatalf("nothing must be deleted for an unknown document, got %v", vector.deletedDocs)
	}
}

func TestRemoveStorageFailureIsNonFatal(t *testing.T) {
	repo, storage, _, queue, uc := removeFixture()
	storage.removeErr = errors.New("disk error")

	if err := uc.Remove(context.Background(), "doc-1"); err != nil {
		t.Fatalf("storage removal failure must not fail delete, got %v", err)
	}
	if len(repo.deletedIDs) != 1 {
		t.Fatalf("expected metadata deleted despite storage failure, got %v", repo.deletedIDs)
	}
	if len(queue.updatedIDs) != 1 {
		t.Fatalf("expected updated event despite storage failure, got %v", queue.updatedIDs)
	}
}

func TestRemoveRepoFailureAborts(t *testing.T) {
	repo, _, _, queue, uc := removeFixture()
	repo.deleteErr = errors.New("postgres down")

	if err := uc.Remove(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected error when metadata delete fails")
	}
	if len(queue.updatedIDs) != 0 {
		t.Fatalf("no updated event when delete fails, got %v", queue.updatedIDs)
	}
}
