package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/auditwise/docqa/internal/core/domain"
)

type statusCall struct {
	status domain.DocumentStatus
	errMsg string
}

type processRepoFake struct {
	doc              *domain.Document
	getErr           error
	saveErr          error
	statusErr        error
	failStatusErr    error
	statusCalls      []statusCall
	classification   domain.Classification
	classificationID string
}

func (f *processRepoFake) Create(context.Context, *domain.Document) error { return nil }

func (f *processRepoFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	copyDoc := *f.doc
	return &copyDoc, nil
}

func (f *processRepoFake) UpdateStatus(_ context.Context, _ string, status domain.DocumentStatus, errMessage string) error {
	f.statusCalls = append(f.statusCalls, statusCall{status: status, errMsg: errMessage})
	if status == domain.StatusFailed && f.failStatusErr != nil {
		return f.failStatusErr
	}
	if f.statusErr != nil {
		return f.statusErr
	}
	return nil
}

func (f *processRepoFake) SaveClassification(_ context.Context, id string, cls domain.Classification) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.classificationID = id
	f.classification = cls
	return nil
}

func (f *processRepoFake) Delete(context.Context, string) error { return nil }

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(context.Context, *domain.Document) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type processClassifierFake struct {
	cls domain.Classification
	err error
}

func (f *processClassifierFake) Classify(context.Context, string) (domain.Classification, error) {
	if f.err != nil {
		return domain.Classification{}, f.err
	}
	return f.cls, nil
}

type chunkerFake struct {
	chunks []string
}

func (f *chunkerFake) Split(string) []string { return f.chunks }

type processEmbedderFake struct {
	vectors [][]float32
	err     error
}

func (f *processEmbedderFake) Embed(context.Context, []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vectors, nil
}

func (f *processEmbedderFake) EmbedQuery(context.Context, string) ([]float32, error) { return nil, nil }

type processVectorFake struct {
	err          error
	deletedDocs  []string
	indexedDoc   *domain.Document
	indexedTexts []string
}

func (f *processVectorFake) IndexChunks(_ context.Context, doc *domain.Document, chunks []string, _ [][]float32) error {
	if f.err != nil {
		return f.err
	}
	f.indexedDoc = doc
	f.indexedTexts = chunks
	return nil
}

func (f *processVectorFake) Search(context.Context, []float32, int, domain.SearchFilter) ([]domain.Candidate, error) {
	return nil, nil
}

func (f *processVectorFake) SearchLexical(context.Context, string, int, domain.SearchFilter) ([]domain.Candidate, error) {
	return nil, nil
}

func (f *processVectorFake) DeleteDocument(_ context.Context, documentID string) error {
	f.deletedDocs = append(f.deletedDocs, documentID)
	return nil
}

type processQueueFake struct {
	updatedIDs []string
	updateErr  error
}

func (f *processQueueFake) PublishDocumentIngested(context.Context, string) error {
	return errors.New("not implemented")
}

func (f *processQueueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func (f *processQueueFake) PublishDocumentUpdated(_ context.Context, documentID string) error {
	f.updatedIDs = append(f.updatedIDs, documentID)
	return f.updateErr
}

func (f *processQueueFake) SubscribeDocumentUpdated(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

func newProcessUseCase(repo *processRepoFake, classifier *processClassifierFake, embedder *processEmbedderFake, vector *processVectorFake, queue *processQueueFake, extractor *extractorFake, chunks []string) *ProcessDocumentUseCase {
	return NewProcessDocumentUseCase(
		repo,
		extractor,
		classifier,
		&chunkerFake{chunks: chunks},
		embedder,
		vector,
		queue,
		nil,
	)
}

func TestProcessByIDSuccess(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	vector := &processVectorFake{}
	queue := &processQueueFake{}
	uc := newProcessUseCase(
		repo,
		&processClassifierFake{cls: domain.Classification{DocumentType: "access_review", ComplianceFramework: "SOX"}},
		&processEmbedderFake{vectors: [][]float32{{1}, {2}}},
		vector,
		queue,
		&extractorFake{text: "text"},
		[]string{"a", "b"},
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[0].status != domain.StatusProcessing || repo.statusCalls[1].status != domain.StatusReady {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
	if repo.classificationID != "doc-1" {
		t.Fatalf("expected classification save for doc-1, got %s", repo.classificationID)
	}
	if repo.classification.DocumentType != "access_review" {
		t.Fatalf("expected persisted document type, got %+v", repo.classification)
	}
	if len(vector.deletedDocs) != 1 || vector.deletedDocs[0] != "doc-1" {
		t.Fatalf("expected stale chunks deleted before indexing, got %v", vector.deletedDocs)
	}
	if vector.indexedDoc == nil || vector.indexedDoc.DocumentType != "access_review" {
		t.Fatalf("expected classified document indexed, got %+v", vector.indexedDoc)
	}
	if len(queue.updatedIDs) != 1 || queue.updatedIDs[0] != "doc-1" {
		t.Fatalf("expected document updated event, got %v", queue.updatedIDs)
	}
}

func TestProcessByIDClassifierFailureIsNonFatal(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	vector := &processVectorFake{}
	uc := newProcessUseCase(
		repo,
		&processClassifierFake{err: errors.New("model unavailable")},
		&processEmbedderFake{vectors: [][]float32{{1}}},
		vector,
		&processQueueFake{},
		&extractorFake{text: "text"},
		[]string{"a"},
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("classifier failure must not fail processing, got %v", err)
	}
	if repo.classification.DocumentType != domain.DocumentTypeUnclassified {
		t.Fatalf("expected unclassified fallback persisted, got %+v", repo.classification)
	}
	if repo.statusCalls[len(repo.statusCalls)-1].status != domain.StatusReady {
		t.Fatalf("expected document ready despite classifier failure: %+v", repo.statusCalls)
	}
}

func TestProcessByIDMarksFailedOnExtractError(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	queue := &processQueueFake{}
	uc := newProcessUseCase(
		repo,
		&processClassifierFake{},
		&processEmbedderFake{vectors: [][]float32{{1}}},
		&processVectorFake{},
		queue,
		&extractorFake{err: errors.New("extract fail")},
		[]string{"a"},
	)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected processing + failed status updates, got %d", len(repo.statusCalls))
	}
	if repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected failed status, got %+v", repo.statusCalls[1])
	}
	if len(queue.updatedIDs) != 0 {
		t.Fatalf("failed processing must not publish an update, got %v", queue.updatedIDs)
	}
}

func TestProcessByIDMarksFailedOnVectorMismatch(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	uc := newProcessUseCase(
		repo,
		&processClassifierFake{cls: domain.Classification{DocumentType: "sox_report"}},
		&processEmbedderFake{vectors: [][]float32{{1}}},
		&processVectorFake{},
		&processQueueFake{},
		&extractorFake{text: "text"},
		[]string{"a", "b"},
	)

	err := uc.ProcessByID(context.Background(), "doc-1")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected final failed status, got %+v", repo.statusCalls)
	}
}

func TestProcessByIDUpdateEventFailureIsNonFatal(t *testing.T) {
	repo := &processRepoFake{doc: &domain.Document{ID: "doc-1"}}
	queue := &processQueueFake{updateErr: errors.New("nats down")}
	uc := newProcessUseCase(
		repo,
		&processClassifierFake{cls: domain.Classification{DocumentType: "sox_report"}},
		&processEmbedderFake{vectors: [][]float32{{1}}},
		&processVectorFake{},
		queue,
		&extractorFake{text: "text"},
		[]string{"a"},
	)

	if err := uc.ProcessByID(context.Background(), "doc-1"); err != nil {
		t.Fatalf("publish failure must not fail processing, got %v", err)
	}
}
