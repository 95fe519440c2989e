package postgres

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func newSessionRepoWithMock(t *testing.T) (*SessionRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &SessionRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestEnsureSessionIsIdempotent(t *testing.T) {
	repo, mock, done := newSessionRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO sessions").
		WithArgs("conv-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := repo.EnsureSession(context.Background(), "conv-1"); err != nil {
		t.Fatalf("EnsureSession() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestRecordRetrievalStoresHistory(t *testing.T) {
	repo, mock, done := newSessionRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO session_retrievals").
		WithArgs("conv-1", []byte(`["doc-1","doc-2"]`), []byte(`["access","review"]`), "access_review", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE sessions SET updated_at").
		WithArgs("conv-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RecordRetrieval(context.Background(), "conv-1", []string{"doc-1", "doc-2"}, []string{"access", "review"}, "access_review")
	if err != nil {
		t.Fatalf("RecordRetrieval() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadContextAggregatesRecentRetrievals(t *testing.T) {
	repo, mock, done := newSessionRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"document_ids", "topics", "document_type"}).
		AddRow([]byte(`["doc-2","doc-1"]`), []byte(`["material"]`), "").
		AddRow([]byte(`["doc-1"]`), []byte(`["access","material"]`), "access_review")

	mock.ExpectQuery("SELECT document_ids, topics").
		WithArgs("conv-1", sessionHistoryDepth).
		WillReturnRows(rows)

	session, err := repo.LoadContext(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("LoadContext() error = %v", err)
	}
	if session.ConversationID != "conv-1" {
		t.Fatalf("expected conversation id, got %q", session.ConversationID)
	}
	if len(session.RecentDocumentIDs) != 2 || session.RecentDocumentIDs[0] != "doc-2" || session.RecentDocumentIDs[1] != "doc-1" {
		t.Fatalf("expected deduplicated most-recent-first doc ids, got %v", session.RecentDocumentIDs)
	}
	if len(session.RecentTopics) != 2 || session.RecentTopics[0] != "material" || session.RecentTopics[1] != "access" {
		t.Fatalf("expected deduplicated topics, got %v", session.RecentTopics)
	}
	if session.ActiveDocumentType != "access_review" {
		t.Fatalf("expected latest non-empty document type, got %q", session.ActiveDocumentType)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLoadContextEmptyHistory(t *testing.T) {
	repo, mock, done := newSessionRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT document_ids, topics").
		WithArgs("conv-1", sessionHistoryDepth).
		WillReturnRows(sqlmock.NewRows([]string{"document_ids", "topics", "document_type"}))

	session, err := repo.LoadContext(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("LoadContext() error = %v", err)
	}
	if len(session.RecentDocumentIDs) != 0 || len(session.RecentTopics) != 0 || session.ActiveDocumentType != "" {
		t.Fatalf("expected empty session context, got %+v", session)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
