package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/auditwise/docqa/internal/core/domain"
)

const sessionHistoryDepth = 5

// SessionRepository persists per-conversation retrieval history. The
// history feeds the SessionContext used by the conversational and
// classification-enhanced retrieval strategies on follow-up questions.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082002)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS sessions (
	conversation_id TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS session_retrievals (
	id BIGSERIAL PRIMARY KEY,
	conversation_id TEXT NOT NULL REFERENCES sessions(conversation_id) ON DELETE CASCADE,
	document_ids JSONB NOT NULL DEFAULT '[]'::jsonb,
	topics JSONB NOT NULL DEFAULT '[]'::jsonb,
	document_type TEXT,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_session_retrievals_conversation ON session_retrievals(conversation_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) EnsureSession(ctx context.Context, conversationID string) error {
	now := time.Now().UTC()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO sessions (conversation_id, created_at, updated_at)
VALUES ($1, $2, $2)
ON CONFLICT (conversation_id) DO NOTHING
`, conversationID, now)
	if err != nil {
		return fmt.Errorf("ensure session insert: %w", err)
	}
	return nil
}

func (r *SessionRepository) RecordRetrieval(ctx context.Context, conversationID string, documentIDs []string, topics []string, documentType string) error {
	docsJSON, err := json.Marshal(emptyIfNil(documentIDs))
	if err != nil {
		return fmt.Errorf("marshal document ids: %w", err)
	}
	topicsJSON, err := json.Marshal(emptyIfNil(topics))
	if err != nil {
		return fmt.Errorf("marshal topics: %w", err)
	}

	now := time.Now().UTC()
	_, err = r.db.ExecContext(ctx, `
INSERT INTO session_retrievals (conversation_id, document_ids, topics, document_type, created_at)
VALUES ($1, $2, $3, $4, $5)
`, conversationID, docsJSON, topicsJSON, nullableString(documentType), now)
	if err != nil {
		return fmt.Errorf("record retrieval: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
UPDATE sessions SET updated_at = $2 WHERE conversation_id = $1
`, conversationID, now)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// LoadContext aggregates the most recent retrievals into the session
// signals the strategies consume. Document ids keep most-recent-first
// order; the active document type is the latest non-empty one.
func (r *SessionRepository) LoadContext(ctx context.Context, conversationID string) (domain.SessionContext, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT document_ids, topics, COALESCE(document_type, '')
FROM session_retrievals
WHERE conversation_id = $1
ORDER BY created_at DESC
LIMIT $2
`, conversationID, sessionHistoryDepth)
	if err != nil {
		return domain.SessionContext{}, fmt.Errorf("load session context: %w", err)
	}
	defer rows.Close()

	session := domain.SessionContext{ConversationID: conversationID}
	seenDocs := make(map[string]struct{})
	seenTopics := make(map[string]struct{})

	for rows.Next() {
		var docsRaw, topicsRaw []byte
		var documentType string
		if err := rows.Scan(&docsRaw, &topicsRaw, &documentType); err != nil {
			return domain.SessionContext{}, fmt.Errorf("scan session retrieval: %w", err)
		}

		var docs, topics []string
		if err := json.Unmarshal(docsRaw, &docs); err != nil {
			return domain.SessionContext{}, fmt.Errorf("unmarshal document ids: %w", err)
		}
		if err := json.Unmarshal(topicsRaw, &topics); err != nil {
			return domain.SessionContext{}, fmt.Errorf("unmarshal topics: %w", err)
		}

		for _, id := range docs {
			if _, ok := seenDocs[id]; ok {
				continue
			}
			seenDocs[id] = struct{}{}
			session.RecentDocumentIDs = append(session.RecentDocumentIDs, id)
		}
		for _, topic := range topics {
			if _, ok := seenTopics[topic]; ok {
				continue
			}
			seenTopics[topic] = struct{}{}
			session.RecentTopics = append(session.RecentTopics, topic)
		}
		if session.ActiveDocumentType == "" && documentType != "" {
			session.ActiveDocumentType = documentType
		}
	}
	if err := rows.Err(); err != nil {
		return domain.SessionContext{}, fmt.Errorf("iterate session retrievals: %w", err)
	}
	return session, nil
}

func nullableString(v string) interface{} {
	if v == "" {
		return nil
	}
	return v
}

func emptyIfNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
