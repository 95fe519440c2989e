package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

const (
	// classifyTextLimit caps how much retrieved text is sent to the
	// classifier per document.
	classifyTextLimit = 2000

	maxSessionTopics = 5

	webSearchTimeout = 8 * time.Second
)

// ChatUseCase answers audit questions over the ingested corpus. It
// retrieves supporting chunks, decides the classification mode,
// classifies the documents in scope, and generates a grounded answer.
// Web guidance and session bookkeeping are strictly best-effort.
type ChatUseCase struct {
	retriever  ports.Retriever
	selector   ports.ClassificationModeSelector
	classifier ports.DocumentClassifier
	generator  ports.AnswerGenerator
	webSearch  ports.WebSearchProvider
	sessions   ports.SessionStore
	logger     *slog.Logger
}

func NewChatUseCase(
	retriever ports.Retriever,
	selector ports.ClassificationModeSelector,
	classifier ports.DocumentClassifier,
	generator ports.AnswerGenerator,
	webSearch ports.WebSearchProvider,
	sessions ports.SessionStore,
	logger *slog.Logger,
) *ChatUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatUseCase{
		retriever:  retriever,
		selector:   selector,
		classifier: classifier,
		generator:  generator,
		webSearch:  webSearch,
		sessions:   sessions,
		logger:     logger,
	}
}

func (uc *ChatUseCase) Answer(ctx context.Context, req domain.ChatRequest) (*domain.Answer, error) {
	if strings.TrimSpace(req.Question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chat answer", fmt.Errorf("question is required"))
	}

	session := uc.loadSession(ctx, req.ConversationID)

	result, err := uc.retriever.Retrieve(ctx, req.Question, req.Limit, req.Filter, session)
	if err != nil {
		return nil, err
	}

	decision := uc.selector.Decide(result, req.ModeOverride)
	classifications := uc.classifyDocuments(ctx, result, decision)

	text, err := uc.generateText(ctx, req.Question, result)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{
		Text:            text,
		Sources:         result.Candidates,
		Decision:        decision,
		Classifications: classifications,
	}

	if req.IncludeWebSearch && uc.webSearch != nil {
		answer.Guidance = uc.fetchGuidance(ctx, req, classifications, decision)
	}

	uc.recordSession(ctx, req, result, classifications, decision)
	return answer, nil
}

func (uc *ChatUseCase) loadSession(ctx context.Context, conversationID string) domain.SessionContext {
	if conversationID == "" || uc.sessions == nil {
		return domain.SessionContext{}
	}
	if err := uc.sessions.EnsureSession(ctx, conversationID); err != nil {
		uc.logger.Warn("session ensure failed", "conversation_id", conversationID, "error", err)
		return domain.SessionContext{}
	}
	session, err := uc.sessions.LoadContext(ctx, conversationID)
	if err != nil {
		uc.logger.Warn("session context load failed", "conversation_id", conversationID, "error", err)
		return domain.SessionContext{ConversationID: conversationID}
	}
	session.ConversationID = conversationID
	return session
}

// classifyDocuments classifies each document named by the decision
// using its retrieved chunk text. A classifier failure downgrades that
// document to the unclassified fallback and never fails the answer.
func (uc *ChatUseCase) classifyDocuments(
	ctx context.Context,
	result domain.FusionResult,
	decision domain.ClassificationDecision,
) map[string]domain.Classification {
	if uc.classifier == nil || len(decision.ProcessedDocumentIDs) == 0 {
		return nil
	}

	texts := make(map[string]string, len(decision.ProcessedDocumentIDs))
	for _, c := range result.Candidates {
		existing := texts[c.DocumentID]
		if len(existing) >= classifyTextLimit {
			continue
		}
		if existing != "" {
			existing += "\n"
		}
		texts[c.DocumentID] = truncate(existing+c.Text, classifyTextLimit)
	}

	out := make(map[string]domain.Classification, len(decision.ProcessedDocumentIDs))
	for _, docID := range decision.ProcessedDocumentIDs {
		cls, err := uc.classifier.Classify(ctx, texts[docID])
		if err != nil {
			uc.logger.Warn("document classification failed",
				"document_id", docID,
				"error", err,
			)
			cls = domain.Unclassified()
		}
		out[docID] = cls
	}
	return out
}

func (uc *ChatUseCase) generateText(ctx context.Context, question string, result domain.FusionResult) (string, error) {
	if result.Degraded {
		return "Retrieval is temporarily unavailable, so this question cannot be answered from the document corpus right now. Please retry shortly.", nil
	}
	if result.Empty() {
		return "No relevant context was found in the ingested documents for this question.", nil
	}
	text, err := uc.generator.GenerateAnswer(ctx, question, result.Candidates)
	if err != nil {
		return "", domain.WrapError(domain.ErrProvider, "generate answer", err)
	}
	return text, nil
}

// fetchGuidance queries external compliance guidance with its own
// timeout. It augments the answer only; failures are logged and
// swallowed.
func (uc *ChatUseCase) fetchGuidance(
	ctx context.Context,
	req domain.ChatRequest,
	classifications map[string]domain.Classification,
	decision domain.ClassificationDecision,
) *domain.WebGuidance {
	documentType := req.Filter.DocumentType
	framework := req.Filter.ComplianceFramework
	if decision.PrimaryDocumentID != "" {
		if cls, ok := classifications[decision.PrimaryDocumentID]; ok {
			if documentType == "" {
				documentType = cls.DocumentType
			}
			if framework == "" {
				framework = cls.ComplianceFramework
			}
		}
	}

	searchCtx, cancel := context.WithTimeout(ctx, webSearchTimeout)
	defer cancel()

	guidance, err := uc.webSearch.SearchComplianceGuidance(searchCtx, req.Question, documentType, framework)
	if err != nil {
		uc.logger.Warn("web guidance lookup failed", "error", err)
		return nil
	}
	return guidance
}

func (uc *ChatUseCase) recordSession(
	ctx context.Context,
	req domain.ChatRequest,
	result domain.FusionResult,
	classifications map[string]domain.Classification,
	decision domain.ClassificationDecision,
) {
	if req.ConversationID == "" || uc.sessions == nil {
		return
	}

	documentType := ""
	if decision.Mode == domain.ModeSingleDocument {
		if cls, ok := classifications[decision.PrimaryDocumentID]; ok {
			documentType = cls.DocumentType
		}
	}

	err := uc.sessions.RecordRetrieval(
		ctx,
		req.ConversationID,
		result.DocumentIDs(),
		questionTopics(req.Question),
		documentType,
	)
	if err != nil {
		uc.logger.Warn("session retrieval record failed",
			"conversation_id", req.ConversationID,
			"error", err,
		)
	}
}

// questionTopics extracts the significant lowercase terms of a
// question for the conversational strategy's topic boost.
func questionTopics(question string) []string {
	fields := strings.Fields(strings.ToLower(question))
	topics := make([]string, 0, maxSessionTopics)
	seen := make(map[string]struct{}, maxSessionTopics)
	for _, f := range fields {
		term := strings.Trim(f, ".,;:!?\"'()")
		if len(term) < 5 {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		topics = append(topics, term)
		if len(topics) == maxSessionTopics {
			break
		}
	}
	return topics
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
