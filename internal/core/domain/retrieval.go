package domain

import (
	"fmt"
	"strings"
)

// SearchFilter restricts retrieval to chunks whose metadata matches
// every non-empty field. Canonical() gives a stable serialization so
// that logically identical filters derive identical cache keys.
type SearchFilter struct {
	DocumentType        string `json:"document_type,omitempty"`
	ComplianceFramework string `json:"compliance_framework,omitempty"`
	RiskLevel           string `json:"risk_level,omitempty"`
	Company             string `json:"company,omitempty"`
}

func (f SearchFilter) IsZero() bool {
	return f.DocumentType == "" && f.ComplianceFramework == "" && f.RiskLevel == "" && f.Company == ""
}

// Canonical serializes the filter with fixed field order.
func (f SearchFilter) Canonical() string {
	return fmt.Sprintf(
		"company=%s;document_type=%s;framework=%s;risk_level=%s",
		strings.ToLower(strings.TrimSpace(f.Company)),
		strings.ToLower(strings.TrimSpace(f.DocumentType)),
		strings.ToLower(strings.TrimSpace(f.ComplianceFramework)),
		strings.ToLower(strings.TrimSpace(f.RiskLevel)),
	)
}

// ChunkMetadata carries the descriptive fields supplied by the
// document store. Read-only from the retrieval core's perspective.
type ChunkMetadata struct {
	Filename            string `json:"filename,omitempty"`
	DocumentType        string `json:"document_type,omitempty"`
	ComplianceFramework string `json:"compliance_framework,omitempty"`
	RiskLevel           string `json:"risk_level,omitempty"`
	Company             string `json:"company,omitempty"`
	ChunkIndex          int    `json:"chunk_index"`
}

// Candidate is one scored passage produced by a retrieval strategy.
// RawScore semantics vary per strategy and are only comparable after
// fusion rescales them into NormalizedScore.
type Candidate struct {
	ChunkID          string        `json:"chunk_id"`
	DocumentID       string        `json:"document_id"`
	Text             string        `json:"text"`
	Metadata         ChunkMetadata `json:"metadata"`
	RawScore         float64       `json:"raw_score"`
	NormalizedScore  float64       `json:"normalized_score"`
	MatchedExpansion string        `json:"matched_expansion,omitempty"`
}

// FusionResult is the merged, deduplicated, deterministically ordered
// output of ensemble fusion. Degraded marks the case where every
// strategy failed; an empty non-degraded result means "no relevant
// context found" and is not an error.
type FusionResult struct {
	Candidates       []Candidate `json:"candidates"`
	Degraded         bool        `json:"degraded,omitempty"`
	FailedStrategies []string    `json:"failed_strategies,omitempty"`
}

func (r FusionResult) Empty() bool {
	return len(r.Candidates) == 0
}

// DocumentIDs returns the distinct document ids present, ordered by
// each document's best-ranked candidate.
func (r FusionResult) DocumentIDs() []string {
	seen := make(map[string]struct{}, len(r.Candidates))
	out := make([]string, 0, len(r.Candidates))
	for _, c := range r.Candidates {
		if c.DocumentID == "" {
			continue
		}
		if _, ok := seen[c.DocumentID]; ok {
			continue
		}
		seen[c.DocumentID] = struct{}{}
		out = append(out, c.DocumentID)
	}
	return out
}

type ClassificationMode string

const (
	ModeSingleDocument ClassificationMode = "single_document"
	ModeMultiDocument  ClassificationMode = "multi_document"
)

// ClassificationDecision selects the fast path (classify only the top
// document) or the fallback path (classify every distinct document).
type ClassificationDecision struct {
	Mode                 ClassificationMode `json:"mode"`
	PrimaryDocumentID    string             `json:"primary_document_id,omitempty"`
	ProcessedDocumentIDs []string           `json:"processed_document_ids"`
}

// SessionContext carries prior-turn retrieval signals used by the
// conversational and classification-enhanced strategies. It is
// supplied by the caller; the retrieval core never persists it.
type SessionContext struct {
	ConversationID     string   `json:"conversation_id,omitempty"`
	RecentDocumentIDs  []string `json:"recent_document_ids,omitempty"`
	RecentTopics       []string `json:"recent_topics,omitempty"`
	ActiveDocumentType string   `json:"active_document_type,omitempty"`
}

func (s SessionContext) IsZero() bool {
	return s.ConversationID == "" && len(s.RecentDocumentIDs) == 0 &&
		len(s.RecentTopics) == 0 && s.ActiveDocumentType == ""
}

// RetrievalQuery is the uniform input every strategy executes against.
type RetrievalQuery struct {
	Text    string
	Limit   int
	Filter  SearchFilter
	Session SessionContext
}

type WebSearchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score"`
}

type ComplianceInsight struct {
	Framework string `json:"framework"`
	Focus     string `json:"focus"`
	Excerpt   string `json:"excerpt"`
}

// WebGuidance is external search context; it only ever augments an
// answer and never blocks core retrieval.
type WebGuidance struct {
	Results  []WebSearchResult   `json:"results"`
	Insights []ComplianceInsight `json:"compliance_insights"`
}

// ChatRequest is one question against the corpus. ModeOverride, when
// set, takes precedence over the configured classification-mode
// default for this call only.
type ChatRequest struct {
	Question         string              `json:"question"`
	ConversationID   string              `json:"conversation_id,omitempty"`
	Limit            int                 `json:"limit,omitempty"`
	Filter           SearchFilter        `json:"filter,omitempty"`
	ModeOverride     *ClassificationMode `json:"mode_override,omitempty"`
	IncludeWebSearch bool                `json:"include_web_search,omitempty"`
}

type Answer struct {
	Text            string                    `json:"text"`
	Sources         []Candidate               `json:"sources"`
	Decision        ClassificationDecision    `json:"classification_decision"`
	Classifications map[string]Classification `json:"classifications,omitempty"`
	Guidance        *WebGuidance              `json:"web_guidance,omitempty"`
}
