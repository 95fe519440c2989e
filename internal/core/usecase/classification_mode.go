package usecase

import (
	"github.com/auditwise/docqa/internal/core/domain"
)

// ModeSelector decides whether downstream classification runs on the
// fast path (single highest-ranked document) or the fallback path
// (every distinct document). The default mode is construction-time
// configuration; callers may override per decision. The selector holds
// no other state and the decision is a pure function of its inputs.
type ModeSelector struct {
	singleByDefault bool
}

func NewModeSelector(singleByDefault bool) *ModeSelector {
	return &ModeSelector{singleByDefault: singleByDefault}
}

func (s *ModeSelector) Decide(result domain.FusionResult, override *domain.ClassificationMode) domain.ClassificationDecision {
	if result.Empty() {
		return domain.ClassificationDecision{
			Mode:                 domain.ModeMultiDocument,
			ProcessedDocumentIDs: []string{},
		}
	}

	documentIDs := result.DocumentIDs()

	wantSingle := s.singleByDefault
	if override != nil {
		wantSingle = *override == domain.ModeSingleDocument
	}

	// A result spanning exactly one document is always the fast path:
	// there is nothing a multi-document pass could add.
	if wantSingle || len(documentIDs) == 1 {
		return domain.ClassificationDecision{
			Mode:                 domain.ModeSingleDocument,
			PrimaryDocumentID:    result.Candidates[0].DocumentID,
			ProcessedDocumentIDs: []string{result.Candidates[0].DocumentID},
		}
	}

	return domain.ClassificationDecision{
		Mode:                 domain.ModeMultiDocument,
		ProcessedDocumentIDs: documentIDs,
	}
}
