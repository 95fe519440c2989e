package ollama

import (
	"fmt"
	"strings"

	"github.com/auditwise/docqa/internal/core/domain"
)

func buildClassificationPrompt(text string) string {
	const maxSnippet = 4000
	snippet := text
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return `You are an audit document classifier.
Return strict JSON object with keys:
document_type (string, e.g. access_review, sox_report, financial_statement, risk_assessment),
compliance_framework (string, e.g. SOX, SOC2, ISO27001, or empty),
risk_level (string: low, medium, high, or empty),
company (string, or empty),
confidence (number from 0 to 1),
summary (string).
No markdown, no extra keys.

Document:
` + snippet
}

func buildAnswerPrompt(question string, candidates []domain.Candidate) string {
	var contextBuilder strings.Builder
	for idx, c := range candidates {
		contextBuilder.WriteString(fmt.Sprintf(
			"[%d] file=%s type=%s framework=%s score=%.3f\n%s\n\n",
			idx+1,
			c.Metadata.Filename,
			c.Metadata.DocumentType,
			c.Metadata.ComplianceFramework,
			c.NormalizedScore,
			c.Text,
		))
	}

	return fmt.Sprintf(`You are an audit and compliance assistant.
Answer the question only from the context below.
Cite the bracketed source numbers you used.
If the context is insufficient, say it directly.

Question:
%s

Context:
%s
`, question, contextBuilder.String())
}
