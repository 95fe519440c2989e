package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

// Composite routes extraction by MIME type, falling back to the file
// extension when the upload did not declare one.
type Composite struct {
	plaintext   ports.TextExtractor
	pdf         ports.TextExtractor
	spreadsheet ports.TextExtractor
}

func NewComposite(plaintext, pdf, spreadsheet ports.TextExtractor) *Composite {
	return &Composite{
		plaintext:   plaintext,
		pdf:         pdf,
		spreadsheet: spreadsheet,
	}
}

func (c *Composite) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	extractor, err := c.pick(doc)
	if err != nil {
		return "", err
	}
	return extractor.Extract(ctx, doc)
}

func (c *Composite) pick(doc *domain.Document) (ports.TextExtractor, error) {
	mime := strings.ToLower(strings.TrimSpace(doc.MimeType))
	if idx := strings.Index(mime, ";"); idx >= 0 {
		mime = strings.TrimSpace(mime[:idx])
	}

	switch mime {
	case "application/pdf":
		return c.pdf, nil
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.ms-excel":
		return c.spreadsheet, nil
	case "text/plain", "text/csv", "text/markdown", "application/json":
		return c.plaintext, nil
	}

	switch strings.ToLower(filepath.Ext(doc.Filename)) {
	case ".pdf":
		return c.pdf, nil
	case ".xlsx", ".xls":
		return c.spreadsheet, nil
	case ".txt", ".md", ".csv", ".json", ".log":
		return c.plaintext, nil
	}

	return nil, domain.WrapError(domain.ErrInvalidInput, "extract text",
		fmt.Errorf("unsupported document format: mime=%q filename=%q", doc.MimeType, doc.Filename))
}
