package spreadsheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/auditwise/docqa/internal/core/domain"
	"github.com/auditwise/docqa/internal/core/ports"
)

// Extractor flattens workbook cells into row-per-line text so control
// matrices and evidence spreadsheets become searchable.
type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	workbook, err := excelize.OpenReader(reader)
	if err != nil {
		return "", fmt.Errorf("parse workbook %s: %w", doc.Filename, err)
	}
	defer workbook.Close()

	var builder strings.Builder
	for _, sheet := range workbook.GetSheetList() {
		rows, err := workbook.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		builder.WriteString(sheet)
		builder.WriteString("\n")
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, " | "))
			if line == "" {
				continue
			}
			builder.WriteString(line)
			builder.WriteString("\n")
		}
		builder.WriteString("\n")
	}

	return strings.TrimSpace(builder.String()), nil
}
