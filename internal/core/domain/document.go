package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusReady      DocumentStatus = "ready"
	StatusFailed     DocumentStatus = "failed"
)

// DocumentTypeUnclassified marks documents whose classification call
// failed; processing continues with this placeholder.
const DocumentTypeUnclassified = "unclassified"

type Document struct {
	ID                  string         `json:"id"`
	Filename            string         `json:"filename"`
	MimeType            string         `json:"mime_type"`
	StoragePath         string         `json:"storage_path"`
	DocumentType        string         `json:"document_type,omitempty"`
	ComplianceFramework string         `json:"compliance_framework,omitempty"`
	RiskLevel           string         `json:"risk_level,omitempty"`
	Company             string         `json:"company,omitempty"`
	Confidence          float64        `json:"confidence,omitempty"`
	Summary             string         `json:"summary,omitempty"`
	Status              DocumentStatus `json:"status"`
	Error               string         `json:"error,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

type Classification struct {
	DocumentType        string  `json:"document_type"`
	ComplianceFramework string  `json:"compliance_framework"`
	RiskLevel           string  `json:"risk_level"`
	Company             string  `json:"company"`
	Confidence          float64 `json:"confidence"`
	Summary             string  `json:"summary"`
}

// Unclassified is the fallback classification applied when the
// classification provider fails; the pipeline never aborts on it.
func Unclassified() Classification {
	return Classification{DocumentType: DocumentTypeUnclassified}
}
