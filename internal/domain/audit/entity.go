package audit

import "time"

// Event is a persisted non-fatal pipeline condition, kept for human review.
type Event struct {
	ID            int64     `json:"id"`
	TenantID      string    `json:"tenant_id"`
	DocumentID    string    `json:"document_id"`
	Revision      int       `json:"revision"`
	ReportVersion int       `json:"report_version"`
	Code          string    `json:"code"`
	AnalyzerID    string    `json:"analyzer_id,omitempty"`
	Message       string    `json:"message"`
	DetailsJSON   string    `json:"details_json,omitempty"` // raw JSON string
	CreatedAt     time.Time `json:"created_at"`
}
