package compliance

// ReportSummary is the list view of a stored report
type ReportSummary struct {
	ID                string  `json:"id"`
	DocumentID        string  `json:"document_id"`
	Revision          int     `json:"revision"`
	Version           int     `json:"version"`
	OverallStatus     Status  `json:"overall_status"`
	OverallConfidence float64 `json:"overall_confidence"`
	Incomplete        bool    `json:"incomplete"`
	ArtifactURL       string  `json:"artifact_url,omitempty"`
}

// PaginatedResult represents a paginated response with data and metadata
type PaginatedResult struct {
	Data       []ReportSummary `json:"data"`
	Page       int             `json:"page"`
	PageSize   int             `json:"pageSize"`
	Total      int64           `json:"totalItems"`
	TotalPages int             `json:"totalPages"`
}
