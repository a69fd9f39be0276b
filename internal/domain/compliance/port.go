package compliance

import "context"

// Classifier is the pluggable classification strategy.
type Classifier interface {
	Classify(ctx context.Context, doc Document) (Classification, error)
}

// Classification is a classifier decision together with its basis.
type Classification struct {
	Disciplines   DisciplineSet
	Matches       map[Discipline][]string
	Regulations   []string
	DocumentType  string
	Confidence    float64
	LowConfidence bool
}

// Summary converts the decision into its report form.
func (c Classification) Summary() ClassificationSummary {
	return ClassificationSummary{
		Disciplines:   c.Disciplines,
		Matches:       c.Matches,
		Regulations:   c.Regulations,
		DocumentType:  c.DocumentType,
		Confidence:    c.Confidence,
		LowConfidence: c.LowConfidence,
	}
}

// AnalyzerClient invokes one external analyzer.
type AnalyzerClient interface {
	Analyze(ctx context.Context, d AnalyzerDescriptor, req AnalyzerRequest) ([]RawFinding, error)
}

// ReportRepository persists reports. Save is insert-only.
type ReportRepository interface {
	NextVersion(ctx context.Context, tenant, documentID string) (int, error)
	Save(ctx context.Context, r *ComplianceReport, artifactURL string) error
	Get(ctx context.Context, tenant, documentID string, version int) (*ComplianceReport, error)
	Latest(ctx context.Context, tenant, documentID string) (*ComplianceReport, error)
	Paginate(ctx context.Context, tenant string, page, pageSize int) (*PaginatedResult, error)
}

// ArtifactStore archives rendered reports.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// DeliveryTarget pushes a report to the document-management collaborator.
type DeliveryTarget interface {
	Deliver(ctx context.Context, idempotencyKey string, payload OutboundReport) error
}

// OutboundReport is the payload delivered once per completed run.
type OutboundReport struct {
	TenantID          string               `json:"tenant_id,omitempty"`
	DocumentID        string               `json:"document_id"`
	ReportVersion     int                  `json:"report_version"`
	OverallStatus     Status               `json:"overall_status"`
	Reason            ReasonCode           `json:"reason"`
	OverallConfidence float64              `json:"overall_confidence"`
	Incomplete        bool                 `json:"incomplete"`
	Findings          []DisciplineFindings `json:"findings"`
	Conflicts         []Conflict           `json:"conflicts"`
	Execution         []AnalyzerExecution  `json:"execution"`
}

// Outbound builds the delivery payload for r.
func (r *ComplianceReport) Outbound() OutboundReport {
	return OutboundReport{
		TenantID:          r.TenantID,
		DocumentID:        r.DocumentID,
		ReportVersion:     r.Version,
		OverallStatus:     r.OverallStatus,
		Reason:            r.Reason,
		OverallConfidence: r.OverallConfidence,
		Incomplete:        r.Incomplete,
		Findings:          r.Findings,
		Conflicts:         r.Conflicts,
		Execution:         r.Execution,
	}
}
