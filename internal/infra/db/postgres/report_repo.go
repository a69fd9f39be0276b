package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

type ReportRepository struct {
	db *sql.DB
}

var _ domain.ReportRepository = (*ReportRepository)(nil)

func NewReportRepository(db *sql.DB) *ReportRepository { return &ReportRepository{db: db} }

func (r *ReportRepository) NextVersion(ctx context.Context, tenant, documentID string) (int, error) {
	const q = `
INSERT INTO compliance_report_versions (tenant_id, document_id, last_version)
VALUES ($1,$2,1)
ON CONFLICT (tenant_id, document_id)
DO UPDATE SET last_version = compliance_report_versions.last_version + 1
RETURNING last_version;`
	var v int
	if err := r.db.QueryRowContext(ctx, q, stringOrDash(tenant), documentID).Scan(&v); err != nil {
		return 0, fmt.Errorf("reserve version: %w", err)
	}
	return v, nil
}

// Save inserts the report row; a repeated (tenant, document, version) yields ErrReportExists.
func (r *ReportRepository) Save(ctx context.Context, rep *domain.ComplianceReport, artifactURL string) error {
	const q = `
INSERT INTO compliance_reports
  (id, tenant_id, document_id, revision, version, overall_status, reason,
   overall_confidence, incomplete, artifact_url, report_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12);`
	body, err := json.Marshal(rep)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	created := rep.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, q,
		rep.ID, stringOrDash(rep.TenantID), rep.DocumentID, rep.Revision, rep.Version,
		string(rep.OverallStatus), string(rep.Reason), rep.OverallConfidence, rep.Incomplete,
		artifactURL, string(body), created,
	)
	if isUniqueViolation(err) {
		return domain.ErrReportExists
	}
	return err
}

func (r *ReportRepository) Get(ctx context.Context, tenant, documentID string, version int) (*domain.ComplianceReport, error) {
	const q = `
SELECT report_json FROM compliance_reports
WHERE tenant_id=$1 AND document_id=$2 AND version=$3 LIMIT 1;`
	return scanReport(r.db.QueryRowContext(ctx, q, stringOrDash(tenant), documentID, version))
}

func (r *ReportRepository) Latest(ctx context.Context, tenant, documentID string) (*domain.ComplianceReport, error) {
	const q = `
SELECT report_json FROM compliance_reports
WHERE tenant_id=$1 AND document_id=$2
ORDER BY version DESC LIMIT 1;`
	return scanReport(r.db.QueryRowContext(ctx, q, stringOrDash(tenant), documentID))
}

func (r *ReportRepository) Paginate(ctx context.Context, tenant string, page, pageSize int) (*domain.PaginatedResult, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	tenant = stringOrDash(tenant)

	const q = `
SELECT id, document_id, revision, version, overall_status, overall_confidence, incomplete, artifact_url
FROM compliance_reports
WHERE tenant_id=$1
ORDER BY created_at DESC, document_id ASC, version DESC
LIMIT $2 OFFSET $3;`
	rows, err := r.db.QueryContext(ctx, q, tenant, pageSize, offset)
	if err != nil {
		return nil, fmt.Errorf("querying reports: %w", err)
	}
	defer rows.Close()

	data := []domain.ReportSummary{}
	for rows.Next() {
		var s domain.ReportSummary
		var artifact sql.NullString
		if err := rows.Scan(&s.ID, &s.DocumentID, &s.Revision, &s.Version,
			&s.OverallStatus, &s.OverallConfidence, &s.Incomplete, &artifact); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		s.ArtifactURL = artifact.String
		data = append(data, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM compliance_reports WHERE tenant_id=$1`, tenant).Scan(&total); err != nil {
		return nil, fmt.Errorf("getting total count: %w", err)
	}
	return &domain.PaginatedResult{
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func scanReport(row *sql.Row) (*domain.ComplianceReport, error) {
	var body []byte
	if err := row.Scan(&body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReportNotFound
		}
		return nil, err
	}
	var rep domain.ComplianceReport
	if err := json.Unmarshal(body, &rep); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return &rep, nil
}
