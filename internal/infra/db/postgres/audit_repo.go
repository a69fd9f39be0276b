package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bryanwahyu/automaton-compliance/internal/domain/audit"
)

type AuditRepository struct {
	db *sql.DB
}

var _ audit.Repository = (*AuditRepository)(nil)

func NewAuditRepository(db *sql.DB) *AuditRepository { return &AuditRepository{db: db} }

func (r *AuditRepository) Save(ctx context.Context, e *audit.Event) error {
	const q = `
INSERT INTO compliance_audit_events
  (tenant_id, document_id, revision, report_version, code, analyzer_id, message, details_json, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
RETURNING id;`
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return r.db.QueryRowContext(ctx, q,
		stringOrDash(e.TenantID), e.DocumentID, e.Revision, e.ReportVersion,
		e.Code, e.AnalyzerID, msg, jsonOrEmpty(e.DetailsJSON), e.CreatedAt,
	).Scan(&e.ID)
}

func (r *AuditRepository) ListByDocument(ctx context.Context, tenant, documentID string, limit int) ([]*audit.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, document_id, revision, report_version, code, analyzer_id, message, details_json, created_at
FROM compliance_audit_events
WHERE tenant_id = $1 AND document_id = $2
ORDER BY created_at DESC, id DESC
LIMIT $3;`
	rows, err := r.db.QueryContext(ctx, q, stringOrDash(tenant), documentID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*audit.Event
	for rows.Next() {
		var e audit.Event
		if err := rows.Scan(&e.ID, &e.TenantID, &e.DocumentID, &e.Revision, &e.ReportVersion,
			&e.Code, &e.AnalyzerID, &e.Message, &e.DetailsJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}
