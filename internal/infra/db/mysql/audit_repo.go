package mysql

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
VALUES (?,?,?,?,?,?,?,?,?)
`
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx, q,
		stringOrDash(e.TenantID), e.DocumentID, e.Revision, e.ReportVersion,
		e.Code, e.AnalyzerID, msg, jsonOrEmpty(e.DetailsJSON), e.CreatedAt,
	)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		e.ID = id
	}
	return nil
}

func (r *AuditRepository) ListByDocument(ctx context.Context, tenant, documentID string, limit int) ([]*audit.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, tenant_id, document_id, revision, report_version, code, analyzer_id, message, details_json, created_at
FROM compliance_audit_events
WHERE tenant_id = ? AND document_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?;`
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
