package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bryanwahyu/automaton-compliance/internal/domain/delivery"
)

type DeliveryLedger struct {
	db *sql.DB
}

var _ delivery.Ledger = (*DeliveryLedger)(nil)

func NewDeliveryLedger(db *sql.DB) *DeliveryLedger { return &DeliveryLedger{db: db} }

// Claim upserts the row and returns it in one round trip.
func (l *DeliveryLedger) Claim(ctx context.Context, rec *delivery.Record) (*delivery.Record, error) {
	const q = `
INSERT INTO compliance_deliveries AS d
  (tenant_id, document_id, report_version, report_id, status, attempts, updated_at)
VALUES ($1,$2,$3,$4,'pending',1,$5)
ON CONFLICT (tenant_id, document_id, report_version) DO UPDATE SET
  attempts   = CASE WHEN d.status = 'delivered' THEN d.attempts ELSE d.attempts + 1 END,
  updated_at = CASE WHEN d.status = 'delivered' THEN d.updated_at ELSE EXCLUDED.updated_at END
RETURNING tenant_id, document_id, report_version, report_id, status, attempts, last_error, updated_at, delivered_at;`
	row := l.db.QueryRowContext(ctx, q,
		stringOrDash(rec.TenantID), rec.DocumentID, rec.ReportVersion, rec.ReportID, time.Now().UTC())
	return scanRecord(row)
}

func (l *DeliveryLedger) MarkDelivered(ctx context.Context, key delivery.Key) error {
	const q = `
UPDATE compliance_deliveries
SET status = 'delivered', last_error = NULL, updated_at = $1, delivered_at = $1
WHERE tenant_id = $2 AND document_id = $3 AND report_version = $4;`
	res, err := l.db.ExecContext(ctx, q, time.Now().UTC(), stringOrDash(key.TenantID), key.DocumentID, key.ReportVersion)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return delivery.ErrRecordNotFound
	}
	return nil
}

func (l *DeliveryLedger) MarkFailed(ctx context.Context, key delivery.Key, reason string) error {
	const q = `
UPDATE compliance_deliveries
SET status = 'failed', last_error = $1, updated_at = $2
WHERE tenant_id = $3 AND document_id = $4 AND report_version = $5 AND status <> 'delivered';`
	_, err := l.db.ExecContext(ctx, q, reason, time.Now().UTC(), stringOrDash(key.TenantID), key.DocumentID, key.ReportVersion)
	return err
}

func (l *DeliveryLedger) Get(ctx context.Context, key delivery.Key) (*delivery.Record, error) {
	const q = `
SELECT tenant_id, document_id, report_version, report_id, status, attempts, last_error, updated_at, delivered_at
FROM compliance_deliveries
WHERE tenant_id = $1 AND document_id = $2 AND report_version = $3;`
	return scanRecord(l.db.QueryRowContext(ctx, q, stringOrDash(key.TenantID), key.DocumentID, key.ReportVersion))
}

func scanRecord(row *sql.Row) (*delivery.Record, error) {
	var rec delivery.Record
	var lastErr sql.NullString
	var deliveredAt sql.NullTime
	err := row.Scan(&rec.TenantID, &rec.DocumentID, &rec.ReportVersion, &rec.ReportID,
		&rec.Status, &rec.Attempts, &lastErr, &rec.UpdatedAt, &deliveredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, delivery.ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	rec.LastError = lastErr.String
	if deliveredAt.Valid {
		rec.DeliveredAt = deliveredAt.Time
	}
	return &rec, nil
}
