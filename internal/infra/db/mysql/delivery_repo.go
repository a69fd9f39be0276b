package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bryanwahyu/automaton-compliance/internal/domain/delivery"
)

// DeliveryLedger stores one row per (tenant, document, report version).
type DeliveryLedger struct {
	db *sql.DB
}

var _ delivery.Ledger = (*DeliveryLedger)(nil)

func NewDeliveryLedger(db *sql.DB) *DeliveryLedger { return &DeliveryLedger{db: db} }

// Claim inserts a pending row if missing, counts the attempt unless delivered, and returns the row.
func (l *DeliveryLedger) Claim(ctx context.Context, rec *delivery.Record) (*delivery.Record, error) {
	const q = `
INSERT INTO compliance_deliveries
  (tenant_id, document_id, report_version, report_id, status, attempts, updated_at)
VALUES (?,?,?,?,?,1,?)
ON DUPLICATE KEY UPDATE
  attempts   = IF(status = 'delivered', attempts, attempts + 1),
  updated_at = IF(status = 'delivered', updated_at, VALUES(updated_at));`
	now := time.Now().UTC()
	if _, err := l.db.ExecContext(ctx, q,
		stringOrDash(rec.TenantID), rec.DocumentID, rec.ReportVersion, rec.ReportID,
		string(delivery.StatusPending), now,
	); err != nil {
		return nil, err
	}
	return l.Get(ctx, rec.Key)
}

func (l *DeliveryLedger) MarkDelivered(ctx context.Context, key delivery.Key) error {
	const q = `
UPDATE compliance_deliveries
SET status = ?, last_error = NULL, updated_at = ?, delivered_at = ?
WHERE tenant_id = ? AND document_id = ? AND report_version = ?;`
	now := time.Now().UTC()
	return affectOne(l.db.ExecContext(ctx, q, string(delivery.StatusDelivered), now, now,
		stringOrDash(key.TenantID), key.DocumentID, key.ReportVersion))
}

// MarkFailed never downgrades a delivered row.
func (l *DeliveryLedger) MarkFailed(ctx context.Context, key delivery.Key, reason string) error {
	const q = `
UPDATE compliance_deliveries
SET status = ?, last_error = ?, updated_at = ?
WHERE tenant_id = ? AND document_id = ? AND report_version = ? AND status <> 'delivered';`
	_, err := l.db.ExecContext(ctx, q, string(delivery.StatusFailed), reason, time.Now().UTC(),
		stringOrDash(key.TenantID), key.DocumentID, key.ReportVersion)
	return err
}

func (l *DeliveryLedger) Get(ctx context.Context, key delivery.Key) (*delivery.Record, error) {
	const q = `
SELECT tenant_id, document_id, report_version, report_id, status, attempts, last_error, updated_at, delivered_at
FROM compliance_deliveries
WHERE tenant_id = ? AND document_id = ? AND report_version = ? LIMIT 1;`
	var rec delivery.Record
	var lastErr sql.NullString
	var deliveredAt sql.NullTime
	err := l.db.QueryRowContext(ctx, q, stringOrDash(key.TenantID), key.DocumentID, key.ReportVersion).Scan(
		&rec.TenantID, &rec.DocumentID, &rec.ReportVersion, &rec.ReportID,
		&rec.Status, &rec.Attempts, &lastErr, &rec.UpdatedAt, &deliveredAt,
	)
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

func affectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return delivery.ErrRecordNotFound
	}
	return nil
}
