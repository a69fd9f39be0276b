package delivery

import (
	"fmt"
	"time"
)

// Status of a delivery attempt
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Key is the idempotency key of a delivery: one per (tenant, document, report version).
// Versions are numbered per tenant and document, so the tenant is part of the key.
type Key struct {
	TenantID      string `json:"tenant_id"`
	DocumentID    string `json:"document_id"`
	ReportVersion int    `json:"report_version"`
}

func (k Key) String() string {
	tenant := k.TenantID
	if tenant == "" {
		tenant = "-"
	}
	return fmt.Sprintf("%s:%s:%d", tenant, k.DocumentID, k.ReportVersion)
}

// Record tracks the delivery of one report version to the document-management system
type Record struct {
	Key
	ReportID    string    `json:"report_id"`
	Status      Status    `json:"status"`
	Attempts    int       `json:"attempts"`
	LastError   string    `json:"last_error,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
	DeliveredAt time.Time `json:"delivered_at,omitempty"`
}
