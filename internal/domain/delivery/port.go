package delivery

import "context"

// Ledger persists delivery records keyed by (tenant, document, report version).
type Ledger interface {
	// Claim creates a pending record if none exists and returns the current record.
	Claim(ctx context.Context, rec *Record) (*Record, error)
	MarkDelivered(ctx context.Context, key Key) error
	MarkFailed(ctx context.Context, key Key, reason string) error
	Get(ctx context.Context, key Key) (*Record, error)
}
