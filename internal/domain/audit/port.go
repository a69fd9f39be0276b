package audit

import "context"

// Repository defines persistence for audit events
type Repository interface {
	Save(ctx context.Context, e *Event) error
	ListByDocument(ctx context.Context, tenant, documentID string, limit int) ([]*Event, error)
}
