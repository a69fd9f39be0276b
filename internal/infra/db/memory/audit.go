package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bryanwahyu/automaton-compliance/internal/domain/audit"
)

// AuditRepository is an in-memory audit.Repository.
type AuditRepository struct {
	mu     sync.Mutex
	nextID int64
	events []audit.Event
}

var _ audit.Repository = (*AuditRepository)(nil)

func NewAuditRepository() *AuditRepository { return &AuditRepository{} }

func (r *AuditRepository) Save(_ context.Context, e *audit.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e.ID = r.nextID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	r.events = append(r.events, *e)
	return nil
}

// ListByDocument returns the newest events first.
func (r *AuditRepository) ListByDocument(_ context.Context, tenant, documentID string, limit int) ([]*audit.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	r.mu.Lock()
	var out []*audit.Event
	for i := range r.events {
		e := r.events[i]
		if e.TenantID == tenant && e.DocumentID == documentID {
			out = append(out, &e)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
