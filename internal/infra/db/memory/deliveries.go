package memory

import (
	"context"
	"sync"
	"time"

	"github.com/bryanwahyu/automaton-compliance/internal/domain/delivery"
)

// DeliveryLedger is an in-memory delivery.Ledger.
type DeliveryLedger struct {
	mu      sync.Mutex
	records map[delivery.Key]delivery.Record
	now     func() time.Time
}

var _ delivery.Ledger = (*DeliveryLedger)(nil)

func NewDeliveryLedger() *DeliveryLedger {
	return &DeliveryLedger{
		records: make(map[delivery.Key]delivery.Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Claim counts an attempt for every key that is not yet delivered.
func (l *DeliveryLedger) Claim(_ context.Context, rec *delivery.Record) (*delivery.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.records[rec.Key]
	if !ok {
		cur = *rec
		cur.Status = delivery.StatusPending
		cur.Attempts = 0
	}
	if cur.Status != delivery.StatusDelivered {
		cur.Attempts++
		cur.UpdatedAt = l.now()
	}
	l.records[rec.Key] = cur
	out := cur
	return &out, nil
}

func (l *DeliveryLedger) MarkDelivered(_ context.Context, key delivery.Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.records[key]
	if !ok {
		return delivery.ErrRecordNotFound
	}
	now := l.now()
	cur.Status = delivery.StatusDelivered
	cur.LastError = ""
	cur.UpdatedAt = now
	cur.DeliveredAt = now
	l.records[key] = cur
	return nil
}

func (l *DeliveryLedger) MarkFailed(_ context.Context, key delivery.Key, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.records[key]
	if !ok {
		return delivery.ErrRecordNotFound
	}
	if cur.Status == delivery.StatusDelivered {
		return nil
	}
	cur.Status = delivery.StatusFailed
	cur.LastError = reason
	cur.UpdatedAt = l.now()
	l.records[key] = cur
	return nil
}

func (l *DeliveryLedger) Get(_ context.Context, key delivery.Key) (*delivery.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.records[key]
	if !ok {
		return nil, delivery.ErrRecordNotFound
	}
	return &cur, nil
}
