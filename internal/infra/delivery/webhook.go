// Package delivery pushes finished reports to the document-management system.
package delivery

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

// IdempotencyHeader carries "<tenant>:<document>:<version>" so the receiver can drop replays.
const IdempotencyHeader = "Idempotency-Key"

// Webhook POSTs the outbound report as JSON.
type Webhook struct {
	httpc *resty.Client
	url   string
	token string
}

var _ domain.DeliveryTarget = (*Webhook)(nil)

// NewWebhook uses httpc as configured; retries there are safe because every attempt carries the same key.
func NewWebhook(httpc *resty.Client, url, token string) *Webhook {
	httpc.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
	})
	return &Webhook{httpc: httpc, url: url, token: token}
}

func (w *Webhook) Deliver(ctx context.Context, idempotencyKey string, payload domain.OutboundReport) error {
	req := w.httpc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader(IdempotencyHeader, idempotencyKey).
		SetBody(payload)
	if w.token != "" {
		req.SetAuthToken(w.token)
	}
	resp, err := req.Post(w.url)
	if err != nil {
		return fmt.Errorf("post report: %w", err)
	}
	switch code := resp.StatusCode(); {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusConflict:
		// receiver already holds this key
		return nil
	default:
		return fmt.Errorf("document service returned %d: %s", code, resp.String())
	}
}
