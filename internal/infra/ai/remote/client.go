// Package remote calls analyzers that are deployed as HTTP services.
package remote

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/ai/prompt"
)

// Request is the body POSTed to a remote analyzer.
type Request struct {
	DocumentID   string                  `json:"document_id"`
	Revision     int                     `json:"revision"`
	TenantID     string                  `json:"tenant_id,omitempty"`
	AnalyzerID   string                  `json:"analyzer_id"`
	Text         string                  `json:"text"`
	Metadata     domain.BuildingMetadata `json:"metadata"`
	Disciplines  []domain.Discipline     `json:"disciplines"`
	Regulations  []string                `json:"regulations,omitempty"`
	Instructions string                  `json:"instructions,omitempty"`
}

// Client posts analyzer requests to the descriptor's URL.
type Client struct {
	httpc *resty.Client
	token string
}

// NewClient wraps httpc. The client must not retry: failed analyzers are never retried within a run.
func NewClient(httpc *resty.Client, token string) *Client {
	return &Client{httpc: httpc, token: token}
}

func (c *Client) Analyze(ctx context.Context, d domain.AnalyzerDescriptor, req domain.AnalyzerRequest) ([]domain.RawFinding, error) {
	target, err := domain.ParseTarget(d.Target)
	if err != nil {
		return nil, err
	}
	r := c.httpc.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetBody(Request{
			DocumentID:   req.DocumentID,
			Revision:     req.Revision,
			TenantID:     req.TenantID,
			AnalyzerID:   d.ID,
			Text:         req.Text,
			Metadata:     req.Metadata,
			Disciplines:  req.Disciplines,
			Regulations:  req.Regulations,
			Instructions: req.Instructions,
		})
	if c.token != "" {
		r.SetAuthToken(c.token)
	}
	resp, err := r.Post(target.URL)
	if err != nil {
		return nil, fmt.Errorf("remote analyzer %s: %w", d.ID, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("remote analyzer %s returned %d: %s", d.ID, resp.StatusCode(), truncate(resp.String(), 200))
	}
	return prompt.ParseFindings(resp.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
