package ai

import "context"

// CompletionRequest is one call to a language-completion service.
type CompletionRequest struct {
	Model  string
	System string
	User   string
}

// Client returns the raw completion text; callers parse it.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
