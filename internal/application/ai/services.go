package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/bryanwahyu/automaton-compliance/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
	"github.com/bryanwahyu/automaton-compliance/internal/infra/ai/prompt"
)

// ErrNoBackend is returned when a descriptor targets a backend that is not configured.
var ErrNoBackend = errors.New("analyzer backend not configured")

// Service routes an analyzer invocation to the backend named by its target.
// Any backend may be nil when the deployment does not use it.
type Service struct {
	openai ai.Client
	vertex ai.Client
	remote domain.AnalyzerClient
}

var _ domain.AnalyzerClient = (*Service)(nil)

func NewService(openai, vertex ai.Client, remote domain.AnalyzerClient) *Service {
	return &Service{openai: openai, vertex: vertex, remote: remote}
}

func (s *Service) Analyze(ctx context.Context, d domain.AnalyzerDescriptor, req domain.AnalyzerRequest) ([]domain.RawFinding, error) {
	target, err := domain.ParseTarget(d.Target)
	if err != nil {
		return nil, err
	}
	switch target.Scheme {
	case "openai":
		return s.complete(ctx, s.openai, target, req)
	case "vertex":
		return s.complete(ctx, s.vertex, target, req)
	case "http", "https":
		if s.remote == nil {
			return nil, fmt.Errorf("%w: remote", ErrNoBackend)
		}
		return s.remote.Analyze(ctx, d, req)
	}
	return nil, fmt.Errorf("%w: %s", ErrNoBackend, target.Scheme)
}

func (s *Service) complete(ctx context.Context, c ai.Client, target domain.Target, req domain.AnalyzerRequest) ([]domain.RawFinding, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoBackend, target.Scheme)
	}
	text, err := c.Complete(ctx, prompt.Request(target.Model, req))
	if err != nil {
		return nil, err
	}
	return prompt.ParseFindings(text)
}
