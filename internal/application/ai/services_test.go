package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-compliance/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

type stubCompletion struct {
	last ai.CompletionRequest
	out  string
	err  error
}

func (s *stubCompletion) Complete(_ context.Context, req ai.CompletionRequest) (string, error) {
	s.last = req
	return s.out, s.err
}

type stubRemote struct{ called bool }

func (s *stubRemote) Analyze(context.Context, domain.AnalyzerDescriptor, domain.AnalyzerRequest) ([]domain.RawFinding, error) {
	s.called = true
	return []domain.RawFinding{{RequirementID: "R1"}}, nil
}

func TestService_RoutesByTarget(t *testing.T) {
	oa := &stubCompletion{out: `{"findings":[{"requirement_id":"B1","is_compliant":true,"confidence":0.9}]}`}
	vx := &stubCompletion{out: "```json\n[{\"requirement_id\":\"A1\",\"is_compliant\":false,\"confidence\":0.7}]\n```"}
	rm := &stubRemote{}
	svc := NewService(oa, vx, rm)
	req := domain.AnalyzerRequest{DocumentID: "doc-1", Text: "text"}

	raws, err := svc.Analyze(context.Background(), domain.AnalyzerDescriptor{ID: "fire", Target: "openai:gpt-4o"}, req)
	require.NoError(t, err)
	assert.Equal(t, "B1", raws[0].RequirementID)
	assert.Equal(t, "gpt-4o", oa.last.Model)
	assert.Contains(t, oa.last.User, "doc-1")
	assert.NotEmpty(t, oa.last.System)

	raws, err = svc.Analyze(context.Background(), domain.AnalyzerDescriptor{ID: "str", Target: "vertex:gemini-1.5-pro"}, req)
	require.NoError(t, err)
	assert.Equal(t, "A1", raws[0].RequirementID)
	assert.Equal(t, "gemini-1.5-pro", vx.last.Model)

	raws, err = svc.Analyze(context.Background(), domain.AnalyzerDescriptor{ID: "r", Target: "https://analyzers.local/a"}, req)
	require.NoError(t, err)
	assert.True(t, rm.called)
	assert.Equal(t, "R1", raws[0].RequirementID)
}

func TestService_MissingBackend(t *testing.T) {
	svc := NewService(nil, nil, nil)
	for _, target := range []string{"openai:gpt-4o", "vertex:gemini", "http://x/a"} {
		_, err := svc.Analyze(context.Background(), domain.AnalyzerDescriptor{ID: "a", Target: target}, domain.AnalyzerRequest{})
		assert.ErrorIs(t, err, ErrNoBackend, target)
	}
}

func TestService_PropagatesQuotaErrors(t *testing.T) {
	svc := NewService(&stubCompletion{err: ai.ErrQuotaExceeded}, nil, nil)
	_, err := svc.Analyze(context.Background(), domain.AnalyzerDescriptor{ID: "a", Target: "openai:gpt-4o"}, domain.AnalyzerRequest{})
	assert.ErrorIs(t, err, ai.ErrQuotaExceeded)
}
