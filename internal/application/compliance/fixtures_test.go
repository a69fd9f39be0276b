package compliance

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

func ptr[T any](v T) *T { return &v }

type analyzeFunc func(ctx context.Context, req domain.AnalyzerRequest) ([]domain.RawFinding, error)

// fakeClient answers per analyzer id; unknown ids return no findings.
type fakeClient struct {
	mu       sync.Mutex
	handlers map[string]analyzeFunc
	calls    []string
	requests map[string]domain.AnalyzerRequest
}

func newFakeClient() *fakeClient {
	return &fakeClient{handlers: map[string]analyzeFunc{}, requests: map[string]domain.AnalyzerRequest{}}
}

func (f *fakeClient) on(id string, h analyzeFunc) *fakeClient {
	f.handlers[id] = h
	return f
}

func (f *fakeClient) Analyze(ctx context.Context, d domain.AnalyzerDescriptor, req domain.AnalyzerRequest) ([]domain.RawFinding, error) {
	f.mu.Lock()
	f.calls = append(f.calls, d.ID)
	f.requests[d.ID] = req
	h := f.handlers[d.ID]
	f.mu.Unlock()
	if h == nil {
		return nil, nil
	}
	return h(ctx, req)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func returns(raws ...domain.RawFinding) analyzeFunc {
	return func(context.Context, domain.AnalyzerRequest) ([]domain.RawFinding, error) { return raws, nil }
}

// hangs until the invoker gives up.
func hangs() analyzeFunc {
	return func(ctx context.Context, _ domain.AnalyzerRequest) ([]domain.RawFinding, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
}

// sleepsThenReturns ignores cancellation, like a client without deadline support.
func sleepsThenReturns(d time.Duration, raws ...domain.RawFinding) analyzeFunc {
	return func(context.Context, domain.AnalyzerRequest) ([]domain.RawFinding, error) {
		time.Sleep(d)
		return raws, nil
	}
}

func raw(req string, compliant bool, conf float64) domain.RawFinding {
	return domain.RawFinding{RequirementID: req, IsCompliant: ptr(compliant), Confidence: ptr(conf), Evidence: req + " evidence"}
}

func rawValue(req string, compliant bool, conf, value float64, unit string) domain.RawFinding {
	r := raw(req, compliant, conf)
	r.Value = ptr(value)
	r.Unit = unit
	return r
}

func desc(id string, mandatory bool, timeout time.Duration, disciplines ...domain.Discipline) domain.AnalyzerDescriptor {
	return domain.AnalyzerDescriptor{
		ID:          id,
		Name:        id,
		Disciplines: disciplines,
		Target:      "openai:gpt-4o-mini",
		Timeout:     timeout,
		Mandatory:   mandatory,
	}
}

func snapshotOf(t *testing.T, ds ...domain.AnalyzerDescriptor) *Snapshot {
	t.Helper()
	s, err := NewSnapshot("test", ds)
	require.NoError(t, err)
	return s
}

func finding(req, analyzer string, disc domain.Discipline, compliant bool, conf float64) domain.Finding {
	return domain.Finding{
		RequirementID: req,
		AnalyzerID:    analyzer,
		Discipline:    disc,
		IsCompliant:   compliant,
		Confidence:    conf,
		Evidence:      domain.Evidence{Text: req + " evidence"},
	}
}

func withValue(f domain.Finding, v float64, unit string) domain.Finding {
	f.Evidence.Value = ptr(v)
	f.Evidence.Unit = unit
	return f
}

const fireText = `Fire Safety Strategy for a residential block. The building is protected by a sprinkler system
throughout and a fire alarm to BS 5839. Means of escape via two protected stairs, each 1100 mm wide.
Compartmentation between flats provides 60 minutes fire rating.`
