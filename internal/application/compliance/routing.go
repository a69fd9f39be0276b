package compliance

import (
	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

// Plan is the ordered set of analyzers selected for one run.
type Plan struct {
	Analyzers []domain.AnalyzerDescriptor
	// Fallback is true when no analyzer matched and generalists were selected instead.
	Fallback bool
}

// Mandatory returns the analyzers whose failure marks the report incomplete.
func (p Plan) Mandatory() []domain.AnalyzerDescriptor {
	var out []domain.AnalyzerDescriptor
	for _, d := range p.Analyzers {
		if d.Mandatory {
			out = append(out, d)
		}
	}
	return out
}

// Optional returns the analyzers that may fail silently.
func (p Plan) Optional() []domain.AnalyzerDescriptor {
	var out []domain.AnalyzerDescriptor
	for _, d := range p.Analyzers {
		if !d.Mandatory {
			out = append(out, d)
		}
	}
	return out
}

func (p Plan) IDs() []string {
	out := make([]string, len(p.Analyzers))
	for i, d := range p.Analyzers {
		out[i] = d.ID
	}
	return out
}

// Route selects every analyzer covering a discipline in set, each at most once, ordered by id.
// The snapshot is already sorted, which makes the result deterministic.
func Route(set domain.DisciplineSet, snap *Snapshot) Plan {
	var plan Plan
	if snap == nil {
		return plan
	}
	for _, d := range snap.analyzers {
		if d.Covers(set) {
			plan.Analyzers = append(plan.Analyzers, d)
		}
	}
	if len(plan.Analyzers) > 0 || set.Has(domain.DisciplineGeneral) {
		return plan
	}
	general := domain.NewDisciplineSet(domain.DisciplineGeneral)
	for _, d := range snap.analyzers {
		if d.Covers(general) {
			plan.Analyzers = append(plan.Analyzers, d)
			plan.Fallback = true
		}
	}
	return plan
}
