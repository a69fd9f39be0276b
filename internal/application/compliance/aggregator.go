package compliance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

// Aggregate flattens the findings of completed analyzers into one collection keyed by
// (requirement, analyzer). The result is sorted by key and does not depend on the order of outcomes.
func Aggregate(outcomes []Outcome, logger *zap.Logger) ([]domain.Finding, []domain.Diagnostic) {
	var lists [][]domain.Finding
	for _, o := range outcomes {
		if o.State != domain.ExecCompleted {
			continue
		}
		lists = append(lists, o.Findings)
	}
	return AggregateFindings(lists, logger)
}

// AggregateFindings merges finding lists. On a duplicate key the higher confidence wins,
// a tie keeps the non-compliant entry, then the smaller evidence text.
func AggregateFindings(lists [][]domain.Finding, logger *zap.Logger) ([]domain.Finding, []domain.Diagnostic) {
	if logger == nil {
		logger = zap.NewNop()
	}
	byKey := make(map[domain.FindingKey]domain.Finding)
	var dropped []domain.Finding

	for _, list := range lists {
		for _, f := range list {
			cur, ok := byKey[f.Key()]
			if !ok {
				byKey[f.Key()] = f
				continue
			}
			if prefer(f, cur) {
				byKey[f.Key()] = f
				dropped = append(dropped, cur)
			} else {
				dropped = append(dropped, f)
			}
		}
	}

	out := make([]domain.Finding, 0, len(byKey))
	for _, f := range byKey {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key().Less(out[j].Key()) })

	// the discarded entries are reported in key order so diagnostics are stable too
	sort.SliceStable(dropped, func(i, j int) bool {
		if dropped[i].Key() != dropped[j].Key() {
			return dropped[i].Key().Less(dropped[j].Key())
		}
		return prefer(dropped[i], dropped[j])
	})
	var diags []domain.Diagnostic
	for _, f := range dropped {
		logger.Info("duplicate finding discarded",
			zap.String("event", string(domain.EventDuplicateFindingDiscarded)),
			zap.String("finding", f.Key().String()),
			zap.Float64("confidence", f.Confidence),
			zap.Bool("is_compliant", f.IsCompliant))
		diags = append(diags, domain.Diagnostic{
			Code:       domain.EventDuplicateFindingDiscarded,
			AnalyzerID: f.AnalyzerID,
			Subject:    f.Key().String(),
			Message:    fmt.Sprintf("duplicate with confidence %.2f discarded", f.Confidence),
		})
	}
	return out, diags
}

// prefer reports whether a should replace b for the same key.
func prefer(a, b domain.Finding) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if a.IsCompliant != b.IsCompliant {
		return !a.IsCompliant
	}
	if a.Evidence.Text != b.Evidence.Text {
		return a.Evidence.Text < b.Evidence.Text
	}
	// identical on every ranked field, fall back to the encoded form
	ab, _ := json.Marshal(a)
	bb, _ := json.Marshal(b)
	return bytes.Compare(ab, bb) < 0
}
