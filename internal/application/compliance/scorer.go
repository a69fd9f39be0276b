package compliance

import (
	"math"
	"sort"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

// Score is the scored view of a finding set and its conflicts.
type Score struct {
	Status     domain.Status
	Reason     domain.ReasonCode
	Confidence float64
	Statistics domain.Statistics
	Groups     []domain.DisciplineFindings
}

// ScoreReport derives the overall status as the worst per-finding status, red when nothing was found.
// Conflicts only feed the statistics; they are reported next to the status, not folded into it.
func ScoreReport(findings []domain.Finding, conflicts []domain.Conflict) Score {
	s := Score{Groups: GroupByDiscipline(findings), Statistics: statisticsOf(findings, conflicts)}
	if len(findings) == 0 {
		s.Status = domain.StatusRed
		s.Reason = domain.ReasonNoFindings
		return s
	}

	s.Status = domain.StatusGreen
	sum := 0.0
	for _, f := range findings {
		s.Status = domain.Worse(s.Status, f.Status())
		sum += f.Confidence
	}
	s.Confidence = sum / float64(len(findings))
	switch s.Status {
	case domain.StatusRed:
		s.Reason = domain.ReasonRedFindings
	case domain.StatusAmber:
		s.Reason = domain.ReasonAmberFindings
	default:
		s.Reason = domain.ReasonAllGreen
	}
	return s
}

// GroupByDiscipline buckets findings by discipline, each bucket carrying its own worst status.
func GroupByDiscipline(findings []domain.Finding) []domain.DisciplineFindings {
	idx := make(map[domain.Discipline]int)
	var groups []domain.DisciplineFindings
	for _, f := range findings {
		i, ok := idx[f.Discipline]
		if !ok {
			i = len(groups)
			idx[f.Discipline] = i
			groups = append(groups, domain.DisciplineFindings{Discipline: f.Discipline, Status: domain.StatusGreen})
		}
		groups[i].Findings = append(groups[i].Findings, f)
		groups[i].Status = domain.Worse(groups[i].Status, f.Status())
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Discipline < groups[j].Discipline })
	for _, g := range groups {
		sort.Slice(g.Findings, func(i, j int) bool { return g.Findings[i].Key().Less(g.Findings[j].Key()) })
	}
	return groups
}

func statisticsOf(findings []domain.Finding, conflicts []domain.Conflict) domain.Statistics {
	st := domain.Statistics{Total: len(findings), Conflicts: len(conflicts)}
	for _, f := range findings {
		switch f.Status() {
		case domain.StatusGreen:
			st.Green++
		case domain.StatusAmber:
			st.Amber++
			st.RequiresReview++
		case domain.StatusRed:
			st.Red++
			st.RequiresReview++
		}
	}
	if st.Total > 0 {
		st.ComplianceRate = math.Round(float64(st.Green)/float64(st.Total)*10000) / 100
	}
	return st
}
