package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

func TestScoreReport(t *testing.T) {
	green := finding("A1", "structural", "structural", true, 0.9)
	amber := finding("B1", "fire", "fire_safety", true, 0.8)
	red := finding("B2", "fire", "fire_safety", false, 0.9)
	conflict := domain.Conflict{RuleID: "r", Status: domain.StatusAmber}

	tests := []struct {
		name      string
		findings  []domain.Finding
		conflicts []domain.Conflict
		status    domain.Status
		reason    domain.ReasonCode
	}{
		{"no findings", nil, nil, domain.StatusRed, domain.ReasonNoFindings},
		{"all green", []domain.Finding{green}, nil, domain.StatusGreen, domain.ReasonAllGreen},
		{"amber finding", []domain.Finding{green, amber}, nil, domain.StatusAmber, domain.ReasonAmberFindings},
		{"red wins", []domain.Finding{green, amber, red}, nil, domain.StatusRed, domain.ReasonRedFindings},
		{"conflict leaves green findings green", []domain.Finding{green}, []domain.Conflict{conflict}, domain.StatusGreen, domain.ReasonAllGreen},
		{"red conflict does not raise amber", []domain.Finding{green, amber}, []domain.Conflict{{Status: domain.StatusRed}}, domain.StatusAmber, domain.ReasonAmberFindings},
		{"red finding with conflict", []domain.Finding{red, green}, []domain.Conflict{conflict}, domain.StatusRed, domain.ReasonRedFindings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := ScoreReport(tt.findings, tt.conflicts)
			assert.Equal(t, tt.status, s.Status)
			assert.Equal(t, tt.reason, s.Reason)
		})
	}
}

func TestScoreReport_ConfidenceAndStatistics(t *testing.T) {
	findings := []domain.Finding{
		finding("A1", "structural", "structural", true, 0.9),
		finding("A2", "structural", "structural", true, 0.6),
		finding("B1", "fire", "fire_safety", false, 0.9),
		finding("B2", "fire", "fire_safety", true, 0.95),
	}
	s := ScoreReport(findings, []domain.Conflict{{}})
	assert.InDelta(t, 0.8375, s.Confidence, 1e-9)
	assert.Equal(t, domain.Statistics{
		Total: 4, Green: 2, Amber: 1, Red: 1, ComplianceRate: 50, RequiresReview: 2, Conflicts: 1,
	}, s.Statistics)

	assert.Equal(t, 0.0, ScoreReport(nil, nil).Confidence)
}

func TestGroupByDiscipline(t *testing.T) {
	groups := GroupByDiscipline([]domain.Finding{
		finding("B2", "fire", "fire_safety", true, 0.9),
		finding("A1", "structural", "structural", true, 0.9),
		finding("B1", "fire", "fire_safety", false, 0.75),
	})
	require.Len(t, groups, 2)
	assert.Equal(t, domain.Discipline("fire_safety"), groups[0].Discipline)
	assert.Equal(t, domain.StatusRed, groups[0].Status)
	assert.Equal(t, "B1", groups[0].Findings[0].RequirementID)
	assert.Equal(t, domain.StatusGreen, groups[1].Status)
}
