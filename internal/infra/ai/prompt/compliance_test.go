package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/automaton-compliance/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

func TestParseFindings(t *testing.T) {
	obj := `{"findings":[{"requirement_id":"B1","is_compliant":true,"confidence":0.9,"evidence":"two stairs","value":1100,"unit":"mm"}]}`
	tests := map[string]string{
		"object": obj,
		"fenced": "```json\n" + obj + "\n```",
		"array":  `[{"requirement_id":"B1","is_compliant":true,"confidence":0.9,"evidence":"two stairs","value":1100,"unit":"mm"}]`,
	}
	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			raws, err := ParseFindings(in)
			require.NoError(t, err)
			require.Len(t, raws, 1)
			assert.Equal(t, "B1", raws[0].RequirementID)
			require.NotNil(t, raws[0].IsCompliant)
			assert.True(t, *raws[0].IsCompliant)
			require.NotNil(t, raws[0].Value)
			assert.Equal(t, 1100.0, *raws[0].Value)
		})
	}
}

func TestParseFindings_MissingFieldsStayNil(t *testing.T) {
	raws, err := ParseFindings(`{"findings":[{"requirement_id":"B1","evidence":"x"}]}`)
	require.NoError(t, err)
	assert.Nil(t, raws[0].IsCompliant)
	assert.Nil(t, raws[0].Confidence)
}

func TestParseFindings_Errors(t *testing.T) {
	_, err := ParseFindings("  ")
	assert.ErrorIs(t, err, ai.ErrEmptyCompletion)

	_, err = ParseFindings("I could not read the document.")
	assert.ErrorIs(t, err, domain.ErrMalformedOutput)

	_, err = ParseFindings(`{"summary":"ok"}`)
	assert.ErrorIs(t, err, domain.ErrMalformedOutput)

	raws, err := ParseFindings(`{"findings":[]}`)
	require.NoError(t, err)
	assert.Empty(t, raws)
}

func TestUserPrompt(t *testing.T) {
	p := UserPrompt(domain.AnalyzerRequest{
		DocumentID:   "doc-1",
		Revision:     2,
		Text:         "Stairs are 1100 mm wide.",
		Disciplines:  []domain.Discipline{"fire_safety"},
		Regulations:  []string{"Part B - Fire Safety"},
		Instructions: "focus on means of escape",
		Metadata:     domain.BuildingMetadata{HeightMeters: 21, Storeys: 7, OccupancyType: "residential"},
	})
	assert.Contains(t, p, "doc-1 revision 2")
	assert.Contains(t, p, "fire_safety")
	assert.Contains(t, p, "- Part B - Fire Safety")
	assert.Contains(t, p, "focus on means of escape")
	assert.Contains(t, p, "height 21.0 m, 7 storeys")
	assert.Contains(t, p, "Stairs are 1100 mm wide.")
}
