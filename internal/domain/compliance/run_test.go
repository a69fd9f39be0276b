package compliance

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func fireDescriptor() AnalyzerDescriptor {
	return AnalyzerDescriptor{
		ID:          "fire_safety",
		Disciplines: []Discipline{"fire_safety"},
		Target:      "openai:gpt-4o-mini",
	}
}

func TestToFindings_Valid(t *testing.T) {
	raws := []RawFinding{
		{RequirementID: " B1 ", IsCompliant: ptr(true), Confidence: ptr(0.92), Evidence: "escape routes shown"},
		{RequirementID: "B3", IsCompliant: ptr(false), Confidence: ptr(0.75), Value: ptr(60.0), Unit: "min"},
	}
	got, err := ToFindings(fireDescriptor(), raws)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "B1", got[0].RequirementID)
	assert.Equal(t, "fire_safety", got[0].AnalyzerID)
	assert.Equal(t, Discipline("fire_safety"), got[0].Discipline)
	assert.Equal(t, StatusGreen, got[0].Status())
	assert.Equal(t, StatusRed, got[1].Status())
	require.NotNil(t, got[1].Evidence.Value)
	assert.Equal(t, 60.0, *got[1].Evidence.Value)
}

func TestToFindings_RejectsWholeSet(t *testing.T) {
	tests := []struct {
		name string
		bad  RawFinding
	}{
		{"confidence above one", RawFinding{RequirementID: "B2", IsCompliant: ptr(true), Confidence: ptr(1.4)}},
		{"negative confidence", RawFinding{RequirementID: "B2", IsCompliant: ptr(true), Confidence: ptr(-0.1)}},
		{"missing confidence", RawFinding{RequirementID: "B2", IsCompliant: ptr(true)}},
		{"missing compliance", RawFinding{RequirementID: "B2", Confidence: ptr(0.5)}},
		{"missing requirement", RawFinding{IsCompliant: ptr(true), Confidence: ptr(0.5)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raws := []RawFinding{
				{RequirementID: "B1", IsCompliant: ptr(true), Confidence: ptr(0.9)},
				tt.bad,
			}
			got, err := ToFindings(fireDescriptor(), raws)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, ErrMalformedOutput))
		})
	}
}

func TestNewRequest_SlicesForDiscipline(t *testing.T) {
	d := AnalyzerDescriptor{
		ID:            "envelope",
		Disciplines:   []Discipline{"building_envelope", "environmental_sustainability"},
		Regulations:   []string{"Part L"},
		Instructions:  "check U-values",
		MaxInputChars: 5,
	}
	doc := Document{ID: "doc-1", Revision: 2, TenantID: "acme", Text: "héllo world"}
	req := NewRequest(doc, d, NewDisciplineSet("building_envelope", "fire_safety"))

	assert.Equal(t, []Discipline{"building_envelope"}, req.Disciplines)
	assert.Equal(t, "héll", req.Text)
	assert.Equal(t, "acme", req.TenantID)
	assert.Equal(t, []string{"Part L"}, req.Regulations)
}

func TestParseTarget(t *testing.T) {
	tg, err := ParseTarget("openai:gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, Target{Scheme: "openai", Model: "gpt-4o-mini"}, tg)

	tg, err = ParseTarget("vertex:gemini-1.5-pro")
	require.NoError(t, err)
	assert.Equal(t, "vertex", tg.Scheme)

	tg, err = ParseTarget("https://analyzers.internal/structural")
	require.NoError(t, err)
	assert.Equal(t, "https://analyzers.internal/structural", tg.URL)

	for _, bad := range []string{"", "openai:", "ftp://x", "https://"} {
		_, err := ParseTarget(bad)
		assert.Error(t, err, bad)
	}
}

func TestDescriptor_EffectiveTimeout(t *testing.T) {
	d := fireDescriptor()
	assert.Equal(t, DefaultAnalyzerTimeout, d.EffectiveTimeout(0))
	assert.Equal(t, 5*time.Second, d.EffectiveTimeout(5*time.Second))
	d.Timeout = time.Second
	assert.Equal(t, time.Second, d.EffectiveTimeout(5*time.Second))
}

func TestEvidence_NumericValue(t *testing.T) {
	v, ok := Evidence{Text: "Minimum clear width of 1050 mm to the stair."}.NumericValue("mm")
	require.True(t, ok)
	assert.Equal(t, 1050.0, v)

	v, ok = Evidence{Text: "door leaf 850mm, frame 900 mm"}.NumericValue("mm")
	require.True(t, ok)
	assert.Equal(t, 850.0, v)

	v, ok = Evidence{Text: "stair opening is 1,050 mm clear"}.NumericValue("mm")
	require.True(t, ok)
	assert.Equal(t, 1050.0, v, "thousands separator")

	v, ok = Evidence{Text: "span of 12,500mm between cores"}.NumericValue("mm")
	require.True(t, ok)
	assert.Equal(t, 12500.0, v)

	v, ok = Evidence{Text: "landing 1,100.5 mm deep"}.NumericValue("mm")
	require.True(t, ok)
	assert.Equal(t, 1100.5, v)

	_, ok = Evidence{Text: "width 1,05 mm"}.NumericValue("mm")
	assert.False(t, ok, "a malformed group is not read as its tail")

	_, ok = Evidence{Text: "see section 3.2"}.NumericValue("mm")
	assert.False(t, ok)

	_, ok = Evidence{Text: "1050 mm"}.NumericValue("")
	assert.False(t, ok, "no unit and no explicit value is undecidable")

	v, ok = Evidence{Text: "1050 mm", Value: ptr(900.0), Unit: "mm"}.NumericValue("mm")
	require.True(t, ok)
	assert.Equal(t, 900.0, v, "explicit value wins")

	v, ok = Evidence{Value: ptr(2.5)}.NumericValue("")
	require.True(t, ok)
	assert.Equal(t, 2.5, v)
}
