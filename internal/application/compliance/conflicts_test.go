package compliance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

const rulesYAML = `
version: r1
rules:
  - id: stair-width-vs-structure
    a: {requirement: B1-escape-width, discipline: fire_safety}
    b: {requirement: A1-stair-opening}
    operator: lte
    unit: mm
    description: escape stair width must fit the structural opening
  - id: fire-rating-vs-frame
    a: {requirement: B3-fire-resistance}
    b: {requirement: A3-frame-protection}
    operator: lte
    unit: min
    description: required fire resistance cannot exceed the frame protection period
`

func ruleTable(t *testing.T) *RuleTable {
	t.Helper()
	tbl, err := ParseRules([]byte(rulesYAML))
	require.NoError(t, err)
	return tbl
}

func TestParseRules_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown operator": "rules:\n  - {id: r, a: {requirement: x}, b: {requirement: y}, operator: between}\n",
		"missing side":     "rules:\n  - {id: r, a: {requirement: x}, operator: lt}\n",
		"duplicate":        "rules:\n  - {id: r, a: {requirement: x}, b: {requirement: y}, operator: lt}\n  - {id: r, a: {requirement: x}, b: {requirement: z}, operator: lt}\n",
		"no id":            "rules:\n  - {a: {requirement: x}, b: {requirement: y}, operator: lt}\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(body))
			assert.ErrorIs(t, err, domain.ErrInvalidRules)
		})
	}

	empty, err := ParseRules([]byte("version: none\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Len())
}

func TestDetect_ExactlyOneConflict(t *testing.T) {
	findings := []domain.Finding{
		withValue(finding("B1-escape-width", "fire", "fire_safety", true, 0.92), 1200, "mm"),
		withValue(finding("A1-stair-opening", "structural", "structural", true, 0.9), 1100, "mm"),
		withValue(finding("B3-fire-resistance", "fire", "fire_safety", true, 0.9), 60, "min"),
		withValue(finding("A3-frame-protection", "structural", "structural", true, 0.88), 90, "min"),
	}
	conflicts, diags := Detect(findings, ruleTable(t), nil)
	require.Len(t, conflicts, 1)
	assert.Empty(t, diags)

	c := conflicts[0]
	assert.Equal(t, "stair-width-vs-structure", c.RuleID)
	assert.Equal(t, domain.FindingKey{RequirementID: "B1-escape-width", AnalyzerID: "fire"}, c.A)
	assert.Equal(t, domain.FindingKey{RequirementID: "A1-stair-opening", AnalyzerID: "structural"}, c.B)
	assert.Equal(t, 1200.0, c.ValueA)
	assert.Equal(t, 1100.0, c.ValueB)
	assert.Equal(t, domain.SeverityLow, c.Severity, "both findings are green")
	assert.Equal(t, domain.StatusAmber, c.Status, "a conflict is never green")
}

func TestDetect_Symmetric(t *testing.T) {
	a := withValue(finding("B1-escape-width", "fire", "fire_safety", false, 0.9), 1200, "mm")
	b := withValue(finding("A1-stair-opening", "structural", "structural", true, 0.6), 1100, "mm")

	ab, _ := Detect([]domain.Finding{a, b}, ruleTable(t), nil)
	ba, _ := Detect([]domain.Finding{b, a}, ruleTable(t), nil)
	require.Len(t, ab, 1)
	assert.Equal(t, ab, ba)
	assert.Equal(t, "fire", ab[0].A.AnalyzerID)
	assert.Equal(t, domain.SeverityHigh, ab[0].Severity)
	assert.Equal(t, domain.StatusRed, ab[0].Status)
}

func TestDetect_ValueFromEvidenceText(t *testing.T) {
	a := finding("B1-escape-width", "fire", "fire_safety", true, 0.9)
	a.Evidence.Text = "Each protected stair is 1200 mm clear width."
	b := finding("A1-stair-opening", "structural", "structural", true, 0.9)
	b.Evidence.Text = "Stair opening in slab: 1100mm."

	conflicts, diags := Detect([]domain.Finding{a, b}, ruleTable(t), nil)
	require.Len(t, conflicts, 1)
	assert.Empty(t, diags)
	assert.Equal(t, 1100.0, conflicts[0].ValueB)
}

func TestDetect_MissingValueIsSkipped(t *testing.T) {
	a := withValue(finding("B1-escape-width", "fire", "fire_safety", true, 0.9), 1200, "mm")
	b := finding("A1-stair-opening", "structural", "structural", true, 0.9)
	b.Evidence.Text = "opening coordinated with architect"

	conflicts, diags := Detect([]domain.Finding{a, b}, ruleTable(t), nil)
	assert.Empty(t, conflicts)
	require.Len(t, diags, 1)
	assert.Equal(t, domain.EventConflictCheckSkipped, diags[0].Code)
	assert.Contains(t, diags[0].Subject, "stair-width-vs-structure")
}

func TestDetect_DisciplineAndAnalyzerFilters(t *testing.T) {
	// the a-side requires fire_safety; a general analyzer reporting the same requirement does not match
	a := withValue(finding("B1-escape-width", "general", "general", true, 0.9), 1200, "mm")
	b := withValue(finding("A1-stair-opening", "structural", "structural", true, 0.9), 1100, "mm")
	conflicts, _ := Detect([]domain.Finding{a, b}, ruleTable(t), nil)
	assert.Empty(t, conflicts)

	// findings from the same analyzer are never compared
	same := withValue(finding("A1-stair-opening", "fire", "fire_safety", true, 0.9), 1100, "mm")
	conflicts, _ = Detect([]domain.Finding{withValue(finding("B1-escape-width", "fire", "fire_safety", true, 0.9), 1200, "mm"), same}, ruleTable(t), nil)
	assert.Empty(t, conflicts)
}

func TestDetect_SameRequirementRule(t *testing.T) {
	tbl, err := NewRuleTable("x", []Rule{{
		ID: "agree", A: RuleSide{Requirement: "R1"}, B: RuleSide{Requirement: "R1"}, Operator: OpEQ, Unit: "mm",
	}})
	require.NoError(t, err)
	x := withValue(finding("R1", "b-analyzer", "x", true, 0.9), 10, "mm")
	y := withValue(finding("R1", "a-analyzer", "x", true, 0.9), 12, "mm")

	c1, _ := Detect([]domain.Finding{x, y}, tbl, nil)
	c2, _ := Detect([]domain.Finding{y, x}, tbl, nil)
	require.Len(t, c1, 1)
	assert.Equal(t, c1, c2)
	assert.Equal(t, "a-analyzer", c1[0].A.AnalyzerID)
}

func TestRuleHolds(t *testing.T) {
	r := func(op string) Rule { return Rule{Operator: op} }
	assert.True(t, r(OpLT).Holds(1, 2))
	assert.False(t, r(OpLT).Holds(2, 2))
	assert.True(t, r(OpLTE).Holds(2, 2))
	assert.True(t, r(OpGT).Holds(3, 2))
	assert.True(t, r(OpGTE).Holds(2, 2))
	assert.True(t, r(OpEQ).Holds(0.1+0.2, 0.3))
	assert.True(t, r(OpNE).Holds(1, 2))
	assert.False(t, r(OpNE).Holds(2, 2))
}

func TestRules_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rulesYAML), 0o644))
	rules, err := LoadRules(path)
	require.NoError(t, err)
	before := rules.Table()
	assert.Equal(t, 2, before.Len())

	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - {id: r, operator: lt}\n"), 0o644))
	assert.ErrorIs(t, rules.Reload(), domain.ErrInvalidRules)
	assert.Same(t, before, rules.Table())
}

func TestRuleTable_UnreachableSides(t *testing.T) {
	tbl := ruleTable(t)

	// fire_safety only as a secondary discipline: findings are tagged with the primary one
	snap := snapshotOf(t, desc("life-safety", false, 0, "health_safety", "fire_safety"))
	assert.Equal(t, []string{"rule stair-width-vs-structure side a: no analyzer reports discipline fire_safety"},
		tbl.UnreachableSides(snap))

	snap = snapshotOf(t, desc("fire", false, 0, "fire_safety"))
	assert.Empty(t, tbl.UnreachableSides(snap))
}

func TestShippedRulesAreReachable(t *testing.T) {
	registry, err := LoadRegistry("../../../configs/analyzers.yaml")
	require.NoError(t, err)
	rules, err := LoadRules("../../../configs/conflict_rules.yaml")
	require.NoError(t, err)
	assert.Empty(t, rules.Table().UnreachableSides(registry.Snapshot()))
}
