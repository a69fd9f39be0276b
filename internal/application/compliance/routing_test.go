package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"

	domain "github.com/bryanwahyu/automaton-compliance/internal/domain/compliance"
)

func TestRoute_SelectsEachCoveringAnalyzerOnce(t *testing.T) {
	snap := snapshotOf(t,
		desc("structural", true, 0, "structural"),
		desc("fire", false, 0, "fire_safety"),
		desc("envelope-fire", false, 0, "building_envelope", "fire_safety"),
		desc("general", false, 0, "general"),
	)
	plan := Route(domain.NewDisciplineSet("fire_safety", "building_envelope"), snap)

	assert.Equal(t, []string{"envelope-fire", "fire"}, plan.IDs())
	assert.False(t, plan.Fallback)
	assert.Empty(t, plan.Mandatory())
	assert.Len(t, plan.Optional(), 2)
}

func TestRoute_Deterministic(t *testing.T) {
	a := snapshotOf(t, desc("b", false, 0, "x"), desc("a", true, 0, "x"), desc("c", false, 0, "y"))
	b := snapshotOf(t, desc("c", false, 0, "y"), desc("a", true, 0, "x"), desc("b", false, 0, "x"))
	set := domain.NewDisciplineSet("x", "y")

	assert.Equal(t, Route(set, a).IDs(), Route(set, b).IDs())
	assert.Equal(t, []string{"a", "b", "c"}, Route(set, a).IDs())
}

func TestRoute_FallsBackToGeneralists(t *testing.T) {
	snap := snapshotOf(t, desc("structural", true, 0, "structural"), desc("general", false, 0, "general"))

	plan := Route(domain.NewDisciplineSet("acoustics"), snap)
	assert.Equal(t, []string{"general"}, plan.IDs())
	assert.True(t, plan.Fallback)

	plan = Route(domain.NewDisciplineSet(domain.DisciplineGeneral), snap)
	assert.Equal(t, []string{"general"}, plan.IDs())
	assert.False(t, plan.Fallback)
}

func TestRoute_NothingToRoute(t *testing.T) {
	snap := snapshotOf(t, desc("structural", true, 0, "structural"))
	assert.Empty(t, Route(domain.NewDisciplineSet("acoustics"), snap).Analyzers)
	assert.Empty(t, Route(domain.NewDisciplineSet("structural"), nil).Analyzers)
}
