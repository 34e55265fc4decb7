package types

import (
	"testing"

	"github.com/lunelang/lune/frontend/ir"
	"github.com/stretchr/testify/assert"
)

func upserted(u *unification, ids ...uint64) []Variable {
	out := make([]Variable, len(ids))
	for i, id := range ids {
		out[i] = Variable{Range: ir.Range{}, Kind: HoleKind(HoleID(id))}
		u.upsert(out[i])
	}
	return out
}

func TestAntiSymmetryCollapsesCycles(t *testing.T) {
	u := newUnification()
	vs := upserted(u, 0, 1, 2, 3)

	edges := []graphEdge{
		{lower: vs[0].Kind, upper: vs[1].Kind, ordering: true},
		{lower: vs[1].Kind, upper: vs[2].Kind, ordering: true},
		{lower: vs[2].Kind, upper: vs[0].Kind, ordering: true},
		// 3 hangs off the cycle without being part of it
		{lower: vs[2].Kind, upper: vs[3].Kind, ordering: true},
	}
	solveAntiSymmetry(u, edges)

	assert.True(t, u.isUnioned(vs[0].Kind, vs[1].Kind))
	assert.True(t, u.isUnioned(vs[0].Kind, vs[2].Kind))
	assert.False(t, u.isUnioned(vs[0].Kind, vs[3].Kind), "3 is above the cycle, not inside it")
	assert.Len(t, u.roots(), 2)
}

func TestAntiSymmetryThroughDependencyEdges(t *testing.T) {
	u := newUnification()
	vs := upserted(u, 0, 1, 2)

	// the cycle closes through a dependency edge, which still counts for
	// cycle detection
	edges := []graphEdge{
		{lower: vs[0].Kind, upper: vs[1].Kind, ordering: true},
		{lower: vs[1].Kind, upper: vs[2].Kind, ordering: true},
		{lower: vs[2].Kind, upper: vs[0].Kind, ordering: false},
	}
	solveAntiSymmetry(u, edges)

	assert.True(t, u.isUnioned(vs[0].Kind, vs[2].Kind))
	assert.Len(t, u.roots(), 1)
}

func TestOrderingNeighboursSkipDependencyEdges(t *testing.T) {
	u := newUnification()
	vs := upserted(u, 0, 1, 2)

	edges := []graphEdge{
		{lower: vs[0].Kind, upper: vs[1].Kind, ordering: true},
		{lower: vs[0].Kind, upper: vs[2].Kind, ordering: false},
	}
	g := solveAntiSymmetry(u, edges)

	assert.Equal(t, []VariableKind{vs[1].Kind}, g.orderingSuccessors(vs[0].Kind),
		"dependency edges carry no bounds")
	assert.Equal(t, []VariableKind{vs[0].Kind}, g.orderingPredecessors(vs[1].Kind))
	assert.Empty(t, g.orderingSuccessors(vs[1].Kind))
}

func TestGraphDropsSelfLoopsAndDuplicates(t *testing.T) {
	u := newUnification()
	vs := upserted(u, 0, 1)

	edges := []graphEdge{
		{lower: vs[0].Kind, upper: vs[0].Kind, ordering: true},
		{lower: vs[0].Kind, upper: vs[1].Kind, ordering: true},
		{lower: vs[0].Kind, upper: vs[1].Kind, ordering: true},
	}
	g := buildConstraintGraph(u, edges)

	assert.Equal(t, []VariableKind{vs[1].Kind}, g.orderingSuccessors(vs[0].Kind))
}
