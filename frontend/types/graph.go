package types

import (
	"github.com/hashicorp/go-set/v3"
	"github.com/lunelang/lune/util"
)

// graphEdge is a lower -> upper edge between canonical variables.
// ordering distinguishes real subtyping edges from pure Dependency edges,
// which participate in cycle detection but never carry bounds.
type graphEdge struct {
	lower    VariableKind
	upper    VariableKind
	ordering bool
}

// constraintGraph is a dense, index-based view of the ordering/dependency
// edges between canonical variables. Nodes are keyed by a dense integer
// after canonicalization to keep cycle detection allocation-light.
type constraintGraph struct {
	index map[VariableKind]int
	nodes []VariableKind
	succs [][]int
	preds [][]int
	// orderingSucc[i] parallels succs[i]: true for Ordering edges
	orderingSucc [][]bool
}

func buildConstraintGraph(u *unification, edges []graphEdge) *constraintGraph {
	g := &constraintGraph{index: make(map[VariableKind]int)}
	node := func(kind VariableKind) int {
		root := u.root(kind)
		if i, ok := g.index[root]; ok {
			return i
		}
		i := len(g.nodes)
		g.index[root] = i
		g.nodes = append(g.nodes, root)
		g.succs = append(g.succs, nil)
		g.preds = append(g.preds, nil)
		g.orderingSucc = append(g.orderingSucc, nil)
		return i
	}
	seen := set.New[[3]int](len(edges))
	for _, edge := range edges {
		from, to := node(edge.lower), node(edge.upper)
		if from == to {
			continue
		}
		flag := 0
		if edge.ordering {
			flag = 1
		}
		// parallel edges collapse after unification
		if !seen.Insert([3]int{from, to, flag}) {
			continue
		}
		g.succs[from] = append(g.succs[from], to)
		g.orderingSucc[from] = append(g.orderingSucc[from], edge.ordering)
		g.preds[to] = append(g.preds[to], from)
	}
	return g
}

// sccs computes strongly connected components with Tarjan's algorithm.
// Components come out in reverse topological order.
func (g *constraintGraph) sccs() [][]int {
	n := len(g.nodes)
	indices := make([]int, n)
	lowlinks := make([]int, n)
	onStack := make([]bool, n)
	for i := range indices {
		indices[i] = -1
	}
	var stack util.Stack[int]
	var components [][]int
	next := 0

	var strongConnect func(v int)
	strongConnect = func(v int) {
		indices[v] = next
		lowlinks[v] = next
		next++
		stack.Push(v)
		onStack[v] = true

		for _, w := range g.succs[v] {
			if indices[w] == -1 {
				strongConnect(w)
				lowlinks[v] = min(lowlinks[v], lowlinks[w])
			} else if onStack[w] {
				lowlinks[v] = min(lowlinks[v], indices[w])
			}
		}

		if lowlinks[v] == indices[v] {
			var component []int
			for {
				w, _ := stack.Pop()
				onStack[w] = false
				component = append(component, w)
				if w == v {
					break
				}
			}
			components = append(components, component)
		}
	}

	for v := 0; v < n; v++ {
		if indices[v] == -1 {
			strongConnect(v)
		}
	}
	return components
}

// solveAntiSymmetry enforces that every variable in a nontrivial SCC
// denotes the same type: if a <: b and b <: a then a and b are unified.
// Collapsing only merges existing nodes and never creates new cycles among
// distinct roots, so one detection pass followed by a rebuild reaches the
// fixpoint.
func solveAntiSymmetry(u *unification, edges []graphEdge) *constraintGraph {
	g := buildConstraintGraph(u, edges)
	collapsed := false
	for _, component := range g.sccs() {
		if len(component) < 2 {
			continue
		}
		first := u.variable(g.nodes[component[0]])
		for _, i := range component[1:] {
			u.unify(first, u.variable(g.nodes[i]))
		}
		collapsed = true
	}
	if !collapsed {
		return g
	}
	return buildConstraintGraph(u, edges)
}

// orderingSuccessors yields the targets of Ordering edges out of root.
func (g *constraintGraph) orderingSuccessors(root VariableKind) []VariableKind {
	i, ok := g.index[root]
	if !ok {
		return nil
	}
	var out []VariableKind
	for j, succ := range g.succs[i] {
		if g.orderingSucc[i][j] {
			out = append(out, g.nodes[succ])
		}
	}
	return out
}

// orderingPredecessors yields the sources of Ordering edges into root.
func (g *constraintGraph) orderingPredecessors(root VariableKind) []VariableKind {
	i, ok := g.index[root]
	if !ok {
		return nil
	}
	var out []VariableKind
	for _, pred := range g.preds[i] {
		for j, succ := range g.succs[pred] {
			if succ == i && g.orderingSucc[pred][j] {
				out = append(out, g.nodes[pred])
				break
			}
		}
	}
	return out
}
