package types

import "slices"

// variableConstraint is the aggregated view of every bound recorded against
// one union-find root. Duplicate bounds collapse on insertion, which is what
// makes re-adding the same constraint idempotent.
type variableConstraint struct {
	variable Variable

	equals []TypeID
	lower  []TypeID
	upper  []TypeID

	// set once a diagnostic has been reported for this root, so that later
	// passes do not pile further errors on the same variable
	reported bool
}

func (vc *variableConstraint) addEqual(t TypeID) {
	if !slices.Contains(vc.equals, t) {
		vc.equals = append(vc.equals, t)
	}
}

func (vc *variableConstraint) addLower(t TypeID) {
	if !slices.Contains(vc.lower, t) {
		vc.lower = append(vc.lower, t)
	}
}

func (vc *variableConstraint) addUpper(t TypeID) {
	if !slices.Contains(vc.upper, t) {
		vc.upper = append(vc.upper, t)
	}
}

func (vc *variableConstraint) hasBounds() bool {
	return len(vc.equals) > 0 || len(vc.lower) > 0 || len(vc.upper) > 0
}

// aggregation groups the primitive constraints by representative and carries
// the ordering graph alongside them.
type aggregation struct {
	byRoot map[VariableKind]*variableConstraint
	graph  *constraintGraph
}

func (a *aggregation) at(u *unification, root VariableKind) *variableConstraint {
	root = u.root(root)
	if vc, ok := a.byRoot[root]; ok {
		return vc
	}
	vc := &variableConstraint{variable: u.variable(root)}
	a.byRoot[root] = vc
	return vc
}

// aggregate normalises and groups primitive constraints. Bounds whose type is
// itself a bare variable become ordering edges; equalities between two
// variables become unions. Anti-symmetry runs on the resulting graph before
// the bounds are grouped, so bounds always land on final representatives.
func aggregate(env *Environment, u *unification, constraints []Constraint) *aggregation {
	var edges []graphEdge

	asVariable := func(t TypeID, span Variable) (Variable, bool) {
		if inf, ok := env.Kind(t).(Infer); ok {
			return Variable{Range: span.Range, Kind: inf.Variable}, true
		}
		return Variable{}, false
	}

	for _, c := range constraints {
		switch c := c.(type) {
		case UnifyConstraint:
			u.upsert(c.Lhs)
			u.upsert(c.Rhs)
			u.unify(c.Lhs, c.Rhs)
		case EqualsConstraint:
			u.upsert(c.Variable)
			if other, ok := asVariable(c.Type, c.Variable); ok {
				u.upsert(other)
				u.unify(c.Variable, other)
			}
		case LowerBoundConstraint:
			u.upsert(c.Variable)
			if other, ok := asVariable(c.Bound, c.Variable); ok {
				u.upsert(other)
				edges = append(edges, graphEdge{lower: other.Kind, upper: c.Variable.Kind, ordering: true})
			}
		case UpperBoundConstraint:
			u.upsert(c.Variable)
			if other, ok := asVariable(c.Bound, c.Variable); ok {
				u.upsert(other)
				edges = append(edges, graphEdge{lower: c.Variable.Kind, upper: other.Kind, ordering: true})
			}
		case OrderingConstraint:
			u.upsert(c.Lower)
			u.upsert(c.Upper)
			edges = append(edges, graphEdge{lower: c.Lower.Kind, upper: c.Upper.Kind, ordering: true})
		case DependencyConstraint:
			u.upsert(c.Source)
			u.upsert(c.Target)
			edges = append(edges, graphEdge{lower: c.Source.Kind, upper: c.Target.Kind, ordering: false})
		}
	}

	agg := &aggregation{byRoot: map[VariableKind]*variableConstraint{}}
	agg.graph = solveAntiSymmetry(u, edges)

	for _, c := range constraints {
		switch c := c.(type) {
		case EqualsConstraint:
			if _, ok := asVariable(c.Type, c.Variable); ok {
				continue // already handled as a union
			}
			agg.at(u, c.Variable.Kind).addEqual(c.Type)
		case LowerBoundConstraint:
			if _, ok := asVariable(c.Bound, c.Variable); ok {
				continue
			}
			agg.at(u, c.Variable.Kind).addLower(c.Bound)
		case UpperBoundConstraint:
			if _, ok := asVariable(c.Bound, c.Variable); ok {
				continue
			}
			agg.at(u, c.Variable.Kind).addUpper(c.Bound)
		}
	}
	// roots that only ever appeared in orderings still resolve later
	for _, root := range u.roots() {
		agg.at(u, root)
	}
	return agg
}
