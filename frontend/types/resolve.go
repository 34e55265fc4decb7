package types

import (
	"slices"

	"github.com/lunelang/lune/frontend/diag"
)

const maxResolutionRounds = 64

// resolver turns aggregated bounds into one concrete type per root. It runs
// in rounds so that a root whose bounds mention other variables can wait for
// those variables to settle first.
type resolver struct {
	env  *Environment
	lat  lattice
	u    *unification
	agg  *aggregation
	opts SolverOpts

	resolved map[VariableKind]TypeID
	issues   *diag.Issues

	// roots whose constraints could not be satisfied. They keep an internal
	// resolution so dependent bounds still settle, but the substitution the
	// solver hands back omits them.
	failed map[VariableKind]bool

	// primitive constraints produced by decomposing structural bounds;
	// the solver feeds them back into a fresh aggregation pass
	extra []Constraint

	// roots that are outputs of still-pending selection obligations;
	// they stay quiet instead of warning about being unconstrained
	quiet map[VariableKind]bool
}

func newResolver(env *Environment, u *unification, agg *aggregation, opts SolverOpts) *resolver {
	return &resolver{
		env:      env,
		lat:      lattice{env: env},
		u:        u,
		agg:      agg,
		opts:     opts,
		resolved: map[VariableKind]TypeID{},
		failed:   map[VariableKind]bool{},
		quiet:    map[VariableKind]bool{},
	}
}

// apply rewrites a bound using the resolutions settled so far.
func (r *resolver) apply(t TypeID) TypeID {
	return rewriteResolved(r.env, t, func(kind VariableKind) (VariableKind, TypeID, bool) {
		root := r.u.root(kind)
		resolved, ok := r.resolved[root]
		return root, resolved, ok
	})
}

func (r *resolver) sortedRoots() []VariableKind {
	roots := make([]VariableKind, 0, len(r.agg.byRoot))
	for root := range r.agg.byRoot {
		roots = append(roots, root)
	}
	slices.SortFunc(roots, func(a, b VariableKind) int {
		if a.id != b.id {
			return int(a.id) - int(b.id)
		}
		return int(a.tag) - int(b.tag)
	})
	return roots
}

// run resolves every root it can. Bounded roots go first; boundless roots
// then inherit bounds from resolved ordering neighbours over as many rounds
// as it takes to reach a fixpoint. With force set, roots that still cannot
// settle are flushed with whatever information is present; without it they
// stay unresolved for a later pass.
func (r *resolver) run(force bool) {
	roots := r.sortedRoots()
	for round := 0; round < maxResolutionRounds; round++ {
		progress := false
		for _, root := range roots {
			if _, done := r.resolved[root]; done {
				continue
			}
			if r.resolveRoot(root, false) {
				progress = true
			}
		}
		if !progress {
			break
		}
	}
	if !force {
		return
	}
	// whatever is left cannot make further progress by waiting
	for _, root := range roots {
		if _, done := r.resolved[root]; done {
			continue
		}
		r.resolveRoot(root, true)
	}
}

// resolveRoot attempts to settle one root and reports whether it did.
// With force set, the root resolves with whatever information is present
// instead of waiting for neighbours.
func (r *resolver) resolveRoot(root VariableKind, force bool) bool {
	vc := r.agg.at(r.u, root)
	span := vc.variable.Range

	equals := r.applyAll(vc.equals)
	lower := r.applyAll(vc.lower)
	upper := r.applyAll(vc.upper)

	if len(equals) > 0 {
		return r.resolveWithEquals(root, vc, equals, lower, upper)
	}

	// relay: a root with no bounds of its own borrows them from resolved
	// ordering neighbours
	if len(lower) == 0 && len(upper) == 0 {
		lower = r.neighbourResolutions(r.agg.graph.orderingPredecessors(root))
		upper = r.neighbourResolutions(r.agg.graph.orderingSuccessors(root))
	}

	if !force && (r.anyMentionsUnresolved(lower) || r.anyMentionsUnresolved(upper)) {
		// bounds that still mention other variables pin those variables
		// down structurally before this root can settle
		for _, lo := range lower {
			for _, up := range upper {
				if r.env.ContainsInfer(lo) || r.env.ContainsInfer(up) {
					r.decomposeInto(Covariant, lo, up, vc)
				}
			}
		}
		return false
	}

	if len(lower) > 0 {
		if !force && r.anyMentionsUnresolved(lower) {
			return false
		}
		resolved := r.lat.JoinAll(lower)
		if len(upper) > 0 && !r.anyMentionsUnresolved(upper) {
			bound := r.lat.MeetAll(upper)
			if !r.compatible(resolved, bound) && !vc.reported {
				vc.reported = true
				r.failed[root] = true
				r.report(diag.New(diag.BoundConstraintViolation, diag.SeverityError).
					WithLabel(span, "`%s` must be both a supertype of `%s` and a subtype of `%s`",
						vc.variable, r.env.TypeString(resolved), r.env.TypeString(bound)).
					WithNote("the lower bounds join to `%s`, which does not fit under the upper bounds", r.env.TypeString(resolved)))
			}
		}
		r.resolved[root] = r.lat.Simplify(resolved)
		return true
	}

	if len(upper) > 0 {
		if !force && r.anyMentionsUnresolved(upper) {
			return false
		}
		resolved := r.lat.MeetAll(upper)
		if isNever(r.env, resolved) && !slices.ContainsFunc(upper, func(t TypeID) bool { return isNever(r.env, t) }) {
			if !vc.reported {
				vc.reported = true
				r.failed[root] = true
				r.report(diag.New(diag.UnsatisfiableUpperConstraint, diag.SeverityError).
					WithLabel(span, "no type satisfies all upper bounds on `%s`", vc.variable).
					WithNote("the upper bounds meet to `Never`"))
			}
		}
		r.resolved[root] = r.lat.Simplify(resolved)
		return true
	}

	if !force {
		return false
	}
	if !vc.reported && !r.quiet[root] {
		vc.reported = true
		r.report(diag.New(diag.UnconstrainedTypeVariable, diag.SeverityWarning).
			WithLabel(span, "the type of `%s` is unconstrained", vc.variable).
			WithHelp("add a type annotation"))
	}
	r.resolved[root] = r.env.Unknown()
	return true
}

func (r *resolver) resolveWithEquals(root VariableKind, vc *variableConstraint, equals, lower, upper []TypeID) bool {
	span := vc.variable.Range
	chosen := equals[0]

	for _, other := range equals[1:] {
		if r.env.ContainsInfer(chosen) || r.env.ContainsInfer(other) {
			// unresolved parts may still reconcile; decompose instead
			r.decomposeInto(Invariant, chosen, other, vc)
			continue
		}
		if !vc.reported {
			vc.reported = true
			r.failed[root] = true
			r.report(diag.New(diag.ConflictingEqualityConstraints, diag.SeverityError).
				WithLabel(span, "`%s` is required to equal both `%s` and `%s`",
					vc.variable, r.env.TypeString(chosen), r.env.TypeString(other)))
		}
	}

	for _, bound := range lower {
		if r.env.ContainsInfer(chosen) || r.env.ContainsInfer(bound) {
			r.decomposeInto(Covariant, bound, chosen, vc)
			continue
		}
		if !r.lat.IsSubtype(bound, chosen) && !vc.reported {
			vc.reported = true
			r.failed[root] = true
			r.report(diag.New(diag.IncompatibleLowerEqualConstraint, diag.SeverityError).
				WithLabel(span, "`%s` equals `%s`, but is also required to be a supertype of `%s`",
					vc.variable, r.env.TypeString(chosen), r.env.TypeString(bound)))
		}
	}
	for _, bound := range upper {
		if r.env.ContainsInfer(chosen) || r.env.ContainsInfer(bound) {
			r.decomposeInto(Covariant, chosen, bound, vc)
			continue
		}
		if !r.lat.IsSubtype(chosen, bound) && !vc.reported {
			vc.reported = true
			r.failed[root] = true
			r.report(diag.New(diag.IncompatibleUpperEqualConstraint, diag.SeverityError).
				WithLabel(span, "`%s` equals `%s`, but is also required to be a subtype of `%s`",
					vc.variable, r.env.TypeString(chosen), r.env.TypeString(bound)))
		}
	}

	r.resolved[root] = chosen
	return true
}

// decomposeInto runs the structural decomposer over a pair of bounds and
// queues the resulting primitive constraints for the next solver pass.
// It reports whether the pair could hold, surfacing a conflict diagnostic
// when it could not.
func (r *resolver) decomposeInto(variance Variance, lhs, rhs TypeID, vc *variableConstraint) bool {
	d := newDecomposer(r.env, vc.variable.Range, r.opts)
	out, issues := d.decompose(variance, lhs, rhs)
	if issues.HasFatal() {
		if !vc.reported {
			vc.reported = true
			r.failed[r.u.root(vc.variable.Kind)] = true
			r.issues = r.issues.Merge(issues)
		}
		return false
	}
	r.extra = append(r.extra, out...)
	return true
}

func (r *resolver) applyAll(bounds []TypeID) []TypeID {
	if len(bounds) == 0 {
		return nil
	}
	out := make([]TypeID, 0, len(bounds))
	for _, bound := range bounds {
		applied := r.apply(bound)
		if !slices.Contains(out, applied) {
			out = append(out, applied)
		}
	}
	return out
}

// anyMentionsUnresolved reports whether a bound still contains a variable
// whose root has not settled yet.
func (r *resolver) anyMentionsUnresolved(bounds []TypeID) bool {
	for _, bound := range bounds {
		if r.mentionsUnresolved(bound, map[TypeID]bool{}) {
			return true
		}
	}
	return false
}

func (r *resolver) mentionsUnresolved(t TypeID, visiting map[TypeID]bool) bool {
	if t == NoType || !r.env.ContainsInfer(t) || visiting[t] {
		return false
	}
	visiting[t] = true
	kind := r.env.Kind(t)
	if inf, ok := kind.(Infer); ok {
		_, done := r.resolved[r.u.root(inf.Variable)]
		return !done
	}
	for child := range kind.children() {
		if r.mentionsUnresolved(child, visiting) {
			return true
		}
	}
	return false
}

func (r *resolver) neighbourResolutions(neighbours []VariableKind) []TypeID {
	var out []TypeID
	for _, neighbour := range neighbours {
		if resolved, ok := r.resolved[r.u.root(neighbour)]; ok && !slices.Contains(out, resolved) {
			out = append(out, resolved)
		}
	}
	return out
}

// compatible checks resolved <: bound, tolerating leftover variable markers
// which stand for their eventual resolution.
func (r *resolver) compatible(resolved, bound TypeID) bool {
	if r.env.ContainsInfer(resolved) || r.env.ContainsInfer(bound) {
		return true
	}
	return r.lat.IsSubtype(resolved, bound)
}

func (r *resolver) report(diagnostic *diag.Diagnostic) {
	r.issues = r.issues.With(diagnostic)
}

func isNever(env *Environment, t TypeID) bool {
	_, ok := env.Kind(t).(Never)
	return ok
}
