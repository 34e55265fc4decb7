package types

import (
	"github.com/pkg/errors"

	"github.com/lunelang/lune/frontend/diag"
	"github.com/lunelang/lune/frontend/ir"
	"github.com/lunelang/lune/internal/log"
)

var logger = log.DefaultLogger.With("section", "inference")

const maxSolveRounds = 32

// SolverOpts overrides the solver's internal limits. The zero value keeps
// the package defaults, so callers only set the knobs they care about.
type SolverOpts struct {
	// DecomposeFuel caps the total work of one structural decomposition.
	DecomposeFuel int
	// DecomposeDepthLimit caps nesting depth during decomposition.
	DecomposeDepthLimit int
}

func (o SolverOpts) withDefaults() SolverOpts {
	if o.DecomposeFuel <= 0 {
		o.DecomposeFuel = defaultStartingFuel
	}
	if o.DecomposeDepthLimit <= 0 {
		o.DecomposeDepthLimit = defaultDepthLimit
	}
	return o
}

// InferenceSolver accumulates the constraints of one function or module's
// worth of inference and solves them in a single synchronous pass. A solver
// is not safe for concurrent use; the Environment it shares is.
type InferenceSolver struct {
	env     *Environment
	fresher *Fresher
	opts    SolverOpts

	constraints []Constraint
	selections  []SelectionConstraint

	// diagnostics found while collecting, surfaced by Solve
	collected *diag.Issues
}

func NewInferenceSolver(env *Environment, fresher *Fresher) *InferenceSolver {
	return NewInferenceSolverWith(env, fresher, SolverOpts{})
}

func NewInferenceSolverWith(env *Environment, fresher *Fresher, opts SolverOpts) *InferenceSolver {
	return &InferenceSolver{env: env, fresher: fresher, opts: opts.withDefaults()}
}

// AddConstraint queues one primitive constraint.
func (s *InferenceSolver) AddConstraint(c Constraint) {
	s.constraints = append(s.constraints, c)
}

// CollectConstraints decomposes lhs against rhs under the given variance
// and queues the resulting primitive constraints. Structural impossibilities
// found during decomposition surface from Solve.
func (s *InferenceSolver) CollectConstraints(span ir.Range, variance Variance, lhs, rhs TypeID) {
	d := newDecomposer(s.env, span, s.opts)
	out, issues := d.decompose(variance, lhs, rhs)
	s.constraints = append(s.constraints, out...)
	s.collected = s.collected.Merge(issues)
}

// AddProjection defers "the type of subject.field" and returns the fresh
// hole standing for it. The dependency edge keeps subject and output in the
// same graph component without implying an ordering. The output hole spans
// the whole access expression, from the subject to the selector.
func (s *InferenceSolver) AddProjection(span ir.Range, subject Variable, field Symbol) Variable {
	output := s.fresher.FreshHole(ir.RangeBetween(subject.Range, span))
	s.selections = append(s.selections, ProjectionConstraint{
		Range:   span,
		Subject: subject,
		Field:   field,
		Output:  output,
	})
	s.constraints = append(s.constraints, DependencyConstraint{Source: subject, Target: output})
	return output
}

// AddSubscript defers "the type of subject[index]", where index is the type
// of the index expression, and returns the fresh hole standing for it.
func (s *InferenceSolver) AddSubscript(span ir.Range, subject Variable, index TypeID) Variable {
	output := s.fresher.FreshHole(ir.RangeBetween(subject.Range, span))
	s.selections = append(s.selections, SubscriptConstraint{
		Range:   span,
		Subject: subject,
		Index:   index,
		Output:  output,
	})
	s.constraints = append(s.constraints, DependencyConstraint{Source: subject, Target: output})
	return output
}

// Solve resolves every queued constraint and returns the resulting
// substitution. The returned issues hold every diagnostic of the run;
// Warning-severity advisories may be present even on success.
func (s *InferenceSolver) Solve() (*Substitution, *diag.Issues) {
	issues := s.collected
	u := newUnification()

	issues = issues.Merge(s.checkGenericReferences())

	constraints := make([]Constraint, len(s.constraints))
	copy(constraints, s.constraints)
	pending := make([]SelectionConstraint, len(s.selections))
	copy(pending, s.selections)

	logger.Debug("solving", "constraints", len(constraints), "selections", len(pending))

	var r *resolver
	for round := 0; round < maxSolveRounds; round++ {
		agg := aggregate(s.env, u, constraints)
		r = newResolver(s.env, u, agg, s.opts)
		r.run(false)

		sr := newSelectionResolver(s.env, u, r.resolved)
		remaining := sr.run(pending)
		issues = issues.Merge(sr.issues)

		produced := append(r.extra, sr.extra...)
		fired := len(pending) - len(remaining)
		pending = remaining
		logger.Debug("solve round", "round", round, "resolved", len(r.resolved),
			"produced", len(produced), "fired", fired)
		if len(produced) == 0 && fired == 0 {
			break
		}
		constraints = append(constraints, produced...)
		// diagnostics of non-final passes are re-derived later; dropping
		// them here is what keeps them deduplicated across rounds
	}

	// flush: roots that never gained a bound resolve now, with warnings
	agg := aggregate(s.env, u, constraints)
	r = newResolver(s.env, u, agg, s.opts)
	for _, sel := range pending {
		r.quiet[u.root(sel.output().Kind)] = true
	}
	r.run(true)
	issues = issues.Merge(r.issues)

	for _, sel := range pending {
		issues = issues.With(s.unresolvedSelection(sel))
	}

	final := map[VariableKind]TypeID{}
	lat := lattice{env: s.env}
	for root, t := range r.resolved {
		if r.failed[root] {
			// unsatisfiable roots produced a diagnostic; the substitution
			// carries no entry for them
			continue
		}
		applied := rewriteResolved(s.env, t, func(kind VariableKind) (VariableKind, TypeID, bool) {
			k := u.root(kind)
			resolved, ok := r.resolved[k]
			return k, resolved, ok
		})
		final[root] = lat.Simplify(applied)
	}

	sub := newSubstitution(s.env, u, final)
	logger.Debug("solved", "resolved", sub.Len(), "issues", issues)
	return sub, issues
}

func (s *InferenceSolver) unresolvedSelection(sel SelectionConstraint) *diag.Diagnostic {
	switch sel := sel.(type) {
	case ProjectionConstraint:
		return diag.New(diag.UnresolvedSelectionConstraint, diag.SeverityError).
			WithLabel(sel.Range, "cannot access `%s` because the type of `%s` is not known",
				s.env.SymbolName(sel.Field), sel.Subject).
			WithHelp("annotate `%s` so the access can be checked", sel.Subject)
	case SubscriptConstraint:
		return diag.New(diag.UnresolvedSelectionConstraint, diag.SeverityError).
			WithLabel(sel.Range, "cannot subscript `%s` because its type is not known", sel.Subject).
			WithHelp("annotate `%s` so the access can be checked", sel.Subject)
	}
	return nil
}

// checkGenericReferences reports a Bug for every generic variable that was
// never declared with the Environment. A dangling reference means an
// earlier pipeline phase failed to validate its input.
func (s *InferenceSolver) checkGenericReferences() *diag.Issues {
	var issues *diag.Issues
	seen := map[GenericArgumentID]bool{}

	check := func(v Variable) {
		id, ok := v.Kind.Generic()
		if !ok || seen[id] {
			return
		}
		seen[id] = true
		if s.env.genericDeclared(id) {
			return
		}
		issues = issues.With(diag.New(diag.DanglingGenericReference, diag.SeverityBug).
			WithLabel(v.Range, "reference to undeclared generic argument `%s`", v.Kind).
			WithCause(errors.Errorf("generic argument %s was never declared", v.Kind)))
	}
	checkType := func(t TypeID, span ir.Range) {
		s.walkInferLeaves(t, map[TypeID]bool{}, func(kind VariableKind) {
			check(Variable{Range: span, Kind: kind})
		})
	}

	for _, c := range s.constraints {
		switch c := c.(type) {
		case EqualsConstraint:
			check(c.Variable)
			checkType(c.Type, c.Variable.Range)
		case LowerBoundConstraint:
			check(c.Variable)
			checkType(c.Bound, c.Variable.Range)
		case UpperBoundConstraint:
			check(c.Variable)
			checkType(c.Bound, c.Variable.Range)
		case OrderingConstraint:
			check(c.Lower)
			check(c.Upper)
		case UnifyConstraint:
			check(c.Lhs)
			check(c.Rhs)
		case DependencyConstraint:
			check(c.Source)
			check(c.Target)
		}
	}
	for _, sel := range s.selections {
		check(sel.subject())
		check(sel.output())
	}
	return issues
}

func (s *InferenceSolver) walkInferLeaves(t TypeID, visiting map[TypeID]bool, fn func(VariableKind)) {
	if t == NoType || !s.env.ContainsInfer(t) || visiting[t] {
		return
	}
	visiting[t] = true
	kind := s.env.Kind(t)
	if inf, ok := kind.(Infer); ok {
		fn(inf.Variable)
		return
	}
	for child := range kind.children() {
		s.walkInferLeaves(child, visiting, fn)
	}
}
