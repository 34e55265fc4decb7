package types

import (
	"slices"
	"strconv"

	"github.com/hashicorp/go-set/v3"
	"github.com/lunelang/lune/frontend/diag"
	"github.com/lunelang/lune/frontend/ir"
	"github.com/lunelang/lune/util"
)

// selectionResolver discharges deferred projection and subscript
// obligations against the resolutions settled so far. Obligations whose
// subject is still unknown stay queued for a later pass.
type selectionResolver struct {
	env *Environment
	lat lattice
	u   *unification

	resolved map[VariableKind]TypeID
	issues   *diag.Issues

	// equality constraints binding output holes, fed back to the solver
	extra []Constraint
}

func newSelectionResolver(env *Environment, u *unification, resolved map[VariableKind]TypeID) *selectionResolver {
	return &selectionResolver{
		env:      env,
		lat:      lattice{env: env},
		u:        u,
		resolved: resolved,
	}
}

// run processes the queue and returns the obligations that could not fire
// yet because their subject has no resolution.
func (s *selectionResolver) run(pending []SelectionConstraint) []SelectionConstraint {
	var remaining []SelectionConstraint
	for _, sel := range pending {
		subject, ok := s.subjectType(sel.subject())
		if !ok {
			remaining = append(remaining, sel)
			continue
		}
		switch sel := sel.(type) {
		case ProjectionConstraint:
			s.resolveProjection(sel, subject)
		case SubscriptConstraint:
			s.resolveSubscript(sel, subject)
		}
	}
	return remaining
}

// subjectType looks up the subject's resolution and rewrites any nested
// variables it mentions. A subject that resolves to a bare unresolved
// marker counts as not resolved yet.
func (s *selectionResolver) subjectType(subject Variable) (TypeID, bool) {
	resolved, ok := s.resolved[s.u.root(subject.Kind)]
	if !ok {
		return NoType, false
	}
	applied := rewriteResolved(s.env, resolved, func(kind VariableKind) (VariableKind, TypeID, bool) {
		root := s.u.root(kind)
		t, ok := s.resolved[root]
		return root, t, ok
	})
	if inf, isInfer := s.env.Kind(applied).(Infer); isInfer {
		if _, done := s.resolved[s.u.root(inf.Variable)]; !done {
			return NoType, false
		}
	}
	return applied, true
}

func (s *selectionResolver) bindOutput(output Variable, t TypeID) {
	s.extra = append(s.extra, EqualsConstraint{Variable: output, Type: t})
}

func (s *selectionResolver) report(diagnostic *diag.Diagnostic, output Variable) {
	s.issues = s.issues.With(diagnostic)
	// bind the output anyway so one access error does not cascade into
	// unconstrained-variable noise downstream
	s.bindOutput(output, s.env.Unknown())
}

// unwrapOpaque peels nominal wrappers off a subject. It fails on a
// directly self-referential representation, which no finite number of
// unwraps can get through.
func (s *selectionResolver) unwrapOpaque(t TypeID) (TypeID, bool) {
	seen := set.New[TypeID](2)
	for {
		opaque, ok := s.env.Kind(t).(Opaque)
		if !ok {
			return t, true
		}
		if opaque.Repr == NoType || opaque.Repr == t || seen.Contains(t) {
			return t, false
		}
		seen.Insert(t)
		t = opaque.Repr
	}
}

func (s *selectionResolver) resolveProjection(sel ProjectionConstraint, subject TypeID) {
	span := ir.RangeOf(sel)
	field := s.env.SymbolName(sel.Field)

	unwrapped, ok := s.unwrapOpaque(subject)
	if !ok {
		s.report(diag.New(diag.RecursiveTypeProjection, diag.SeverityError).
			WithLabel(span, "cannot access `%s` on the self-referential type `%s`",
				field, s.env.TypeString(unwrapped)).
			WithNote("the type's representation refers back to itself"), sel.Output)
		return
	}

	switch kind := s.env.Kind(unwrapped).(type) {
	case Struct:
		if value, found := kind.FieldType(sel.Field); found {
			s.bindOutput(sel.Output, value)
			return
		}
		d := diag.New(diag.FieldNotFound, diag.SeverityError).
			WithLabel(span, "no field `%s` on `%s`", field, s.env.TypeString(unwrapped))
		names := make([]string, len(kind.Fields))
		for i, f := range kind.Fields {
			names[i] = s.env.SymbolName(f.Name)
		}
		if suggestion, found := util.ClosestMatch(field, names, 3); found {
			d = d.WithHelp("did you mean `%s`?", suggestion)
		}
		s.report(d, sel.Output)
	case Tuple:
		index, err := strconv.Atoi(field)
		if err != nil {
			s.report(diag.New(diag.InvalidTupleIndex, diag.SeverityError).
				WithLabel(span, "`%s` is not a valid tuple index", field).
				WithNote("tuple elements are accessed by position, like `.0`"), sel.Output)
			return
		}
		if index < 0 || index >= len(kind.Elements) {
			s.report(diag.New(diag.TupleIndexOutOfBounds, diag.SeverityError).
				WithLabel(span, "index %d is out of bounds for `%s`", index, s.env.TypeString(unwrapped)).
				WithNote("the tuple has %d elements", len(kind.Elements)), sel.Output)
			return
		}
		s.bindOutput(sel.Output, kind.Elements[index])
	default:
		s.report(diag.New(diag.UnsupportedProjection, diag.SeverityError).
			WithLabel(span, "cannot access field `%s` on `%s`", field, s.env.TypeString(unwrapped)).
			WithNote("%s", projectionHint(kind)), sel.Output)
	}
}

func projectionHint(kind TypeKind) string {
	switch kind.(type) {
	case Closure:
		return "function types have no fields"
	case List:
		return "lists are accessed with a subscript, not a field"
	case Dict:
		return "dicts are accessed with a subscript, not a field"
	case Primitive:
		return "primitive types have no fields"
	case Union, Intersection:
		return "the type is not a single struct"
	case Never:
		return "`Never` has no values, so nothing can be accessed on it"
	case Unknown:
		return "the type is not known precisely enough; add an annotation"
	default:
		return "only structs and tuples have fields"
	}
}

func (s *selectionResolver) resolveSubscript(sel SubscriptConstraint, subject TypeID) {
	span := ir.RangeOf(sel)
	null := s.env.Primitive(NullPrim)
	integer := s.env.Primitive(IntegerPrim)

	unwrapped, ok := s.unwrapOpaque(subject)
	if !ok {
		s.report(diag.New(diag.RecursiveTypeSubscript, diag.SeverityError).
			WithLabel(span, "cannot subscript the self-referential type `%s`",
				s.env.TypeString(unwrapped)).
			WithNote("the type's representation refers back to itself"), sel.Output)
		return
	}

	switch kind := s.env.Kind(unwrapped).(type) {
	case List:
		if !s.lat.IsSubtype(sel.Index, integer) {
			s.report(diag.New(diag.ListIndexTypeMismatch, diag.SeverityError).
				WithLabel(span, "lists are indexed by `Integer`, not `%s`",
					s.env.TypeString(sel.Index)), sel.Output)
			return
		}
		// indices may be out of range, so the element is optional
		s.bindOutput(sel.Output, s.env.UnionOf(kind.Element, null))
	case Dict:
		if !s.lat.IsSubtype(sel.Index, kind.Key) {
			s.report(diag.New(diag.DictKeyTypeMismatch, diag.SeverityError).
				WithLabel(span, "this dict is keyed by `%s`, not `%s`",
					s.env.TypeString(kind.Key), s.env.TypeString(sel.Index)), sel.Output)
			return
		}
		// absent keys are as possible as out-of-range indices
		s.bindOutput(sel.Output, s.env.UnionOf(kind.Value, null))
	case Tuple:
		if !s.lat.IsSubtype(sel.Index, integer) {
			s.report(diag.New(diag.InvalidTupleIndex, diag.SeverityError).
				WithLabel(span, "tuples are indexed by `Integer`, not `%s`",
					s.env.TypeString(sel.Index)), sel.Output)
			return
		}
		variants := append(slices.Clone(kind.Elements), null)
		s.bindOutput(sel.Output, s.env.UnionOf(variants...))
	default:
		s.report(diag.New(diag.UnsupportedSubscript, diag.SeverityError).
			WithLabel(span, "`%s` cannot be subscripted", s.env.TypeString(unwrapped)).
			WithNote("%s", subscriptHint(kind)), sel.Output)
	}
}

func subscriptHint(kind TypeKind) string {
	switch kind.(type) {
	case Struct:
		return "struct fields are accessed by name, not by subscript"
	case Closure:
		return "function types cannot be subscripted"
	case Primitive:
		return "primitive types cannot be subscripted"
	case Never:
		return "`Never` has no values, so nothing can be subscripted"
	case Unknown:
		return "the type is not known precisely enough; add an annotation"
	default:
		return "only lists, dicts, and tuples can be subscripted"
	}
}
