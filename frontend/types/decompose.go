package types

import (
	"strings"

	"github.com/hashicorp/go-set/v3"
	"github.com/lunelang/lune/frontend/diag"
	"github.com/lunelang/lune/frontend/ir"
	"github.com/lunelang/lune/util"
)

// Variance is the direction in which a subtyping comparison recurses
// through a type's sub-components.
type Variance int

const (
	Invariant Variance = iota
	Covariant
	Contravariant
)

const (
	defaultStartingFuel = 10000
	defaultDepthLimit   = 250
)

// decomposer turns a pair of (possibly variable-containing) types into
// primitive constraints on the Infer leaves, or into diagnostics.
// One decomposer instance lives for a single decompose call.
type decomposer struct {
	env  *Environment
	span ir.Range

	// cache holds the pairs currently assumed to hold; revisiting one is
	// the coinductive success case and is what terminates recursive types
	cache *set.Set[typePair]

	out    []Constraint
	issues *diag.Issues

	fuel       int
	depth      int
	depthLimit int
}

func newDecomposer(env *Environment, span ir.Range, opts SolverOpts) *decomposer {
	opts = opts.withDefaults()
	return &decomposer{
		env:        env,
		span:       span,
		cache:      set.New[typePair](8),
		fuel:       opts.DecomposeFuel,
		depthLimit: opts.DecomposeDepthLimit,
	}
}

// decompose is the entry point: it dispatches on variance and returns the
// primitive constraints, or diagnostics when the pair cannot hold.
func (d *decomposer) decompose(variance Variance, lhs, rhs TypeID) ([]Constraint, *diag.Issues) {
	switch variance {
	case Covariant:
		d.rec(lhs, rhs)
	case Contravariant:
		d.rec(rhs, lhs)
	case Invariant:
		d.invariantRec(lhs, rhs)
	}
	return d.out, d.issues
}

func (d *decomposer) emit(c Constraint) {
	logger.Debug("decompose: emitting constraint", "constraint", c.String())
	d.out = append(d.out, c)
}

func (d *decomposer) report(diagnostic *diag.Diagnostic) bool {
	d.issues = d.issues.With(diagnostic)
	return false
}

func (d *decomposer) variableAt(kind VariableKind) Variable {
	return Variable{Range: d.span, Kind: kind}
}

func (d *decomposer) consumeFuel(lhs, rhs TypeID) bool {
	d.fuel--
	if d.fuel <= 0 || d.depth > d.depthLimit {
		reason := "exceeded the recursion depth limit"
		if d.fuel <= 0 {
			reason = "ran out of fuel"
		}
		d.report(diag.New(diag.TypeMismatch, diag.SeverityBug).
			WithLabel(d.span, "while relating `%s` and `%s`: %s",
				d.env.TypeString(lhs), d.env.TypeString(rhs), reason))
		return true
	}
	return false
}

// rec enforces lhs <: rhs. It reports diagnostics for impossible pairs and
// returns whether the pair can hold.
func (d *decomposer) rec(lhs, rhs TypeID) bool {
	// interning guarantees structurally identical types share a TypeID
	if lhs == rhs {
		return true
	}
	pair := util.NewPair(lhs, rhs)
	if d.cache.Contains(pair) {
		return true
	}
	d.cache.Insert(pair)

	d.depth++
	defer func() { d.depth-- }()
	if d.consumeFuel(lhs, rhs) {
		return false
	}

	ka, kb := d.env.Kind(lhs), d.env.Kind(rhs)

	// Infer leaves become constraints instead of failures
	if ia, aInfer := ka.(Infer); aInfer {
		if ib, bInfer := kb.(Infer); bInfer {
			d.emit(OrderingConstraint{Lower: d.variableAt(ia.Variable), Upper: d.variableAt(ib.Variable)})
			return true
		}
		d.emit(UpperBoundConstraint{Variable: d.variableAt(ia.Variable), Bound: rhs})
		return true
	}
	if ib, bInfer := kb.(Infer); bInfer {
		d.emit(LowerBoundConstraint{Variable: d.variableAt(ib.Variable), Bound: lhs})
		return true
	}

	// extremes come before structural matching
	if _, ok := ka.(Never); ok {
		return true
	}
	if _, ok := kb.(Unknown); ok {
		return true
	}
	if _, ok := kb.(Never); ok {
		return d.report(diag.New(diag.CannotBeSubtypeOfNever, diag.SeverityError).
			WithLabel(d.span, "`%s` cannot be a subtype of `Never`", d.env.TypeString(lhs)).
			WithNote("`Never` has no values; only `Never` itself is a subtype of `Never`"))
	}
	if _, ok := ka.(Unknown); ok {
		return d.report(diag.New(diag.CannotBeSupertypeOfUnknown, diag.SeverityError).
			WithLabel(d.span, "`Unknown` cannot be a subtype of `%s`", d.env.TypeString(rhs)).
			WithNote("every type is a subtype of `Unknown`; only `Unknown` itself is above it"))
	}

	if union, ok := ka.(Union); ok {
		return d.recUnionLhs(union, rhs)
	}
	if inter, ok := kb.(Intersection); ok {
		return d.recIntersectionRhs(lhs, inter)
	}
	if inter, ok := ka.(Intersection); ok {
		// every variant must fit the required target
		for _, variant := range inter.Variants {
			if !d.try(variant, rhs) {
				return d.report(diag.New(diag.IntersectionVariantMismatch, diag.SeverityError).
					WithLabel(d.span, "intersection variant `%s` is not a subtype of `%s`",
						d.env.TypeString(variant), d.env.TypeString(rhs)))
			}
		}
		return true
	}
	if union, ok := kb.(Union); ok {
		return d.recUnionRhs(lhs, union, rhs)
	}

	switch ta := ka.(type) {
	case Primitive:
		if tb, ok := kb.(Primitive); ok && primitiveSubtype(ta.Kind, tb.Kind) {
			return true
		}
	case Struct:
		if tb, ok := kb.(Struct); ok {
			return d.recStructStruct(ta, tb)
		}
	case Tuple:
		if tb, ok := kb.(Tuple); ok {
			return d.recTupleTuple(ta, tb, lhs, rhs)
		}
	case List:
		if tb, ok := kb.(List); ok {
			return d.rec(ta.Element, tb.Element)
		}
	case Dict:
		if tb, ok := kb.(Dict); ok {
			// keys invariant, values covariant
			keysOk := d.invariantRec(ta.Key, tb.Key)
			return d.rec(ta.Value, tb.Value) && keysOk
		}
	case Opaque:
		if tb, ok := kb.(Opaque); ok {
			if ta.Name != tb.Name {
				return d.report(diag.New(diag.OpaqueTypeNameMismatch, diag.SeverityError).
					WithLabel(d.span, "expected opaque type `%s`, found `%s`",
						d.env.SymbolName(tb.Name), d.env.SymbolName(ta.Name)).
					WithNote("opaque types are related by name, not by structure"))
			}
			return d.rec(ta.Repr, tb.Repr)
		}
	case Closure:
		if tb, ok := kb.(Closure); ok {
			return d.recClosureClosure(ta, tb, lhs, rhs)
		}
	}

	return d.report(diag.New(diag.TypeMismatch, diag.SeverityError).
		WithLabel(d.span, "expected `%s`, found `%s`", d.env.TypeString(rhs), d.env.TypeString(lhs)))
}

// invariantRec enforces lhs == rhs. Pairs with Infer on one side turn into
// Equals constraints, pairs of two variables into a Unify.
func (d *decomposer) invariantRec(lhs, rhs TypeID) bool {
	if lhs == rhs {
		return true
	}
	ka, kb := d.env.Kind(lhs), d.env.Kind(rhs)
	if ia, ok := ka.(Infer); ok {
		if ib, ok := kb.(Infer); ok {
			d.emit(UnifyConstraint{Lhs: d.variableAt(ia.Variable), Rhs: d.variableAt(ib.Variable)})
			return true
		}
		d.emit(EqualsConstraint{Variable: d.variableAt(ia.Variable), Type: rhs})
		return true
	}
	if ib, ok := kb.(Infer); ok {
		d.emit(EqualsConstraint{Variable: d.variableAt(ib.Variable), Type: lhs})
		return true
	}
	if ta, ok := ka.(Struct); ok {
		if tb, ok := kb.(Struct); ok {
			if only := fieldsOnlyOnOneSide(ta, tb); len(only) > 0 {
				return d.report(diag.New(diag.StructFieldMismatch, diag.SeverityError).
					WithLabel(d.span, "struct fields do not match: %s", d.fieldList(only)).
					WithNote("these fields are present on only one side"))
			}
		}
	}
	fwd := d.rec(lhs, rhs)
	return d.rec(rhs, lhs) && fwd
}

func (d *decomposer) recUnionLhs(union Union, rhs TypeID) bool {
	rhsUnion, rhsIsUnion := d.env.Kind(rhs).(Union)
	for _, variant := range union.Variants {
		if rhsIsUnion {
			// the variant must fit at least one rhs variant
			if !d.commitFirst(variant, rhsUnion.Variants) {
				return d.report(diag.New(diag.UnionVariantMismatch, diag.SeverityError).
					WithLabel(d.span, "union variant `%s` is not a subtype of any variant of `%s`",
						d.env.TypeString(variant), d.env.TypeString(rhs)))
			}
			continue
		}
		if !d.try(variant, rhs) {
			return d.report(diag.New(diag.UnionVariantMismatch, diag.SeverityError).
				WithLabel(d.span, "union variant `%s` is not a subtype of `%s`",
					d.env.TypeString(variant), d.env.TypeString(rhs)))
		}
	}
	return true
}

func (d *decomposer) recUnionRhs(lhs TypeID, union Union, rhs TypeID) bool {
	if d.commitFirst(lhs, union.Variants) {
		return true
	}
	return d.report(diag.New(diag.TypeMismatch, diag.SeverityError).
		WithLabel(d.span, "`%s` is not a subtype of any union variant of `%s`",
			d.env.TypeString(lhs), d.env.TypeString(rhs)))
}

func (d *decomposer) recIntersectionRhs(lhs TypeID, inter Intersection) bool {
	for _, variant := range inter.Variants {
		if !d.try(lhs, variant) {
			return d.report(diag.New(diag.IntersectionVariantMismatch, diag.SeverityError).
				WithLabel(d.span, "`%s` is not a subtype of required intersection variant `%s`",
					d.env.TypeString(lhs), d.env.TypeString(variant)))
		}
	}
	return true
}

func (d *decomposer) recStructStruct(lhs, rhs Struct) bool {
	// every field required by the supertype side must exist on the subtype
	// side with a compatible value type
	ok := true
	for _, required := range rhs.Fields {
		value, found := lhs.FieldType(required.Name)
		if !found {
			d.report(diag.New(diag.MissingStructField, diag.SeverityError).
				WithLabel(d.span, "missing struct field `%s`", d.env.SymbolName(required.Name)).
				WithHelp("expected a field `%s: %s`", d.env.SymbolName(required.Name), d.env.TypeString(required.Value)))
			ok = false
			continue
		}
		if !d.rec(value, required.Value) {
			ok = false
		}
	}
	return ok
}

func (d *decomposer) recTupleTuple(lhs, rhs Tuple, lhsID, rhsID TypeID) bool {
	if len(lhs.Elements) != len(rhs.Elements) {
		return d.report(diag.New(diag.TupleLengthMismatch, diag.SeverityError).
			WithLabel(d.span, "expected a tuple of %d elements, found %d",
				len(rhs.Elements), len(lhs.Elements)).
			WithNote("`%s` vs `%s`", d.env.TypeString(lhsID), d.env.TypeString(rhsID)))
	}
	ok := true
	for i := range lhs.Elements {
		if !d.rec(lhs.Elements[i], rhs.Elements[i]) {
			ok = false
		}
	}
	return ok
}

func (d *decomposer) recClosureClosure(lhs, rhs Closure, lhsID, rhsID TypeID) bool {
	if len(lhs.Params) != len(rhs.Params) {
		return d.report(diag.New(diag.FunctionParameterCountMismatch, diag.SeverityError).
			WithLabel(d.span, "expected a function of %d parameters, found %d",
				len(rhs.Params), len(lhs.Params)).
			WithNote("`%s` vs `%s`", d.env.TypeString(lhsID), d.env.TypeString(rhsID)))
	}
	ok := true
	for i := range lhs.Params {
		// parameters are contravariant
		if !d.rec(rhs.Params[i], lhs.Params[i]) {
			ok = false
		}
	}
	return d.rec(lhs.Return, rhs.Return) && ok
}

// try runs lhs <: rhs speculatively: emitted constraints and diagnostics
// are kept only if the pair holds.
func (d *decomposer) try(lhs, rhs TypeID) bool {
	child := &decomposer{
		env:        d.env,
		span:       d.span,
		cache:      set.New[typePair](8),
		fuel:       d.fuel,
		depth:      d.depth,
		depthLimit: d.depthLimit,
	}
	ok := child.rec(lhs, rhs) && !child.issues.HasFatal()
	d.fuel = child.fuel
	if ok {
		d.out = append(d.out, child.out...)
	}
	return ok
}

// commitFirst tries lhs against each candidate and commits the first match.
func (d *decomposer) commitFirst(lhs TypeID, candidates []TypeID) bool {
	for _, candidate := range candidates {
		if d.try(lhs, candidate) {
			return true
		}
	}
	return false
}

func fieldsOnlyOnOneSide(a, b Struct) []Symbol {
	var only []Symbol
	for _, field := range a.Fields {
		if _, ok := b.FieldType(field.Name); !ok {
			only = append(only, field.Name)
		}
	}
	for _, field := range b.Fields {
		if _, ok := a.FieldType(field.Name); !ok {
			only = append(only, field.Name)
		}
	}
	return only
}

func (d *decomposer) fieldList(names []Symbol) string {
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = "`" + d.env.SymbolName(name) + "`"
	}
	return strings.Join(parts, ", ")
}
