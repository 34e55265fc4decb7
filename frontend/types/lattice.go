package types

import (
	"github.com/hashicorp/go-set/v3"

	"github.com/lunelang/lune/util"
)

// lattice implements the subtype order, join (least upper bound) and meet
// (greatest lower bound) over interned types. It is canonicalization-aware:
// identical TypeIDs short-circuit everywhere.
type lattice struct {
	env *Environment
}

// typePair keys the visited and assumption caches of subtype checks.
type typePair = util.Pair[TypeID, TypeID]

// IsSubtype reports whether a <: b. Recursion through self-referential
// opaques is cut off coinductively with a visited set.
func (l lattice) IsSubtype(a, b TypeID) bool {
	return l.isSubtype(a, b, set.New[typePair](8))
}

func (l lattice) isSubtype(a, b TypeID, visited *set.Set[typePair]) bool {
	if a == b {
		return true
	}
	pair := util.NewPair(a, b)
	if visited.Contains(pair) {
		// assumed to hold while we are still proving it
		return true
	}
	visited.Insert(pair)

	ka, kb := l.env.Kind(a), l.env.Kind(b)

	if _, ok := ka.(Never); ok {
		return true
	}
	if _, ok := kb.(Unknown); ok {
		return true
	}
	if _, ok := kb.(Never); ok {
		return false // only Never is a subtype of Never
	}
	if _, ok := ka.(Unknown); ok {
		return false // only Unknown is a supertype of Unknown
	}

	// an Infer variable is only comparable to itself (handled by a == b)
	if _, ok := ka.(Infer); ok {
		return false
	}
	if _, ok := kb.(Infer); ok {
		return false
	}

	// union on the left: every variant must fit
	if union, ok := ka.(Union); ok {
		for _, variant := range union.Variants {
			if !l.isSubtype(variant, b, visited) {
				return false
			}
		}
		return true
	}
	// intersection on the right: must fit every variant
	if inter, ok := kb.(Intersection); ok {
		for _, variant := range inter.Variants {
			if !l.isSubtype(a, variant, visited) {
				return false
			}
		}
		return true
	}
	// union on the right: fitting one variant is enough
	if union, ok := kb.(Union); ok {
		for _, variant := range union.Variants {
			if l.isSubtype(a, variant, visited) {
				return true
			}
		}
		return false
	}
	// intersection on the left: one variant fitting is enough
	if inter, ok := ka.(Intersection); ok {
		for _, variant := range inter.Variants {
			if l.isSubtype(variant, b, visited) {
				return true
			}
		}
		return false
	}

	switch ta := ka.(type) {
	case Primitive:
		tb, ok := kb.(Primitive)
		return ok && primitiveSubtype(ta.Kind, tb.Kind)
	case Struct:
		tb, ok := kb.(Struct)
		if !ok {
			return false
		}
		// width and depth subtyping: b's fields must all be present in a
		for _, required := range tb.Fields {
			value, found := ta.FieldType(required.Name)
			if !found || !l.isSubtype(value, required.Value, visited) {
				return false
			}
		}
		return true
	case Tuple:
		tb, ok := kb.(Tuple)
		if !ok || len(ta.Elements) != len(tb.Elements) {
			return false
		}
		for i := range ta.Elements {
			if !l.isSubtype(ta.Elements[i], tb.Elements[i], visited) {
				return false
			}
		}
		return true
	case List:
		tb, ok := kb.(List)
		return ok && l.isSubtype(ta.Element, tb.Element, visited)
	case Dict:
		tb, ok := kb.(Dict)
		// keys invariant, values covariant
		return ok && ta.Key == tb.Key && l.isSubtype(ta.Value, tb.Value, visited)
	case Opaque:
		tb, ok := kb.(Opaque)
		return ok && ta.Name == tb.Name && l.isSubtype(ta.Repr, tb.Repr, visited)
	case Closure:
		tb, ok := kb.(Closure)
		if !ok || len(ta.Params) != len(tb.Params) {
			return false
		}
		for i := range ta.Params {
			// parameters are contravariant
			if !l.isSubtype(tb.Params[i], ta.Params[i], visited) {
				return false
			}
		}
		return l.isSubtype(ta.Return, tb.Return, visited)
	}
	return false
}

func primitiveSubtype(a, b PrimitiveKind) bool {
	if a == b {
		return true
	}
	return a == IntegerPrim && b == NumberPrim
}

// Join is the least upper bound of a and b.
func (l lattice) Join(a, b TypeID) TypeID {
	if a == b {
		return a
	}
	if l.IsSubtype(a, b) {
		return b
	}
	if l.IsSubtype(b, a) {
		return a
	}
	variants := append(l.unionVariants(a), l.unionVariants(b)...)
	return l.Simplify(l.env.UnionOf(variants...))
}

// Meet is the greatest lower bound of a and b.
func (l lattice) Meet(a, b TypeID) TypeID {
	if a == b {
		return a
	}
	if l.IsSubtype(a, b) {
		return a
	}
	if l.IsSubtype(b, a) {
		return b
	}
	ka, kb := l.env.Kind(a), l.env.Kind(b)
	// two unrelated atoms have no common subtype other than Never
	if l.isAtom(ka) && l.isAtom(kb) {
		return l.env.Never()
	}
	variants := append(l.intersectionVariants(a), l.intersectionVariants(b)...)
	return l.Simplify(l.env.IntersectionOf(variants...))
}

func (l lattice) JoinAll(ids []TypeID) TypeID {
	acc := l.env.Never()
	for _, id := range ids {
		acc = l.Join(acc, id)
	}
	return acc
}

func (l lattice) MeetAll(ids []TypeID) TypeID {
	acc := l.env.Unknown()
	for _, id := range ids {
		acc = l.Meet(acc, id)
	}
	return acc
}

// isAtom reports whether kind has no common subtype with any unrelated
// atom except Never: primitives and nominal opaques.
func (l lattice) isAtom(kind TypeKind) bool {
	switch kind.(type) {
	case Primitive, Opaque:
		return true
	}
	return false
}

func (l lattice) unionVariants(id TypeID) []TypeID {
	if union, ok := l.env.Kind(id).(Union); ok {
		return union.Variants
	}
	return []TypeID{id}
}

func (l lattice) intersectionVariants(id TypeID) []TypeID {
	if inter, ok := l.env.Kind(id).(Intersection); ok {
		return inter.Variants
	}
	return []TypeID{id}
}

// Simplify normalizes a type without changing its meaning: nested unions
// and intersections are flattened, duplicate variants collapse, extreme
// types are absorbed, and components are simplified recursively.
func (l lattice) Simplify(id TypeID) TypeID {
	return l.simplify(id, set.New[TypeID](4))
}

func (l lattice) simplify(id TypeID, visiting *set.Set[TypeID]) TypeID {
	if visiting.Contains(id) {
		return id
	}
	visiting.Insert(id)
	defer visiting.Remove(id)

	switch kind := l.env.Kind(id).(type) {
	case Union:
		flat := l.flattenUnion(kind.Variants, visiting)
		var kept []TypeID
		for _, variant := range flat {
			if _, isNever := l.env.Kind(variant).(Never); isNever {
				continue // Never is the union identity
			}
			if _, isUnknown := l.env.Kind(variant).(Unknown); isUnknown {
				return l.env.Unknown() // Unknown absorbs the union
			}
			kept = append(kept, variant)
		}
		// drop variants subsumed by another variant
		kept = l.dropSubsumed(kept, func(a, b TypeID) bool { return l.IsSubtype(a, b) })
		if len(kept) == 0 {
			return l.env.Never()
		}
		return l.env.UnionOf(kept...)
	case Intersection:
		flat := l.flattenIntersection(kind.Variants, visiting)
		var kept []TypeID
		for _, variant := range flat {
			if _, isUnknown := l.env.Kind(variant).(Unknown); isUnknown {
				continue // Unknown is the intersection identity
			}
			if _, isNever := l.env.Kind(variant).(Never); isNever {
				return l.env.Never() // Never absorbs the intersection
			}
			kept = append(kept, variant)
		}
		kept = l.dropSubsumed(kept, func(a, b TypeID) bool { return l.IsSubtype(b, a) })
		if len(kept) == 0 {
			return l.env.Unknown()
		}
		return l.env.IntersectionOf(kept...)
	case List:
		return l.env.ListOf(l.simplify(kind.Element, visiting))
	case Dict:
		return l.env.DictOf(l.simplify(kind.Key, visiting), l.simplify(kind.Value, visiting))
	case Tuple:
		elements := make([]TypeID, len(kind.Elements))
		for i, elem := range kind.Elements {
			elements[i] = l.simplify(elem, visiting)
		}
		return l.env.TupleOf(elements...)
	case Struct:
		fields := make([]StructField, len(kind.Fields))
		for i, field := range kind.Fields {
			fields[i] = StructField{Name: field.Name, Value: l.simplify(field.Value, visiting)}
		}
		return l.env.Intern(Struct{Fields: fields})
	case Closure:
		params := make([]TypeID, len(kind.Params))
		for i, param := range kind.Params {
			params[i] = l.simplify(param, visiting)
		}
		return l.env.ClosureOf(l.simplify(kind.Return, visiting), params...)
	}
	return id
}

func (l lattice) flattenUnion(variants []TypeID, visiting *set.Set[TypeID]) []TypeID {
	var out []TypeID
	for _, variant := range variants {
		simplified := l.simplify(variant, visiting)
		if nested, ok := l.env.Kind(simplified).(Union); ok {
			out = append(out, nested.Variants...)
		} else {
			out = append(out, simplified)
		}
	}
	return out
}

func (l lattice) flattenIntersection(variants []TypeID, visiting *set.Set[TypeID]) []TypeID {
	var out []TypeID
	for _, variant := range variants {
		simplified := l.simplify(variant, visiting)
		if nested, ok := l.env.Kind(simplified).(Intersection); ok {
			out = append(out, nested.Variants...)
		} else {
			out = append(out, simplified)
		}
	}
	return out
}

// dropSubsumed removes every variant made redundant by another one.
// subsumes(a, b) must mean "a is redundant given b". Exact duplicates are
// collapsed later by canonical interning.
func (l lattice) dropSubsumed(variants []TypeID, subsumes func(a, b TypeID) bool) []TypeID {
	var kept []TypeID
	for i, a := range variants {
		redundant := false
		for j, b := range variants {
			if i == j || a == b {
				continue
			}
			if subsumes(a, b) && !subsumes(b, a) {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, a)
		}
	}
	return kept
}
