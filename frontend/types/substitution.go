package types

import "github.com/benbjohnson/immutable"

// variableHasher lets VariableKind key an immutable.Map.
type variableHasher struct{}

func (variableHasher) Hash(k VariableKind) uint32 {
	seed := k.hashSeed()
	return uint32(seed ^ (seed >> 32))
}

func (variableHasher) Equal(a, b VariableKind) bool { return a == b }

// Substitution is the frozen outcome of a solver run: a read-only mapping
// from every registered variable to its resolved type. It is safe to share
// across goroutines.
type Substitution struct {
	env      *Environment
	resolved *immutable.Map[VariableKind, TypeID]

	// roots maps every variable ever registered to its representative
	roots map[VariableKind]VariableKind
}

func newSubstitution(env *Environment, u *unification, resolved map[VariableKind]TypeID) *Substitution {
	builder := immutable.NewMapBuilder[VariableKind, TypeID](variableHasher{})
	for kind, t := range resolved {
		builder.Set(kind, t)
	}
	return &Substitution{
		env:      env,
		resolved: builder.Map(),
		roots:    u.lookup(),
	}
}

// Len reports how many canonical variables were resolved.
func (s *Substitution) Len() int { return s.resolved.Len() }

// Resolve returns the type a variable resolved to. Unknown variables, or
// variables from a different solver run, report ok=false.
func (s *Substitution) Resolve(kind VariableKind) (TypeID, bool) {
	root, ok := s.roots[kind]
	if !ok {
		root = kind
	}
	return s.resolved.Get(root)
}

// Infer returns the fully rewritten type of a hole: the hole's resolution
// with every resolved variable inside it replaced recursively. Holes whose
// resolution refers back to themselves keep their marker in place, so
// recursive structural types stay finite.
func (s *Substitution) Infer(hole HoleID) (TypeID, bool) {
	resolved, ok := s.Resolve(HoleKind(hole))
	if !ok {
		return NoType, false
	}
	return s.Apply(resolved), true
}

// Apply rewrites an arbitrary type the same way Infer rewrites a hole's
// resolution.
func (s *Substitution) Apply(t TypeID) TypeID {
	return rewriteResolved(s.env, t, func(kind VariableKind) (VariableKind, TypeID, bool) {
		root, ok := s.roots[kind]
		if !ok {
			root = kind
		}
		resolved, ok := s.resolved.Get(root)
		return root, resolved, ok
	})
}

// rewriter replaces resolved variable markers throughout a type. lookup
// canonicalises the variable and reports its resolution, if any.
type rewriter struct {
	env       *Environment
	lookup    func(kind VariableKind) (root VariableKind, t TypeID, ok bool)
	visiting  map[TypeID]bool
	resolving map[VariableKind]bool
}

func rewriteResolved(env *Environment, t TypeID, lookup func(VariableKind) (VariableKind, TypeID, bool)) TypeID {
	w := &rewriter{
		env:       env,
		lookup:    lookup,
		visiting:  map[TypeID]bool{},
		resolving: map[VariableKind]bool{},
	}
	return w.rewrite(t)
}

// mentions reports whether t contains a variable whose canonical root is
// the given one.
func (w *rewriter) mentions(t TypeID, root VariableKind, seen map[TypeID]bool) bool {
	if t == NoType || !w.env.ContainsInfer(t) || seen[t] {
		return false
	}
	seen[t] = true
	kind := w.env.Kind(t)
	if inf, ok := kind.(Infer); ok {
		r, _, _ := w.lookup(inf.Variable)
		return r == root
	}
	for child := range kind.children() {
		if w.mentions(child, root, seen) {
			return true
		}
	}
	return false
}

func (w *rewriter) rewrite(t TypeID) TypeID {
	if t == NoType || !w.env.ContainsInfer(t) {
		return t
	}
	if w.visiting[t] {
		return t
	}
	w.visiting[t] = true
	defer delete(w.visiting, t)

	switch kind := w.env.Kind(t).(type) {
	case Infer:
		root, resolved, ok := w.lookup(kind.Variable)
		if !ok || resolved == t {
			return t
		}
		// a resolution that mentions its own variable stays a marker, so
		// recursive types are not unrolled
		if w.resolving[root] || w.mentions(resolved, root, map[TypeID]bool{}) {
			return t
		}
		w.resolving[root] = true
		defer delete(w.resolving, root)
		return w.rewrite(resolved)
	case List:
		return w.env.ListOf(w.rewrite(kind.Element))
	case Dict:
		return w.env.DictOf(w.rewrite(kind.Key), w.rewrite(kind.Value))
	case Tuple:
		elements := make([]TypeID, len(kind.Elements))
		for i, element := range kind.Elements {
			elements[i] = w.rewrite(element)
		}
		return w.env.TupleOf(elements...)
	case Struct:
		fields := make([]StructField, len(kind.Fields))
		for i, field := range kind.Fields {
			fields[i] = StructField{Name: field.Name, Value: w.rewrite(field.Value)}
		}
		return w.env.Intern(Struct{Fields: fields})
	case Union:
		variants := make([]TypeID, len(kind.Variants))
		for i, variant := range kind.Variants {
			variants[i] = w.rewrite(variant)
		}
		return w.env.UnionOf(variants...)
	case Intersection:
		variants := make([]TypeID, len(kind.Variants))
		for i, variant := range kind.Variants {
			variants[i] = w.rewrite(variant)
		}
		return w.env.IntersectionOf(variants...)
	case Closure:
		params := make([]TypeID, len(kind.Params))
		for i, param := range kind.Params {
			params[i] = w.rewrite(param)
		}
		return w.env.ClosureOf(w.rewrite(kind.Return), params...)
	case Opaque:
		return w.env.OpaqueOf(kind.Name, w.rewrite(kind.Repr))
	default:
		return t
	}
}
