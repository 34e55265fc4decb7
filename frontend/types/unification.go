package types

import "maps"

// unification is a map-backed union-find over variable identities.
// Hole identifiers are allocated over the lifetime of a compilation unit,
// so the key space is open-ended and an array-indexed structure would not
// do. Path compression plus union by rank.
type unification struct {
	parent map[VariableKind]VariableKind
	rank   map[VariableKind]int
	// spans keeps the first span each variable was registered with,
	// for diagnostics only
	spans map[VariableKind]Variable
}

func newUnification() *unification {
	return &unification{
		parent: make(map[VariableKind]VariableKind),
		rank:   make(map[VariableKind]int),
		spans:  make(map[VariableKind]Variable),
	}
}

// upsert registers a variable if it is not known yet. Idempotent.
func (u *unification) upsert(v Variable) VariableKind {
	if _, ok := u.parent[v.Kind]; !ok {
		u.parent[v.Kind] = v.Kind
		u.rank[v.Kind] = 0
		u.spans[v.Kind] = v
	}
	return v.Kind
}

// root returns the canonical representative of kind, registering it
// implicitly when unknown.
func (u *unification) root(kind VariableKind) VariableKind {
	parent, ok := u.parent[kind]
	if !ok {
		u.parent[kind] = kind
		u.rank[kind] = 0
		u.spans[kind] = Variable{Kind: kind}
		return kind
	}
	if parent == kind {
		return kind
	}
	r := u.root(parent)
	u.parent[kind] = r // path compression
	return r
}

// unify merges the classes of a and b.
func (u *unification) unify(a, b Variable) {
	u.upsert(a)
	u.upsert(b)
	ra, rb := u.root(a.Kind), u.root(b.Kind)
	if ra == rb {
		return
	}
	if u.rank[ra] < u.rank[rb] {
		ra, rb = rb, ra
	}
	u.parent[rb] = ra
	if u.rank[ra] == u.rank[rb] {
		u.rank[ra]++
	}
}

func (u *unification) isUnioned(a, b VariableKind) bool {
	return u.root(a) == u.root(b)
}

// variable returns a representative Variable (with a span when one was
// registered) for the root of kind.
func (u *unification) variable(kind VariableKind) Variable {
	r := u.root(kind)
	if v, ok := u.spans[r]; ok && v.Range.Pos() != 0 {
		return v
	}
	// fall back to any member with a span
	for member := range u.parent {
		if u.root(member) == r {
			if v, ok := u.spans[member]; ok && v.Range.Pos() != 0 {
				return v
			}
		}
	}
	return Variable{Kind: r}
}

// lookup returns a snapshot of every registered variable mapped to its root.
func (u *unification) lookup() map[VariableKind]VariableKind {
	out := make(map[VariableKind]VariableKind, len(u.parent))
	for kind := range maps.Keys(u.parent) {
		out[kind] = u.root(kind)
	}
	return out
}

// roots returns the set of canonical representatives.
func (u *unification) roots() []VariableKind {
	var out []VariableKind
	for kind := range u.parent {
		if u.root(kind) == kind {
			out = append(out, kind)
		}
	}
	return out
}
