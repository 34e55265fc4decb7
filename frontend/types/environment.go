package types

import (
	"sort"
	"sync"

	"github.com/lunelang/lune/frontend/diag"
	"github.com/lunelang/lune/frontend/ir"
)

// Environment owns the interned type arena and the symbol table. It is
// append-only: TypeIDs are only ever added, never mutated, so it can be
// shared read-only across independent solver runs.
type Environment struct {
	mu sync.RWMutex

	// kinds[0] is a placeholder so that NoType is never a real type
	kinds    []TypeKind
	hasInfer []bool
	byHash   map[uint64][]TypeID

	symbols   []string
	symbolIDs map[string]Symbol

	generics map[GenericArgumentID]struct{}
}

func NewEnvironment() *Environment {
	return &Environment{
		kinds:     []TypeKind{nil},
		hasInfer:  []bool{false},
		byHash:    make(map[uint64][]TypeID),
		symbolIDs: make(map[string]Symbol),
		generics:  make(map[GenericArgumentID]struct{}),
	}
}

// Intern deduplicates kind structurally and returns its handle.
func (e *Environment) Intern(kind TypeKind) TypeID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.internLocked(kind)
}

func (e *Environment) internLocked(kind TypeKind) TypeID {
	hash := kind.Hash()
	for _, id := range e.byHash[hash] {
		if e.kinds[id].equal(kind) {
			return id
		}
	}
	id := TypeID(len(e.kinds))
	e.kinds = append(e.kinds, kind)
	e.hasInfer = append(e.hasInfer, e.computeHasInfer(kind))
	e.byHash[hash] = append(e.byHash[hash], id)
	return id
}

func (e *Environment) computeHasInfer(kind TypeKind) bool {
	if _, ok := kind.(Infer); ok {
		return true
	}
	for child := range kind.children() {
		if child != NoType && e.hasInfer[child] {
			return true
		}
	}
	return false
}

// Kind dereferences a TypeID.
func (e *Environment) Kind(id TypeID) TypeKind {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.kinds[id]
}

// ContainsInfer reports whether any Infer variable occurs inside id.
func (e *Environment) ContainsInfer(id TypeID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hasInfer[id]
}

func (e *Environment) InternSymbol(name string) Symbol {
	e.mu.Lock()
	defer e.mu.Unlock()
	if sym, ok := e.symbolIDs[name]; ok {
		return sym
	}
	sym := Symbol(len(e.symbols))
	e.symbols = append(e.symbols, name)
	e.symbolIDs[name] = sym
	return sym
}

func (e *Environment) SymbolName(sym Symbol) string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.symbols[sym]
}

// DeclareGeneric registers a generic argument so the solver can tell a
// declared generic variable from a dangling reference.
func (e *Environment) DeclareGeneric(id GenericArgumentID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.generics[id] = struct{}{}
}

func (e *Environment) genericDeclared(id GenericArgumentID) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.generics[id]
	return ok
}

// --- convenience constructors ---

func (e *Environment) Primitive(kind PrimitiveKind) TypeID {
	return e.Intern(Primitive{Kind: kind})
}

func (e *Environment) Never() TypeID   { return e.Intern(Never{}) }
func (e *Environment) Unknown() TypeID { return e.Intern(Unknown{}) }

func (e *Environment) ListOf(element TypeID) TypeID {
	return e.Intern(List{Element: element})
}

func (e *Environment) DictOf(key, value TypeID) TypeID {
	return e.Intern(Dict{Key: key, Value: value})
}

func (e *Environment) TupleOf(elements ...TypeID) TypeID {
	return e.Intern(Tuple{Elements: elements})
}

func (e *Environment) ClosureOf(ret TypeID, params ...TypeID) TypeID {
	return e.Intern(Closure{Params: params, Return: ret})
}

func (e *Environment) InferOf(kind VariableKind) TypeID {
	return e.Intern(Infer{Variable: kind})
}

func (e *Environment) OpaqueOf(name Symbol, repr TypeID) TypeID {
	return e.Intern(Opaque{Name: name, Repr: repr})
}

// DeclareOpaque interns an opaque type whose representation is not known
// yet, so that the representation may refer back to the opaque itself.
// Fill it in with SetOpaqueRepr.
func (e *Environment) DeclareOpaque(name Symbol) TypeID {
	e.mu.Lock()
	defer e.mu.Unlock()
	// interned fresh, not deduplicated: opaques are nominal
	id := TypeID(len(e.kinds))
	e.kinds = append(e.kinds, Opaque{Name: name, Repr: NoType})
	e.hasInfer = append(e.hasInfer, false)
	return id
}

// SetOpaqueRepr completes a DeclareOpaque. The representation may be the
// opaque's own id, which makes the type directly self-referential.
func (e *Environment) SetOpaqueRepr(id, repr TypeID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	opaque, ok := e.kinds[id].(Opaque)
	if !ok || opaque.Repr != NoType {
		return
	}
	opaque.Repr = repr
	e.kinds[id] = opaque
	if repr != id {
		e.hasInfer[id] = e.hasInfer[repr]
	}
}

// UnionOf interns a canonical union: variants sorted, duplicates removed,
// and a single remaining variant returned as itself.
func (e *Environment) UnionOf(variants ...TypeID) TypeID {
	canonical := canonicalVariants(variants)
	if len(canonical) == 1 {
		return canonical[0]
	}
	return e.Intern(Union{Variants: canonical})
}

func (e *Environment) IntersectionOf(variants ...TypeID) TypeID {
	canonical := canonicalVariants(variants)
	if len(canonical) == 1 {
		return canonical[0]
	}
	return e.Intern(Intersection{Variants: canonical})
}

func canonicalVariants(variants []TypeID) []TypeID {
	sorted := make([]TypeID, len(variants))
	copy(sorted, variants)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	deduped := sorted[:0]
	for i, id := range sorted {
		if i == 0 || sorted[i-1] != id {
			deduped = append(deduped, id)
		}
	}
	return deduped
}

// Struct interns a struct type with its fields ordered by name.
// Duplicate field names are rejected.
func (e *Environment) Struct(span ir.Range, fields ...StructField) (TypeID, *diag.Diagnostic) {
	sorted := make([]StructField, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool {
		return e.SymbolName(sorted[i].Name) < e.SymbolName(sorted[j].Name)
	})
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Name == sorted[i-1].Name {
			d := diag.New(diag.DuplicateStructField, diag.SeverityError).
				WithLabel(span, "field %q is declared more than once", e.SymbolName(sorted[i].Name)).
				WithHelp("remove or rename one of the duplicate fields")
			return NoType, d
		}
	}
	return e.Intern(Struct{Fields: sorted}), nil
}

// FieldOf is a small helper to build a StructField from a field name.
func (e *Environment) FieldOf(name string, value TypeID) StructField {
	return StructField{Name: e.InternSymbol(name), Value: value}
}

// TypeString renders a type for diagnostics. Self-referential types (which
// only arise through SetOpaqueRepr) are cut off with "...". The in-progress
// visited set lives on the displayer, never on the Environment, so
// concurrent solvers can render diagnostics against a shared arena.
func (e *Environment) TypeString(id TypeID) string {
	d := &displayer{env: e, visiting: make(map[TypeID]bool)}
	return d.render(id)
}

type displayer struct {
	env      *Environment
	visiting map[TypeID]bool
}

func (d *displayer) render(id TypeID) string {
	if id == NoType {
		return "<none>"
	}
	if d.visiting[id] {
		return "..."
	}
	d.visiting[id] = true
	defer delete(d.visiting, id)
	return d.env.Kind(id).display(d)
}
