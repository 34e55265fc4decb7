package types

import (
	"fmt"
	"hash/fnv"
	"iter"
	"slices"
	"strings"

	"github.com/lunelang/lune/util"
)

// TypeID is the interned handle of a type. Because interning deduplicates
// structurally, TypeID equality implies structural equality.
type TypeID uint32

// NoType is the zero TypeID; it is never interned.
const NoType TypeID = 0

// Symbol is an interned field or opaque-type name.
type Symbol uint32

// TypeKind is the shape of a type. Kinds are immutable once interned and
// reference their components by TypeID, never by pointer.
type TypeKind interface {
	Hash() uint64
	// equal is a deep structural comparison against another kind.
	// Children compare by TypeID, which is sound because they are interned.
	equal(other TypeKind) bool
	children() iter.Seq[TypeID]
	// display renders through the displayer so the cycle-guarding visited
	// set stays local to one rendering, never on the shared Environment.
	display(d *displayer) string
}

var (
	_ TypeKind = Primitive{}
	_ TypeKind = Struct{}
	_ TypeKind = Tuple{}
	_ TypeKind = List{}
	_ TypeKind = Dict{}
	_ TypeKind = Union{}
	_ TypeKind = Intersection{}
	_ TypeKind = Opaque{}
	_ TypeKind = Closure{}
	_ TypeKind = Never{}
	_ TypeKind = Unknown{}
	_ TypeKind = Infer{}
)

var emptyIDSeq iter.Seq[TypeID] = func(func(TypeID) bool) {}

func idSeq(ids []TypeID) iter.Seq[TypeID] {
	return func(yield func(TypeID) bool) {
		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// PrimitiveKind enumerates the built-in scalar types.
// They form a fixed lattice: Integer <: Number, everything else unrelated.
type PrimitiveKind uint8

const (
	NumberPrim PrimitiveKind = iota
	IntegerPrim
	StringPrim
	BooleanPrim
	NullPrim
)

func (p PrimitiveKind) String() string {
	switch p {
	case NumberPrim:
		return "Number"
	case IntegerPrim:
		return "Integer"
	case StringPrim:
		return "String"
	case BooleanPrim:
		return "Boolean"
	case NullPrim:
		return "Null"
	}
	return fmt.Sprintf("Primitive(%d)", uint8(p))
}

type Primitive struct {
	Kind PrimitiveKind
}

func (t Primitive) Hash() uint64 {
	return 16777619 * (uint64(t.Kind) + 3)
}
func (t Primitive) equal(other TypeKind) bool {
	o, ok := other.(Primitive)
	return ok && o.Kind == t.Kind
}
func (t Primitive) children() iter.Seq[TypeID] { return emptyIDSeq }
func (t Primitive) display(*displayer) string { return t.Kind.String() }

// StructField is a named field of a Struct. Fields are kept sorted by name
// so that interning is canonical.
type StructField struct {
	Name  Symbol
	Value TypeID
}

type Struct struct {
	Fields []StructField
}

func (t Struct) Hash() uint64 {
	const prime uint64 = 15487469
	hash := uint64(32452843)
	for _, field := range t.Fields {
		hash = hash*prime ^ (uint64(field.Name) + 7)
		hash = hash*prime ^ uint64(field.Value)
	}
	return hash
}
func (t Struct) equal(other TypeKind) bool {
	o, ok := other.(Struct)
	if !ok || len(o.Fields) != len(t.Fields) {
		return false
	}
	for i, field := range t.Fields {
		if o.Fields[i] != field {
			return false
		}
	}
	return true
}
func (t Struct) children() iter.Seq[TypeID] {
	return util.MapIter(slices.Values(t.Fields), func(f StructField) TypeID { return f.Value })
}
func (t Struct) display(d *displayer) string {
	fieldStrs := make([]string, 0, len(t.Fields))
	for _, field := range t.Fields {
		fieldStrs = append(fieldStrs, d.env.SymbolName(field.Name)+": "+d.render(field.Value))
	}
	return "(" + strings.Join(fieldStrs, ", ") + ")"
}

// FieldType returns the value type of the field called name.
func (t Struct) FieldType(name Symbol) (TypeID, bool) {
	for _, field := range t.Fields {
		if field.Name == name {
			return field.Value, true
		}
	}
	return NoType, false
}

type Tuple struct {
	Elements []TypeID
}

func (t Tuple) Hash() uint64 {
	const prime uint64 = 433
	hash := uint64(9973)
	for _, elem := range t.Elements {
		hash = hash*prime ^ uint64(elem)
	}
	return hash
}
func (t Tuple) equal(other TypeKind) bool {
	o, ok := other.(Tuple)
	if !ok || len(o.Elements) != len(t.Elements) {
		return false
	}
	for i, elem := range t.Elements {
		if o.Elements[i] != elem {
			return false
		}
	}
	return true
}
func (t Tuple) children() iter.Seq[TypeID] { return idSeq(t.Elements) }
func (t Tuple) display(d *displayer) string {
	elems := make([]string, 0, len(t.Elements))
	for _, elem := range t.Elements {
		elems = append(elems, d.render(elem))
	}
	return "[" + strings.Join(elems, ", ") + "]"
}

type List struct {
	Element TypeID
}

func (t List) Hash() uint64 { return 2166136261*16777619 ^ uint64(t.Element) }
func (t List) equal(other TypeKind) bool { o, ok := other.(List); return ok && o == t }
func (t List) children() iter.Seq[TypeID] {
	return idSeq([]TypeID{t.Element})
}
func (t List) display(d *displayer) string {
	return "List<" + d.render(t.Element) + ">"
}

type Dict struct {
	Key   TypeID
	Value TypeID
}

func (t Dict) Hash() uint64 {
	return (uint64(t.Key)*31 + 91*uint64(t.Value)) ^ 1099511628211
}
func (t Dict) equal(other TypeKind) bool { o, ok := other.(Dict); return ok && o == t }
func (t Dict) children() iter.Seq[TypeID] {
	return idSeq([]TypeID{t.Key, t.Value})
}
func (t Dict) display(d *displayer) string {
	return "Dict<" + d.render(t.Key) + ", " + d.render(t.Value) + ">"
}

// Union is a set of variants. Variants are sorted and deduplicated when the
// union is interned via Environment.UnionOf.
type Union struct {
	Variants []TypeID
}

func (t Union) Hash() uint64 {
	hash := uint64(104729)
	for _, variant := range t.Variants {
		hash = hash*31 ^ uint64(variant)
	}
	return hash * 37
}
func (t Union) equal(other TypeKind) bool {
	o, ok := other.(Union)
	return ok && idsEqual(o.Variants, t.Variants)
}
func (t Union) children() iter.Seq[TypeID] { return idSeq(t.Variants) }
func (t Union) display(d *displayer) string {
	return displayVariants(d, t.Variants, " | ")
}

type Intersection struct {
	Variants []TypeID
}

func (t Intersection) Hash() uint64 {
	hash := uint64(1299709)
	for _, variant := range t.Variants {
		hash = hash*41 ^ uint64(variant)
	}
	return hash * 43
}
func (t Intersection) equal(other TypeKind) bool {
	o, ok := other.(Intersection)
	return ok && idsEqual(o.Variants, t.Variants)
}
func (t Intersection) children() iter.Seq[TypeID] { return idSeq(t.Variants) }
func (t Intersection) display(d *displayer) string {
	return displayVariants(d, t.Variants, " & ")
}

// Opaque is a nominal name wrapping a representation type. Two opaques are
// related only when their names match, and then structurally.
type Opaque struct {
	Name Symbol
	Repr TypeID
}

func (t Opaque) Hash() uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte{byte(t.Name), byte(t.Name >> 8), byte(t.Name >> 16), byte(t.Name >> 24)})
	return h.Sum64()*53 ^ uint64(t.Repr)
}
func (t Opaque) equal(other TypeKind) bool { o, ok := other.(Opaque); return ok && o == t }
func (t Opaque) children() iter.Seq[TypeID] {
	return idSeq([]TypeID{t.Repr})
}
func (t Opaque) display(d *displayer) string {
	return d.env.SymbolName(t.Name)
}

type Closure struct {
	Params []TypeID
	Return TypeID
}

func (t Closure) Hash() uint64 {
	hash := uint64(2166136261)
	for _, param := range t.Params {
		hash = hash*16777619 ^ uint64(param)
	}
	return hash*16777619 ^ uint64(t.Return)
}
func (t Closure) equal(other TypeKind) bool {
	o, ok := other.(Closure)
	return ok && o.Return == t.Return && idsEqual(o.Params, t.Params)
}
func (t Closure) children() iter.Seq[TypeID] {
	return util.ConcatIter(idSeq(t.Params), idSeq([]TypeID{t.Return}))
}
func (t Closure) display(d *displayer) string {
	params := make([]string, 0, len(t.Params))
	for _, param := range t.Params {
		params = append(params, d.render(param))
	}
	return "fn(" + strings.Join(params, ", ") + ") -> " + d.render(t.Return)
}

// Never is the bottom type: a subtype of everything, with no values.
type Never struct{}

func (Never) Hash() uint64 { return 16777619 }
func (Never) equal(other TypeKind) bool { _, ok := other.(Never); return ok }
func (Never) children() iter.Seq[TypeID] { return emptyIDSeq }
func (Never) display(*displayer) string { return "Never" }

// Unknown is the top type: a supertype of everything.
type Unknown struct{}

func (Unknown) Hash() uint64 { return 1099511628211 }
func (Unknown) equal(other TypeKind) bool { _, ok := other.(Unknown); return ok }
func (Unknown) children() iter.Seq[TypeID] { return emptyIDSeq }
func (Unknown) display(*displayer) string { return "Unknown" }

// Infer marks an unresolved inference variable inside a type.
type Infer struct {
	Variable VariableKind
}

func (t Infer) Hash() uint64 {
	return 31 * 7919 * (t.Variable.hashSeed() + 1)
}
func (t Infer) equal(other TypeKind) bool { o, ok := other.(Infer); return ok && o == t }
func (t Infer) children() iter.Seq[TypeID] {
	return emptyIDSeq
}
func (t Infer) display(*displayer) string { return t.Variable.String() }

func idsEqual(a, b []TypeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func displayVariants(d *displayer, variants []TypeID, sep string) string {
	parts := make([]string, 0, len(variants))
	for _, variant := range variants {
		parts = append(parts, d.render(variant))
	}
	return "(" + strings.Join(parts, sep) + ")"
}
