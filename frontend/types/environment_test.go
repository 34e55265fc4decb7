package types

import (
	"sync"
	"testing"

	"github.com/lunelang/lune/frontend/diag"
	"github.com/lunelang/lune/frontend/ir"
	"github.com/lunelang/lune/util"
	"github.com/stretchr/testify/assert"
)

func TestInterningDeduplicates(t *testing.T) {
	env := NewEnvironment()
	str := env.Primitive(StringPrim)

	assert.Equal(t, env.ListOf(str), env.ListOf(str))
	assert.Equal(t, env.Primitive(StringPrim), str)
	assert.Equal(t, env.TupleOf(str, str), env.TupleOf(str, str))
	assert.NotEqual(t, env.ListOf(str), env.TupleOf(str))
}

func TestUnionCanonicalization(t *testing.T) {
	env := NewEnvironment()
	str := env.Primitive(StringPrim)
	integer := env.Primitive(IntegerPrim)

	assert.Equal(t, env.UnionOf(str, integer), env.UnionOf(integer, str), "variant order does not matter")
	assert.Equal(t, env.UnionOf(str, str, integer), env.UnionOf(integer, str), "duplicates collapse")
	assert.Equal(t, str, env.UnionOf(str), "a singleton union is its variant")
	assert.Equal(t, str, env.IntersectionOf(str, str))
}

func TestStructRejectsDuplicateFields(t *testing.T) {
	env := NewEnvironment()
	str := env.Primitive(StringPrim)

	_, d := env.Struct(ir.Range{}, env.FieldOf("a", str), env.FieldOf("a", str))
	assert.NotNil(t, d)
	assert.Equal(t, diag.DuplicateStructField, d.Category)
}

func TestStructFieldsSortByName(t *testing.T) {
	env := NewEnvironment()
	str := env.Primitive(StringPrim)

	ab := mustStruct(t, env, env.FieldOf("a", str), env.FieldOf("b", str))
	ba := mustStruct(t, env, env.FieldOf("b", str), env.FieldOf("a", str))
	assert.Equal(t, ab, ba, "field order does not affect identity")
}

func TestSymbolRoundTrip(t *testing.T) {
	env := NewEnvironment()
	sym := env.InternSymbol("banana")
	assert.Equal(t, sym, env.InternSymbol("banana"))
	assert.Equal(t, "banana", env.SymbolName(sym))
}

func TestDeclareOpaqueIsNominal(t *testing.T) {
	env := NewEnvironment()
	name := env.InternSymbol("Meters")

	first := env.DeclareOpaque(name)
	second := env.DeclareOpaque(name)
	assert.NotEqual(t, first, second, "every declaration is a distinct type")
}

func TestTypeStringConcurrent(t *testing.T) {
	env := NewEnvironment()
	str := env.Primitive(StringPrim)
	nested := env.ListOf(env.DictOf(str, env.TupleOf(str, env.Primitive(NumberPrim))))
	want := env.TypeString(nested)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				assert.Equal(t, want, env.TypeString(nested))
			}
		}()
	}
	wg.Wait()
}

func TestTypeStringGuardsCycles(t *testing.T) {
	env := NewEnvironment()
	name := env.InternSymbol("Loop")
	loop := env.DeclareOpaque(name)
	env.SetOpaqueRepr(loop, loop)

	rendered := env.TypeString(loop)
	assert.Equal(t, "Loop", rendered, "nominal types render by name even when cyclic")
}

func TestContainsInfer(t *testing.T) {
	env := NewEnvironment()
	str := env.Primitive(StringPrim)
	marker := env.InferOf(HoleKind(0))

	assert.False(t, env.ContainsInfer(str))
	assert.True(t, env.ContainsInfer(marker))
	assert.True(t, env.ContainsInfer(env.ListOf(marker)))
	assert.True(t, env.ContainsInfer(env.DictOf(str, env.ListOf(marker))))
	assert.False(t, env.ContainsInfer(env.ListOf(str)))
}

func TestKindChildren(t *testing.T) {
	env := NewEnvironment()
	str := env.Primitive(StringPrim)
	number := env.Primitive(NumberPrim)
	closure := env.ClosureOf(str, number, number)

	children := util.SetFromSeq(env.Kind(closure).children(), 3)
	assert.True(t, children.Contains(str))
	assert.True(t, children.Contains(number))
	assert.Equal(t, 2, children.Size())
}
