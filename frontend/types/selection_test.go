package types

import (
	"testing"

	"github.com/lunelang/lune/frontend/diag"
	"github.com/lunelang/lune/frontend/ir"
	"github.com/stretchr/testify/assert"
)

func TestProjectionOrderIndependent(t *testing.T) {
	build := func(t *testing.T, early bool) {
		env, fresher, solver := newTestSolver()
		str := env.Primitive(StringPrim)
		span := ir.Range{}
		subject := fresher.FreshHole(span)
		structT := mustStruct(t, env, env.FieldOf("a", str))

		var output Variable
		if early {
			output = solver.AddProjection(span, subject, env.InternSymbol("a"))
			solver.AddConstraint(EqualsConstraint{Variable: subject, Type: structT})
		} else {
			solver.AddConstraint(EqualsConstraint{Variable: subject, Type: structT})
			output = solver.AddProjection(span, subject, env.InternSymbol("a"))
		}
		sub, issues := solver.Solve()

		assert.False(t, issues.HasFatal(), "unexpected issues: %v", issues.Diagnostics())
		got, ok := sub.Resolve(output.Kind)
		assert.True(t, ok)
		assert.Equal(t, str, got)
	}

	t.Run("projection before the struct is known", func(t *testing.T) { build(t, true) })
	t.Run("projection after the struct is known", func(t *testing.T) { build(t, false) })
}

func TestProjectionDiagnostics(t *testing.T) {
	t.Run("field not found suggests a close name", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		span := ir.Range{}
		subject := fresher.FreshHole(span)
		structT := mustStruct(t, env, env.FieldOf("apple", env.Primitive(StringPrim)))

		solver.AddConstraint(EqualsConstraint{Variable: subject, Type: structT})
		solver.AddProjection(span, subject, env.InternSymbol("appel"))
		_, issues := solver.Solve()

		assert.Contains(t, categoriesOf(issues), diag.FieldNotFound)
		for _, d := range issues.Diagnostics() {
			if d.Category == diag.FieldNotFound {
				assert.Contains(t, d.Help, "apple")
			}
		}
	})

	t.Run("projection through an opaque wrapper", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		str := env.Primitive(StringPrim)
		span := ir.Range{}
		subject := fresher.FreshHole(span)
		structT := mustStruct(t, env, env.FieldOf("a", str))
		wrapped := env.OpaqueOf(env.InternSymbol("Boxed"), structT)

		solver.AddConstraint(EqualsConstraint{Variable: subject, Type: wrapped})
		output := solver.AddProjection(span, subject, env.InternSymbol("a"))
		sub, issues := solver.Solve()

		assert.False(t, issues.HasFatal())
		got, _ := sub.Resolve(output.Kind)
		assert.Equal(t, str, got)
	})

	t.Run("self-referential opaque cannot be projected", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		span := ir.Range{}
		loop := env.DeclareOpaque(env.InternSymbol("Loop"))
		env.SetOpaqueRepr(loop, loop)
		subject := fresher.FreshHole(span)

		solver.AddConstraint(EqualsConstraint{Variable: subject, Type: loop})
		solver.AddProjection(span, subject, env.InternSymbol("a"))
		_, issues := solver.Solve()

		assert.Contains(t, categoriesOf(issues), diag.RecursiveTypeProjection)
	})

	t.Run("unsupported subject kinds", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		span := ir.Range{}
		subject := fresher.FreshHole(span)
		solver.AddConstraint(EqualsConstraint{Variable: subject, Type: env.Primitive(NumberPrim)})
		solver.AddProjection(span, subject, env.InternSymbol("a"))
		_, issues := solver.Solve()

		assert.Contains(t, categoriesOf(issues), diag.UnsupportedProjection)
	})

	t.Run("unresolved subject reports the projection too", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		span := ir.Range{}
		subject := fresher.FreshHole(span)
		solver.AddProjection(span, subject, env.InternSymbol("a"))
		_, issues := solver.Solve()
		_ = env

		assert.Contains(t, categoriesOf(issues), diag.UnresolvedSelectionConstraint)
		// the subject still warns, the output hole does not
		assert.Len(t, issues.Advisories(), 1)
	})
}

func TestTupleProjection(t *testing.T) {
	env, fresher, solver := newTestSolver()
	str := env.Primitive(StringPrim)
	number := env.Primitive(NumberPrim)
	span := ir.Range{}
	subject := fresher.FreshHole(span)

	solver.AddConstraint(EqualsConstraint{Variable: subject, Type: env.TupleOf(str, number)})
	first := solver.AddProjection(span, subject, env.InternSymbol("0"))
	second := solver.AddProjection(span, subject, env.InternSymbol("1"))
	sub, issues := solver.Solve()

	assert.False(t, issues.HasFatal(), "unexpected issues: %v", issues.Diagnostics())
	got, _ := sub.Resolve(first.Kind)
	assert.Equal(t, str, got)
	got, _ = sub.Resolve(second.Kind)
	assert.Equal(t, number, got)

	t.Run("out of bounds", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		subject := fresher.FreshHole(span)
		solver.AddConstraint(EqualsConstraint{Variable: subject, Type: env.TupleOf(env.Primitive(StringPrim))})
		solver.AddProjection(span, subject, env.InternSymbol("5"))
		_, issues := solver.Solve()
		assert.Contains(t, categoriesOf(issues), diag.TupleIndexOutOfBounds)
	})

	t.Run("non-numeric field", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		subject := fresher.FreshHole(span)
		solver.AddConstraint(EqualsConstraint{Variable: subject, Type: env.TupleOf(env.Primitive(StringPrim))})
		solver.AddProjection(span, subject, env.InternSymbol("x"))
		_, issues := solver.Solve()
		assert.Contains(t, categoriesOf(issues), diag.InvalidTupleIndex)
	})
}

func TestSubscripts(t *testing.T) {
	span := ir.Range{}

	t.Run("list subscript is optional", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		str := env.Primitive(StringPrim)
		subject := fresher.FreshHole(span)

		solver.AddConstraint(EqualsConstraint{Variable: subject, Type: env.ListOf(str)})
		output := solver.AddSubscript(span, subject, env.Primitive(IntegerPrim))
		sub, issues := solver.Solve()

		assert.False(t, issues.HasFatal())
		got, _ := sub.Resolve(output.Kind)
		assert.Equal(t, env.UnionOf(str, env.Primitive(NullPrim)), got)
	})

	t.Run("self-referential opaque cannot be subscripted", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		loop := env.DeclareOpaque(env.InternSymbol("Loop"))
		env.SetOpaqueRepr(loop, loop)
		subject := fresher.FreshHole(span)

		solver.AddConstraint(EqualsConstraint{Variable: subject, Type: loop})
		solver.AddSubscript(span, subject, env.Primitive(IntegerPrim))
		_, issues := solver.Solve()

		assert.Contains(t, categoriesOf(issues), diag.RecursiveTypeSubscript)
	})

	t.Run("list rejects non-integer index", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		subject := fresher.FreshHole(span)
		solver.AddConstraint(EqualsConstraint{Variable: subject, Type: env.ListOf(env.Primitive(StringPrim))})
		solver.AddSubscript(span, subject, env.Primitive(StringPrim))
		_, issues := solver.Solve()
		assert.Contains(t, categoriesOf(issues), diag.ListIndexTypeMismatch)
	})

	t.Run("dict subscript is optional", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		str := env.Primitive(StringPrim)
		number := env.Primitive(NumberPrim)
		subject := fresher.FreshHole(span)

		solver.AddConstraint(EqualsConstraint{Variable: subject, Type: env.DictOf(str, number)})
		output := solver.AddSubscript(span, subject, str)
		sub, issues := solver.Solve()

		assert.False(t, issues.HasFatal())
		got, _ := sub.Resolve(output.Kind)
		assert.Equal(t, env.UnionOf(number, env.Primitive(NullPrim)), got)
	})

	t.Run("dict rejects a foreign key type", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		subject := fresher.FreshHole(span)
		solver.AddConstraint(EqualsConstraint{Variable: subject, Type: env.DictOf(env.Primitive(StringPrim), env.Primitive(NumberPrim))})
		solver.AddSubscript(span, subject, env.Primitive(IntegerPrim))
		_, issues := solver.Solve()
		assert.Contains(t, categoriesOf(issues), diag.DictKeyTypeMismatch)
	})

	t.Run("subscripting a struct", func(t *testing.T) {
		env, fresher, solver := newTestSolver()
		subject := fresher.FreshHole(span)
		structT := mustStruct(t, env, env.FieldOf("a", env.Primitive(StringPrim)))
		solver.AddConstraint(EqualsConstraint{Variable: subject, Type: structT})
		solver.AddSubscript(span, subject, env.Primitive(IntegerPrim))
		_, issues := solver.Solve()
		assert.Contains(t, categoriesOf(issues), diag.UnsupportedSubscript)
	})
}

func TestSelectionOutputSpansAccessExpression(t *testing.T) {
	env, fresher, solver := newTestSolver()
	subject := fresher.FreshHole(ir.Range{PosStart: 1, PosEnd: 4})

	output := solver.AddProjection(ir.Range{PosStart: 5, PosEnd: 7}, subject, env.InternSymbol("a"))
	assert.Equal(t, ir.Range{PosStart: 1, PosEnd: 7}, output.Range)

	indexed := solver.AddSubscript(ir.Range{PosStart: 8, PosEnd: 10}, subject, env.Primitive(IntegerPrim))
	assert.Equal(t, ir.Range{PosStart: 1, PosEnd: 10}, indexed.Range)
}
