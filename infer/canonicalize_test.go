package infer

import (
	"testing"

	"github.com/cottand/traitsolve/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func implemented(trait string, args ...ir.GenericArg) ir.Goal {
	return ir.Domain{Goal: ir.Implemented{TraitRef: ir.TraitRef{Trait: trait, Args: args}}}
}

func TestCanonicalizeOrdersByFirstAppearance(t *testing.T) {
	table := NewTable()
	a := table.NewVariable(ir.RootUniverse, ir.KindType)
	b := table.NewVariable(ir.RootUniverse, ir.KindType)

	canonical := Canonicalize(table, implemented("Foo", b, a, b))
	assert.Equal(t, "for<?U0,?U0> { Implemented(^0.0: Foo<^0.1, ^0.0>) }", canonical.Quantified.String())
	assert.Equal(t, []ir.GenericArg{b, a}, canonical.FreeVars)
}

func TestCanonicalizeIsNamingInvariant(t *testing.T) {
	first := NewTable()
	a := first.NewVariable(ir.RootUniverse, ir.KindType)

	second := NewTable()
	second.NewVariable(ir.RootUniverse, ir.KindType)
	b := second.NewVariable(ir.RootUniverse, ir.KindType)

	assert.Equal(t,
		Canonicalize(first, implemented("Foo", vecOf(a))).Quantified.Key(),
		Canonicalize(second, implemented("Foo", vecOf(b))).Quantified.Key(),
	)
}

func TestCanonicalizeResolvesBoundVariables(t *testing.T) {
	table := NewTable()
	a := table.NewVariable(ir.RootUniverse, ir.KindType)
	b := table.NewVariable(ir.RootUniverse, ir.KindType)
	_, err := table.Unify(ir.NewEnvironment(), a, vecOf(b))
	require.NoError(t, err)

	canonical := Canonicalize(table, ir.Substitution{a})
	assert.Equal(t, "for<?U0> { [?0 := Vec<^0.0>] }", canonical.Quantified.String())
	assert.Len(t, canonical.FreeVars, 1)
}

func TestCanonicalizeUnderBinders(t *testing.T) {
	table := NewTable()
	a := table.NewVariable(ir.RootUniverse, ir.KindType)
	goal := ir.ForAllGoal(implemented("Foo", ir.NewBound(ir.KindType, 0, 0), a), ir.KindType)

	canonical := Canonicalize(table, goal)
	assert.Equal(t, "for<?U0> { forall<type> { Implemented(^0.0: Foo<^1.0>) } }", canonical.Quantified.String())
}

func TestCanonicalRoundTrip(t *testing.T) {
	table := NewTable()
	table.NewUniverse()
	a := table.NewVariable(1, ir.KindType)
	tick := table.NewVariable(ir.RootUniverse, ir.KindLifetime)
	goal := implemented("Foo", ir.Ref{Lifetime: tick, Referent: a})

	canonical := Canonicalize(table, goal)
	assert.Equal(t, ir.CanonicalVarKinds{{Kind: ir.KindLifetime, Universe: 0}, {Kind: ir.KindType, Universe: 1}}, canonical.Quantified.Binders)

	instantiated := canonical.Quantified.Instantiate(canonical.FreeVars)
	assert.Equal(t, goal.String(), instantiated.String())
}

func TestUCanonicalizeCompactsUniverses(t *testing.T) {
	goal := ir.Canonical[ir.Goal]{
		Binders: ir.CanonicalVarKinds{{Kind: ir.KindType, Universe: 4}, {Kind: ir.KindType, Universe: 2}},
		Value: implemented("Foo",
			ir.Placeholder{Universe: 3, Index: 0},
			ir.Placeholder{Universe: 7, Index: 1},
			ir.NewBound(ir.KindType, 0, 0),
			ir.NewBound(ir.KindType, 0, 1),
		),
	}

	result := UCanonicalize(goal)
	assert.Equal(t, 3, result.Quantified.Universes)
	assert.Equal(t, []ir.UniverseIndex{0, 3, 7}, result.Universes.Universes)
	assert.Equal(t, ir.CanonicalVarKinds{{Kind: ir.KindType, Universe: 1}, {Kind: ir.KindType, Universe: 0}}, result.Quantified.Binders)
	assert.Equal(t, "Implemented(!1_0: Foo<!2_1, ^0.0, ^0.1>)", result.Quantified.Value.String())

	back := MapFromCanonical(result.Universes, result.Quantified.Canonical)
	assert.Equal(t, "Implemented(!3_0: Foo<!7_1, ^0.0, ^0.1>)", back.Value.String())
}

func TestUCanonicalizeSharesKeys(t *testing.T) {
	build := func(universe ir.UniverseIndex) ir.Canonical[ir.Goal] {
		return ir.Canonical[ir.Goal]{Value: implemented("Foo", ir.Placeholder{Universe: universe})}
	}
	assert.Equal(t, UCanonicalize(build(2)).Quantified.Key(), UCanonicalize(build(5)).Quantified.Key())
}

func TestMapFromCanonicalBeyondRange(t *testing.T) {
	m := UniverseMap{Universes: []ir.UniverseIndex{0, 4}}
	assert.Equal(t, ir.UniverseIndex(4), m.mapFromCanonical(1))
	assert.Equal(t, ir.UniverseIndex(5), m.mapFromCanonical(2))
	assert.Equal(t, ir.UniverseIndex(6), m.mapFromCanonical(3))
}

func TestInvert(t *testing.T) {
	t.Run("placeholders become variables", func(t *testing.T) {
		table := NewTable()
		u1 := table.NewUniverse()
		p := ir.Placeholder{Universe: u1, Index: 0}
		canonical, ok := InvertThenCanonicalize(table, implemented("Foo", p, p))
		require.True(t, ok)
		assert.Equal(t, "for<?U1> { Implemented(^0.0: Foo<^0.0>) }", canonical.String())
	})

	t.Run("free variables prevent inversion", func(t *testing.T) {
		table := NewTable()
		v := table.NewVariable(ir.RootUniverse, ir.KindType)
		_, ok := InvertThenCanonicalize(table, implemented("Foo", v))
		assert.False(t, ok)
	})

	t.Run("inversion does not leak variables", func(t *testing.T) {
		table := NewTable()
		u1 := table.NewUniverse()
		_, ok := InvertThenCanonicalize(table, implemented("Foo", ir.Placeholder{Universe: u1}))
		require.True(t, ok)
		assert.Empty(t, table.vars)
	})
}

func TestInstantiateBinders(t *testing.T) {
	table := NewTable()
	body := ir.NewBinders(implemented("Foo", ir.NewBound(ir.KindType, 0, 0), ir.NewBound(ir.KindLifetime, 0, 1)), ir.KindType, ir.KindLifetime)

	universal := InstantiateBindersUniversally(table, body)
	assert.Equal(t, "Implemented(!1_0: Foo<'!1_1>)", universal.String())
	assert.Equal(t, ir.UniverseIndex(1), table.MaxUniverse())

	existential := InstantiateBindersExistentially(table, body)
	assert.Equal(t, "Implemented(?0: Foo<'?1>)", existential.String())
	assert.Equal(t, ir.UniverseIndex(1), table.UniverseOfUnbound(ir.Var{Index: 0}))

	assert.Equal(t, body.Value, InstantiateBindersUniversally(table, ir.NewBinders(body.Value)))
	assert.Equal(t, ir.UniverseIndex(1), table.MaxUniverse())
}
