package parser_test

import (
	"testing"

	"github.com/cottand/traitsolve/ir"
	"github.com/cottand/traitsolve/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGoal(t *testing.T) {
	testCases := []struct {
		src, expected string
	}{
		{"Int: Foo", "Implemented(Int: Foo)"},
		{"Vec<Int>: Into<Bool>", "Implemented(Vec<Int>: Into<Bool>)"},
		{"exists<T> { T: Foo }", "exists<type> { Implemented(^0.0: Foo) }"},
		{"forall<T, 'a> { &'a T: Foo }", "forall<type, lifetime> { Implemented(&'^0.1 ^0.0: Foo) }"},
		{"exists<const N> { Array<N>: Foo }", "exists<const> { Implemented(Array<#^0.0>: Foo) }"},
		{
			"forall<T> { exists<U> { Pair<T, U>: Foo } }",
			"forall<type> { exists<type> { Implemented(Pair<^1.0, ^0.0>: Foo) } }",
		},
		{"Int: Foo, Bool: Foo", "all(Implemented(Int: Foo), Implemented(Bool: Foo))"},
		{"not { Int: Foo }", "not { Implemented(Int: Foo) }"},
		{"exists<T> { T = Int }", "exists<type> { ^0.0 = Int }"},
		{"<Int as Iterator>::Item = Bool", "AliasEq(<Int as Iterator>::Item = Bool)"},
		{"Normalize(<Int as Iterator>::Item -> Bool)", "Normalize(<Int as Iterator>::Item -> Bool)"},
		{"(Iterator::Item)<Int>: Foo", "Implemented((Iterator::Item)<Int>: Foo)"},
		{"&'static Int: Foo", "Implemented(&'static Int: Foo)"},
		{"CannotProve", "CannotProve"},
		{
			"forall<T> { if (T: Foo) { Vec<T>: Foo } }",
			"forall<type> { if (Implemented(^1.0: Foo)) { Implemented(Vec<^0.0>: Foo) } }",
		},
		{
			"if (forall<T> { Vec<T>: Foo :- T: Foo }; Int: Foo) { Vec<Int>: Foo }",
			"if (forall<type> { Implemented(Vec<^0.0>: Foo) :- Implemented(^0.0: Foo) }; Implemented(Int: Foo)) { Implemented(Vec<Int>: Foo) }",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.src, func(t *testing.T) {
			goal, err := parser.ParseGoal(testCase.src, nil)
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, goal.String())
		})
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []string{
		"",
		"Int",
		"Int: ",
		"forall<T> { T: Foo",
		"&'a Int: Foo",
		"& Int Int: Foo",
		"Int: Foo }",
		"Int $ Foo",
		"Normalize(Int -> Bool)",
		"if (Int = Bool) { Int: Foo }",
	}
	for _, src := range testCases {
		t.Run(src, func(t *testing.T) {
			_, err := parser.ParseGoal(src, nil)
			assert.Error(t, err)
		})
	}
}

func TestParseType(t *testing.T) {
	ty, err := parser.ParseType("Vec<&'static Pair<Int, 3>>", nil)
	require.NoError(t, err)
	assert.Equal(t, ir.NewType("Vec", ir.Ref{
		Lifetime: ir.Static{},
		Referent: ir.NewType("Pair", ir.NewType("Int"), ir.ConstValue{Value: 3}),
	}), ty)

	ty, err = parser.ParseType("<Vec<Int> as Iterator>::Item", nil)
	require.NoError(t, err)
	alias, ok := ty.(ir.Alias)
	require.True(t, ok)
	assert.Equal(t, "Iterator", alias.Projection.Trait)
	assert.Equal(t, "Item", alias.Projection.Assoc)
	assert.Equal(t, "Vec<Int>", alias.Projection.SelfType().String())
}

func TestNoPanics(t *testing.T) {
	inputs := []string{"", "<", "forall<", "if (", "Int: Foo :-", "((", "<Int as>::", "&'a"}
	for _, src := range inputs {
		t.Run(src, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, _ = parser.ParseGoal(src, nil)
				_, _ = parser.ParseClause(src)
				_, _ = parser.ParseType(src, nil)
			})
		})
	}
}

func TestParseInScope(t *testing.T) {
	scope := []parser.Binder{{Name: "T", Kind: ir.KindType}, {Name: "'a", Kind: ir.KindLifetime}}

	ty, err := parser.ParseType("&'a Vec<T>", scope)
	require.NoError(t, err)
	assert.Equal(t, "&'^0.1 Vec<^0.0>", ty.String())

	goal, err := parser.ParseGoal("T: Foo, exists<U> { Pair<T, U>: Foo }", scope)
	require.NoError(t, err)
	assert.Equal(t, "all(Implemented(^0.0: Foo), exists<type> { Implemented(Pair<^1.0, ^0.0>: Foo) })", goal.String())

	leaf, err := parser.ParseLeaf("Vec<T>: Foo", scope)
	require.NoError(t, err)
	assert.Equal(t, "Implemented(Vec<^0.0>: Foo)", leaf.String())

	_, err = parser.ParseLeaf("not { T: Foo }", scope)
	assert.Error(t, err)
	_, err = parser.ParseType("T<Int>", scope)
	assert.Error(t, err)
	_, err = parser.ParseType("&'T Int", scope)
	assert.Error(t, err)
}

func TestParseParam(t *testing.T) {
	testCases := []struct {
		src      string
		expected parser.Binder
	}{
		{"T", parser.Binder{Name: "T", Kind: ir.KindType}},
		{"'a", parser.Binder{Name: "'a", Kind: ir.KindLifetime}},
		{"const N", parser.Binder{Name: "N", Kind: ir.KindConst}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.src, func(t *testing.T) {
			b, err := parser.ParseParam(testCase.src)
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, b)
		})
	}

	_, err := parser.ParseParam("T, U")
	assert.Error(t, err)
	assert.Nil(t, parser.Kinds(nil))
}

func TestSyntaxErrorsArePositioned(t *testing.T) {
	_, err := parser.ParseGoal("Int: Foo }", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `parsing "Int: Foo }": 1:9:`)
}
