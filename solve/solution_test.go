package solve

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/cottand/traitsolve/ir"
	"github.com/stretchr/testify/assert"
)

var (
	intTy  = ir.NewType("Int")
	boolTy = ir.NewType("Bool")
)

func unique(args ...ir.GenericArg) Solution {
	return Unique{ir.Canonical[ir.ConstrainedSubst]{Value: ir.ConstrainedSubst{Subst: args}}}
}

func substOf(args ...ir.GenericArg) ir.Canonical[ir.Substitution] {
	return ir.Canonical[ir.Substitution]{Value: args}
}

func TestCombine(t *testing.T) {
	identity := Unique{ir.Canonical[ir.ConstrainedSubst]{
		Binders: ir.CanonicalVarKinds{{Kind: ir.KindType, Universe: ir.RootUniverse}},
		Value:   ir.ConstrainedSubst{Subst: ir.Substitution{ir.NewBound(ir.KindType, 0, 0)}},
	}}
	constrainedInt := Unique{ir.Canonical[ir.ConstrainedSubst]{Value: ir.ConstrainedSubst{
		Subst: ir.Substitution{intTy},
		Constraints: []ir.InEnvironment[ir.Constraint]{
			ir.NewInEnvironment(ir.NewEnvironment(), ir.Constraint{A: ir.Static{}, B: ir.Static{}}),
		},
	}}}

	testCases := []struct {
		name     string
		a, b     Solution
		expected string
	}{
		{"equal", unique(intTy), unique(intTy), "Unique; substitution [?0 := Int], lifetime constraints []"},
		{"trivial solution wins", unique(intTy), identity, "Unique; for<?U0> { substitution [?0 := ^0.0], lifetime constraints [] }"},
		{"trivial solution wins when first", identity, unique(intTy), "Unique; for<?U0> { substitution [?0 := ^0.0], lifetime constraints [] }"},
		{"different substitutions", unique(intTy), unique(boolTy), "Ambiguous; no inference guidance"},
		{"constraints differ", constrainedInt, unique(intTy), "Ambiguous; definite substitution [?0 := Int]"},
		{"definite agrees with unique", unique(intTy), Ambiguous{Definite{substOf(intTy)}}, "Ambiguous; definite substitution [?0 := Int]"},
		{"definite disagrees", Ambiguous{Definite{substOf(boolTy)}}, unique(intTy), "Ambiguous; no inference guidance"},
		{"suggestion agrees with definite", Ambiguous{Suggested{substOf(intTy)}}, Ambiguous{Definite{substOf(intTy)}}, "Ambiguous; suggested substitution [?0 := Int]"},
		{"definite agrees with suggestion", unique(intTy), Ambiguous{Suggested{substOf(intTy)}}, "Ambiguous; suggested substitution [?0 := Int]"},
		{"suggestions disagree", Ambiguous{Suggested{substOf(intTy)}}, Ambiguous{Suggested{substOf(boolTy)}}, "Ambiguous; no inference guidance"},
		{"unknown", ambiguousUnknown, unique(intTy), "Ambiguous; no inference guidance"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, ShowSolution(Combine(testCase.a, testCase.b)))
		})
	}
}

func TestCombineWithPriorities(t *testing.T) {
	// <^0.0 as Iterator>::Item = ^0.1
	goal := ir.Domain{Goal: ir.AliasEq{
		Alias: ir.ProjectionTy{Trait: "Iterator", Assoc: "Item", Args: []ir.GenericArg{ir.NewBound(ir.KindType, 0, 0)}},
		Ty:    ir.NewBound(ir.KindType, 0, 1),
	}}
	vecInt, vecBool := ir.NewType("Vec", intTy), ir.NewType("Vec", boolTy)

	testCases := []struct {
		name             string
		a                Solution
		priorityA        ir.ClausePriority
		b                Solution
		priorityB        ir.ClausePriority
		expected         string
		expectedPriority ir.ClausePriority
	}{
		{
			name: "same inputs keep the high priority solution",
			a:    unique(vecInt, intTy), priorityA: ir.PriorityHigh,
			b: unique(vecInt, boolTy), priorityB: ir.PriorityLow,
			expected:         "Unique; substitution [?0 := Vec<Int>, ?1 := Int], lifetime constraints []",
			expectedPriority: ir.PriorityHigh,
		},
		{
			name: "high priority solution second",
			a:    unique(vecInt, boolTy), priorityA: ir.PriorityLow,
			b: unique(vecInt, intTy), priorityB: ir.PriorityHigh,
			expected:         "Unique; substitution [?0 := Vec<Int>, ?1 := Int], lifetime constraints []",
			expectedPriority: ir.PriorityHigh,
		},
		{
			name: "different inputs are combined",
			a:    unique(vecInt, intTy), priorityA: ir.PriorityHigh,
			b: unique(vecBool, boolTy), priorityB: ir.PriorityLow,
			expected:         "Ambiguous; no inference guidance",
			expectedPriority: ir.PriorityHigh,
		},
		{
			name: "no guidance leaves the inputs open",
			a:    ambiguousUnknown, priorityA: ir.PriorityHigh,
			b: unique(vecInt, intTy), priorityB: ir.PriorityLow,
			expected:         "Ambiguous; no inference guidance",
			expectedPriority: ir.PriorityHigh,
		},
		{
			name: "same priority",
			a:    unique(vecInt, intTy), priorityA: ir.PriorityLow,
			b: unique(vecInt, intTy), priorityB: ir.PriorityLow,
			expected:         "Unique; substitution [?0 := Vec<Int>, ?1 := Int], lifetime constraints []",
			expectedPriority: ir.PriorityLow,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			combined := combineWithPriorities(goal, testCase.a, testCase.priorityA, testCase.b, testCase.priorityB)
			assert.Equal(t, testCase.expected, ShowSolution(combined.Fst))
			assert.Equal(t, testCase.expectedPriority, combined.Snd)
		})
	}
}

func TestSolutionHelpers(t *testing.T) {
	assert.Equal(t, "No possible solution", ShowSolution(nil))
	assert.True(t, Equal(nil, nil))
	assert.False(t, Equal(nil, unique(intTy)))
	assert.True(t, Equal(unique(intTy), unique(intTy)))

	assert.True(t, IsTrivialAndAlwaysTrue(unique()))
	assert.False(t, IsTrivialAndAlwaysTrue(unique(intTy)))
	assert.False(t, IsTrivialAndAlwaysTrue(ambiguousUnknown))
	assert.False(t, IsTrivialAndAlwaysTrue(nil))

	subst, ok := DefiniteSubst(Ambiguous{Definite{substOf(intTy)}})
	assert.True(t, ok)
	assert.Equal(t, "substitution [?0 := Int], lifetime constraints []", subst.String())
	_, ok = DefiniteSubst(Ambiguous{Suggested{substOf(intTy)}})
	assert.False(t, ok)
	_, ok = ConstrainedSubst(Ambiguous{Suggested{substOf(intTy)}})
	assert.True(t, ok)
	_, ok = ConstrainedSubst(ambiguousUnknown)
	assert.False(t, ok)
}

type countingSolution struct{ renders *int }

func (countingSolution) isSolution() {}
func (s countingSolution) String() string {
	*s.renders++
	return "counted"
}

func TestLogSolution(t *testing.T) {
	assert.Equal(t, "No possible solution", logSolution{nil}.LogValue().String())
	assert.Equal(t, "Unique; substitution [?0 := Int], lifetime constraints []", logSolution{unique(intTy)}.LogValue().String())

	renders := 0
	out := &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logger.Debug("solved goal", "solution", logSolution{countingSolution{&renders}})
	assert.Equal(t, 0, renders)
	assert.Empty(t, out.String())

	logger.Info("solved goal", "solution", logSolution{countingSolution{&renders}})
	assert.Equal(t, 1, renders)
	assert.Contains(t, out.String(), "solution=counted")
}
