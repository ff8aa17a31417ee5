package solve

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoinductiveCycles(t *testing.T) {
	testCases := []struct {
		name     string
		program  string
		goal     string
		expected string
	}{
		{
			name: "inductive goal inside the cycle",
			program: `
structs: [{name: Bar}]
traits:
  - name: Send
    coinductive: true
  - name: Foo
impls:
  - header: "Bar: Send"
    where: ["Bar: Foo"]
  - header: "Bar: Foo"
    where: ["Bar: Send"]
`,
			goal:     "Bar: Send",
			expected: "No possible solution",
		},
		{
			name: "inductive goal heading the cycle",
			program: `
structs: [{name: Bar}]
traits:
  - name: Send
    coinductive: true
  - name: Foo
impls:
  - header: "Bar: Send"
    where: ["Bar: Foo"]
  - header: "Bar: Foo"
    where: ["Bar: Send"]
`,
			goal:     "Bar: Foo",
			expected: "No possible solution",
		},
		{
			name: "unification inside the cycle",
			program: `
structs: [{name: X}, {name: Y}]
traits:
  - {name: C1, coinductive: true}
  - {name: C2, coinductive: true}
  - {name: C3, coinductive: true}
clauses:
  - "forall<T> { T: C1 :- T: C2, T = X }"
  - "forall<T> { T: C2 :- T: C3, T = Y }"
  - "forall<T> { T: C3 :- T: C1, T: C2 }"
`,
			goal:     "forall<T> { T: C1 }",
			expected: "No possible solution",
		},
		{
			name: "cycle through a different goal",
			program: `
structs: [{name: X}]
traits:
  - {name: C1, params: [T], coinductive: true}
  - {name: C2, params: [T], coinductive: true}
clauses:
  - "forall<A, B> { A: C1<B> :- A: C2<B>, A = X, B = X }"
  - "forall<A, B> { A: C2<B> :- B: C1<A> }"
`,
			goal:     "exists<T, U> { T: C1<U> }",
			expected: "Unique; substitution [?0 := X, ?1 := X], lifetime constraints []",
		},
		{
			name: "cycle back to the query",
			program: `
traits:
  - {name: C1, params: [T], coinductive: true}
clauses:
  - "forall<A, B> { A: C1<B> :- B: C1<A> }"
`,
			goal:     "exists<T, U> { T: C1<U> }",
			expected: "Unique; for<?U0,?U0> { substitution [?0 := ^0.0, ?1 := ^0.1], lifetime constraints [] }",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			p := loadProgram(t, testCase.program)
			assert.Equal(t, testCase.expected, solveQuery(t, p, testCase.goal, DefaultOptions()))
			assert.Equal(t, testCase.expected, solveQuery(t, p, testCase.goal, DefaultOptions().WithCaching(false)))
		})
	}
}

func TestCoinductiveResultsArePromoted(t *testing.T) {
	p := loadProgram(t, autoProgram)
	s := NewSolver(p, DefaultOptions())
	cycles := testutil.ToFloat64(metrics.coinductiveCycles)

	assert.True(t, IsUnique(s.Solve(context.Background(), query(t, "Foo: Send"))))
	assert.Equal(t, cycles+1, testutil.ToFloat64(metrics.coinductiveCycles))
	assert.Empty(t, s.coinduction.cycleStarts)
	assert.Empty(t, s.coinduction.tempCache)
	assert.Equal(t, 0, s.graph.len())

	// Bar: Send was solved assuming Foo: Send, and is final now that Foo: Send holds
	cached, ok := s.Cache().Get(query(t, "Bar: Send"))
	require.True(t, ok)
	assert.True(t, IsUnique(cached))
}

func TestFailedCoinductiveCycleDiscardsResults(t *testing.T) {
	p := loadProgram(t, `
traits:
  - name: C
    coinductive: true
  - name: D
clauses:
  - "A: C :- A: D, B: C"
  - "B: C :- A: C"
`)
	s := NewSolver(p, DefaultOptions())
	invalidated := testutil.ToFloat64(metrics.invalidatedCycles)

	// B: C holds if A: C does, which is assumed while solving A: C, until
	// A: D fails
	assert.Nil(t, s.Solve(context.Background(), query(t, "A: C")))
	assert.Equal(t, invalidated+1, testutil.ToFloat64(metrics.invalidatedCycles))
	assert.Empty(t, s.coinduction.tempCache)

	_, ok := s.Cache().Get(query(t, "B: C"))
	assert.False(t, ok)
	cached, ok := s.Cache().Get(query(t, "A: C"))
	require.True(t, ok)
	assert.Nil(t, cached)

	assert.Nil(t, s.Solve(context.Background(), query(t, "B: C")))
}
