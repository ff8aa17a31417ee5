package program

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cottand/traitsolve/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const iteratorProgram = `
structs:
  - name: Vec
    params: [T]
    fields: [T]
  - name: Int
traits:
  - name: Iterator
    assoc: [Item]
  - name: Into
    params: [U]
  - name: Send
    auto: true
impls:
  - params: [T]
    header: "Vec<T>: Iterator"
    where: ["T: Send"]
    assoc:
      Item: T
  - header: "Int: Into<Int>"
clauses:
  - "forall<T> { T: Into<Vec<T>> :- T: Send }"
queries:
  - goal: "exists<T> { <Vec<Int> as Iterator>::Item = T }"
    expect: "Unique; substitution [?0 := Int], lifetime constraints []"
  - name: into
    goal: "exists<U> { Int: Into<U> }"
    mode: all
    answers:
      - "substitution [?0 := Int], lifetime constraints []"
      - "substitution [?0 := Vec<Int>], lifetime constraints []"
`

func TestLoad(t *testing.T) {
	p, queries, err := Load(strings.NewReader(iteratorProgram))
	require.NoError(t, err)

	iterator, ok := p.Trait("Iterator")
	require.True(t, ok)
	assert.Equal(t, []ir.VariableKind{ir.KindType}, iterator.Params)
	into, ok := p.Trait("Into")
	require.True(t, ok)
	assert.Equal(t, []ir.VariableKind{ir.KindType, ir.KindType}, into.Params)
	assert.True(t, p.IsCoinductive("Send"))
	assert.False(t, p.IsCoinductive("Iterator"))

	assert.Equal(t, []string{
		"Implemented(Int: Into<Int>)",
		"forall<type> { Implemented(^0.0: Into<Vec<^0.0>>) :- Implemented(^0.0: Send) }",
	}, clauseStrings(p.Clauses("Into")))
	assert.Contains(t, clauseStrings(p.Clauses("Iterator")),
		"forall<type> { Normalize(<Vec<^0.0> as Iterator>::Item -> ^0.0) :- Implemented(Vec<^0.0>: Iterator), Implemented(^0.0: Send) }")

	require.Len(t, queries, 2)
	assert.Equal(t, ModeSolve, queries[0].Mode)
	assert.Equal(t, queries[0].Goal, queries[0].Name)
	assert.Equal(t, "exists<type> { AliasEq(<Vec<Int> as Iterator>::Item = ^0.0) }", queries[0].Parsed.String())
	assert.Equal(t, ModeAll, queries[1].Mode)
	assert.Equal(t, "into", queries[1].Name)
	assert.Len(t, queries[1].Answers, 2)
}

func TestLoadErrors(t *testing.T) {
	testCases := []struct {
		name, src string
	}{
		{"invalid yaml", "structs: [name: {"},
		{"bad field", "structs:\n  - name: Vec\n    fields: ['Vec<']"},
		{"bad param", "traits:\n  - name: Foo\n    params: ['<']"},
		{"header is not a trait reference", "traits:\n  - name: Foo\nimpls:\n  - header: 'Int = Int'"},
		{"where clause mentions unknown lifetime", "traits:\n  - name: Foo\nimpls:\n  - header: 'Int: Foo'\n    where: [\"&'a Int: Foo\"]"},
		{"bad clause", "traits:\n  - name: Foo\nclauses: ['Int: Foo :-']"},
		{"unknown mode", "queries:\n  - goal: 'Int: Foo'\n    mode: sometimes"},
		{"bad query", "queries:\n  - goal: 'Int:'"},
		{"program does not check", "impls:\n  - header: 'Int: Foo'"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, _, err := Load(strings.NewReader(testCase.src))
			assert.Error(t, err)
		})
	}
}

func TestLoadEmpty(t *testing.T) {
	p, queries, err := Load(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, queries)
	assert.Empty(t, p.Clauses("Foo"))
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "program.yaml")
	require.NoError(t, os.WriteFile(path, []byte(iteratorProgram), 0o644))

	_, queries, err := LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, queries, 2)

	_, _, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "missing.yaml")
}
