package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cottand/traitsolve/program"
	"github.com/cottand/traitsolve/solve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const growingProgram = `
structs:
  - name: S
    params: [T]
    fields: [T]
traits:
  - name: Foo
clauses:
  - "forall<T> { T: Foo :- S<T>: Foo }"
`

func writeProgram(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "program.yaml")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func executeSolve(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() {
		*overflowDepth = solve.DefaultOverflowDepth
		*showMetrics = false
		*parallel = false
	})
	out := &bytes.Buffer{}
	SolveCmd.SetOut(out)
	SolveCmd.SetErr(&bytes.Buffer{})
	SolveCmd.SetArgs(append([]string{"--json-logs=false"}, args...))
	err := SolveCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSolveCmd(t *testing.T) {
	path := writeProgram(t, `
traits:
  - name: Foo
impls:
  - header: "Int: Foo"
queries:
  - goal: "Int: Foo"
    expect: "Unique; substitution [], lifetime constraints []"
  - name: "no expectation"
    goal: "Bool: Foo"
`)
	out, err := executeSolve(t, path)
	require.NoError(t, err)
	assert.Equal(t, "ok Int: Foo\n    Unique; substitution [], lifetime constraints []\nok no expectation\n    No possible solution\n", out)

	out, err = executeSolve(t, "--parallel", "--metrics", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok no expectation")
	assert.Contains(t, out, "traitsolve_solver_queries_total")
}

func TestSolveCmdFailures(t *testing.T) {
	t.Run("unexpected solution", func(t *testing.T) {
		path := writeProgram(t, `
traits:
  - name: Foo
queries:
  - goal: "Int: Foo"
    expect: "Unique; substitution [], lifetime constraints []"
`)
		out, err := executeSolve(t, path)
		assert.EqualError(t, err, "1 of 1 queries failed")
		assert.Contains(t, out, "FAIL Int: Foo\n    No possible solution\n  expected:\n    Unique;")
	})

	t.Run("overflow", func(t *testing.T) {
		path := writeProgram(t, growingProgram+`
queries:
  - goal: "Int: Foo"
`)
		out, err := executeSolve(t, "--overflow-depth", "10", path)
		assert.Error(t, err)
		assert.Contains(t, out, "error:")
		assert.Contains(t, out, "(E001) overflow depth 10 reached")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := executeSolve(t, filepath.Join(t.TempDir(), "missing.yaml"))
		assert.ErrorContains(t, err, "missing.yaml")
	})
}

func TestRun(t *testing.T) {
	p, queries, err := program.Load(strings.NewReader(`
traits:
  - name: Foo
impls:
  - header: "Int: Foo"
  - header: "Bool: Foo"
queries:
  - goal: "exists<T> { T: Foo }"
    mode: all
    answers:
      - "substitution [?0 := Int], lifetime constraints []"
      - "substitution [?0 := Bool], lifetime constraints []"
  - goal: "exists<T> { T: Foo }"
    mode: first
    expect: "substitution [?0 := Int], lifetime constraints []"
  - goal: "exists<T> { T: Foo }"
    mode: all
    answers: []
`))
	require.NoError(t, err)

	for _, parallel := range []bool{false, true} {
		results, err := Run(context.Background(), p, queries, Settings{Options: solve.DefaultOptions(), Parallel: parallel})
		require.NoError(t, err)
		require.Len(t, results, 3)
		assert.True(t, results[0].OK())
		assert.True(t, results[1].OK())
		assert.False(t, results[2].OK())
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Run(ctx, p, queries, Settings{Options: solve.DefaultOptions()})
	assert.ErrorIs(t, err, context.Canceled)
}
