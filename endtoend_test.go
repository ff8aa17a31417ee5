package main

import (
	"bytes"
	"context"
	"embed"
	"strings"
	"testing"

	"github.com/cottand/traitsolve/cmd"
	"github.com/cottand/traitsolve/program"
	"github.com/cottand/traitsolve/solve"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeds the test folder
//
//go:embed test
var testSet embed.FS

func TestEndToEnd(t *testing.T) {
	files, err := testSet.ReadDir("test")
	require.NoError(t, err)
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".yaml") {
			continue
		}
		t.Run(f.Name(), func(t *testing.T) {
			content, err := testSet.ReadFile("test/" + f.Name())
			require.NoError(t, err)
			p, queries, err := program.Load(bytes.NewReader(content))
			require.NoError(t, err)
			require.NotEmpty(t, queries)

			for _, parallel := range []bool{false, true} {
				results, err := cmd.Run(context.Background(), p, queries, cmd.Settings{Options: solve.DefaultOptions(), Parallel: parallel})
				require.NoError(t, err)
				for _, r := range results {
					expected, _ := r.Expected()
					assert.True(t, r.OK(), "query %q: expected %v, got %v (error %v)", r.Query.Name, expected, r.Got, r.Err)
				}
			}
		})
	}
}
