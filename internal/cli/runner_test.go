package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/cq/internal/result"
)

// buildResultWithVars builds a QueryResult binding each named variable to
// a one-byte-wide range over a synthetic source it also returns, so the
// caller never has to hand-align offsets with variable order.
func buildResultWithVars(vars map[string]string) (result.QueryResult, string) {
	names := make([]string, 0, len(vars))
	for name := range vars {
		names = append(names, name)
	}

	captures := make([]result.CaptureResult, len(names))
	varIdx := make(map[string]int, len(names))
	var source []byte
	for i, name := range names {
		source = append(source, vars[name][0])
		captures[i] = result.CaptureResult{Range: result.Range{Start: i, End: i + 1}}
		varIdx[name] = i
	}

	return result.New(captures, varIdx, result.Range{Start: 0, End: len(names)}), string(source)
}

func TestRunSucceedsForSimplePattern(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.c"), []byte("void f() { malloc(10); }"), 0o644))

	r := NewRunner(Options{
		Patterns:   []string{"malloc(_);"},
		Paths:      []string{dir},
		Extensions: []string{"c"},
	})

	code := r.Run(context.Background())
	assert.Equal(t, 0, code)
}

func TestRunReportsCompileErrors(t *testing.T) {
	dir := t.TempDir()

	r := NewRunner(Options{
		Patterns: []string{"{{{"},
		Paths:    []string{dir},
	})

	code := r.Run(context.Background())
	assert.Equal(t, 1, code)
}

func TestUniqueBindingsRejectsDuplicateValues(t *testing.T) {
	// Two variables bound to the same text should fail the -u check.
	res, source := buildResultWithVars(map[string]string{"$a": "x", "$b": "x"})
	assert.False(t, uniqueBindings(res, source))
}

func TestUniqueBindingsAcceptsDistinctValues(t *testing.T) {
	res, source := buildResultWithVars(map[string]string{"$a": "x", "$b": "y"})
	assert.True(t, uniqueBindings(res, source))
}
