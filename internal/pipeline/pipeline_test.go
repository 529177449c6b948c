package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/cq/internal/compiler"
	"github.com/oxhq/cq/internal/discover"
	"github.com/oxhq/cq/internal/tsengine"
)

func TestRunMatchesAcrossDiscoveredFiles(t *testing.T) {
	dir := t.TempDir()
	leaky := filepath.Join(dir, "leak.c")
	require.NoError(t, os.WriteFile(leaky, []byte("void f() { malloc(10); }"), 0o644))
	clean := filepath.Join(dir, "clean.c")
	require.NoError(t, os.WriteFile(clean, []byte("void g() { other(); }"), 0o644))

	pattern := `malloc(_);`
	tree, err := tsengine.Parse(context.Background(), []byte(pattern), false)
	require.NoError(t, err)
	cq, err := compiler.Compile(pattern, tree.RootNode(), false, nil)
	require.NoError(t, err)

	queries := []Query{{Compiled: cq, Identifiers: []string{"malloc"}}}
	candidates := discover.Walk(context.Background(), []string{dir}, discover.Options{Extensions: []string{"c"}})

	outcomes := Run(context.Background(), candidates, queries, Options{IsCPP: false})

	var matched int
	for o := range outcomes {
		matched += len(o.Results)
	}
	assert.Equal(t, 1, matched)
}
