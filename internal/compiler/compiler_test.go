package compiler

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/cq/internal/capture"
	"github.com/oxhq/cq/internal/tsengine"
)

func TestCompileSimpleCallExpression(t *testing.T) {
	pattern := `malloc(_);`
	tree, err := tsengine.Parse(context.Background(), []byte(pattern), false)
	require.NoError(t, err)

	cq, err := Compile(pattern, tree.RootNode(), false, nil)
	require.NoError(t, err)

	src := "void f() { malloc(10); }"
	srcTree, err := tsengine.Parse(context.Background(), []byte(src), false)
	require.NoError(t, err)

	results := cq.Matches(srcTree.RootNode(), src)
	assert.NotEmpty(t, results)
}

func TestCompileVariableBinding(t *testing.T) {
	pattern := `$buf = malloc(_);`
	tree, err := tsengine.Parse(context.Background(), []byte(pattern), false)
	require.NoError(t, err)

	cq, err := Compile(pattern, tree.RootNode(), false, nil)
	require.NoError(t, err)

	src := "void f() { char *buf = malloc(10); }"
	srcTree, err := tsengine.Parse(context.Background(), []byte(src), false)
	require.NoError(t, err)

	results := cq.Matches(srcTree.RootNode(), src)
	require.NotEmpty(t, results)
	val, ok := results[0].Value("$buf", src)
	require.True(t, ok)
	assert.Equal(t, "buf", val)
}

func TestCompileNegativeQuery(t *testing.T) {
	pattern := `{
		$buf = malloc(_);
		not: free($buf);
	}`
	tree, err := tsengine.Parse(context.Background(), []byte(pattern), false)
	require.NoError(t, err)

	cq, err := Compile(pattern, tree.RootNode(), false, nil)
	require.NoError(t, err)

	leaky := "void leak() { char *buf = malloc(10); }"
	freed := "void ok() { char *buf = malloc(10); free(buf); }"

	leakyTree, err := tsengine.Parse(context.Background(), []byte(leaky), false)
	require.NoError(t, err)
	freedTree, err := tsengine.Parse(context.Background(), []byte(freed), false)
	require.NoError(t, err)

	assert.NotEmpty(t, cq.Matches(leakyTree.RootNode(), leaky))
	assert.Empty(t, cq.Matches(freedTree.RootNode(), freed))
}

func TestCompileNumericVariableMatchesNumberLiteral(t *testing.T) {
	pattern := `f($0);`
	tree, err := tsengine.Parse(context.Background(), []byte(pattern), false)
	require.NoError(t, err)

	cq, err := Compile(pattern, tree.RootNode(), false, nil)
	require.NoError(t, err)

	src := "void g() { f(42); }"
	srcTree, err := tsengine.Parse(context.Background(), []byte(src), false)
	require.NoError(t, err)

	results := cq.Matches(srcTree.RootNode(), src)
	require.Len(t, results, 1)
	val, ok := results[0].Value("$0", src)
	require.True(t, ok)
	assert.Equal(t, "42", val)
}

func TestCompileCppVariableMatchesQualifiedIdentifier(t *testing.T) {
	pattern := `f($x);`
	tree, err := tsengine.Parse(context.Background(), []byte(pattern), true)
	require.NoError(t, err)

	cq, err := Compile(pattern, tree.RootNode(), true, nil)
	require.NoError(t, err)

	src := "void g() { f(a::b); }"
	srcTree, err := tsengine.Parse(context.Background(), []byte(src), true)
	require.NoError(t, err)

	results := cq.Matches(srcTree.RootNode(), src)
	require.Len(t, results, 1)
	val, ok := results[0].Value("$x", src)
	require.True(t, ok)
	assert.Equal(t, "a::b", val)
}

func TestCompileCppVariableMatchesThis(t *testing.T) {
	pattern := `f($x);`
	tree, err := tsengine.Parse(context.Background(), []byte(pattern), true)
	require.NoError(t, err)

	cq, err := Compile(pattern, tree.RootNode(), true, nil)
	require.NoError(t, err)

	src := "void g() { f(this); }"
	srcTree, err := tsengine.Parse(context.Background(), []byte(src), true)
	require.NoError(t, err)

	results := cq.Matches(srcTree.RootNode(), src)
	require.Len(t, results, 1)
	val, ok := results[0].Value("$x", src)
	require.True(t, ok)
	assert.Equal(t, "this", val)
}

func TestCompileRegexConstraint(t *testing.T) {
	pattern := `$fn();`
	tree, err := tsengine.Parse(context.Background(), []byte(pattern), false)
	require.NoError(t, err)

	regexes := map[string]capture.RegexConstraint{
		"fn": {Negated: false, Regex: regexp.MustCompile(`^my_`)},
	}

	cq, err := Compile(pattern, tree.RootNode(), false, regexes)
	require.NoError(t, err)

	src := "void f() { my_init(); other(); }"
	srcTree, err := tsengine.Parse(context.Background(), []byte(src), false)
	require.NoError(t, err)

	results := cq.Matches(srcTree.RootNode(), src)
	require.Len(t, results, 1)
	val, ok := results[0].Value("$fn", src)
	require.True(t, ok)
	assert.Equal(t, "my_init", val)
}
