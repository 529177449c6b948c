package query

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxhq/cq/internal/capture"
	"github.com/oxhq/cq/internal/tsengine"
)

// buildSingle compiles a single-pattern query with the given capture
// catalog and no negations, the shape internal/compiler would hand back
// for a query with no variables or subqueries of its own.
func buildSingle(t *testing.T, sexpr string, cat *capture.Catalog) *CompiledQuery {
	t.Helper()
	q, err := tsengine.NewQuery(sexpr, false)
	require.NoError(t, err)
	return New(q, false, cat, nil, map[string]struct{}{}, 0)
}

func parseC(t *testing.T, src string) *tsengine.Node {
	t.Helper()
	tree, err := tsengine.Parse(context.Background(), []byte(src), false)
	require.NoError(t, err)
	return tree.RootNode()
}

func TestMatchesFindsCallExpression(t *testing.T) {
	src := "void f() { malloc(10); free(p); }"
	root := parseC(t, src)

	var cat capture.Catalog
	cat.Add(capture.Capture{Kind: capture.Display})
	cat.Add(capture.Capture{Kind: capture.Check, Text: "malloc"})

	cq := buildSingle(t, `(call_expression function: (identifier) @1 (#eq? @1 "malloc")) @0`, &cat)

	results := cq.Matches(root, src)
	require.Len(t, results, 1)
	r := results[0].Captures()[0].Range
	assert.Equal(t, "malloc(10)", src[r.Start:r.End])
}

func TestMatchesRejectsNumberMismatch(t *testing.T) {
	src := "void f() { x = 5; }"
	root := parseC(t, src)

	var cat capture.Catalog
	cat.Add(capture.Capture{Kind: capture.Display})
	cat.Add(capture.Capture{Kind: capture.Number, Value: big.NewInt(10)})

	cq := buildSingle(t, `(assignment_expression right: (number_literal) @1) @0`, &cat)

	results := cq.Matches(root, src)
	assert.Empty(t, results)
}

func TestMatchesAcceptsNumberMatch(t *testing.T) {
	src := "void f() { x = 10; }"
	root := parseC(t, src)

	var cat capture.Catalog
	cat.Add(capture.Capture{Kind: capture.Display})
	cat.Add(capture.Capture{Kind: capture.Number, Value: big.NewInt(10)})

	cq := buildSingle(t, `(assignment_expression right: (number_literal) @1) @0`, &cat)

	results := cq.Matches(root, src)
	assert.Len(t, results, 1)
}

func TestMatchesAppliesNegation(t *testing.T) {
	src := "void safe() { malloc(10); } void unsafe() { malloc(10); free(x); }"
	root := parseC(t, src)

	var outerCat capture.Catalog
	outerCat.Add(capture.Capture{Kind: capture.Display})
	outerCat.Add(capture.Capture{Kind: capture.Check, Text: "malloc"})

	var negCat capture.Catalog
	negCat.Add(capture.Capture{Kind: capture.Display})
	negCat.Add(capture.Capture{Kind: capture.Check, Text: "free"})

	negQ, err := tsengine.NewQuery(`(call_expression function: (identifier) @1 (#eq? @1 "free")) @0`, false)
	require.NoError(t, err)
	neg := New(negQ, false, &negCat, nil, map[string]struct{}{}, 1)

	cq := buildSingle(t, `(function_definition body: (compound_statement (expression_statement (call_expression function: (identifier) @1 (#eq? @1 "malloc"))) @0))`, &outerCat)
	// Capture 1 is the malloc call's name: the negative applies after it.
	cq.negations = []NegativeQuery{{Query: neg, PreviousCaptureIndex: 1}}

	results := cq.Matches(root, src)
	for _, r := range results {
		fn := src[r.FunctionRange().Start:r.FunctionRange().End]
		assert.NotContains(t, fn, "free")
	}
}
