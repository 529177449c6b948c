// Package tsengine is the thin wrapper around the external structural
// matcher/parser collaborator (github.com/smacker/go-tree-sitter plus its
// c and cpp grammars). Nothing outside this package touches the
// smacker/go-tree-sitter API directly; every other package in cq depends
// only on the names exported here, grounded on
// termfx-morfx/internal/matcher/{tree,lang}.go and
// termfx-morfx/providers/base/provider.go's use of sitter.Parser,
// sitter.Query and sitter.QueryCursor.
package tsengine

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	sitterc "github.com/smacker/go-tree-sitter/c"
	sittercpp "github.com/smacker/go-tree-sitter/cpp"
)

// Node, Tree and TreeCursor are re-exported so callers can walk pattern ASTs
// without importing smacker/go-tree-sitter themselves.
type (
	Node       = sitter.Node
	Tree       = sitter.Tree
	TreeCursor = sitter.TreeCursor
)

// Language returns the tree-sitter grammar to use for C (isCPP == false) or
// C++ (isCPP == true) sources.
func Language(isCPP bool) *sitter.Language {
	if isCPP {
		return sittercpp.GetLanguage()
	}
	return sitterc.GetLanguage()
}

// Parse parses source into a (possibly error-containing) AST. Syntax
// errors do not make it fail: tree-sitter returns a best-effort tree, with
// errors reachable via Node.HasError. The error result is the one
// ParseCtx reports, for example when ctx is cancelled.
func Parse(ctx context.Context, source []byte, isCPP bool) (*Tree, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(Language(isCPP))
	return parser.ParseCtx(ctx, nil, source)
}

// NewTreeCursor starts a cursor walk at n, mirroring tree-sitter's
// TreeCursor API (CurrentNode, CurrentFieldName, GoToFirstChild,
// GoToNextSibling, GoToParent) which internal/compiler drives to recurse
// over a validated pattern AST.
func NewTreeCursor(n *Node) *TreeCursor {
	return sitter.NewTreeCursor(n)
}

// CompileError wraps a structural query rejected by the external engine; it
// is the data backing cq's StructuralCompileError (spec.md §7).
type CompileError struct {
	Sexpr string
	Err   error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("tree-sitter query generation failed: %v\nsexpr: %s\nthis is a bug, please report it", e.Err, e.Sexpr)
}

func (e *CompileError) Unwrap() error { return e.Err }

// Query is a compiled structural query (an s-expression with @captures and
// #eq? predicates) bound to a single dialect.
type Query struct {
	q *sitter.Query
}

// NewQuery compiles sexpr for the given dialect.
func NewQuery(sexpr string, isCPP bool) (*Query, error) {
	q, err := sitter.NewQuery([]byte(sexpr), Language(isCPP))
	if err != nil {
		return nil, &CompileError{Sexpr: sexpr, Err: err}
	}
	return &Query{q: q}, nil
}

// PatternCount returns the number of top-level patterns in the query (more
// than one for multi-pattern sub-queries, see spec.md §4.3.3).
func (q *Query) PatternCount() int { return int(q.q.PatternCount()) }

// CaptureNameForID returns the capture's name as written in the
// s-expression (e.g. "0" for "@0"). query.CompiledQuery uses it to map a
// match's capture id back to the capture's catalog index.
func (q *Query) CaptureNameForID(id uint32) string { return q.q.CaptureNameForId(id) }

// Capture is one captured node within a Match.
type Capture struct {
	Index uint32
	Node  *Node
}

// Match is a single structural match: the index of the pattern within a
// multi-pattern query, and the captures it produced.
type Match struct {
	PatternIndex int
	Captures     []Capture
}

// Cursor drives a Query against a source AST, yielding one Match per
// structural match (after predicate filtering), mirroring
// termfx-morfx/internal/matcher/tree.go's Find loop generalized to
// multiple captures and multiple patterns.
type Cursor struct {
	c *sitter.QueryCursor
}

// NewCursor allocates a fresh query cursor. Callers must call Close when
// done; cq's matcher allocates one for every query it runs, including
// each subquery and negative query (never shared across files or
// goroutines, per spec.md §5).
func NewCursor() *Cursor {
	return &Cursor{c: sitter.NewQueryCursor()}
}

// Close releases the cursor's native resources.
func (c *Cursor) Close() { c.c.Close() }

// Exec begins iterating matches of q rooted at node.
func (c *Cursor) Exec(q *Query, node *Node) {
	c.c.Exec(q.q, node)
}

// Next returns the next match (with predicates already applied against
// source), or ok=false once exhausted.
func (c *Cursor) Next(q *Query, source []byte) (Match, bool) {
	m, ok := c.c.NextMatch()
	if !ok {
		return Match{}, false
	}
	m = c.c.FilterPredicates(m, source)

	out := Match{PatternIndex: m.PatternIndex, Captures: make([]Capture, len(m.Captures))}
	for i, cap := range m.Captures {
		out.Captures[i] = Capture{Index: cap.Index, Node: cap.Node}
	}
	_ = q // q is only needed by callers that want capture names; kept for symmetry
	return out, true
}
