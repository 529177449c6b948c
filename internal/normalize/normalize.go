// Package normalize validates a raw search pattern and retries a handful
// of forgiving rewrites before handing it to internal/compiler: a missing
// trailing `;`, and wrapping a bare statement in `{ }`. Grounded on
// original_source/src/main.rs's parse_search_pattern/validate_query.
package normalize

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/oxhq/cq/internal/tsengine"
)

// ValidRootKinds lists the node kinds a pattern is allowed to be rooted
// in: function bodies, whole functions, and the aggregate type
// definitions weggli-style queries commonly search for.
var ValidRootKinds = []string{
	"compound_statement",
	"function_definition",
	"struct_specifier",
	"enum_specifier",
	"union_specifier",
	"class_specifier",
}

func isValidRoot(kind string) bool {
	for _, k := range ValidRootKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// SyntaxError reports a pattern that failed to parse, with a diagnostic
// pointer at the first erroneous node, the way weggli's validate_query
// renders it.
type SyntaxError struct {
	Pattern string
	Before  string
	Missing string
	Bad     string
	After   string
}

func (e *SyntaxError) Error() string {
	var sb strings.Builder
	sb.WriteString("query parsing failed: ")
	sb.WriteString(e.Before)
	if e.Missing != "" {
		sb.WriteString(" [MISSING " + e.Missing + "] ")
	}
	sb.WriteString(e.Bad)
	sb.WriteString(e.After)
	return sb.String()
}

// MultipleRootsError is returned when a pattern has more than one
// top-level statement and isn't wrapped in `{ }`.
type MultipleRootsError struct{ Pattern string }

func (e *MultipleRootsError) Error() string {
	return fmt.Sprintf("query %q contains multiple root nodes", e.Pattern)
}

// UnsupportedRootError is returned when a pattern's single root statement
// is not one of ValidRootKinds.
type UnsupportedRootError struct {
	Pattern string
	Kind    string
}

func (e *UnsupportedRootError) Error() string {
	return fmt.Sprintf("%q is not a supported query root node (got %s)", e.Pattern, e.Kind)
}

// Result is a validated, possibly-rewritten pattern ready for
// internal/compiler: the final pattern text and the root of its tree, cued
// up past any translation_unit wrapper and ready for the compiler to
// inspect its first child.
type Result struct {
	Pattern string
	Tree    *tsengine.Tree
}

// Normalize parses pattern, retries a couple of forgiving rewrites if it
// doesn't parse cleanly, and validates the result is rooted in a
// supported node kind. If force is set, syntax errors are tolerated and
// the best-effort tree is returned anyway.
func Normalize(pattern string, isCPP, force bool) (Result, error) {
	ctx := context.Background()

	tree, err := tsengine.Parse(ctx, []byte(pattern), isCPP)
	if err != nil {
		return Result{}, err
	}
	p := pattern

	if tree.RootNode().HasError() && !strings.HasSuffix(pattern, ";") {
		candidate := pattern + ";"
		fixed, err := tsengine.Parse(ctx, []byte(candidate), isCPP)
		if err == nil && !fixed.RootNode().HasError() {
			logRewrite("add missing ;", p, candidate)
			tree, p = fixed, candidate
		}
	}

	if !tree.RootNode().HasError() {
		if child := tree.RootNode().Child(0); child != nil && !isValidRoot(child.Type()) {
			candidate := "{" + p + "}"
			fixed, err := tsengine.Parse(ctx, []byte(candidate), isCPP)
			if err == nil && !fixed.RootNode().HasError() {
				logRewrite("wrap in { }", p, candidate)
				tree, p = fixed, candidate
			}
		}
	}

	if err := validate(tree, p, force); err != nil {
		return Result{}, err
	}

	return Result{Pattern: p, Tree: tree}, nil
}

func logRewrite(what, before, after string) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: "pattern",
		ToFile:   "normalized",
		Context:  1,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		text = fmt.Sprintf("%q -> %q", before, after)
	}
	log.Printf("normalizing query: %s\n%s", what, text)
}

func validate(tree *tsengine.Tree, pattern string, force bool) error {
	root := tree.RootNode()

	if root.HasError() && !force {
		return diagnoseSyntaxError(root, pattern)
	}

	cursor := tsengine.NewTreeCursor(root)
	if root.NamedChildCount() > 1 {
		return &MultipleRootsError{Pattern: pattern}
	}

	cursor.GoToFirstChild()
	kind := cursor.CurrentNode().Type()
	if !isValidRoot(kind) {
		return &UnsupportedRootError{Pattern: pattern, Kind: kind}
	}

	return nil
}

func diagnoseSyntaxError(root *tsengine.Node, pattern string) error {
	cursor := tsengine.NewTreeCursor(root)

	var bad *tsengine.Node
	for {
		node := cursor.CurrentNode()
		if !node.HasError() {
			if !cursor.GoToNextSibling() {
				break
			}
			continue
		}
		if node.IsError() || node.IsMissing() {
			bad = node
			break
		}
		if !cursor.GoToFirstChild() {
			break
		}
	}

	if bad == nil {
		return &SyntaxError{Pattern: pattern, Before: pattern}
	}

	start, end := int(bad.StartByte()), int(bad.EndByte())
	e := &SyntaxError{
		Pattern: pattern,
		Before:  pattern[:start],
		Bad:     pattern[start:end],
		After:   pattern[end:],
	}
	if bad.IsMissing() {
		e.Missing = bad.Type()
	}
	return e
}
