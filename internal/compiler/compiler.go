// Package compiler translates a validated weggli pattern AST into a
// query.CompiledQuery: a tree-sitter query string plus the capture
// catalog and negative sub-queries query.CompiledQuery needs to re-derive
// matches. Grounded on original_source/src/builder.rs, translated
// recursive-case by recursive-case; the TreeCursor walk uses
// internal/tsengine instead of the tree_sitter crate directly.
package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/oxhq/cq/internal/capture"
	"github.com/oxhq/cq/internal/literal"
	"github.com/oxhq/cq/internal/query"
	"github.com/oxhq/cq/internal/tsengine"
)

// PatternSyntaxError is returned when a pattern does not parse cleanly
// even after the normalization retries (internal/normalize runs before
// this package and is expected to catch most of these first).
type PatternSyntaxError struct {
	Pattern string
}

func (e *PatternSyntaxError) Error() string {
	return fmt.Sprintf("could not parse pattern: %s", e.Pattern)
}

// UnsupportedRootError is returned when a pattern's root node kind cannot
// be used to anchor a search (see normalize.ValidRootKinds).
type UnsupportedRootError struct {
	Kind string
}

func (e *UnsupportedRootError) Error() string {
	return fmt.Sprintf("unsupported root node of kind %q for a query", e.Kind)
}

// MultipleRootsError is returned when a single (non compound-statement)
// pattern contains more than one top-level statement.
type MultipleRootsError struct{}

func (e *MultipleRootsError) Error() string {
	return "pattern has multiple top level statements; wrap it in { } for a multi-pattern query"
}

// StructuralCompileError wraps a tree-sitter query the engine itself
// rejected; this should never happen for a pattern that reached this
// package, and indicates a bug in the s-expression generation below.
type StructuralCompileError struct {
	Err error
}

func (e *StructuralCompileError) Error() string {
	return fmt.Sprintf("internal error compiling structural query: %v", e.Err)
}

func (e *StructuralCompileError) Unwrap() error { return e.Err }

// Compile builds a CompiledQuery for pattern. root must come from
// parsing pattern itself (not a search target) with isCPP matching
// the dialect the query will run against; regexes maps a $variable name
// (without the leading $) to the -R constraint attached to it, if any.
func Compile(pattern string, root *tsengine.Node, isCPP bool, regexes map[string]capture.RegexConstraint) (*query.CompiledQuery, error) {
	cursor := tsengine.NewTreeCursor(root)
	return buildQueryTree(pattern, cursor, 0, isCPP, false, regexes)
}

func buildQueryTree(source string, c *tsengine.TreeCursor, id int, isCPP, isMultiPattern bool, regexes map[string]capture.RegexConstraint) (*query.CompiledQuery, error) {
	b := &builder{source: source, cpp: isCPP, id: id, regexes: regexes}

	if c.CurrentNode().Type() == "translation_unit" {
		c.GoToFirstChild()
	}

	variables := map[string]struct{}{}

	var sexpr string

	if !isMultiPattern {
		needsAnchor := c.CurrentNode().Type() == "compound_statement" && id == 0

		s, err := b.build(c, 0)
		if err != nil {
			return nil, err
		}

		if !needsAnchor {
			idx := b.captures.Add(capture.Capture{Kind: capture.Display})
			s += "@" + strconv.Itoa(idx)
		}

		s += processCaptures(b.captures.Slice(), 0, variables)

		if needsAnchor {
			idx := b.captures.Add(capture.Capture{Kind: capture.Display})
			sexpr = fmt.Sprintf("(function_definition body: %s) @%d", s, idx)
		} else {
			sexpr = "(" + s + ")"
		}
	} else {
		if !c.GoToFirstChild() || !c.GoToNextSibling() {
			return nil, &PatternSyntaxError{Pattern: source}
		}

		var sb strings.Builder
		for {
			child := c.CurrentNode()
			if !c.GoToNextSibling() {
				break
			}

			before := b.captures.Len()
			childCursor := tsengine.NewTreeCursor(child)
			childSexpr, err := b.build(childCursor, 0)
			if err != nil {
				return nil, err
			}

			predicates := processCaptures(b.captures.Slice(), before, variables)
			if childSexpr != "" {
				sb.WriteString(fmt.Sprintf("(%s %s)", childSexpr, predicates))
			}
		}
		sexpr = sb.String()
	}

	q, err := tsengine.NewQuery(sexpr, isCPP)
	if err != nil {
		return nil, &StructuralCompileError{Err: err}
	}

	return query.New(q, isCPP, &b.captures, b.negations, variables, id), nil
}

// builder holds the mutable state accumulated while walking one pattern's
// AST: the catalog of captures created so far, any `not:` sub-queries
// found, and a monotonically increasing id used to keep nested subquery
// caches distinct (see query.CompiledQuery's memoization cache).
type builder struct {
	source    string
	cpp       bool
	captures  capture.Catalog
	negations []query.NegativeQuery
	id        int
	regexes   map[string]capture.RegexConstraint
}

func (b *builder) text(n *tsengine.Node) string {
	return n.Content([]byte(b.source))
}

// isSubexprWildcard reports whether n is the special `_(..)` wildcard
// call used to match "any expression that contains the argument
// somewhere inside it".
func (b *builder) isSubexprWildcard(n *tsengine.Node) bool {
	if n.Type() != "call_expression" {
		return false
	}
	f := n.ChildByFieldName("function")
	if f == nil {
		return false
	}
	return b.text(f) == "_"
}

// build translates the node under c into a tree-sitter query fragment,
// recursing over named children and adding captures/negations as needed.
// depth counts how many AST levels below the statement being compiled the
// node sits (unwrapping an expression statement adds no level); it decides
// whether a `_(..)` wildcard is trivial (depth 0) or needs its own subquery.
func (b *builder) build(c *tsengine.TreeCursor, depth int) (string, error) {
	node := c.CurrentNode()

	if !node.IsNamed() {
		return fmt.Sprintf("%q", node.Type()), nil
	}

	kind := node.Type()

	switch kind {
	case "labeled_statement":
		label := node.Child(0)
		if label != nil && strings.ToUpper(b.text(label)) == "NOT" {
			if err := b.buildNegativeQuery(node); err != nil {
				return "", err
			}
			return "", nil
		}
	case "compound_statement":
		b.id++
		sub, err := buildQueryTree(b.source, tsengine.NewTreeCursor(node), b.id, b.cpp, true, b.regexes)
		if err != nil {
			return "", err
		}
		idx := b.captures.Add(capture.Capture{Kind: capture.Subquery, Sub: sub})
		return fmt.Sprintf("(compound_statement) @%d", idx), nil
	case "identifier", "type_identifier", "field_identifier", "sized_type_specifier",
		"primitive_type", "namespace_identifier":
		return b.buildIdentifier(node), nil
	case "number_literal":
		text := b.text(node)
		cap := capture.Capture{Kind: capture.Check, Text: text}
		if v, ok := literal.ParseInteger(text); ok {
			cap = capture.Capture{Kind: capture.Number, Value: v}
		}
		return "(number_literal) @" + strconv.Itoa(b.captures.Add(cap)), nil
	case "qualified_identifier":
		if b.cpp {
			return b.buildQualifiedIdentifier(node, depth)
		}
	case "assignment_expression":
		return b.buildAssignment(c, depth)
	case "call_expression":
		if s, ok, err := b.buildCallExpr(node, depth); err != nil {
			return "", err
		} else if ok {
			return s, nil
		}
	case "expression_statement":
		if c.GoToFirstChild() {
			return b.build(c, depth)
		}
	}

	anchoring := kind == "argument_list" && node.NamedChildCount() > 1
	isFuncdef := kind == "function_definition"

	result := "(" + kind
	if !c.GoToFirstChild() {
		if !node.IsNamed() {
			return fmt.Sprintf("%q", kind), nil
		}
		return result + ")", nil
	}

	for {
		fieldName := c.FieldName()

		if fieldName != "" {
			result += " " + fieldName + ":"

			t, err := b.build(c, depth+1)
			if err != nil {
				c.GoToParent()
				return "", err
			}

			if fieldName == "declarator" && isFuncdef {
				// Tolerates a pointer-declarator wrapper: "_ func()" still
				// matches "bar * func()".
				result += fmt.Sprintf("([(_ %s) (%s)])", t, t)
			} else {
				result += t
			}
		} else if c.CurrentNode().IsNamed() {
			if anchoring {
				result += " ."
			}
			result += " "
			t, err := b.build(c, depth+1)
			if err != nil {
				c.GoToParent()
				return "", err
			}
			result += t
		}

		if !c.GoToNextSibling() {
			break
		}
	}
	c.GoToParent()

	return result + ")", nil
}

// buildNegativeQuery compiles the statement guarded by a `not:` label into
// a NegativeQuery, anchored to the capture index created right before it
// so query.CompiledQuery can enforce that the negative match falls
// between that capture and the next one.
func (b *builder) buildNegativeQuery(labelNode *tsengine.Node) error {
	negated := labelNode.Child(2)
	if negated == nil {
		return &PatternSyntaxError{Pattern: b.source}
	}
	before := b.captures.Len() - 1

	b.id++
	sub, err := buildQueryTree(b.source, tsengine.NewTreeCursor(negated), b.id, b.cpp, false, b.regexes)
	if err != nil {
		return err
	}

	b.negations = append(b.negations, query.NegativeQuery{Query: sub, PreviousCaptureIndex: before})
	return nil
}

// buildIdentifier handles bare identifiers, `$variables`, `_` wildcards
// and type names, widening each to the set of tree-sitter node kinds that
// can stand in for it.
func (b *builder) buildIdentifier(node *tsengine.Node) string {
	pattern := b.text(node)
	kind := node.Type()

	if pattern == "_" {
		return "(_)"
	}

	var result string
	switch {
	case kind == "type_identifier":
		result = "[ (type_identifier) (sized_type_specifier) (primitive_type)]"
	case kind == "identifier" && strings.HasPrefix(pattern, "$") && isNumericSuffix(pattern):
		result = "(number_literal)"
	case kind == "identifier" && strings.HasPrefix(pattern, "$"):
		if b.cpp {
			result = "[(identifier) (field_expression) (field_identifier) " +
				qualifiedIdentifierAlternatives() + " (this)]"
		} else {
			result = "[(identifier) (field_expression) (field_identifier)]"
		}
	default:
		result = "(" + kind + ")"
	}

	var cap capture.Capture
	if strings.HasPrefix(pattern, "$") {
		name := strings.TrimPrefix(pattern, "$")
		cap = capture.Capture{Kind: capture.Variable, Name: pattern}
		if rc, ok := b.regexes[name]; ok {
			rcCopy := rc
			cap.Regex = &rcCopy
		}
	} else {
		cap = capture.Capture{Kind: capture.Check, Text: pattern}
	}

	idx := b.captures.Add(cap)
	return result + " @" + strconv.Itoa(idx)
}

// buildQualifiedIdentifier widens a C++ `A::B::C`-style name to tolerate
// 1-4 levels of namespace/class nesting around the name actually written
// in the pattern, so `$t::foo` also matches `a::b::t::foo`.
func (b *builder) buildQualifiedIdentifier(node *tsengine.Node, depth int) (string, error) {
	nameField := node.ChildByFieldName("name")
	if nameField == nil {
		return "", &PatternSyntaxError{Pattern: b.source}
	}

	nameCursor := tsengine.NewTreeCursor(nameField)
	nameSexpr, err := b.build(nameCursor, depth+1)
	if err != nil {
		return "", err
	}

	return "[" + strings.Join(qualifiedIdentifierLevels(nameSexpr), " ") + "]", nil
}

// qualifiedIdentifierLevels tolerates name being reached through 1 to 4
// levels of "scope::" nesting, so a pattern written against `t::foo` also
// matches a more deeply qualified `a::b::t::foo`. The 2024 smacker C++
// grammar names this node `qualified_identifier`, not `scoped_identifier`.
func qualifiedIdentifierLevels(nameSexpr string) []string {
	alternatives := make([]string, 0, 4)
	scope := "(_)"
	for level := 0; level < 4; level++ {
		alternatives = append(alternatives, fmt.Sprintf("(qualified_identifier scope: %s name: %s)", scope, nameSexpr))
		scope = fmt.Sprintf("(qualified_identifier scope: (_) name: %s)", scope)
	}
	return alternatives
}

// qualifiedIdentifierAlternatives widens a bare `$var`/call-target position
// to tolerate a qualified name with 1 to 4 levels of scope, with a
// wildcard name.
func qualifiedIdentifierAlternatives() string {
	return strings.Join(qualifiedIdentifierLevels("(_)"), " ")
}

// isNumericSuffix reports whether pattern is `$` followed only by digits
// (`$0`, `$1`, ...), the purely-numeric metavariable form that widens to a
// number literal instead of an identifier.
func isNumericSuffix(pattern string) bool {
	suffix := strings.TrimPrefix(pattern, "$")
	if suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// buildCallExpr handles `$f(...)`, `_(...)` and plain-named calls that
// also need to match through a field access or (in C++) a scoped name.
// ok is false when the call needs no special handling and should fall
// through to the generic recursive case.
func (b *builder) buildCallExpr(node *tsengine.Node, depth int) (string, bool, error) {
	if b.isSubexprWildcard(node) {
		argsField := node.ChildByFieldName("arguments")
		if argsField == nil {
			return "", false, nil
		}
		argCursor := tsengine.NewTreeCursor(argsField)
		argCursor.GoToFirstChild()
		argCursor.GoToNextSibling()

		if depth == 0 {
			s, err := b.build(argCursor, depth)
			return s, true, err
		}

		b.id++
		sub, err := buildQueryTree(b.source, argCursor, b.id, b.cpp, false, b.regexes)
		if err != nil {
			return "", false, err
		}
		idx := b.captures.Add(capture.Capture{Kind: capture.Subquery, Sub: sub})
		return "_ @" + strconv.Itoa(idx), true, nil
	}

	function := node.ChildByFieldName("function")
	arguments := node.ChildByFieldName("arguments")
	if function == nil || arguments == nil {
		return "", false, nil
	}

	if function.Type() != "identifier" {
		return "", false, nil
	}

	pattern := b.text(function)
	if strings.HasPrefix(pattern, "$") {
		return "", false, nil
	}

	idx := b.captures.Add(capture.Capture{Kind: capture.Check, Text: pattern})
	captureStr := "@" + strconv.Itoa(idx)

	argsCursor := tsengine.NewTreeCursor(arguments)
	a, err := b.build(argsCursor, depth+1)
	if err != nil {
		return "", false, err
	}

	var fs string
	if b.cpp {
		fs = fmt.Sprintf(`[(field_expression field: (field_identifier)%[1]s)
			(qualified_identifier name: (identifier)%[1]s) (identifier) %[1]s]`, captureStr)
	} else {
		fs = fmt.Sprintf(`[(field_expression field: (field_identifier)%[1]s)
			(identifier) %[1]s]`, captureStr)
	}

	return fmt.Sprintf("(call_expression function: %s arguments: %s)", fs, a), true, nil
}

// buildAssignment handles `$x = ..`, `$x += ..` and friends, matching
// through a trailing cast on the right-hand side and, for plain `=`,
// also matching on an initializing declaration (`int a = x;`).
func (b *builder) buildAssignment(c *tsengine.TreeCursor, depth int) (string, error) {
	if !c.GoToFirstChild() {
		return "", &PatternSyntaxError{Pattern: b.source}
	}

	left, err := b.build(c, depth+1)
	if err != nil {
		c.GoToParent()
		return "", err
	}
	leftIsIdentifier := c.CurrentNode().Type() == "identifier"

	if !c.GoToNextSibling() {
		c.GoToParent()
		return "", &PatternSyntaxError{Pattern: b.source}
	}

	optionalCast := func(r string) string {
		return fmt.Sprintf("[(cast_expression value: %s) %s]", r, r)
	}

	var result string
	if c.CurrentNode().Type() != "=" || !leftIsIdentifier {
		operator, err := b.build(c, depth+1)
		if err != nil {
			c.GoToParent()
			return "", err
		}
		if !c.GoToNextSibling() {
			c.GoToParent()
			return "", &PatternSyntaxError{Pattern: b.source}
		}
		right, err := b.build(c, depth+1)
		if err != nil {
			c.GoToParent()
			return "", err
		}
		right = optionalCast(right)
		result = fmt.Sprintf("(assignment_expression left: %s %s right: %s)", left, operator, right)
	} else {
		if !c.GoToNextSibling() {
			c.GoToParent()
			return "", &PatternSyntaxError{Pattern: b.source}
		}
		right, err := b.build(c, depth+1)
		if err != nil {
			c.GoToParent()
			return "", err
		}
		right = optionalCast(right)
		result = fmt.Sprintf(`[(assignment_expression left: %[1]s right: %[2]s)
			(init_declarator declarator: %[1]s value: %[2]s)
			(init_declarator declarator:(pointer_declarator declarator: %[1]s) value: %[2]s)]`, left, right)
	}

	c.GoToParent()
	return result, nil
}

// processCaptures walks captures[offset:] and returns the #eq? predicates
// they imply: a literal-text check for Capture.Check captures, and a
// cross-capture equality predicate tying each later capture bound to a
// $variable name to the first capture of that name. Every Variable name
// seen is added to vars.
func processCaptures(captures []capture.Capture, offset int, vars map[string]struct{}) string {
	byVar := map[string][]int{}
	var sb strings.Builder

	for i, cap := range captures[offset:] {
		idx := i + offset
		switch cap.Kind {
		case capture.Check:
			sb.WriteString(fmt.Sprintf(`(#eq? @%d %q)`, idx, cap.Text))
		case capture.Variable:
			byVar[cap.Name] = append(byVar[cap.Name], idx)
			vars[cap.Name] = struct{}{}
		}
	}

	for _, idxs := range byVar {
		if len(idxs) < 2 {
			continue
		}
		for _, other := range idxs[1:] {
			sb.WriteString(fmt.Sprintf(`(#eq? @%d @%d)`, idxs[0], other))
		}
	}

	return sb.String()
}
