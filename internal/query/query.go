// Package query holds CompiledQuery, the compiled form of a structural
// search pattern: a tree-sitter query plus the capture catalog and
// negative sub-queries needed to re-derive a weggli-style match from raw
// tree-sitter matches. Grounded on original_source/src/query.rs's
// QueryTree; internal/compiler produces CompiledQuery values, this package
// only knows how to run them.
package query

import (
	"strconv"

	"github.com/oxhq/cq/internal/capture"
	"github.com/oxhq/cq/internal/literal"
	"github.com/oxhq/cq/internal/result"
	"github.com/oxhq/cq/internal/tsengine"
)

// NegativeQuery is one `not: { ... }` sub-query attached to a CompiledQuery.
// PreviousCaptureIndex anchors its ordering requirement: a negative match
// is only disqualifying if it starts no earlier than the end of the
// capture at that index in the parent query and no later than the start
// of the one right after it.
type NegativeQuery struct {
	Query                *CompiledQuery
	PreviousCaptureIndex int
}

// CompiledQuery is a single node in the compiled query tree. Top-level
// searches, `not:` sub-queries and Subquery captures are all
// CompiledQuery values; only the root is driven from cmd/cq.
type CompiledQuery struct {
	q         *tsengine.Query
	isCPP     bool
	captures  *capture.Catalog
	negations []NegativeQuery
	variables map[string]struct{}
	id        int
}

// New wraps a compiled tree-sitter query with its capture catalog,
// negative sub-queries and the set of variable names it uses.
func New(q *tsengine.Query, isCPP bool, captures *capture.Catalog, negations []NegativeQuery, variables map[string]struct{}, id int) *CompiledQuery {
	return &CompiledQuery{q: q, isCPP: isCPP, captures: captures, negations: negations, variables: variables, id: id}
}

// ID identifies this query within a query tree; it implements
// capture.Query so Subquery captures can reference a CompiledQuery
// without the capture package importing this one.
func (c *CompiledQuery) ID() int { return c.id }

// Variables returns every metavariable name used anywhere in this query
// tree, including inside negations and subqueries.
func (c *CompiledQuery) Variables() map[string]struct{} {
	out := make(map[string]struct{})
	for _, cap := range c.captures.Slice() {
		if cap.Kind == capture.Variable {
			out[cap.Name] = struct{}{}
		}
		if cap.Kind == capture.Subquery {
			if sub, ok := cap.Sub.(*CompiledQuery); ok {
				for v := range sub.Variables() {
					out[v] = struct{}{}
				}
			}
		}
	}
	for _, neg := range c.negations {
		for v := range neg.Query.Variables() {
			out[v] = struct{}{}
		}
	}
	return out
}

// Identifiers returns every literal identifier name (function, variable or
// type names) this query tree checks for, including those nested in
// subqueries. Used to cheaply pre-filter files before a full parse.
func (c *CompiledQuery) Identifiers() []string {
	var out []string
	for _, cap := range c.captures.Slice() {
		switch cap.Kind {
		case capture.Check:
			out = append(out, cap.Text)
		case capture.Subquery:
			if sub, ok := cap.Sub.(*CompiledQuery); ok {
				out = append(out, sub.Identifiers()...)
			}
		}
	}
	return out
}

// cacheKey identifies a memoized subquery result by the subquery's id and
// the node it was run against.
type cacheKey struct {
	queryID int
	nodeID  uintptr
}

type cache map[cacheKey][]result.QueryResult

// Matches finds every match of this query tree rooted at root, against
// source. Adjacent duplicate results are removed.
func (c *CompiledQuery) Matches(root *tsengine.Node, source string) []result.QueryResult {
	ca := make(cache)
	results := c.matchInternal(root, source, ca)
	return dedup(results)
}

func dedup(results []result.QueryResult) []result.QueryResult {
	if len(results) < 2 {
		return results
	}
	out := make([]result.QueryResult, 0, len(results))
	out = append(out, results[0])
	for _, r := range results[1:] {
		prev := out[len(out)-1]
		if r.StartOffset() == prev.StartOffset() && sameCaptures(r, prev) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func sameCaptures(a, b result.QueryResult) bool {
	ac, bc := a.Captures(), b.Captures()
	if len(ac) != len(bc) {
		return false
	}
	for i := range ac {
		if ac[i].Range != bc[i].Range {
			return false
		}
	}
	return true
}

// matchInternal is the core matching method: find every tree-sitter match
// for this query's pattern(s), recursively resolve subqueries, merge
// multi-pattern results and filter out anything a negative sub-query
// rules out.
func (c *CompiledQuery) matchInternal(root *tsengine.Node, source string, ca cache) []result.QueryResult {
	cursor := tsengine.NewCursor()
	defer cursor.Close()
	cursor.Exec(c.q, root)

	numPatterns := c.q.PatternCount()
	patternResults := make([][]result.QueryResult, numPatterns)

	srcBytes := []byte(source)
	for {
		m, ok := cursor.Next(c.q, srcBytes)
		if !ok {
			break
		}
		patternResults[m.PatternIndex] = append(patternResults[m.PatternIndex], c.processMatch(ca, source, m)...)
	}

	for _, pr := range patternResults {
		if len(pr) == 0 {
			return nil
		}
	}

	var merged []result.QueryResult
	for _, pr := range patternResults {
		if len(merged) == 0 {
			merged = pr
			continue
		}
		merged = result.MergeAll(merged, pr, source, true)
		if len(merged) == 0 {
			return nil
		}
	}

	out := make([]result.QueryResult, 0, len(merged))
	for _, r := range merged {
		if !c.negativeMatched(r, root, source, ca) {
			out = append(out, r)
		}
	}
	return out
}

// negativeMatched reports whether some negative sub-query disqualifies r:
// it has a match consistent with r's variable bindings, positioned after
// the capture at PreviousCaptureIndex and before the one right after it.
func (c *CompiledQuery) negativeMatched(r result.QueryResult, root *tsengine.Node, source string, ca cache) bool {
	for _, neg := range c.negations {
		negResults := neg.Query.matchInternal(root, source, ca)
		for _, n := range negResults {
			if _, ok := n.Merge(r, source, false); !ok {
				continue
			}

			idx := neg.PreviousCaptureIndex
			if before, ok := r.GetCaptureResult(c.id, uint32(idx)); ok {
				if n.StartOffset() < before.Range.End {
					continue
				}
			}
			if after, ok := r.GetCaptureResult(c.id, uint32(idx+1)); ok {
				if n.StartOffset() > after.Range.Start {
					continue
				}
			}
			return true
		}
	}
	return false
}

// processMatch turns one raw tree-sitter match into zero or more
// QueryResults: it applies the Variable regex and Number checks that the
// query's #eq? predicates cannot express (those predicates, including
// cross-capture variable equality, are already applied by tsengine's
// Cursor.Next), then recursively resolves and merges any Subquery
// captures.
func (c *CompiledQuery) processMatch(ca cache, source string, m tsengine.Match) []result.QueryResult {
	if len(m.Captures) == 0 {
		// A failed #eq?/#match? predicate blanks the match's captures
		// rather than dropping the match itself; treat it as no match.
		return nil
	}

	captures := make([]result.CaptureResult, 0, len(m.Captures))
	vars := make(map[string]int, len(c.variables))

	type pendingSub struct {
		sub  *CompiledQuery
		node *tsengine.Node
	}
	var subqueries []pendingSub

	for _, mc := range m.Captures {
		// A capture's catalog index is its "@N" name; tree-sitter's own
		// capture ids follow first appearance in the s-expression instead.
		idx := int(mc.Index)
		if n, err := strconv.Atoi(c.q.CaptureNameForID(mc.Index)); err == nil {
			idx = n
		}
		cap := c.captures.At(idx)

		cr := result.CaptureResult{
			Range:      result.Range{Start: int(mc.Node.StartByte()), End: int(mc.Node.EndByte())},
			QueryID:    c.id,
			CaptureIdx: uint32(idx),
		}
		if cap.Kind != capture.Subquery {
			captures = append(captures, cr)
		}

		switch cap.Kind {
		case capture.Variable:
			text := mc.Node.Content([]byte(source))
			if cap.Regex != nil {
				matched := cap.Regex.Regex.MatchString(text)
				if matched == cap.Regex.Negated {
					return nil
				}
			}
			vars[cap.Name] = len(captures) - 1
		case capture.Number:
			v, ok := literal.ParseInteger(mc.Node.Content([]byte(source)))
			if !ok || cap.Value == nil || v.Cmp(cap.Value) != 0 {
				return nil
			}
		case capture.Subquery:
			sub, ok := cap.Sub.(*CompiledQuery)
			if !ok {
				continue
			}
			subqueries = append(subqueries, pendingSub{sub: sub, node: mc.Node})
		}
	}

	function := result.Range{}
	if len(captures) > 0 {
		function = captures[0].Range
	}

	qr := result.New(captures, vars, function)
	results := []result.QueryResult{qr}

	for _, sq := range subqueries {
		if len(results) == 0 {
			break
		}
		key := cacheKey{queryID: sq.sub.id, nodeID: uintptr(sq.node.Id())}
		subResults, ok := ca[key]
		if !ok {
			subResults = sq.sub.matchInternal(sq.node, source, ca)
			ca[key] = subResults
		}
		results = result.MergeAll(results, subResults, source, false)
	}

	return results
}
