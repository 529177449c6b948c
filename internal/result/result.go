// Package result holds QueryResult, the immutable record of a (possibly
// partial) structural match: the byte ranges of every captured node, the
// variable-to-range bindings, and the outer range used for display.
// Grounded on original_source/src/result.rs (and query.rs's use of a
// CaptureResult type not present in that file's retrieved revision, which
// this package reconciles by tracking the owning query id and capture
// index alongside each range). Colored rendering uses lipgloss instead of
// the Rust source's `colored` crate since lipgloss is the coloring library
// actually wired elsewhere in the pack (mesdx-cli/internal/cli/init.go).
package result

import (
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Range is a half-open byte range [Start, End) into a source file.
type Range struct {
	Start, End int
}

func (r Range) contains(offset int) bool { return offset >= r.Start && offset < r.End }

// CaptureResult is a single captured node's range plus enough identity to
// look it up later by (query, capture index) — negative sub-query
// ordering checks need to find "the capture right before the negative
// slot" in the parent query (spec.md §4.3.4).
type CaptureResult struct {
	Range      Range
	QueryID    int
	CaptureIdx uint32
}

// matchStyle highlights the matched span itself in a rendered result.
var matchStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

// QueryResult is one structural match. Captures are sorted by range start
// at construction; Vars maps metavariable names to an index into Captures.
type QueryResult struct {
	captures []CaptureResult
	Vars     map[string]int
	function Range
}

// New builds a QueryResult, sorting captures by start offset the way
// result.rs's QueryResult::new sorts ranges. vars indexes into captures as
// passed in (pre-sort); the sort permutation is applied to vars too so
// every entry keeps pointing at the same CaptureResult after reordering.
func New(captures []CaptureResult, vars map[string]int, function Range) QueryResult {
	order := make([]int, len(captures))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		return captures[order[i]].Range.Start < captures[order[j]].Range.Start
	})

	sorted := make([]CaptureResult, len(captures))
	newIndex := make([]int, len(captures))
	for newIdx, oldIdx := range order {
		sorted[newIdx] = captures[oldIdx]
		newIndex[oldIdx] = newIdx
	}

	remapped := make(map[string]int, len(vars))
	for k, v := range vars {
		if v >= 0 && v < len(newIndex) {
			v = newIndex[v]
		}
		remapped[k] = v
	}

	return QueryResult{captures: sorted, Vars: remapped, function: function}
}

// StartOffset returns the start of the outermost matched node, used to
// order results within a file.
func (q QueryResult) StartOffset() int { return q.function.Start }

// FunctionRange returns the outer range backing this result.
func (q QueryResult) FunctionRange() Range { return q.function }

// Captures returns the captured nodes, sorted by start offset. Callers
// must not mutate the returned slice.
func (q QueryResult) Captures() []CaptureResult { return q.captures }

// GetCaptureResult returns the capture produced by capture index idx of
// the query identified by queryID, if this result holds one.
func (q QueryResult) GetCaptureResult(queryID int, idx uint32) (CaptureResult, bool) {
	for _, c := range q.captures {
		if c.QueryID == queryID && c.CaptureIdx == idx {
			return c, true
		}
	}
	return CaptureResult{}, false
}

// Value returns the source text bound to a metavariable, or ok=false if the
// variable was never bound in this result.
func (q QueryResult) Value(v string, source string) (string, bool) {
	i, ok := q.Vars[v]
	if !ok {
		return "", false
	}
	r := q.captures[i].Range
	return source[r.Start:r.End], true
}

// Merge tries to combine two QueryResults that came from the same source
// file (e.g. the outer and a negative-free inner match, or two patterns of
// a multi-pattern sub-query). It returns ok=false when the two results
// disagree on a shared variable's binding, or, when enforceOrder is set,
// when other's ranges are not strictly after q's ranges.
func (q QueryResult) Merge(other QueryResult, source string, enforceOrder bool) (QueryResult, bool) {
	if enforceOrder {
		for _, r := range other.captures {
			for _, r2 := range q.captures {
				if r.Range.Start <= r2.Range.End {
					return QueryResult{}, false
				}
			}
		}
	}

	vars := make(map[string]int, len(q.Vars)+len(other.Vars))
	for k, v := range q.Vars {
		vars[k] = v
	}

	captures := make([]CaptureResult, len(q.captures), len(q.captures)+len(other.captures))
	copy(captures, q.captures)
	captures = append(captures, other.captures...)

	for k, v := range other.Vars {
		existing, ok := q.Value(k, source)
		if !ok {
			vars[k] = v + len(q.captures)
			continue
		}
		otherVal, _ := other.Value(k, source)
		if existing != otherVal {
			return QueryResult{}, false
		}
	}

	return New(captures, vars, q.function), true
}

// Chainable reports whether q (bound against source) and other (bound
// against otherSource, possibly a different file) agree on every variable
// they share, allowing the two results to be reported together as a
// multi-query chain.
func (q QueryResult) Chainable(source string, other QueryResult, otherSource string) bool {
	for k := range other.Vars {
		value, ok := q.Value(k, source)
		if !ok {
			continue
		}
		otherValue, _ := other.Value(k, otherSource)
		if value != otherValue {
			return false
		}
	}
	return true
}

// MergeAll tries to merge every result in results with every result in
// subResults, discarding pairs that fail to merge; this is the fold step
// applied after a sub-query is recursively matched (spec.md §4.3.3).
func MergeAll(results, subResults []QueryResult, source string, enforceOrder bool) []QueryResult {
	out := make([]QueryResult, 0, len(results))
	for _, r := range results {
		for _, s := range subResults {
			if merged, ok := r.Merge(s, source, enforceOrder); ok {
				out = append(out, merged)
			}
		}
	}
	return out
}

// linebreakIndex scans from index for the (count+1)th newline before
// (backwards) or from (forwards) index. Going backwards it returns that
// newline's offset, going forwards the offset just past it. If there are
// not that many newlines it returns 0 (going backwards) or len(source)
// (going forwards).
func linebreakIndex(source string, index, count int, backwards bool) int {
	if backwards {
		seen := 0
		for i := index - 1; i >= 0; i-- {
			if source[i] == '\n' {
				if seen == count {
					return i
				}
				seen++
			}
		}
		return 0
	}

	seen := 0
	for i := index; i < len(source); i++ {
		if source[i] == '\n' {
			if seen == count {
				return min(len(source), i+1)
			}
			seen++
		}
	}
	return len(source)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// elisionMarker separates two kept, non-adjacent stretches of source when
// line numbers are off.
const elisionMarker = "..."

// region is one contiguous, kept stretch of source text (possibly holding
// an inline-colored matched span), or an elision gap between two regions.
type region struct {
	text      string
	startLine int
	elision   bool
}

// Display renders the result as colored, elided source text: `before`
// lines of leading context before each captured node and `after` lines of
// trailing context after it, with the matched span itself colored.
// Skipped stretches are marked with "..." normally, or, when lineNumbers
// is set, every kept line is prefixed with its 1-based source line number
// and skipped stretches become a dotted line padded to the gutter's width.
func (q QueryResult) Display(source string, before, after int, lineNumbers bool) string {
	headerEnd := linebreakIndex(source, q.function.Start, 1, false)
	if len(q.captures) > 1 {
		headerEnd = min(headerEnd, q.captures[1].Range.Start-1)
	}

	var regions []region
	var cur strings.Builder
	curStart := q.function.Start
	cur.WriteString(source[q.function.Start:headerEnd])
	offset := headerEnd

	flush := func() {
		regions = append(regions, region{text: cur.String(), startLine: lineNumber(source, curStart)})
		cur.Reset()
	}

	clean := make([]Range, 0, len(q.captures))
	if len(q.captures) > 0 {
		for _, c := range q.captures[1:] {
			r := c.Range
			if len(clean) > 0 && clean[len(clean)-1].contains(r.Start) {
				continue
			}
			clean = append(clean, r)
		}
	}

	for i, r := range clean {
		if r.Start <= offset {
			continue
		}

		start := linebreakIndex(source, r.Start, before, true)
		end := linebreakIndex(source, r.End, after, false)

		if i < len(clean)-1 && r.End < clean[i+1].Start {
			end = min(end, clean[i+1].Start-1)
		}
		end = min(end, q.function.End)

		if start <= offset {
			cur.WriteString(source[offset:r.Start])
		} else {
			flush()
			regions = append(regions, region{elision: true})
			curStart = start
			cur.WriteString(source[start:r.Start])
		}
		cur.WriteString(matchStyle.Render(source[r.Start:r.End]))
		cur.WriteString(source[r.End:end])
		offset = end
	}

	if offset < q.function.End {
		lastLine := linebreakIndex(source, q.function.End, 0, true)
		flush()
		regions = append(regions, region{elision: true})
		curStart = lastLine
		cur.WriteString(source[lastLine:q.function.End])
	}
	flush()

	return renderRegions(regions, lineGutterWidth(source), lineNumbers)
}

// lineNumber returns the 1-based line number of offset within source.
func lineNumber(source string, offset int) int {
	line := 1
	for i := 0; i < offset && i < len(source); i++ {
		if source[i] == '\n' {
			line++
		}
	}
	return line
}

// lineGutterWidth sizes the line-number gutter to the digit width of
// source's last line number, so every gutter and dotted elision marker
// lines up regardless of where in the file a region starts.
func lineGutterWidth(source string) int {
	return len(strconv.Itoa(lineNumber(source, len(source))))
}

func renderRegions(regions []region, gutter int, lineNumbers bool) string {
	var out strings.Builder
	for _, reg := range regions {
		if reg.elision {
			if lineNumbers {
				out.WriteString(strings.Repeat(".", gutter))
				out.WriteString("\n")
			} else {
				out.WriteString(elisionMarker)
			}
			continue
		}
		if !lineNumbers {
			out.WriteString(reg.text)
			continue
		}

		lines := strings.Split(reg.text, "\n")
		line := reg.startLine
		for i, l := range lines {
			if i > 0 {
				out.WriteString("\n")
			}
			if l == "" && i == len(lines)-1 {
				continue
			}
			out.WriteString(strconv.Itoa(line))
			out.WriteString(strings.Repeat(" ", max(0, gutter-len(strconv.Itoa(line)))))
			out.WriteString("| ")
			out.WriteString(l)
			line++
		}
	}
	return out.String()
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
