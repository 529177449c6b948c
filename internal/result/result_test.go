package result

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capRange(start, end int) CaptureResult {
	return CaptureResult{Range: Range{Start: start, End: end}}
}

func TestLinebreakIndex(t *testing.T) {
	input := "aaa\nbbb\nccc\nd"
	index := strings.Index(input, "b")

	assert.Equal(t, 0, linebreakIndex(input, index, 1, true))
	assert.Equal(t, strings.Index(input, "d"), linebreakIndex(input, index, 1, false))
	assert.Equal(t, len(input), linebreakIndex(input, index, 5, false))
	assert.Equal(t, 0, linebreakIndex(input, index, 4, true))
}

func TestMergeAgreesOnSharedVariable(t *testing.T) {
	source := "use(buf); free(buf);"

	a := New([]CaptureResult{capRange(4, 7)}, map[string]int{"buf": 0}, Range{0, 20})
	b := New([]CaptureResult{capRange(15, 18)}, map[string]int{"buf": 0}, Range{0, 20})

	merged, ok := a.Merge(b, source, false)
	assert.True(t, ok)
	assert.Len(t, merged.Captures(), 2)
}

func TestMergeRejectsConflictingVariable(t *testing.T) {
	source := "malloc(size); free(ptr);"

	a := New([]CaptureResult{capRange(0, 12)}, map[string]int{"buf": 0}, Range{0, 24})
	b := New([]CaptureResult{capRange(14, 23)}, map[string]int{"buf": 0}, Range{0, 24})

	// a's buf covers "malloc(size)" text, b's buf covers "free(ptr)" text: distinct.
	_, ok := a.Merge(b, source, false)
	assert.False(t, ok)
}

func TestMergeEnforcesOrdering(t *testing.T) {
	source := "aaaa bbbb cccc"

	earlier := New([]CaptureResult{capRange(5, 9)}, nil, Range{0, 14})
	later := New([]CaptureResult{capRange(0, 4)}, nil, Range{0, 14})

	_, ok := earlier.Merge(later, source, true)
	assert.False(t, ok, "merge must fail when other's range is not strictly after")
}

func TestChainableDetectsVariableMismatch(t *testing.T) {
	sourceA := "f(x)"
	sourceB := "f(y)"

	a := New([]CaptureResult{capRange(2, 3)}, map[string]int{"v": 0}, Range{0, 4})
	b := New([]CaptureResult{capRange(2, 3)}, map[string]int{"v": 0}, Range{0, 4})

	assert.False(t, a.Chainable(sourceA, b, sourceB))
}

func TestDisplayElidesUnmatchedMiddle(t *testing.T) {
	source := "void f() {\n  malloc(1);\n  int x = 1;\n  free(ptr);\n}\n"
	mallocIdx := strings.Index(source, "malloc")
	freeIdx := strings.Index(source, "free(ptr)")

	res := New([]CaptureResult{
		capRange(0, len(source)),
		capRange(mallocIdx, mallocIdx+len("malloc(1)")),
		capRange(freeIdx, freeIdx+len("free(ptr)")),
	}, nil, Range{0, len(source)})

	out := res.Display(source, 0, 0, false)
	assert.Contains(t, out, "...")
}

func TestDisplayWithLineNumbersPadsGutterAndDots(t *testing.T) {
	source := "void f() {\n  malloc(1);\n  int x = 1;\n  free(ptr);\n}\n"
	mallocIdx := strings.Index(source, "malloc")
	freeIdx := strings.Index(source, "free(ptr)")

	res := New([]CaptureResult{
		capRange(0, len(source)),
		capRange(mallocIdx, mallocIdx+len("malloc(1)")),
		capRange(freeIdx, freeIdx+len("free(ptr)")),
	}, nil, Range{0, len(source)})

	out := res.Display(source, 0, 0, true)
	assert.Contains(t, out, "1| void f() {")
	assert.NotContains(t, out, "...")
	assert.Contains(t, out, ".")
}

func TestNewRemapsVarsAfterSortingOutOfOrderCaptures(t *testing.T) {
	source := "x y"

	// captures[0] ("y") starts after captures[1] ("x"); New must sort by
	// start offset and keep each Vars entry pointing at its own capture.
	res := New([]CaptureResult{
		capRange(2, 3),
		capRange(0, 1),
	}, map[string]int{"a": 0, "b": 1}, Range{0, 3})

	va, ok := res.Value("a", source)
	require.True(t, ok)
	assert.Equal(t, "y", va)

	vb, ok := res.Value("b", source)
	require.True(t, ok)
	assert.Equal(t, "x", vb)
}

func TestMergeKeepsVarsCorrectWhenOtherSortsBeforeSelf(t *testing.T) {
	source := "b a"

	// a's capture starts after b's capture; with enforceOrder=false
	// (the subquery-fold/negative-consistency path) the combined capture
	// list gets reordered by New, and each side's Vars must still resolve
	// to its own bound text afterward.
	a := New([]CaptureResult{capRange(2, 3)}, map[string]int{"a": 0}, Range{0, 3})
	b := New([]CaptureResult{capRange(0, 1)}, map[string]int{"b": 0}, Range{0, 3})

	merged, ok := a.Merge(b, source, false)
	require.True(t, ok)

	va, ok := merged.Value("a", source)
	require.True(t, ok)
	assert.Equal(t, "a", va)

	vb, ok := merged.Value("b", source)
	require.True(t, ok)
	assert.Equal(t, "b", vb)
}
