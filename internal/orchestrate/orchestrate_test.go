package orchestrate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oxhq/cq/internal/result"
)

func withVar(name string, idx int, start, end int) result.QueryResult {
	return result.New(
		[]result.CaptureResult{{Range: result.Range{Start: start, End: end}, QueryID: 0, CaptureIdx: 0}},
		map[string]int{name: idx},
		result.Range{Start: start, End: end},
	)
}

func TestJoinKeepsMutuallyChainableResults(t *testing.T) {
	srcA := "buf"
	srcB := "buf"
	srcC := "other"

	a := withVar("$buf", 0, 0, 3)
	b := withVar("$buf", 0, 0, 3)
	c := withVar("$buf", 0, 0, 5)

	buckets := [][]Match{
		{{QueryIndex: 0, Result: a, Source: srcA, Location: "a.c"}},
		{
			{QueryIndex: 1, Result: b, Source: srcB, Location: "b.c"},
			{QueryIndex: 1, Result: c, Source: srcC, Location: "c.c"},
		},
	}

	joined := Join(buckets)
	require := assert.New(t)
	require.Len(joined[0], 1)
	require.Len(joined[1], 1)
	require.Equal("b.c", joined[1][0].Location)
}

func TestJoinDropsUnchainableResults(t *testing.T) {
	a := withVar("$buf", 0, 0, 3)
	c := withVar("$buf", 0, 0, 5)

	buckets := [][]Match{
		{{QueryIndex: 0, Result: a, Source: "buf", Location: "a.c"}},
		{{QueryIndex: 1, Result: c, Source: "other", Location: "c.c"}},
	}

	joined := Join(buckets)
	assert.Empty(t, joined[0])
	assert.Empty(t, joined[1])
}

func TestCombineProducesCartesianChains(t *testing.T) {
	a := withVar("$buf", 0, 0, 3)
	b := withVar("$buf", 0, 0, 3)

	buckets := [][]Match{
		{{QueryIndex: 0, Result: a, Source: "buf", Location: "a.c"}},
		{{QueryIndex: 1, Result: b, Source: "buf", Location: "b.c"}},
	}

	chains := Combine(buckets)
	assert.Len(t, chains, 1)
	assert.Len(t, chains[0], 2)
}
