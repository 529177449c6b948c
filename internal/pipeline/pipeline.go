// Package pipeline wires internal/discover, internal/query and
// internal/orchestrate into the three-stage concurrency model of
// spec.md §5: a parser-producer pool and a matcher pool. Multi-query
// joining is not done here: internal/cli's Runner drains the Outcome
// channel on its own goroutine and then calls internal/orchestrate.
// Grounded on
// termfx-morfx/core/filewalker.go's worker-pool shape, generalized from
// one stage to a producer/consumer chain of channels.
package pipeline

import (
	"context"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/oxhq/cq/internal/discover"
	"github.com/oxhq/cq/internal/orchestrate"
	"github.com/oxhq/cq/internal/query"
	"github.com/oxhq/cq/internal/tsengine"
)

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Query pairs a compiled query with the identifiers it needs present in a
// file (the parser-producer's coarse substring screen, spec.md §5).
type Query struct {
	Compiled    *query.CompiledQuery
	Identifiers []string
}

// Outcome is one query's results against one file, handed to the caller
// (single-query runs) or the orchestrator (multi-query runs).
type Outcome struct {
	QueryIndex int
	Results    []resultMatch
	Path       string
	Source     string
	Err        error
}

type resultMatch = orchestrate.Match

// parsed is a successfully parsed candidate forwarded from the
// parser-producer stage to the matcher stage.
type parsed struct {
	path   string
	source []byte
	tree   *tsengine.Tree
}

// Options configures a pipeline run.
type Options struct {
	IsCPP   bool
	Workers int
}

// Run discovers files under candidates, parses survivors of the
// identifier screen, matches every query against each, and returns a
// channel of Outcomes: one per (query, file) pair for multi-query runs,
// or the single query's own outcomes when len(queries) == 1.
func Run(ctx context.Context, candidates <-chan discover.Result, queries []Query, opts Options) <-chan Outcome {
	out := make(chan Outcome, 256)

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	parsedCh := make(chan parsed, 256)

	var parseWG sync.WaitGroup
	for i := 0; i < workers; i++ {
		parseWG.Add(1)
		go func() {
			defer parseWG.Done()
			producer(ctx, candidates, parsedCh, queries, opts)
		}()
	}
	go func() {
		parseWG.Wait()
		close(parsedCh)
	}()

	var matchWG sync.WaitGroup
	for i := 0; i < workers; i++ {
		matchWG.Add(1)
		go func() {
			defer matchWG.Done()
			matcher(ctx, parsedCh, out, queries)
		}()
	}
	go func() {
		matchWG.Wait()
		close(out)
	}()

	return out
}

// producer parses each candidate that survives the identifier screen and
// forwards it to the matcher stage. Parser instances are not reused
// across goroutines, consistent with spec.md §5's "thread-local parser
// instances are recommended" — tsengine.Parse builds a fresh parser per
// call, so there is no shared-parser state to worry about.
func producer(ctx context.Context, candidates <-chan discover.Result, out chan<- parsed, queries []Query, opts Options) {
	for c := range candidates {
		if c.Err != nil {
			continue
		}
		path := c.Candidate.Path
		src, err := readFile(path)
		if err != nil {
			continue
		}
		if !anyQueryMayMatch(queries, src) {
			continue
		}

		tree, err := tsengine.Parse(ctx, src, opts.IsCPP)
		if err != nil {
			continue
		}

		select {
		case out <- parsed{path: path, source: src, tree: tree}:
		case <-ctx.Done():
			return
		}
	}
}

// anyQueryMayMatch rejects a file early when every query has at least one
// required identifier and none of them occur anywhere in the source.
func anyQueryMayMatch(queries []Query, src []byte) bool {
	text := string(src)
	for _, q := range queries {
		if len(q.Identifiers) == 0 {
			return true
		}
		for _, id := range q.Identifiers {
			if strings.Contains(text, id) {
				return true
			}
		}
	}
	return false
}

func matcher(ctx context.Context, in <-chan parsed, out chan<- Outcome, queries []Query) {
	for p := range in {
		source := string(p.source)
		for i, q := range queries {
			results := q.Compiled.Matches(p.tree.RootNode(), source)
			matches := make([]resultMatch, len(results))
			for j, r := range results {
				matches[j] = orchestrate.Match{QueryIndex: i, Result: r, Source: source, Location: p.path}
			}

			select {
			case out <- Outcome{QueryIndex: i, Results: matches, Path: p.path, Source: source}:
			case <-ctx.Done():
				return
			}
		}
	}
}
