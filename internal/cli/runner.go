// Package cli wires internal/normalize, internal/compiler,
// internal/discover, internal/pipeline, internal/orchestrate and
// internal/result into the end-to-end command cmd/cq exposes. Grounded on
// termfx-morfx's own cobra-driven worker-pool dispatch
// (demo/cmd/main.go, the teacher's now-removed Runner/dispatcher shape):
// a struct holding the run's flags, a channel-fed worker pool doing the
// actual work, and a single place deciding the process exit code.
package cli

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/oxhq/cq/internal/capture"
	"github.com/oxhq/cq/internal/compiler"
	"github.com/oxhq/cq/internal/discover"
	"github.com/oxhq/cq/internal/history"
	"github.com/oxhq/cq/internal/normalize"
	"github.com/oxhq/cq/internal/orchestrate"
	"github.com/oxhq/cq/internal/pipeline"
	"github.com/oxhq/cq/internal/query"
	"github.com/oxhq/cq/internal/result"
)

// Options captures the CLI flag surface of spec.md §6.3.
type Options struct {
	Patterns   []string
	Paths      []string
	Regexes    map[string]capture.RegexConstraint
	CPP        bool
	Extensions []string
	Include    []*regexp.Regexp
	Exclude    []*regexp.Regexp
	Before     int
	After      int
	Unique     bool
	OnePerFunc bool
	Force      bool
	ForceColor bool
	Verbosity  int
	HistoryDB  string
	Workers    int
}

var errStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)

// Runner executes one cq invocation end to end.
type Runner struct {
	Opts Options
	Log  *Logger
}

// NewRunner builds a Runner with a level-gated logger derived from the
// -v repeat count.
func NewRunner(opts Options) *Runner {
	return &Runner{Opts: opts, Log: NewLogger(LevelFromCount(opts.Verbosity))}
}

// Run compiles every pattern, discovers and scans matching files, prints
// results, and persists a run-history row per pattern. It returns the
// process exit code: 0 on a clean run (zero or more matches printed), 1 on
// a configuration or compile error.
func (r *Runner) Run(ctx context.Context) int {
	if len(r.Opts.Extensions) == 0 {
		r.Opts.Extensions = discover.DefaultExtensions(r.Opts.CPP)
	}

	queries := make([]pipeline.Query, 0, len(r.Opts.Patterns))
	compiled := make([]*query.CompiledQuery, 0, len(r.Opts.Patterns))
	for _, pattern := range r.Opts.Patterns {
		cq, err := r.compile(pattern)
		if err != nil {
			fmt.Fprintln(os.Stderr, errStyle.Render(err.Error()))
			return 1
		}
		compiled = append(compiled, cq)
		queries = append(queries, pipeline.Query{Compiled: cq, Identifiers: cq.Identifiers()})
	}

	if len(queries) == 0 {
		fmt.Fprintln(os.Stderr, errStyle.Render("no patterns given"))
		return 1
	}

	for name := range r.Opts.Regexes {
		used := false
		for _, cq := range compiled {
			if _, ok := cq.Variables()["$"+name]; ok {
				used = true
			}
		}
		if !used {
			fmt.Fprintln(os.Stderr, errStyle.Render(fmt.Sprintf("regex constraint refers to unknown variable $%s", name)))
			return 1
		}
	}

	candidates := discover.Walk(ctx, r.Opts.Paths, discover.Options{
		Extensions: r.Opts.Extensions,
		Include:    r.Opts.Include,
		Exclude:    r.Opts.Exclude,
		Workers:    r.Opts.Workers,
	})

	start := time.Now()
	outcomes := pipeline.Run(ctx, candidates, queries, pipeline.Options{IsCPP: r.Opts.CPP, Workers: r.Opts.Workers})

	var matchCount int
	if len(queries) == 1 {
		matchCount = r.runSingle(outcomes)
	} else {
		matchCount = r.runMulti(outcomes, len(queries))
	}

	r.recordHistory(matchCount, time.Since(start))
	return 0
}

func (r *Runner) compile(pattern string) (*query.CompiledQuery, error) {
	normalized, err := normalize.Normalize(pattern, r.Opts.CPP, r.Opts.Force)
	if err != nil {
		return nil, err
	}
	return compiler.Compile(normalized.Pattern, normalized.Tree.RootNode(), r.Opts.CPP, r.Opts.Regexes)
}

// runSingle prints each single-query outcome's results directly as they
// arrive, the way spec.md §5 describes for single-query runs.
func (r *Runner) runSingle(outcomes <-chan pipeline.Outcome) int {
	seenFunc := map[string]map[result.Range]bool{}
	count := 0

	for o := range outcomes {
		for _, m := range o.Results {
			if !r.accept(m.Result, m.Source, o.Path, seenFunc) {
				continue
			}
			fmt.Println(m.Result.Display(m.Source, r.Opts.Before, r.Opts.After, false))
			count++
		}
	}
	return count
}

// runMulti drains every query's results into per-query buckets, joins
// them per spec.md §4.7, and prints one chain per retained combination.
func (r *Runner) runMulti(outcomes <-chan pipeline.Outcome, numQueries int) int {
	buckets := make([][]orchestrate.Match, numQueries)
	seenFunc := map[string]map[result.Range]bool{}

	for o := range outcomes {
		for _, m := range o.Results {
			if !r.accept(m.Result, m.Source, o.Path, seenFunc) {
				continue
			}
			buckets[m.QueryIndex] = append(buckets[m.QueryIndex], m)
		}
	}

	joined := orchestrate.Join(buckets)
	chains := orchestrate.Combine(joined)

	for _, chain := range chains {
		for _, m := range chain {
			fmt.Println(m.Result.Display(m.Source, r.Opts.Before, r.Opts.After, false))
		}
		fmt.Println("--")
	}
	return len(chains)
}

// accept applies the -u (unique metavariable bindings) and -l (one match
// per enclosing function) post-filters.
func (r *Runner) accept(res result.QueryResult, source, path string, seenFunc map[string]map[result.Range]bool) bool {
	if r.Opts.Unique && !uniqueBindings(res, source) {
		return false
	}
	if r.Opts.OnePerFunc {
		seen, ok := seenFunc[path]
		if !ok {
			seen = map[result.Range]bool{}
			seenFunc[path] = seen
		}
		if seen[res.FunctionRange()] {
			return false
		}
		seen[res.FunctionRange()] = true
	}
	return true
}

func uniqueBindings(res result.QueryResult, source string) bool {
	values := make(map[string]string, len(res.Vars))
	seen := make(map[string]bool, len(res.Vars))
	for name := range res.Vars {
		v, ok := res.Value(name, source)
		if !ok {
			continue
		}
		if seen[v] {
			return false
		}
		seen[v] = true
		values[name] = v
	}
	return true
}

func (r *Runner) recordHistory(matchCount int, elapsed time.Duration) {
	if r.Opts.HistoryDB == "" {
		return
	}
	store, err := history.Connect(r.Opts.HistoryDB, r.Opts.Verbosity >= int(LevelDebug))
	if err != nil {
		r.Log.Infof("history: %v", err)
		return
	}
	defer store.Close()

	for _, p := range r.Opts.Patterns {
		path := "."
		if len(r.Opts.Paths) > 0 {
			path = r.Opts.Paths[0]
		}
		store.Record(p, r.Opts.CPP, path, matchCount, elapsed, nil)
	}
}
