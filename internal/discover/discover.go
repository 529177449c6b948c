// Package discover walks one or more root paths (or reads a file list
// from stdin) and produces the candidate files a query run should parse,
// filtered by extension allow-list and --include/--exclude regexes.
// Grounded on termfx-morfx/core/filewalker.go's FileWalker: a worker pool
// sized runtime.NumCPU()*2 consuming a paths channel fed by a recursive
// scanner goroutine, plus its doublestar-based pattern matching, here
// repurposed as default vendor/build ignore globs rather than user
// include/exclude (those are plain regexes per spec.md §6.3).
package discover

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// DefaultIgnoreGlobs are skipped during a directory walk regardless of
// extension filters, the way termfx-morfx's FileWalker treats its own
// exclude patterns as always-on vendor/build noise.
var DefaultIgnoreGlobs = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/vendor/**",
	"**/.svn/**",
	"**/.hg/**",
}

// Options configures a walk.
type Options struct {
	// Extensions is the allow-list, without leading dots (e.g. "c", "h").
	Extensions []string
	Include    []*regexp.Regexp
	Exclude    []*regexp.Regexp
	Workers    int
}

// DefaultExtensions returns the C or C++ default extension set per
// spec.md §6.2.
func DefaultExtensions(isCPP bool) []string {
	if isCPP {
		return []string{"cc", "cpp", "h", "cxx", "hpp"}
	}
	return []string{"c", "h"}
}

// Candidate is a single file queued for parsing.
type Candidate struct {
	Path string
}

// Result carries either a discovered candidate or a walk error (a failure
// reading the `-` stdin file list; unreadable directories are skipped
// without one); the pipeline skips results that carry an error.
type Result struct {
	Candidate Candidate
	Err       error
}

func extMatches(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	got := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	for _, e := range exts {
		if strings.ToLower(e) == got {
			return true
		}
	}
	return false
}

func passesFilters(path string, opts Options) bool {
	if !extMatches(path, opts.Extensions) {
		return false
	}
	for _, re := range opts.Exclude {
		if re.MatchString(path) {
			return false
		}
	}
	if len(opts.Include) > 0 {
		ok := false
		for _, re := range opts.Include {
			if re.MatchString(path) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

func ignored(path string) bool {
	for _, g := range DefaultIgnoreGlobs {
		if matched, err := doublestar.PathMatch(g, filepath.ToSlash(path)); err == nil && matched {
			return true
		}
	}
	return false
}

// Walk discovers candidate files under roots, or (when roots is exactly
// ["-"]) reads newline-separated paths from stdin. Results stream on the
// returned channel as a parallel scanner goroutine feeds a worker pool
// that applies the extension/include/exclude filters, mirroring
// FileWalker's scanner-goroutine + worker-pool split.
func Walk(ctx context.Context, roots []string, opts Options) <-chan Result {
	out := make(chan Result, 1000)

	if len(roots) == 1 && roots[0] == "-" {
		go readStdinList(ctx, os.Stdin, opts, out)
		return out
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	paths := make(chan string, 1000)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range paths {
				if passesFilters(p, opts) {
					select {
					case out <- Result{Candidate: Candidate{Path: p}}:
					case <-ctx.Done():
						return
					}
				}
			}
		}()
	}

	go func() {
		defer close(paths)
		for _, root := range roots {
			scan(ctx, root, paths)
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	return out
}

func scan(ctx context.Context, dir string, paths chan<- string) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		// A root given directly as a file, not a directory.
		if info, statErr := os.Stat(dir); statErr == nil && !info.IsDir() {
			if !ignored(dir) {
				paths <- dir
			}
		}
		return
	}

	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if ignored(full) {
			continue
		}
		if e.IsDir() {
			scan(ctx, full, paths)
			continue
		}
		select {
		case <-ctx.Done():
			return
		case paths <- full:
		}
	}
}

func readStdinList(ctx context.Context, r io.Reader, opts Options, out chan<- Result) {
	defer close(out)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !passesFilters(line, opts) {
			continue
		}
		select {
		case out <- Result{Candidate: Candidate{Path: line}}:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		select {
		case out <- Result{Err: err}:
		case <-ctx.Done():
		}
	}
}
