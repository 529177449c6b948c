// Command cq is a semantic code search tool for C and C++: it compiles
// one or more weggli-style structural patterns and searches a corpus of
// source files for matching regions. Grounded on termfx-morfx's cobra
// usage (demo/cmd/main.go) and original_source/src/cli.rs's flag shape.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/oxhq/cq/internal/capture"
	"github.com/oxhq/cq/internal/cli"
	"github.com/oxhq/cq/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Load()

	var (
		extraPatterns []string
		regexFlags    []string
		isCPP         bool
		extensions    []string
		includeRaw    []string
		excludeRaw    []string
		before        int
		after         int
		unique        bool
		onePerFunc    bool
		force         bool
		forceColor    bool
		verbosity     int
	)

	root := &cobra.Command{
		Use:   "cq PATTERN PATH...",
		Short: "Semantic code search for C and C++",
		Long:  "cq finds structurally matching regions of C/C++ source against one or more weggli-style query patterns.",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns := append([]string{args[0]}, extraPatterns...)
			paths := args[1:]

			regexes, err := parseRegexFlags(regexFlags)
			if err != nil {
				return err
			}

			include, err := compileAll(includeRaw)
			if err != nil {
				return fmt.Errorf("invalid --include pattern: %w", err)
			}
			exclude, err := compileAll(excludeRaw)
			if err != nil {
				return fmt.Errorf("invalid --exclude pattern: %w", err)
			}

			opts := cli.Options{
				Patterns:   patterns,
				Paths:      paths,
				Regexes:    regexes,
				CPP:        isCPP,
				Extensions: extensions,
				Include:    include,
				Exclude:    exclude,
				Before:     before,
				After:      after,
				Unique:     unique,
				OnePerFunc: onePerFunc,
				Force:      force,
				ForceColor: forceColor || cfg.ForceColor,
				Verbosity:  verbosity,
				HistoryDB:  cfg.HistoryDB,
			}
			if !cmd.Flags().Changed("before") {
				opts.Before = cfg.BeforeContext
			}
			if !cmd.Flags().Changed("after") {
				opts.After = cfg.AfterContext
			}

			runner := cli.NewRunner(opts)
			code := runner.Run(cmdContext())
			if code != 0 {
				return exitError(code)
			}
			return nil
		},
	}

	root.Flags().StringArrayVarP(&extraPatterns, "pattern", "p", nil, "add another query pattern")
	root.Flags().StringArrayVarP(&regexFlags, "regex", "R", nil, "var[!]=regex constraint for $var")
	root.Flags().BoolVarP(&isCPP, "cpp", "X", false, "enable C++ dialect")
	root.Flags().StringArrayVarP(&extensions, "ext", "e", nil, "extension filter override (repeatable)")
	root.Flags().StringArrayVar(&includeRaw, "include", nil, "path include regex (repeatable)")
	root.Flags().StringArrayVar(&excludeRaw, "exclude", nil, "path exclude regex (repeatable)")
	root.Flags().IntVarP(&after, "after", "A", 5, "lines of context after a match")
	root.Flags().IntVarP(&before, "before", "B", 5, "lines of context before a match")
	root.Flags().BoolVarP(&unique, "unique", "u", false, "enforce uniqueness of metavariable bindings within a match")
	root.Flags().BoolVarP(&onePerFunc, "one-per-function", "l", false, "emit at most one match per enclosing function")
	root.Flags().BoolVarP(&force, "force", "f", false, "accept queries with parse errors")
	root.Flags().BoolVarP(&forceColor, "force-color", "C", false, "force color output")
	root.Flags().CountVarP(&verbosity, "verbose", "v", "increase verbosity (repeatable)")

	root.AddCommand(historyCmd(cfg.HistoryDB))
	root.SilenceErrors = true
	root.SilenceUsage = true

	ignoreBrokenPipe()

	if err := root.Execute(); err != nil {
		if ec, ok := err.(exitError); ok {
			return int(ec)
		}
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

type exitError int

func (e exitError) Error() string { return "" }

func parseRegexFlags(flags []string) (map[string]capture.RegexConstraint, error) {
	out := map[string]capture.RegexConstraint{}
	for _, f := range flags {
		name, pattern, negated, err := splitRegexFlag(f)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex for %s: %w", name, err)
		}
		out[name] = capture.RegexConstraint{Negated: negated, Regex: re}
	}
	return out, nil
}

func splitRegexFlag(f string) (name, pattern string, negated bool, err error) {
	idx := strings.Index(f, "=")
	if idx < 0 {
		return "", "", false, fmt.Errorf("malformed -R value %q, expected var[!]=regex", f)
	}
	name = f[:idx]
	pattern = f[idx+1:]
	if strings.HasSuffix(name, "!") {
		negated = true
		name = strings.TrimSuffix(name, "!")
	}
	name = strings.TrimPrefix(name, "$")
	return name, pattern, negated, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, re)
	}
	return out, nil
}

// ignoreBrokenPipe ignores SIGPIPE so writing to a closed pager pipe exits
// cleanly rather than crashing cq, the idiomatic Go substitute for
// original_source/src/main.rs's reset_signal_pipe_handler (Go has no
// SIG_DFL re-registration for SIGPIPE the way Rust's nix crate does).
func ignoreBrokenPipe() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGPIPE)
	go func() {
		for range c {
		}
	}()
}

func cmdContext() context.Context {
	return context.Background()
}
