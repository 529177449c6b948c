package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxhq/cq/internal/history"
)

// historyCmd implements `cq history`, the ambient run-history inspector
// supplementing spec.md's distilled command surface (§6.3).
func historyCmd(dsn string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past cq invocations",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Connect(dsn, false)
			if err != nil {
				return fmt.Errorf("opening history store: %w", err)
			}
			defer store.Close()

			runs, err := store.List(limit)
			if err != nil {
				return err
			}

			for _, r := range runs {
				fmt.Fprintf(os.Stdout, "%s\t%s\tmatches=%d\t%dms\t%s\n",
					r.StartedAt.Format("2006-01-02 15:04:05"), r.Path, r.Matches, r.DurationMS, r.Pattern)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}
