package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"querykit/internal/plan"
)

func newApplyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <plan>",
		Short: "Create the tables of a plan and run its queries against the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			repo, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			start := time.Now()
			results, err := plan.Apply(ctx, p, repo.Dialect(), repo, a.log)
			if werr := writeResults(cmd.OutOrStdout(), results); werr != nil && err == nil {
				err = werr
			}
			if err != nil {
				return fmt.Errorf("apply %s: %w", args[0], err)
			}
			a.log.InfoContext(ctx, "apply: completed", "plan", args[0], "steps", len(results), "elapsed", time.Since(start).Truncate(time.Millisecond))
			return nil
		},
	}
}

// writeResults prints one summary line per step, then the rows of every
// select as JSON lines.
func writeResults(w io.Writer, results []plan.Result) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tVERB\tROWS")
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", r.Source, r.Verb, r.Rows)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, r := range results {
		if r.Verb != plan.VerbSelect {
			continue
		}
		fmt.Fprintf(w, "-- %s\n", r.Source)
		for _, row := range r.Data {
			if err := enc.Encode(row); err != nil {
				return err
			}
		}
	}
	return nil
}
