package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"querykit/internal/plan"
	"querykit/pkg/dialect"
)

func newRenderCmd(a *app) *cobra.Command {
	var (
		all    bool
		params bool
	)
	cmd := &cobra.Command{
		Use:         "render <plan>",
		Short:       "Print the SQL of a plan for one dialect or for all of them",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotNoConnection: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.ReadFile(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if all {
				var names []string
				for _, n := range dialect.List() {
					names = append(names, string(n))
				}
				rendered, err := plan.RenderAll(cmd.Context(), p, names, params)
				if err != nil {
					return err
				}
				for i, r := range rendered {
					if i > 0 {
						fmt.Fprintln(out)
					}
					fmt.Fprintf(out, "-- dialect: %s\n", r.Dialect)
					if err := writeStatements(out, r.Statements); err != nil {
						return err
					}
				}
				return nil
			}

			if a.cfg.Dialect == "" {
				return fmt.Errorf("render: a dialect is required (use --dialect or --all)")
			}
			d, err := dialect.Get(a.cfg.Dialect)
			if err != nil {
				return err
			}
			stmts, err := plan.Render(p, d, params)
			if err != nil {
				return err
			}
			return writeStatements(out, stmts)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "render for every dialect")
	cmd.Flags().BoolVar(&params, "params", false, "emit placeholders and print bind arguments")
	return cmd
}

func writeStatements(w io.Writer, stmts []plan.Statement) error {
	for _, st := range stmts {
		fmt.Fprintf(w, "-- %s (%s)\n%s;\n", st.Source, st.Verb, st.SQL)
		if len(st.Args) > 0 {
			b, err := json.Marshal(st.Args)
			if err != nil {
				return fmt.Errorf("render: %s: args: %w", st.Source, err)
			}
			fmt.Fprintf(w, "-- args: %s\n", b)
		}
	}
	return nil
}
