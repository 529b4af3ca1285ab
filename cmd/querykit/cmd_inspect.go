package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"querykit/pkg/schema"
)

func newInspectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Read schema information from the database",
	}

	// withSchema opens the database for the duration of fn.
	withSchema := func(ctx context.Context, fn func(*schema.Builder) error) error {
		repo, err := a.open(ctx)
		if err != nil {
			return err
		}
		defer repo.Close()
		return fn(schema.New(repo.Dialect(), schema.WithExecutor(repo), schema.WithLogger(a.log)))
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "tables",
			Short: "List the tables of the current database",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSchema(cmd.Context(), func(sb *schema.Builder) error {
					tables, err := sb.Tables(cmd.Context())
					if err != nil {
						return err
					}
					for _, t := range tables {
						fmt.Fprintln(cmd.OutOrStdout(), t)
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "describe <table>",
			Short: "Print the columns of a table as JSON lines",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSchema(cmd.Context(), func(sb *schema.Builder) error {
					rows, err := sb.Describe(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return writeJSONLines(cmd, rows)
				})
			},
		},
		&cobra.Command{
			Use:   "indexes <table>",
			Short: "Print the indexes of a table as JSON lines",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSchema(cmd.Context(), func(sb *schema.Builder) error {
					rows, err := sb.Indexes(cmd.Context(), args[0])
					if err != nil {
						return err
					}
					return writeJSONLines(cmd, rows)
				})
			},
		},
	)
	return cmd
}

func writeJSONLines(cmd *cobra.Command, rows []map[string]any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, r := range rows {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
