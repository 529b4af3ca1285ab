package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"querykit/internal/csvload"
	"querykit/internal/storage"
	"querykit/pkg/schema"
)

func newLoadCmd(a *app) *cobra.Command {
	var (
		table     string
		batchSize int
		trim      bool
		create    bool
		o         inferOptions
	)
	cmd := &cobra.Command{
		Use:   "load <csv>",
		Short: "Bulk-load a CSV file into a table",
		Long: "Bulk-load a CSV file into a table. The header row names the columns.\n" +
			"Backends with a native bulk path use it; the others get batched multi-row INSERTs.\n" +
			"With --create a missing table is created from the inferred column types first.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if table == "" {
				return fmt.Errorf("load: --table is required")
			}
			if batchSize <= 0 {
				batchSize = a.cfg.Load.BatchSize
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("load: %w", err)
			}
			defer closeQuietly(f)

			r, err := csvload.NewReader(f, a.csvOptions(trim))
			if err != nil {
				return fmt.Errorf("load %s: %w", args[0], err)
			}
			if o.normalize {
				if err := r.NormalizeColumns(); err != nil {
					return fmt.Errorf("load %s: %w", args[0], err)
				}
			}

			ctx := cmd.Context()
			repo, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			if create {
				if err := a.ensureTable(ctx, repo, args[0], table, o); err != nil {
					return fmt.Errorf("load %s: %w", args[0], err)
				}
			}

			start := time.Now()
			a.log.InfoContext(ctx, "load: started", "file", args[0], "table", table, "columns", len(r.Columns()), "batch_size", batchSize)
			n, err := r.Load(ctx, a.log, batchSize, storage.CopyFnFor(repo, table, a.log))
			if err != nil {
				return fmt.Errorf("load %s: %d rows loaded before error: %w", args[0], n, err)
			}
			a.log.InfoContext(ctx, "load: completed", "rows", n, "elapsed", time.Since(start).Truncate(time.Millisecond))
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d rows into %s\n", n, table)
			return nil
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "target table")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per batch; defaults to load.batch_size")
	cmd.Flags().BoolVar(&trim, "trim", false, "trim white space around fields")
	cmd.Flags().BoolVar(&create, "create", false, "create the table from inferred column types when it does not exist")
	o.bind(cmd)
	return cmd
}

// ensureTable creates table from a sample of path unless it already exists.
func (a *app) ensureTable(ctx context.Context, repo storage.Repository, path, table string, o inferOptions) error {
	sb := schema.New(repo.Dialect(), schema.WithExecutor(repo), schema.WithLogger(a.log))
	exists, err := sb.HasTable(ctx, table)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	t, err := a.inferTable(path, table, o)
	if err != nil {
		return err
	}
	ct := sb.CreateTable(table)
	for _, c := range t.Columns {
		ct.AddColumnMap(c)
	}
	stmts, err := ct.Statements()
	if err != nil {
		return err
	}
	if err := sb.Apply(ctx, stmts...); err != nil {
		return err
	}
	a.log.InfoContext(ctx, "load: table created", "table", table, "columns", len(t.Columns))
	return nil
}
