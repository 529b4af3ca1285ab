package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"querykit/internal/csvload"
	"querykit/internal/plan"
)

// inferOptions are the flags shared by probe and load --create.
type inferOptions struct {
	sample    int
	normalize bool
}

func (o *inferOptions) bind(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.sample, "sample", csvload.DefaultSampleRows, "records sampled for type inference")
	cmd.Flags().BoolVar(&o.normalize, "normalize", false, "turn header text into lowercase ASCII identifiers")
}

// inferTable samples path and returns a plan table for it.
func (a *app) inferTable(path, table string, o inferOptions) (plan.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return plan.Table{}, err
	}
	defer closeQuietly(f)

	r, err := csvload.NewReader(f, a.csvOptions(false))
	if err != nil {
		return plan.Table{}, err
	}
	if o.normalize {
		if err := r.NormalizeColumns(); err != nil {
			return plan.Table{}, err
		}
	}
	cols, err := r.Infer(o.sample)
	if err != nil {
		return plan.Table{}, err
	}
	return plan.Table{Name: table, Columns: cols}, nil
}

func (a *app) csvOptions(trim bool) csvload.Options {
	return csvload.Options{
		Comma:     a.cfg.Load.CommaRune(),
		Null:      a.cfg.Load.Null,
		TrimSpace: trim,
	}
}

func newProbeCmd(a *app) *cobra.Command {
	var (
		table string
		o     inferOptions
	)
	cmd := &cobra.Command{
		Use:         "probe <csv>",
		Short:       "Infer a plan table from a CSV sample and print it as YAML",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{annotNoConnection: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if table == "" {
				base := filepath.Base(args[0])
				table = csvload.NormalizeName(strings.TrimSuffix(base, filepath.Ext(base)))
			}
			t, err := a.inferTable(args[0], table, o)
			if err != nil {
				return fmt.Errorf("probe %s: %w", args[0], err)
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(plan.Plan{Tables: []plan.Table{t}}); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "table name; defaults to the normalized file name")
	o.bind(cmd)
	return cmd
}
