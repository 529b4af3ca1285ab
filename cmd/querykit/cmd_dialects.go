package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"querykit/internal/storage"
	"querykit/pkg/dialect"
)

func newDialectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "dialects",
		Short:       "List the supported dialects and their aliases",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{annotNoConnection: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			backends := map[string]bool{}
			for _, k := range storage.ListKinds() {
				backends[k] = true
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tALIASES\tBACKEND")
			for _, name := range dialect.List() {
				d := dialect.MustGet(string(name))
				backend := "-"
				if backends[string(name)] {
					backend = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", name, strings.Join(d.Aliases, ", "), backend)
			}
			return w.Flush()
		},
	}
}
