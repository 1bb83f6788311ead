package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newLabelsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "labels",
		Short: "Print the label table, promotions and sequence labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			set, err := a.cfg.LabelSet()
			if err != nil {
				return err
			}
			t := set.Table

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tLABEL\tPATH\tPROMOTES TO")
			for _, l := range t.Labels() {
				path := "static"
				if set.Sequence.Contains(l) {
					path = "sequence"
				}
				promoted := ""
				if to, ok := set.Promotions.Promote(l); ok {
					promoted = t.Name(to)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", l, t.Name(l), path, promoted)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			var pairs []string
			for _, p := range set.Promotions.Pairs() {
				pairs = append(pairs, t.Name(p[0])+"→"+t.Name(p[1]))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n%d labels, %d promotions: %s\n",
				t.Len(), len(pairs), strings.Join(pairs, " "))
			return nil
		},
	}
}
