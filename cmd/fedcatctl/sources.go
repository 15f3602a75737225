package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newSourcesCmd(a *app) *cobra.Command {
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "sources [id...]",
		Short: "Describe federated sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			sources, err := c.Sources(cmd.Context(), args...)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(cmd, sources)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tVERSION\tAVAILABLE\tCONTENT TYPES")
			for _, s := range sources {
				fmt.Fprintf(tw, "%s\t%s\t%t\t%s\n", s.ID, s.Version, s.Available, strings.Join(s.ContentTypes, ","))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON")
	return cmd
}
