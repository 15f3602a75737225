package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/fedcat/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the fedcatctl version",
		Run: func(cmd *cobra.Command, _ []string) {
			v := version.Get()
			fmt.Fprintf(cmd.OutOrStdout(), "fedcatctl %s (%s, %s)\n", v.Version, v.Commit, v.Date)
		},
	}
}
