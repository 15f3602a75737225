package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"
)

func newHealthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Report server health; exits non-zero unless healthy",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			hs, err := c.Health(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "status: %s (server %s)\n", hs.Status, hs.Version.Version)
			for _, name := range slices.Sorted(maps.Keys(hs.Checks)) {
				fmt.Fprintf(out, "  %s: %s\n", name, hs.Checks[name])
			}
			if hs.Status != "ok" {
				return fmt.Errorf("server is %s", hs.Status)
			}
			return nil
		},
	}
}
