package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	fedcat "github.com/kailas-cloud/fedcat/pkg/sdk"
)

func newResourceCmd(a *app) *cobra.Command {
	var (
		req    fedcat.ResourceRequest
		output string
	)
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Download a product or derived resource",
		Long: `Resource retrieves the payload named by exactly one of --id, --uri or --derived.

  fedcatctl resource --id doc-1 -o doc-1.pdf
  fedcatctl resource --id doc-1 --qualifier preview --offset 1024`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client()
			if err != nil {
				return err
			}
			res, err := c.Resource(cmd.Context(), req)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(res.Data)
				return err
			}
			if err := os.WriteFile(output, res.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: %d bytes of %s from %s (cache %s)\n",
				output, len(res.Data), res.MimeType, res.SourceID, cacheLabel(res.CacheHit))
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&req.ID, "id", "", "record id")
	fl.StringVar(&req.URI, "uri", "", "product URI")
	fl.StringVar(&req.Derived, "derived", "", "derived resource URI")
	fl.StringVar(&req.Qualifier, "qualifier", "", "derived resource of the record")
	fl.StringVar(&req.Source, "source", "", "retrieve from this source only")
	fl.BoolVar(&req.Local, "local", false, "retrieve from the server's local catalog only")
	fl.Int64Var(&req.Offset, "offset", 0, "skip this many leading bytes")
	fl.StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.MarkFlagsMutuallyExclusive("id", "uri", "derived")
	cmd.MarkFlagsOneRequired("id", "uri", "derived")
	cmd.MarkFlagsMutuallyExclusive("source", "local")
	return cmd
}

func cacheLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
