// Package main is the entry point for fedcatctl, a command-line client for
// the fedcat HTTP API.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	fedcat "github.com/kailas-cloud/fedcat/pkg/sdk"
)

const defaultServer = "http://localhost:8080"

// app carries the persistent flags shared by every subcommand.
type app struct {
	server  string
	apiKey  string
	timeout time.Duration
}

func (a *app) client() (*fedcat.Client, error) {
	return fedcat.New(a.server, fedcat.WithAPIKey(a.apiKey), fedcat.WithTimeout(a.timeout))
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "fedcatctl",
		Short: "Query a fedcat federation from the command line",
		Long: `fedcatctl talks to a running fedcat server. It runs federated queries,
lists sources, downloads resources and reports server health.

FEDCAT_SERVER and FEDCAT_API_KEY provide defaults for --server and --api-key.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVar(&a.server, "server", envOr("FEDCAT_SERVER", defaultServer), "fedcat base url")
	flags.StringVar(&a.apiKey, "api-key", os.Getenv("FEDCAT_API_KEY"), "API key sent as a Bearer token")
	flags.DurationVar(&a.timeout, "timeout", 60*time.Second, "request timeout")

	root.AddCommand(
		newQueryCmd(a),
		newSourcesCmd(a),
		newResourceCmd(a),
		newHealthCmd(a),
		newVersionCmd(),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
