package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	fedcat "github.com/kailas-cloud/fedcat/pkg/sdk"
)

type queryFlags struct {
	text    string
	eq      []string
	like    []string
	not     []string
	start   int
	size    int
	sort    string
	waitFor time.Duration
	count   bool
	jsonOut bool
}

func newQueryCmd(a *app) *cobra.Command {
	f := &queryFlags{}
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a federated query",
		Long: `Query fans out to every federated source and prints the merged results.
Sources that failed or timed out are reported on stderr.

  fedcatctl query --text harbour --eq region:north --size 20 --sort -modified`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q, err := f.query()
			if err != nil {
				return err
			}
			c, err := a.client()
			if err != nil {
				return err
			}
			res, err := c.Query(cmd.Context(), q)
			if err != nil {
				return err
			}
			if f.jsonOut {
				return printJSON(cmd, res)
			}
			printResults(cmd, res)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.text, "text", "", "free text over title and attributes")
	fl.StringArrayVar(&f.eq, "eq", nil, "exact attribute match key:value (repeatable)")
	fl.StringArrayVar(&f.like, "like", nil, "substring attribute match key:value (repeatable)")
	fl.StringArrayVar(&f.not, "not", nil, "exclude records matching key:value (repeatable)")
	fl.IntVar(&f.start, "start", 0, "index of the first result")
	fl.IntVar(&f.size, "size", 0, "page size (server default when 0)")
	fl.StringVar(&f.sort, "sort", "", "sort attribute, prefix with - for descending")
	fl.DurationVar(&f.waitFor, "wait", 0, "how long the server waits for sources")
	fl.BoolVar(&f.count, "count", false, "ask sources for exact hit counts")
	fl.BoolVar(&f.jsonOut, "json", false, "print the raw JSON response")
	return cmd
}

func (f *queryFlags) query() (fedcat.Query, error) {
	eq, err := pairs("eq", f.eq)
	if err != nil {
		return fedcat.Query{}, err
	}
	like, err := pairs("like", f.like)
	if err != nil {
		return fedcat.Query{}, err
	}
	not, err := pairs("not", f.not)
	if err != nil {
		return fedcat.Query{}, err
	}
	return fedcat.Query{
		Text:       f.text,
		Equals:     eq,
		Like:       like,
		Exclude:    not,
		Start:      f.start,
		Size:       f.size,
		SortBy:     strings.TrimPrefix(f.sort, "-"),
		Descending: strings.HasPrefix(f.sort, "-"),
		Timeout:    f.waitFor,
		Count:      f.count,
	}, nil
}

func pairs(flag string, raw []string) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(raw))
	for _, s := range raw {
		k, v, ok := strings.Cut(s, ":")
		if !ok || k == "" {
			return nil, fmt.Errorf("--%s: expected key:value, got %q", flag, s)
		}
		out[k] = v
	}
	return out, nil
}

func printResults(cmd *cobra.Command, res fedcat.QueryResult) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSCORE\tRESOURCE")
	for _, r := range res.Results {
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%s\n", r.ID, r.Title, r.Score, r.ResourceURI)
	}
	_ = tw.Flush()

	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d hits", len(res.Results), res.Hits)
	if !res.Complete {
		fmt.Fprint(cmd.OutOrStdout(), " (incomplete)")
	}
	fmt.Fprintln(cmd.OutOrStdout())

	for _, d := range res.Details {
		if d.Error != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "source %s: %s\n", d.Source, d.Error)
		}
		for _, w := range d.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "source %s: warning: %s\n", d.Source, w)
		}
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
