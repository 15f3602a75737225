package fedcat

import (
	"context"
	"fmt"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Query selects records across the federation.
// At least one of Text, Equals or Like is required.
type Query struct {
	Text    string            // free text over title and attributes
	Equals  map[string]string // exact attribute matches
	Like    map[string]string // substring attribute matches
	Exclude map[string]string // records matching any of these are dropped

	Start int
	Size  int

	SortBy     string
	Descending bool

	// Timeout bounds how long the server waits for sources. Zero uses the server default.
	Timeout time.Duration
	// Count asks sources for exact total hit counts.
	Count bool
}

func (q Query) values() (url.Values, error) {
	if strings.TrimSpace(q.Text) == "" && len(q.Equals) == 0 && len(q.Like) == 0 {
		return nil, fmt.Errorf("%w: at least one of Text, Equals or Like is required", ErrBadRequest)
	}
	if q.Start < 0 || q.Size < 0 {
		return nil, fmt.Errorf("%w: Start and Size must be non-negative", ErrBadRequest)
	}

	v := url.Values{}
	if q.Text != "" {
		v.Set("q", q.Text)
	}
	addKeyed(v, "eq", q.Equals)
	addKeyed(v, "like", q.Like)
	addKeyed(v, "not", q.Exclude)

	if q.Start > 0 {
		v.Set("start", strconv.Itoa(q.Start))
	}
	if q.Size > 0 {
		v.Set("size", strconv.Itoa(q.Size))
	}
	if q.SortBy != "" {
		s := q.SortBy
		if q.Descending {
			s = "-" + s
		}
		v.Set("sort", s)
	}
	if q.Timeout > 0 {
		v.Set("timeout", q.Timeout.String())
	}
	if q.Count {
		v.Set("count", "true")
	}
	return v, nil
}

// addKeyed encodes key:value pairs in key order so URLs are stable.
func addKeyed(v url.Values, name string, m map[string]string) {
	for _, k := range slices.Sorted(maps.Keys(m)) {
		v.Add(name, k+":"+m[k])
	}
}

// Query runs a federated query and waits for the aggregated response.
func (c *Client) Query(ctx context.Context, q Query) (QueryResult, error) {
	v, err := q.values()
	if err != nil {
		return QueryResult{}, err
	}

	var res QueryResult
	if err := c.getJSON(ctx, "query", apiPrefix+"/query", v, &res); err != nil {
		return QueryResult{}, err
	}
	return res, nil
}

// Sources describes the named sources, or every federated source when ids is empty.
func (c *Client) Sources(ctx context.Context, ids ...string) ([]Source, error) {
	var v url.Values
	if len(ids) > 0 {
		v = url.Values{"source": {strings.Join(ids, ",")}}
	}

	var body struct {
		Sources []Source `json:"sources"`
	}
	if err := c.getJSON(ctx, "sources", apiPrefix+"/sources", v, &body); err != nil {
		return nil, err
	}
	return body.Sources, nil
}
