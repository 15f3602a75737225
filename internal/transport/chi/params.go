package chi

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	domres "github.com/kailas-cloud/fedcat/internal/domain/resource"
	"github.com/kailas-cloud/fedcat/internal/domain/search/filter"
	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
)

const rangePrefix = "bytes="

var errNoPredicate = errors.New("at least one of q, eq or like is required")

// queryFromParams builds a Query from URL parameters:
//
//	q=<text>            free text over title and attributes
//	eq=<key>:<value>    exact attribute match (repeatable)
//	like=<key>:<text>   substring attribute match (repeatable)
//	not=<key>:<value>   excluded exact match (repeatable)
//	start, size, sort=[-]<attr>, timeout=<duration>, count=<bool>
func queryFromParams(v url.Values, defaultTimeout time.Duration) (query.Query, error) {
	var must, mustNot []filter.Condition

	if q := strings.TrimSpace(v.Get("q")); q != "" {
		c, err := filter.NewLike(filter.AnyText, q)
		if err != nil {
			return query.Query{}, fmt.Errorf("q: %w", err)
		}
		must = append(must, c)
	}
	for _, raw := range v["eq"] {
		c, err := keyed(raw, filter.NewMatch)
		if err != nil {
			return query.Query{}, fmt.Errorf("eq: %w", err)
		}
		must = append(must, c)
	}
	for _, raw := range v["like"] {
		c, err := keyed(raw, filter.NewLike)
		if err != nil {
			return query.Query{}, fmt.Errorf("like: %w", err)
		}
		must = append(must, c)
	}
	for _, raw := range v["not"] {
		c, err := keyed(raw, filter.NewMatch)
		if err != nil {
			return query.Query{}, fmt.Errorf("not: %w", err)
		}
		mustNot = append(mustNot, c)
	}
	if len(must) == 0 {
		return query.Query{}, errNoPredicate
	}

	expr, err := filter.NewExpression(must, nil, mustNot)
	if err != nil {
		return query.Query{}, fmt.Errorf("filter: %w", err)
	}

	start, err := optionalInt(v, "start")
	if err != nil {
		return query.Query{}, err
	}
	size, err := optionalInt(v, "size")
	if err != nil {
		return query.Query{}, err
	}

	timeout := defaultTimeout
	if raw := v.Get("timeout"); raw != "" {
		timeout, err = time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return query.Query{}, fmt.Errorf("timeout must be a positive duration, got %q", raw)
		}
	}

	opts := []query.Option{query.WithPaging(start, size), query.WithTimeout(timeout)}
	if s := v.Get("sort"); s != "" {
		opts = append(opts, query.WithSort(query.SortBy{
			Attribute:  strings.TrimPrefix(s, "-"),
			Descending: strings.HasPrefix(s, "-"),
		}))
	}
	if raw := v.Get("count"); raw != "" {
		count, err := strconv.ParseBool(raw)
		if err != nil {
			return query.Query{}, fmt.Errorf("count must be a boolean, got %q", raw)
		}
		if count {
			opts = append(opts, query.WithTotalCount())
		}
	}

	q, err := query.New(expr, opts...)
	if err != nil {
		return query.Query{}, fmt.Errorf("query: %w", err)
	}
	return q, nil
}

func keyed(raw string, build func(key, value string) (filter.Condition, error)) (filter.Condition, error) {
	key, value, ok := strings.Cut(raw, ":")
	if !ok {
		return filter.Condition{}, fmt.Errorf("expected key:value, got %q", raw)
	}
	return build(key, value)
}

func optionalInt(v url.Values, name string) (int, error) {
	raw := v.Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", name, raw)
	}
	return n, nil
}

// resourceFromParams builds a resource request from exactly one of id, uri or derived.
func resourceFromParams(r *http.Request) (domres.Request, error) {
	v := r.URL.Query()

	var kind domres.Kind
	var value string
	set := 0
	for _, p := range []struct {
		name string
		kind domres.Kind
	}{
		{"id", domres.ByID},
		{"uri", domres.ByProductURI},
		{"derived", domres.ByDerivedURI},
	} {
		if s := v.Get(p.name); s != "" {
			kind, value = p.kind, s
			set++
		}
	}
	if set != 1 {
		return domres.Request{}, errors.New("exactly one of id, uri or derived is required")
	}

	props := make(map[string]any)
	if q := v.Get("qualifier"); q != "" {
		props[domres.PropQualifier] = q
	}
	if skip, ok := bytesToSkip(r.Header.Get("Range")); ok {
		props[domres.PropBytesToSkip] = skip
	}
	return domres.NewRequest(kind, value, props)
}

// bytesToSkip understands the open-ended form "bytes=N-". Other range forms
// are ignored and the full resource is served.
func bytesToSkip(header string) (int64, bool) {
	rng, ok := strings.CutPrefix(strings.TrimSpace(header), rangePrefix)
	if !ok {
		return 0, false
	}
	start, ok := strings.CutSuffix(rng, "-")
	if !ok || strings.Contains(start, ",") {
		return 0, false
	}
	n, err := strconv.ParseInt(start, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
