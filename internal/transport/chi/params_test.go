package chi

import (
	"net/url"
	"testing"
	"time"

	"github.com/kailas-cloud/fedcat/internal/domain/search/query"
)

func TestBytesToSkip(t *testing.T) {
	tests := []struct {
		header string
		want   int64
		ok     bool
	}{
		{"bytes=100-", 100, true},
		{" bytes=7- ", 7, true},
		{"bytes=0-", 0, false},
		{"bytes=0-99", 0, false},
		{"bytes=-500", 0, false},
		{"bytes=1-,5-", 0, false},
		{"items=1-", 0, false},
		{"", 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.header, func(t *testing.T) {
			got, ok := bytesToSkip(tc.header)
			if got != tc.want || ok != tc.ok {
				t.Errorf("bytesToSkip(%q) = %d, %v; want %d, %v", tc.header, got, ok, tc.want, tc.ok)
			}
		})
	}
}

func TestQueryFromParams(t *testing.T) {
	v := url.Values{
		"q":       {"harbor"},
		"eq":      {"region:north"},
		"not":     {"status:retired"},
		"start":   {"11"},
		"size":    {"5"},
		"sort":    {"-created"},
		"timeout": {"2s"},
		"count":   {"true"},
	}

	q, err := queryFromParams(v, time.Minute)
	if err != nil {
		t.Fatalf("queryFromParams: %v", err)
	}
	if len(q.Filter().Must()) != 2 || len(q.Filter().MustNot()) != 1 {
		t.Errorf("unexpected filter %s", q.Filter())
	}
	if q.StartIndex() != 11 || q.PageSize() != 5 {
		t.Errorf("paging = %d/%d", q.StartIndex(), q.PageSize())
	}
	if q.Sort() != (query.SortBy{Attribute: "created", Descending: true}) {
		t.Errorf("sort = %+v", q.Sort())
	}
	if q.Timeout() != 2*time.Second {
		t.Errorf("timeout = %s", q.Timeout())
	}
	if !q.RequestsTotalCount() {
		t.Error("expected total count requested")
	}
}

func TestQueryFromParams_Defaults(t *testing.T) {
	q, err := queryFromParams(url.Values{"like": {"title:survey"}}, 30*time.Second)
	if err != nil {
		t.Fatalf("queryFromParams: %v", err)
	}
	if q.StartIndex() != query.DefaultStartIndex || q.PageSize() != query.DefaultPageSize {
		t.Errorf("paging = %d/%d", q.StartIndex(), q.PageSize())
	}
	if q.Timeout() != 30*time.Second {
		t.Errorf("timeout = %s", q.Timeout())
	}
}

func TestQueryFromParams_ExclusionOnly(t *testing.T) {
	if _, err := queryFromParams(url.Values{"not": {"a:b"}}, time.Minute); err == nil {
		t.Fatal("expected an error for a query with only exclusions")
	}
}
