package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func run(t *testing.T, h http.HandlerFunc, args ...string) (string, string, error) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs(append([]string{"--server", srv.URL, "--api-key", "k1"}, args...))
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestQueryCmd(t *testing.T) {
	out, errOut, err := run(t, func(w http.ResponseWriter, r *http.Request) {
		v := r.URL.Query()
		if v.Get("q") != "harbour" || v.Get("eq") != "region:north" || v.Get("sort") != "-modified" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		if r.Header.Get("Authorization") != "Bearer k1" {
			t.Errorf("missing api key")
		}
		_, _ = w.Write([]byte(`{"request_id":"r1","hits":3,"complete":false,
			"results":[{"id":"doc-1","source":"fedcat","title":"Harbour survey","score":0.5}],
			"details":[{"source":"s2","error":"source unavailable"}]}`))
	}, "query", "--text", "harbour", "--eq", "region:north", "--sort=-modified")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if !strings.Contains(out, "doc-1") || !strings.Contains(out, "Harbour survey") {
		t.Errorf("missing result row:\n%s", out)
	}
	if !strings.Contains(out, "1 of 3 hits (incomplete)") {
		t.Errorf("missing summary:\n%s", out)
	}
	if !strings.Contains(errOut, "source s2: source unavailable") {
		t.Errorf("missing source detail on stderr: %q", errOut)
	}
}

func TestQueryCmd_BadPair(t *testing.T) {
	_, _, err := run(t, func(http.ResponseWriter, *http.Request) {
		t.Error("request should not be sent")
	}, "query", "--eq", "novalue")
	if err == nil || !strings.Contains(err.Error(), "expected key:value") {
		t.Fatalf("expected pair error, got %v", err)
	}
}

func TestSourcesCmd(t *testing.T) {
	out, _, err := run(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("source") != "s1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"sources":[{"id":"s1","version":"2.1","available":true,"content_types":["text/plain"]}]}`))
	}, "sources", "s1")
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if !strings.Contains(out, "s1") || !strings.Contains(out, "text/plain") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestResourceCmd_ToFile(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "doc-1.txt")
	_, errOut, err := run(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "doc-1" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("X-Source-ID", "s1")
		w.Header().Set("X-Cache", "miss")
		_, _ = w.Write([]byte("0123456789"))
	}, "resource", "--id", "doc-1", "-o", dst)
	if err != nil {
		t.Fatalf("resource: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(data) != "0123456789" {
		t.Errorf("unexpected payload %q", data)
	}
	if !strings.Contains(errOut, "10 bytes of text/plain from s1 (cache miss)") {
		t.Errorf("unexpected summary %q", errOut)
	}
}

func TestResourceCmd_RequiresLocator(t *testing.T) {
	_, _, err := run(t, func(http.ResponseWriter, *http.Request) {
		t.Error("request should not be sent")
	}, "resource")
	if err == nil {
		t.Fatal("expected error without --id, --uri or --derived")
	}
}

func TestHealthCmd(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"ok", http.StatusOK, `{"status":"ok","checks":{"source:s1":"ok"},"version":{"version":"1.0"}}`, false},
		{"degraded", http.StatusServiceUnavailable, `{"status":"degraded","checks":{"source:s1":"error"}}`, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out, _, err := run(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}, "health")
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if !strings.Contains(out, "source:s1") {
				t.Errorf("missing check line:\n%s", out)
			}
		})
	}
}
