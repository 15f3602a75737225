package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		level   string
		want    zapcore.Level
		wantErr bool
	}{
		{"prod default", "prod", "", zapcore.InfoLevel, false},
		{"local default", "local", "", zapcore.DebugLevel, false},
		{"override", "prod", "warn", zapcore.WarnLevel, false},
		{"unknown env", "staging", "", 0, true},
		{"bad level", "local", "loud", 0, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, err := NewLogger(tc.env, tc.level)
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tc.wantErr)
			}
			if tc.wantErr {
				return
			}
			if !l.Core().Enabled(tc.want) {
				t.Errorf("level %s should be enabled", tc.want)
			}
			if tc.want > zapcore.DebugLevel && l.Core().Enabled(tc.want-1) {
				t.Errorf("level %s should be disabled", tc.want-1)
			}
		})
	}
}

func TestFromContext_Empty(t *testing.T) {
	if l := FromContext(context.Background()); l == nil {
		t.Fatal("expected a no-op logger")
	}
}

func TestOr(t *testing.T) {
	fallback := zap.NewNop()
	if got := Or(context.Background(), fallback); got != fallback {
		t.Error("expected fallback without a request logger")
	}

	req := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), req)
	if got := Or(ctx, fallback); got != req {
		t.Error("expected the request logger")
	}
}

func TestWith_AddsFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	ctx := ContextWithLogger(context.Background(), zap.New(core))
	ctx = With(ctx, zap.String("query_id", "q-1"))

	FromContext(ctx).Info("dispatched")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["query_id"]; got != "q-1" {
		t.Errorf("query_id = %v", got)
	}
}
