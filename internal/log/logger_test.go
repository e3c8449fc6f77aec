package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJSONLoggerCarriesComponent(t *testing.T) {
	var buf bytes.Buffer
	cfg := ConfigFromEnv("info", "json", ComponentLedger)
	cfg.Output = &buf
	l := New(cfg)

	l.Debug("hidden")
	l.WithComponent(ComponentStorage).Info("saved", FieldVersion, 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected one record, got %q", buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("record is not json: %v", err)
	}
	if rec[FieldComponent] != ComponentStorage || rec[FieldVersion] != float64(3) || rec["msg"] != "saved" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestFromContextAndLogError(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelInfo, Component: ComponentHTTP, Output: &buf}).With(FieldRequestID, "req-1")

	ctx := context.WithValue(context.Background(), LoggerContextKey, l)
	got := FromContext(ctx)
	if got.Component() != ComponentHTTP {
		t.Fatalf("expected request logger, got %+v", got)
	}

	NewStructuredLogger(got).LogError(context.Background(), "boom", errors.New("disk full"), ComponentStorage, OpPersist, nil)
	out := buf.String()
	for _, want := range []string{"request_id=req-1", "error=\"disk full\"", "operation=persist"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in %q", want, out)
		}
	}
	if FromContext(context.Background()).Component() != "unknown" {
		t.Fatalf("expected fallback logger")
	}
}
