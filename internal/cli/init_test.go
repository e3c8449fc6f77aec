package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"finctl/internal/config"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.env")
	if err := os.WriteFile(path, []byte("FINCTL_TEST_ENV=loaded\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("FINCTL_TEST_ENV") })

	if err := LoadEnvFile(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("FINCTL_TEST_ENV"); got != "loaded" {
		t.Fatalf("expected variable from env file, got %q", got)
	}
}

func TestSetupLogger(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := SetupLogger(&config.Config{LogLevel: "warn", LogFormat: "json"}, "worker", &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"component":"worker"`) {
		t.Fatalf("unexpected log output: %s", out)
	}
}

func TestLoadAndValidateConfig(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	if _, err := LoadAndValidateConfig(); err == nil || !strings.Contains(err.Error(), "invalid port") {
		t.Fatalf("expected port validation error, got %v", err)
	}
	t.Setenv("PORT", "8081")
	t.Setenv("DATA_BACKEND", "memory")
	if _, err := LoadAndValidateConfig(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
