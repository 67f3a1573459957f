package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExpandEnvVars(t *testing.T) {
	os.Setenv("TEST_VAR", "hello")
	defer os.Unsetenv("TEST_VAR")

	tests := []struct {
		input    string
		expected string
	}{
		{"${TEST_VAR}", "hello"},
		{"${TEST_VAR:default}", "hello"},
		{"${UNSET_VAR:fallback}", "fallback"},
		{"${UNSET_VAR}", ""},
		{"no vars here", "no vars here"},
		{"prefix-${TEST_VAR}-suffix", "prefix-hello-suffix"},
	}

	for _, tt := range tests {
		got := expandEnvVars(tt.input)
		if got != tt.expected {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestLoadFile_WithEnvVars(t *testing.T) {
	os.Setenv("TEST_API_KEY", "sk-test")
	defer os.Unsetenv("TEST_API_KEY")

	tmpFile, err := os.CreateTemp("", "test-config-*.yaml")
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(tmpFile.Name())

	content := `
catalog:
  api_key: ${TEST_API_KEY}
  timeout_seconds: ${TEST_TIMEOUT:45}
`
	if _, err := tmpFile.WriteString(content); err != nil {
		t.Fatal(err)
	}
	tmpFile.Close()

	var cfg Config
	if err := LoadFile(tmpFile.Name(), &cfg); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Catalog.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.Catalog.APIKey)
	}
	if cfg.Catalog.TimeoutSeconds != 45 {
		t.Errorf("timeout = %d, want 45 (default)", cfg.Catalog.TimeoutSeconds)
	}
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Error("missing API key should fail validation")
	}

	cfg.Catalog.APIKey = "sk-test"
	if err := cfg.Validate(); err == nil {
		t.Error("missing primary DSN should fail validation")
	}

	cfg.Database.PrimaryDSN = "postgres://localhost/pricewatch"
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	// Out-of-range values are normalized, not rejected.
	cfg.Collector.Concurrency = 0
	cfg.Collector.IntervalHours = -1
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	if cfg.Collector.Concurrency != 1 {
		t.Errorf("concurrency = %d, want clamped to 1", cfg.Collector.Concurrency)
	}
	if cfg.Collector.IntervalHours != 24 {
		t.Errorf("interval = %d, want 24", cfg.Collector.IntervalHours)
	}
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	content := `
catalog:
  api_key: sk-test
database:
  primary_dsn: postgres://localhost/pricewatch
collector:
  concurrency: 8
  blocklist:
    - acme/broken
defaults:
  chat_model: openai/gpt-4o
`
	if err := os.WriteFile(filepath.Join(dir, "pricewatch.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	l := NewLoader(dir, testLogger())
	if err := l.Load(); err != nil {
		t.Fatal(err)
	}

	cfg := l.Config()
	if cfg.Collector.Concurrency != 8 {
		t.Errorf("concurrency = %d", cfg.Collector.Concurrency)
	}
	if len(cfg.Collector.Blocklist) != 1 || cfg.Collector.Blocklist[0] != "acme/broken" {
		t.Errorf("blocklist = %v", cfg.Collector.Blocklist)
	}

	forced := cfg.Defaults.ForcedDefaults()
	if forced["chat"] != "openai/gpt-4o" {
		t.Errorf("forced defaults = %v", forced)
	}
	if _, ok := forced["embedding"]; ok {
		t.Error("unset embedding default should be absent")
	}

	// Defaults survive partial config.
	if cfg.Server.Addr != ":9090" {
		t.Errorf("server addr = %q", cfg.Server.Addr)
	}
}
