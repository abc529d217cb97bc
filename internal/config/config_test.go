package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// clearEnv isolates a test from the developer's environment.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		name, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(name, "DOCSUM_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
	for _, name := range []string{"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "PORT", "PATHSTORE_API_KEY"} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docsum.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_API_KEY", "sk-test")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8090 {
		t.Errorf("expected port 8090, got %d", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "anthropic" || cfg.LLM.Model != "claude-sonnet-4-5-20250929" {
		t.Errorf("unexpected llm defaults %+v", cfg.LLM)
	}
	if cfg.APIKey() != "sk-test" {
		t.Errorf("expected key from ANTHROPIC_API_KEY, got %q", cfg.APIKey())
	}
	if cfg.Chunking.Size != 6000 || cfg.Chunking.Overlap != 0 {
		t.Errorf("unexpected chunking defaults %+v", cfg.Chunking)
	}
	if cfg.LLM.Timeout != 120*time.Second || cfg.Runner.JobTTL != time.Hour {
		t.Errorf("durations not decoded: timeout=%v ttl=%v", cfg.LLM.Timeout, cfg.Runner.JobTTL)
	}
	if cfg.Checkpoint.Backend != "file" || cfg.Checkpoint.Dir == "" {
		t.Errorf("unexpected checkpoint defaults %+v", cfg.Checkpoint)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCSUM_LLM_PROVIDER", "echo")
	t.Setenv("DOCSUM_CHUNKING_SIZE", "1200")
	t.Setenv("DOCSUM_CHUNKING_OVERLAP", "100")
	t.Setenv("DOCSUM_RUNNER_WORKERS", "4")
	t.Setenv("PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Provider != "echo" || cfg.LLM.Model != "echo" {
		t.Errorf("unexpected llm %+v", cfg.LLM)
	}
	if cfg.Chunking.Size != 1200 || cfg.Chunking.Overlap != 100 {
		t.Errorf("unexpected chunking %+v", cfg.Chunking)
	}
	if cfg.Runner.Workers != 4 {
		t.Errorf("expected 4 workers, got %d", cfg.Runner.Workers)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("expected PORT to apply, got %d", cfg.Server.Port)
	}
}

func TestLoadFile_YAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
llm:
  provider: openai
  model: gpt-4o
  openai_api_key: sk-openai
  openai_base_url: http://localhost:11434/v1
  max_retries: 5
checkpoint:
  backend: sqlite
  dsn: /tmp/docsum.db
chunking:
  size: 2000
  reduce: true
log:
  level: debug
`)

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	pc := cfg.ProviderConfig()
	if pc.Provider != "openai" || pc.Model != "gpt-4o" || pc.APIKey != "sk-openai" || pc.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("unexpected provider config %+v", pc)
	}
	if cfg.RetryPolicy().MaxRetries != 5 {
		t.Errorf("expected 5 retries, got %d", cfg.RetryPolicy().MaxRetries)
	}
	opts := cfg.CheckpointOptions(nil)
	if opts.Backend != "sqlite" || opts.DSN != "/tmp/docsum.db" {
		t.Errorf("unexpected checkpoint options %+v", opts)
	}
	if !cfg.Chunking.Reduce || cfg.ChunkConfig().ChunkSize != 2000 {
		t.Errorf("unexpected chunking %+v", cfg.Chunking)
	}
	if cfg.SlogLevel().String() != "DEBUG" {
		t.Errorf("expected debug level, got %s", cfg.SlogLevel())
	}
}

func TestLoadFile_EnvBeatsFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "llm:\n  provider: echo\nchunking:\n  size: 2000\n")
	t.Setenv("DOCSUM_CHUNKING_SIZE", "3000")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Chunking.Size != 3000 {
		t.Errorf("expected env to win, got %d", cfg.Chunking.Size)
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unknown provider", map[string]string{"DOCSUM_LLM_PROVIDER": "bard"}, "Provider"},
		{"overlap too large", map[string]string{"DOCSUM_LLM_PROVIDER": "echo", "DOCSUM_CHUNKING_SIZE": "100", "DOCSUM_CHUNKING_OVERLAP": "60"}, "overlap"},
		{"sqlite without dsn", map[string]string{"DOCSUM_LLM_PROVIDER": "echo", "DOCSUM_CHECKPOINT_BACKEND": "sqlite"}, "checkpoint.dsn"},
		{"pathstore without url", map[string]string{"DOCSUM_LLM_PROVIDER": "echo", "DOCSUM_CHECKPOINT_BACKEND": "pathstore"}, "pathstore.url"},
		{"bad backend", map[string]string{"DOCSUM_LLM_PROVIDER": "echo", "DOCSUM_CHECKPOINT_BACKEND": "redis"}, "Backend"},
		{"zero workers", map[string]string{"DOCSUM_LLM_PROVIDER": "echo", "DOCSUM_RUNNER_WORKERS": "0"}, "Workers"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateProvider_RequiresKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCSUM_LLM_PROVIDER", "gemini")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "gemini-2.0-flash" {
		t.Errorf("expected default gemini model, got %q", cfg.LLM.Model)
	}
	err = cfg.ValidateProvider()
	if err == nil || !strings.Contains(err.Error(), "gemini_api_key") {
		t.Fatalf("expected missing key error, got %v", err)
	}

	t.Setenv("GEMINI_API_KEY", "g-key")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.ValidateProvider(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateServer_RequiresAPIKey(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCSUM_LLM_PROVIDER", "echo")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.ValidateServer(); err == nil {
		t.Error("expected error without server.api_key")
	}
	cfg.Server.APIKey = "secret"
	if err := cfg.ValidateServer(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
