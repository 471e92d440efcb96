package config

import (
	"strings"
	"testing"
)

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("PORT", "9001")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("REQUEST_TIMEOUT", "15")
	t.Setenv("REDDIT_USER_AGENT", "tester/0.1")

	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.loadFromEnv()

	if cfg.LLMProvider != ProviderOpenAI {
		t.Fatalf("expected provider openai, got %q", cfg.LLMProvider)
	}
	if cfg.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", cfg.Port)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.AllowedOrigins)
	}
	if cfg.RequestTimeout().Seconds() != 15 {
		t.Fatalf("unexpected request timeout %v", cfg.RequestTimeout())
	}
	if cfg.RedditUserAgent != "tester/0.1" {
		t.Fatalf("unexpected user agent %q", cfg.RedditUserAgent)
	}
}

func TestLoadFromEnvIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("PORT", "eighty")
	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.loadFromEnv()
	if cfg.Port != 8000 {
		t.Fatalf("expected default port to survive, got %d", cfg.Port)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad provider", mutate: func(c *Config) { c.LLMProvider = "llama" }, wantErr: "llm_provider"},
		{name: "postgres without url", mutate: func(c *Config) { c.DatabaseType = DatabasePostgres }, wantErr: "database_url"},
		{name: "bad port", mutate: func(c *Config) { c.Port = 70000 }, wantErr: "port"},
		{name: "zero workflow timeout", mutate: func(c *Config) { c.WorkflowTimeoutSeconds = 0 }, wantErr: "workflow_timeout"},
		{name: "bad report mode", mutate: func(c *Config) { c.ReportMode = "pdf" }, wantErr: "report_mode"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfigWithRoot(t.TempDir())
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestRedactedMasksSecrets(t *testing.T) {
	cfg := DefaultConfigWithRoot(t.TempDir())
	cfg.DeepSeekAPIKey = "sk-1234567890"
	cfg.RedditSecret = "abc"
	red := cfg.Redacted()
	if red.DeepSeekAPIKey != "sk-1****" || red.RedditSecret != "****" {
		t.Fatalf("secrets not masked: %q %q", red.DeepSeekAPIKey, red.RedditSecret)
	}
	if cfg.DeepSeekAPIKey != "sk-1234567890" {
		t.Fatalf("Redacted mutated the receiver")
	}
}

func TestSQLitePath(t *testing.T) {
	cfg := DefaultConfigWithRoot("/srv")
	if got := cfg.SQLitePath(); got != "/srv/data/painradar.db" {
		t.Fatalf("unexpected default path %q", got)
	}
	cfg.DatabaseURL = "sqlite:///tmp/x.db"
	if got := cfg.SQLitePath(); got != "/tmp/x.db" {
		t.Fatalf("unexpected url path %q", got)
	}
}
