package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/multierr"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := LoadConfig("")
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Server.Host != "0.0.0.0" {
			t.Errorf("Server.Host = %s, want 0.0.0.0", cfg.Server.Host)
		}
		if cfg.Server.Port != 50061 {
			t.Errorf("Server.Port = %d, want 50061", cfg.Server.Port)
		}
		if cfg.Server.RequestTimeout != 30*time.Second {
			t.Errorf("Server.RequestTimeout = %v, want 30s", cfg.Server.RequestTimeout)
		}
		if cfg.Store.Retention != 720*time.Hour {
			t.Errorf("Store.Retention = %v, want 720h", cfg.Store.Retention)
		}
		if cfg.Matching.MaxPlanDepth != 256 {
			t.Errorf("Matching.MaxPlanDepth = %d, want 256", cfg.Matching.MaxPlanDepth)
		}
		if !cfg.Matching.LogPlanSummary || !cfg.Matching.ColouredOutput {
			t.Errorf("Matching = %+v, want plan summary and coloured output on", cfg.Matching)
		}
	})

	t.Run("config file", func(t *testing.T) {
		path := writeConfig(t, `
matching:
  allow_unexpected_entries: true
  coloured_output: false
server:
  port: 8080
  plans_dir: /srv/plans
store:
  url: sqlite:///var/lib/pact/store.db
  retention: 24h
log:
  level: debug
  format: text
`)
		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if !cfg.Matching.AllowUnexpectedEntries || cfg.Matching.ColouredOutput {
			t.Errorf("Matching = %+v, want values from the file", cfg.Matching)
		}
		if cfg.Server.Port != 8080 || cfg.Server.PlansDir != "/srv/plans" {
			t.Errorf("Server = %+v, want values from the file", cfg.Server)
		}
		if cfg.Store.Retention != 24*time.Hour {
			t.Errorf("Store.Retention = %v, want 24h", cfg.Store.Retention)
		}
		if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
			t.Errorf("Log = %+v, want debug/text", cfg.Log)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		path := writeConfig(t, "server:\n  port: 8080\n")
		t.Setenv("PACT_SERVER_PORT", "9090")

		cfg, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("LoadConfig() error = %v", err)
		}
		if cfg.Server.Port != 9090 {
			t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("LoadConfig() error = nil, want error")
		}
	})
}

func TestLegacyEnvironment(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want MatchingConfig
	}{
		{
			name: "legacy names",
			env: map[string]string{
				"PACT_V2_MATCHING_LOG_EXECUTED_PLAN": "true",
				"PACT_V2_MATCHING_LOG_PLAN_SUMMARY":  "false",
				"PACT_V2_MATCHING_COLOURED_OUTPUT":   "false",
				"PACT_V2_MATCHING_LOG_RAW_PLAN":      "1",
			},
			want: MatchingConfig{LogExecutedPlan: true, LogRawPlan: true, MaxPlanDepth: 256},
		},
		{
			name: "current name wins",
			env: map[string]string{
				"PACT_MATCHING_LOG_EXECUTED_PLAN":    "false",
				"PACT_V2_MATCHING_LOG_EXECUTED_PLAN": "true",
			},
			want: MatchingConfig{LogPlanSummary: true, ColouredOutput: true, MaxPlanDepth: 256},
		},
		{
			name: "prefixed key",
			env:  map[string]string{"PACT_MATCHING_ALLOW_UNEXPECTED_ENTRIES": "true"},
			want: MatchingConfig{AllowUnexpectedEntries: true, LogPlanSummary: true, ColouredOutput: true, MaxPlanDepth: 256},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig("")
			if err != nil {
				t.Fatalf("LoadConfig() error = %v", err)
			}
			if cfg.Matching != tt.want {
				t.Errorf("Matching = %+v, want %+v", cfg.Matching, tt.want)
			}
		})
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   []string
	}{
		{"valid", func(*Config) {}, nil},
		{"port", func(c *Config) { c.Server.Port = 0 }, []string{"server.port"}},
		{"timeout", func(c *Config) { c.Server.RequestTimeout = 0 }, []string{"server.request_timeout"}},
		{"depth", func(c *Config) { c.Matching.MaxPlanDepth = 1000 }, []string{"matching.max_plan_depth"}},
		{"log", func(c *Config) { c.Log.Level = "trace"; c.Log.Format = "xml" }, []string{"log.level", "log.format"}},
		{"store scheme", func(c *Config) { c.Store.URL = "mysql://db" }, []string{"store.url"}},
		{"schedule", func(c *Config) { c.Store.URL = "sqlite://x.db"; c.Store.PruneSchedule = "often" }, []string{"store.prune_schedule"}},
		{"schedule unused without store", func(c *Config) { c.Store.PruneSchedule = "often" }, nil},
		{"short auth secret", func(c *Config) { c.Store.URL = "sqlite://x.db"; c.Server.AuthSecret = "short" }, []string{"server.auth_secret"}},
		{"auth without store", func(c *Config) { c.Server.AuthSecret = strings.Repeat("s", 32) }, []string{"requires store.url"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := validateConfig(cfg)
			errs := multierr.Errors(err)
			if len(errs) != len(tt.want) {
				t.Fatalf("validateConfig() = %v, want %d errors", err, len(tt.want))
			}
			for i, want := range tt.want {
				if !strings.Contains(errs[i].Error(), want) {
					t.Errorf("validateConfig() error %d = %v, want mention of %s", i, errs[i], want)
				}
			}
		})
	}
}

func TestCredentialsInConfigRejected(t *testing.T) {
	path := writeConfig(t, "store:\n  url: postgres://pact:secret@db/pact\n")
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("LoadConfig() error = nil, want credentials rejected")
	}
	if err.Error() != "store credentials not allowed in config files (use PACT_STORE_URL environment variable)" {
		t.Errorf("LoadConfig() error = %v", err)
	}

	t.Setenv("PACT_STORE_URL", "postgres://pact:secret@db/pact")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Store.URL != "postgres://pact:secret@db/pact" {
		t.Errorf("Store.URL = %s, want the environment value", cfg.Store.URL)
	}
}

func TestAuthSecretInConfigRejected(t *testing.T) {
	path := writeConfig(t, "server:\n  auth_secret: abc\n")
	_, err := LoadConfig(path)
	if err == nil || !strings.Contains(err.Error(), "PACT_SERVER_AUTH_SECRET") {
		t.Errorf("LoadConfig() error = %v, want auth secret rejected", err)
	}

	secret := strings.Repeat("k", 32)
	t.Setenv("PACT_SERVER_AUTH_SECRET", secret)
	t.Setenv("PACT_STORE_URL", "sqlite://keys.db")
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Server.AuthSecret != secret {
		t.Errorf("Server.AuthSecret = %q, want the environment value", cfg.Server.AuthSecret)
	}
}

func TestEngineConfiguration(t *testing.T) {
	m := MatchingConfig{AllowUnexpectedEntries: true, LogRawPlan: true, MaxPlanDepth: 12}
	got := m.Engine()
	if !got.AllowUnexpectedEntries || !got.LogRawPlan || got.MaxPlanDepth != 12 || got.LogPlanSummary {
		t.Errorf("Engine() = %+v, want the same switches", got)
	}
}
