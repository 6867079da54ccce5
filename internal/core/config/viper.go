package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/pact-foundation/pactengine/internal/core/logging"
	"github.com/pact-foundation/pactengine/internal/types"
)

const minAuthSecretLen = 32

// legacyEnv maps matching keys to the environment names older tooling sets.
var legacyEnv = map[string]string{
	"matching.log_executed_plan": "PACT_V2_MATCHING_LOG_EXECUTED_PLAN",
	"matching.log_plan_summary":  "PACT_V2_MATCHING_LOG_PLAN_SUMMARY",
	"matching.coloured_output":   "PACT_V2_MATCHING_COLOURED_OUTPUT",
	"matching.log_raw_plan":      "PACT_V2_MATCHING_LOG_RAW_PLAN",
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := New()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return FromViper(v)
}

// New returns a viper instance with the defaults and environment bindings
// in place. Callers may bind flags to it before calling FromViper.
func New() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("matching.allow_unexpected_entries", d.Matching.AllowUnexpectedEntries)
	v.SetDefault("matching.log_executed_plan", d.Matching.LogExecutedPlan)
	v.SetDefault("matching.log_plan_summary", d.Matching.LogPlanSummary)
	v.SetDefault("matching.coloured_output", d.Matching.ColouredOutput)
	v.SetDefault("matching.log_raw_plan", d.Matching.LogRawPlan)
	v.SetDefault("matching.max_plan_depth", d.Matching.MaxPlanDepth)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)
	v.SetDefault("server.plans_dir", d.Server.PlansDir)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout.String())
	v.SetDefault("server.auth_secret", d.Server.AuthSecret)
	v.SetDefault("store.url", d.Store.URL)
	v.SetDefault("store.prune_schedule", d.Store.PruneSchedule)
	v.SetDefault("store.retention", d.Store.Retention.String())
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	// Bind environment variables with PACT_ prefix
	v.SetEnvPrefix("PACT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit names bypass the prefix, so both spellings are listed
	for key, legacy := range legacyEnv {
		current := "PACT_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, current, legacy)
	}

	return v
}

// FromViper reads and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	// Credentials must come from the environment, never a config file
	if err := validateNoCredentialsInConfig(v); err != nil {
		return nil, err
	}

	cfg := &Config{
		Matching: MatchingConfig{
			AllowUnexpectedEntries: v.GetBool("matching.allow_unexpected_entries"),
			LogExecutedPlan:        v.GetBool("matching.log_executed_plan"),
			LogPlanSummary:         v.GetBool("matching.log_plan_summary"),
			ColouredOutput:         v.GetBool("matching.coloured_output"),
			LogRawPlan:             v.GetBool("matching.log_raw_plan"),
			MaxPlanDepth:           v.GetInt("matching.max_plan_depth"),
		},
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			MetricsAddr:    v.GetString("server.metrics_addr"),
			PlansDir:       v.GetString("server.plans_dir"),
			RequestTimeout: v.GetDuration("server.request_timeout"),
			AuthSecret:     v.GetString("server.auth_secret"),
		},
		Store: StoreConfig{
			URL:           v.GetString("store.url"),
			PruneSchedule: v.GetString("store.prune_schedule"),
			Retention:     v.GetDuration("store.retention"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig reports every invalid value, not just the first.
func validateConfig(cfg *Config) error {
	var err error
	if cfg.Matching.MaxPlanDepth <= 0 || cfg.Matching.MaxPlanDepth > types.MaxPlanDepth {
		err = multierr.Append(err, fmt.Errorf("matching.max_plan_depth must be between 1 and %d, got %d", types.MaxPlanDepth, cfg.Matching.MaxPlanDepth))
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		err = multierr.Append(err, fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port))
	}
	if cfg.Server.RequestTimeout <= 0 {
		err = multierr.Append(err, fmt.Errorf("server.request_timeout must be positive, got %v", cfg.Server.RequestTimeout))
	}
	if cfg.Store.Retention <= 0 {
		err = multierr.Append(err, fmt.Errorf("store.retention must be positive, got %v", cfg.Store.Retention))
	}
	if cfg.Store.URL != "" {
		if _, perr := cron.ParseStandard(cfg.Store.PruneSchedule); perr != nil {
			err = multierr.Append(err, fmt.Errorf("store.prune_schedule is invalid: %w", perr))
		}
		if !strings.HasPrefix(cfg.Store.URL, "sqlite://") && !strings.HasPrefix(cfg.Store.URL, "postgres://") {
			err = multierr.Append(err, fmt.Errorf("store.url must start with sqlite:// or postgres://, got %q", cfg.Store.URL))
		}
	}
	if cfg.Server.AuthSecret != "" {
		if len(cfg.Server.AuthSecret) < minAuthSecretLen {
			err = multierr.Append(err, fmt.Errorf("server.auth_secret must be at least %d characters", minAuthSecretLen))
		}
		if cfg.Store.URL == "" {
			err = multierr.Append(err, fmt.Errorf("server.auth_secret requires store.url for the API key table"))
		}
	}
	if _, lerr := logging.ParseLevel(cfg.Log.Level); lerr != nil {
		err = multierr.Append(err, fmt.Errorf("log.level: %w", lerr))
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		err = multierr.Append(err, fmt.Errorf("log.format must be json or text, got %q", cfg.Log.Format))
	}
	return err
}

// validateNoCredentialsInConfig rejects an auth secret, or a store URL with
// a password, read from a config file.
func validateNoCredentialsInConfig(v *viper.Viper) error {
	if v.InConfig("server.auth_secret") {
		return fmt.Errorf("auth secret not allowed in config files (use PACT_SERVER_AUTH_SECRET environment variable)")
	}
	if !v.InConfig("store.url") {
		return nil
	}
	u, err := url.Parse(v.GetString("store.url"))
	if err != nil || u.User == nil {
		return nil
	}
	if _, ok := u.User.Password(); ok {
		return fmt.Errorf("store credentials not allowed in config files (use PACT_STORE_URL environment variable)")
	}
	return nil
}
