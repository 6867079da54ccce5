// Package config provides configuration management for the contract engine.
package config

import (
	"time"

	"github.com/pact-foundation/pactengine/internal/engine"
	"github.com/pact-foundation/pactengine/internal/types"
)

// Config is the complete engine configuration.
type Config struct {
	Matching MatchingConfig
	Server   ServerConfig
	Store    StoreConfig
	Log      LogConfig
}

// MatchingConfig holds the plan execution switches.
type MatchingConfig struct {
	AllowUnexpectedEntries bool
	LogExecutedPlan        bool
	LogPlanSummary         bool
	ColouredOutput         bool
	LogRawPlan             bool
	MaxPlanDepth           int
}

// ServerConfig holds configuration for the gRPC contract service.
type ServerConfig struct {
	Host           string
	Port           int
	MetricsAddr    string
	PlansDir       string
	RequestTimeout time.Duration
	// AuthSecret signs API keys. When set, every call must carry a key
	// issued under it in the x-api-key metadata.
	AuthSecret string
}

// StoreConfig holds configuration for the contract store.
type StoreConfig struct {
	// URL is a sqlite:// or postgres:// connection string. Empty disables
	// the store.
	URL           string
	PruneSchedule string
	Retention     time.Duration
}

// LogConfig selects the logger level and format.
type LogConfig struct {
	Level  string
	Format string
}

// Default returns configuration with default values.
func Default() *Config {
	return &Config{
		Matching: MatchingConfig{
			LogPlanSummary: true,
			ColouredOutput: true,
			MaxPlanDepth:   types.MaxPlanDepth,
		},
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           50061,
			MetricsAddr:    ":9464",
			PlansDir:       "./plans",
			RequestTimeout: 30 * time.Second,
		},
		Store: StoreConfig{
			PruneSchedule: "@hourly",
			Retention:     720 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Engine returns the matching switches in the form the interpreter takes.
func (m MatchingConfig) Engine() engine.MatchingConfiguration {
	return engine.MatchingConfiguration{
		AllowUnexpectedEntries: m.AllowUnexpectedEntries,
		LogExecutedPlan:        m.LogExecutedPlan,
		LogPlanSummary:         m.LogPlanSummary,
		ColouredOutput:         m.ColouredOutput,
		LogRawPlan:             m.LogRawPlan,
		MaxPlanDepth:           m.MaxPlanDepth,
	}
}
