package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/labyrinthia/engine/internal/entities"
	"github.com/labyrinthia/engine/internal/errors"
	"github.com/labyrinthia/engine/internal/services/mapgen"
	"github.com/labyrinthia/engine/internal/services/state"
)

// Config holds all runtime configuration for the engine. Values come
// from the environment; cmd binaries load a .env file first.
type Config struct {
	// SaveDir is the root of the per-user save tree
	// (saves/users/{userID}/...).
	SaveDir string `env:"LABYRINTHIA_SAVE_DIR" envDefault:"saves"`

	// RedisURL switches the save store to Redis when set; empty keeps
	// the filesystem store.
	RedisURL string `env:"LABYRINTHIA_REDIS_URL"`

	// MetricsAddr is the listen address for the Prometheus scrape
	// endpoint; empty disables it.
	MetricsAddr string `env:"LABYRINTHIA_METRICS_ADDR" envDefault:":9090"`

	AutoSaveInterval   time.Duration `env:"LABYRINTHIA_AUTO_SAVE_INTERVAL" envDefault:"60s"`
	GameSessionTimeout time.Duration `env:"LABYRINTHIA_GAME_SESSION_TIMEOUT" envDefault:"30m"`

	LLM    LLMConfig    `envPrefix:"LABYRINTHIA_LLM_"`
	MapGen MapGenConfig `envPrefix:"LABYRINTHIA_MAP_GENERATION_"`
	Combat CombatConfig `envPrefix:"LABYRINTHIA_COMBAT_"`
	Alerts AlertsConfig `envPrefix:"LABYRINTHIA_MAP_ALERT_"`
}

// LLMConfig wires the story oracle client. An empty APIKey makes the
// server fall back to the static oracle.
type LLMConfig struct {
	BaseURL       string        `env:"BASE_URL"`
	APIKey        string        `env:"API_KEY"`
	Model         string        `env:"MODEL" envDefault:"labyrinth-oracle-1"`
	MaxConcurrent int           `env:"MAX_CONCURRENT" envDefault:"3"`
	Timeout       time.Duration `env:"TIMEOUT" envDefault:"45s"`
}

// MapGenConfig is the release knob set for map generation.
type MapGenConfig struct {
	Provider             string `env:"PROVIDER" envDefault:"local"`
	ReleaseStage         string `env:"RELEASE_STAGE" envDefault:"stable"`
	CanaryPercent        int    `env:"CANARY_PERCENT" envDefault:"0"`
	CanarySeed           string `env:"CANARY_SEED" envDefault:"labyrinthia"`
	FallbackToLLM        bool   `env:"FALLBACK_TO_LLM" envDefault:"false"`
	ForceLegacyChain     bool   `env:"FORCE_LEGACY_CHAIN" envDefault:"false"`
	DisableHighRiskPatch bool   `env:"DISABLE_HIGH_RISK_PATCH" envDefault:"true"`
}

// CombatConfig sets the authority mode, the hybrid verification
// tolerance, and the release gate limits that auto-degrade authority.
type CombatConfig struct {
	AuthorityMode string  `env:"AUTHORITY_MODE" envDefault:"server"`
	DiffThreshold float64 `env:"DIFF_THRESHOLD" envDefault:"0.01"`

	GateMaxP95       time.Duration `env:"GATE_MAX_P95" envDefault:"250ms"`
	GateMaxErrorRate float64       `env:"GATE_MAX_ERROR_RATE" envDefault:"0.10"`
}

// AlertsConfig carries the per-metric warn/block rates for map
// generation health. Block crossings are P1 and pin the legacy chain
// when BlockingEnabled is set.
type AlertsConfig struct {
	BlockingEnabled bool `env:"BLOCKING_ENABLED" envDefault:"false"`

	UnreachableWarn  float64 `env:"UNREACHABLE_WARN" envDefault:"0.05"`
	UnreachableBlock float64 `env:"UNREACHABLE_BLOCK" envDefault:"0.15"`

	StairsWarn  float64 `env:"STAIRS_WARN" envDefault:"0.02"`
	StairsBlock float64 `env:"STAIRS_BLOCK" envDefault:"0.10"`

	ProgressAnomalyWarn  float64 `env:"PROGRESS_ANOMALY_WARN" envDefault:"0.10"`
	ProgressAnomalyBlock float64 `env:"PROGRESS_ANOMALY_BLOCK" envDefault:"0.30"`

	FinalBlockWarn  float64 `env:"FINAL_BLOCK_WARN" envDefault:"0.10"`
	FinalBlockBlock float64 `env:"FINAL_BLOCK_BLOCK" envDefault:"0.30"`
}

// Load parses configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse env")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the engine cannot run with.
func (c *Config) Validate() error {
	if c.SaveDir == "" {
		return errors.Validation("LABYRINTHIA_SAVE_DIR must not be empty")
	}
	if c.AutoSaveInterval <= 0 {
		return errors.Validation("LABYRINTHIA_AUTO_SAVE_INTERVAL must be positive")
	}
	if c.GameSessionTimeout <= 0 {
		return errors.Validation("LABYRINTHIA_GAME_SESSION_TIMEOUT must be positive")
	}
	if c.LLM.MaxConcurrent <= 0 {
		return errors.Validation("LABYRINTHIA_LLM_MAX_CONCURRENT must be positive")
	}

	switch c.MapGen.Provider {
	case mapgen.ProviderLocal, mapgen.ProviderLLM:
	default:
		return errors.Validationf("unknown map generation provider %q", c.MapGen.Provider)
	}
	switch c.MapGen.ReleaseStage {
	case state.StageDebug, state.StageCanary, state.StageStable:
	default:
		return errors.Validationf("unknown release stage %q", c.MapGen.ReleaseStage)
	}
	if c.MapGen.CanaryPercent < 0 || c.MapGen.CanaryPercent > 100 {
		return errors.Validationf("canary percent %d outside [0, 100]", c.MapGen.CanaryPercent)
	}

	if !entities.ValidAuthorityMode(c.Combat.AuthorityMode) {
		return errors.Validationf("unknown combat authority mode %q", c.Combat.AuthorityMode)
	}
	if c.Combat.DiffThreshold < 0 {
		return errors.Validation("combat diff threshold must not be negative")
	}
	return nil
}

// ReleaseConfig converts the map generation knobs into the
// orchestrator's shape.
func (c *Config) ReleaseConfig() mapgen.ReleaseConfig {
	return mapgen.ReleaseConfig{
		Provider:      c.MapGen.Provider,
		Stage:         c.MapGen.ReleaseStage,
		CanaryPercent: c.MapGen.CanaryPercent,
		CanarySeed:    c.MapGen.CanarySeed,
		FallbackToLLM: c.MapGen.FallbackToLLM,
		ForceLegacy:   c.MapGen.ForceLegacyChain,
	}
}

// AlertConfig converts the alert thresholds into the monitor's shape.
func (c *Config) AlertConfig() *mapgen.AlertConfig {
	return &mapgen.AlertConfig{
		BlockingEnabled: c.Alerts.BlockingEnabled,
		KeyObjectiveUnreachable: mapgen.AlertThreshold{
			Warn:  c.Alerts.UnreachableWarn,
			Block: c.Alerts.UnreachableBlock,
		},
		StairsViolation: mapgen.AlertThreshold{
			Warn:  c.Alerts.StairsWarn,
			Block: c.Alerts.StairsBlock,
		},
		ProgressAnomaly: mapgen.AlertThreshold{
			Warn:  c.Alerts.ProgressAnomalyWarn,
			Block: c.Alerts.ProgressAnomalyBlock,
		},
		FinalObjectiveBlock: mapgen.AlertThreshold{
			Warn:  c.Alerts.FinalBlockWarn,
			Block: c.Alerts.FinalBlockBlock,
		},
	}
}
