package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/labyrinthia/engine/internal/config"
	"github.com/labyrinthia/engine/internal/services/state"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "saves", cfg.SaveDir)
	assert.Equal(t, 60*time.Second, cfg.AutoSaveInterval)
	assert.Equal(t, 30*time.Minute, cfg.GameSessionTimeout)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, ":9090", cfg.MetricsAddr)

	assert.Equal(t, 3, cfg.LLM.MaxConcurrent)
	assert.Equal(t, 45*time.Second, cfg.LLM.Timeout)

	assert.Equal(t, "local", cfg.MapGen.Provider)
	assert.Equal(t, state.StageStable, cfg.MapGen.ReleaseStage)
	assert.True(t, cfg.MapGen.DisableHighRiskPatch)

	assert.Equal(t, "server", cfg.Combat.AuthorityMode)
	assert.InDelta(t, 0.01, cfg.Combat.DiffThreshold, 1e-9)
	assert.Equal(t, 250*time.Millisecond, cfg.Combat.GateMaxP95)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LABYRINTHIA_SAVE_DIR", "/tmp/labyrinthia")
	t.Setenv("LABYRINTHIA_AUTO_SAVE_INTERVAL", "2m")
	t.Setenv("LABYRINTHIA_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("LABYRINTHIA_LLM_BASE_URL", "https://oracle.example.com")
	t.Setenv("LABYRINTHIA_LLM_API_KEY", "key-123")
	t.Setenv("LABYRINTHIA_LLM_MAX_CONCURRENT", "5")
	t.Setenv("LABYRINTHIA_MAP_GENERATION_RELEASE_STAGE", "canary")
	t.Setenv("LABYRINTHIA_MAP_GENERATION_CANARY_PERCENT", "25")
	t.Setenv("LABYRINTHIA_MAP_GENERATION_FALLBACK_TO_LLM", "true")
	t.Setenv("LABYRINTHIA_COMBAT_AUTHORITY_MODE", "hybrid")
	t.Setenv("LABYRINTHIA_MAP_ALERT_BLOCKING_ENABLED", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "/tmp/labyrinthia", cfg.SaveDir)
	assert.Equal(t, 2*time.Minute, cfg.AutoSaveInterval)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "https://oracle.example.com", cfg.LLM.BaseURL)
	assert.Equal(t, "key-123", cfg.LLM.APIKey)
	assert.Equal(t, 5, cfg.LLM.MaxConcurrent)
	assert.Equal(t, state.StageCanary, cfg.MapGen.ReleaseStage)
	assert.Equal(t, 25, cfg.MapGen.CanaryPercent)
	assert.True(t, cfg.MapGen.FallbackToLLM)
	assert.Equal(t, "hybrid", cfg.Combat.AuthorityMode)
	assert.True(t, cfg.Alerts.BlockingEnabled)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown provider", "LABYRINTHIA_MAP_GENERATION_PROVIDER", "quantum"},
		{"unknown stage", "LABYRINTHIA_MAP_GENERATION_RELEASE_STAGE", "prod"},
		{"canary percent over 100", "LABYRINTHIA_MAP_GENERATION_CANARY_PERCENT", "101"},
		{"unknown authority mode", "LABYRINTHIA_COMBAT_AUTHORITY_MODE", "client"},
		{"zero llm slots", "LABYRINTHIA_LLM_MAX_CONCURRENT", "0"},
		{"zero auto save interval", "LABYRINTHIA_AUTO_SAVE_INTERVAL", "0s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load()
			assert.Error(t, err)
		})
	}
}

func TestReleaseConfigConversion(t *testing.T) {
	t.Setenv("LABYRINTHIA_MAP_GENERATION_PROVIDER", "llm")
	t.Setenv("LABYRINTHIA_MAP_GENERATION_RELEASE_STAGE", "canary")
	t.Setenv("LABYRINTHIA_MAP_GENERATION_CANARY_PERCENT", "10")
	t.Setenv("LABYRINTHIA_MAP_GENERATION_CANARY_SEED", "seed-7")
	t.Setenv("LABYRINTHIA_MAP_GENERATION_FORCE_LEGACY_CHAIN", "true")

	cfg, err := config.Load()
	require.NoError(t, err)

	release := cfg.ReleaseConfig()
	assert.Equal(t, "llm", release.Provider)
	assert.Equal(t, state.StageCanary, release.Stage)
	assert.Equal(t, 10, release.CanaryPercent)
	assert.Equal(t, "seed-7", release.CanarySeed)
	assert.True(t, release.ForceLegacy)
}

func TestAlertConfigConversion(t *testing.T) {
	t.Setenv("LABYRINTHIA_MAP_ALERT_BLOCKING_ENABLED", "true")
	t.Setenv("LABYRINTHIA_MAP_ALERT_STAIRS_BLOCK", "0.5")

	cfg, err := config.Load()
	require.NoError(t, err)

	alerts := cfg.AlertConfig()
	require.NotNil(t, alerts)
	assert.True(t, alerts.BlockingEnabled)
	assert.InDelta(t, 0.5, alerts.StairsViolation.Block, 1e-9)
	assert.InDelta(t, 0.05, alerts.KeyObjectiveUnreachable.Warn, 1e-9)
}
