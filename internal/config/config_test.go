package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "pipeline.db", cfg.Store.SQLitePath)
	assert.Equal(t, 30, cfg.Fetch.TimeoutSecs)
	assert.Equal(t, 2, cfg.Fetch.MaxRetries)
	assert.Equal(t, 256, cfg.Session.CacheSize)
	assert.InDelta(t, 0.70, cfg.Promotion.VerifiedThreshold, 0.0001)
	assert.InDelta(t, 0.90, cfg.Promotion.AutoThreshold, 0.0001)
	assert.InDelta(t, 0.85, cfg.Promotion.DefaultConfidence, 0.0001)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("REPARATIONS_STORE_DRIVER", "postgres")
	t.Setenv("REPARATIONS_SERVER_PORT", "9090")
	t.Setenv("REPARATIONS_PROMOTION_AUTO_THRESHOLD", "0.95")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.InDelta(t, 0.95, cfg.Promotion.AutoThreshold, 0.0001)
}

func TestFetchConfig_Timeout(t *testing.T) {
	c := FetchConfig{TimeoutSecs: 45}
	assert.Equal(t, "45s", c.Timeout().String())
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "chatty", Format: "json"})
	require.Error(t, err)
}

func TestInitLogger_ConsoleFormat(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
}
