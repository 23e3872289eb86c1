package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "deskwise", cfg.AppName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "postgres", cfg.DBType)
	assert.Equal(t, 25, cfg.DBMaxOpenConn)
	assert.Empty(t, cfg.RedisAddr)
	assert.False(t, cfg.IsProduction())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DATABASE_TYPE", "sqlite")
	t.Setenv("DATABASE_MAX_OPEN_CONN", "50")
	t.Setenv("ENVIRONMENT", "Production")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.DBType)
	assert.Equal(t, 50, cfg.DBMaxOpenConn)
	assert.True(t, cfg.IsProduction())
}

func TestLoadBadIntFallsBack(t *testing.T) {
	t.Setenv("DATABASE_MAX_IDLE_CONN", "not-a-number")

	cfg := Load()
	assert.Equal(t, 5, cfg.DBMaxIdleConn)
}

func TestArchivalDefaultsHolder(t *testing.T) {
	holder, err := NewArchivalDefaultsHolder()
	require.NoError(t, err)

	defaults := holder.Get()
	assert.False(t, defaults.Enabled)
	assert.Equal(t, 90, defaults.DaysAfterCompletion)
	assert.Equal(t, 100, defaults.MaxTicketsPerRun)
	assert.True(t, defaults.OnlyWhenApproachingLimits)
	assert.InDelta(t, 80, defaults.LimitThresholdPercent, 0.001)
}

func TestValidateArchivalDefaults(t *testing.T) {
	good := DefaultArchivalDefaults()
	require.NoError(t, validateArchivalDefaults(good))

	bad := good
	bad.MaxTicketsPerRun = 0
	assert.Error(t, validateArchivalDefaults(bad))

	bad = good
	bad.DaysAfterCompletion = -1
	assert.Error(t, validateArchivalDefaults(bad))

	bad = good
	bad.LimitThresholdPercent = 101
	assert.Error(t, validateArchivalDefaults(bad))
}
