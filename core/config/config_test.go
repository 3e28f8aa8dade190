package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/cadence/core/config"
)

// Each test uses its own config type: the package caches by type, so
// sharing one struct across tests would leak values between them.

func TestLoad_Defaults(t *testing.T) {
	type defaultsConfig struct {
		Interval time.Duration `env:"TEST_DEFAULTS_INTERVAL" envDefault:"1s"`
		Policy   string        `env:"TEST_DEFAULTS_POLICY" envDefault:"block"`
	}

	var cfg defaultsConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, time.Second, cfg.Interval)
	assert.Equal(t, "block", cfg.Policy)
}

func TestLoad_FromEnvironment(t *testing.T) {
	type envConfig struct {
		Interval time.Duration `env:"TEST_ENV_INTERVAL" envDefault:"1s"`
		MaxTicks int           `env:"TEST_ENV_MAX_TICKS" envDefault:"3"`
	}

	t.Setenv("TEST_ENV_INTERVAL", "250ms")
	t.Setenv("TEST_ENV_MAX_TICKS", "7")

	var cfg envConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 250*time.Millisecond, cfg.Interval)
	assert.Equal(t, 7, cfg.MaxTicks)
}

func TestLoad_RequiredMissing(t *testing.T) {
	type requiredConfig struct {
		URL string `env:"TEST_REQUIRED_DEFINITELY_UNSET,required"`
	}

	var cfg requiredConfig
	require.Error(t, config.Load(&cfg))
}

func TestLoad_Caching(t *testing.T) {
	type cachedConfig struct {
		Value string `env:"TEST_CACHED_VALUE" envDefault:"first"`
	}

	t.Setenv("TEST_CACHED_VALUE", "first")

	var cfg1 cachedConfig
	require.NoError(t, config.Load(&cfg1))
	assert.Equal(t, "first", cfg1.Value)

	// A changed environment is not re-read for an already-loaded type.
	t.Setenv("TEST_CACHED_VALUE", "second")

	var cfg2 cachedConfig
	require.NoError(t, config.Load(&cfg2))
	assert.Equal(t, "first", cfg2.Value)
}

func TestMustLoad_PanicsOnFailure(t *testing.T) {
	type mustConfig struct {
		URL string `env:"TEST_MUST_DEFINITELY_UNSET,required"`
	}

	assert.Panics(t, func() {
		var cfg mustConfig
		config.MustLoad(&cfg)
	})
}

func TestLoad_NilTarget(t *testing.T) {
	var cfg *struct{}
	require.Error(t, config.Load(cfg))
}
