package config

import (
	"testing"
	"time"

	"popdash/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "API_PORT", "WORLDBANK_BASE_URL", "HTTP_TIMEOUT", "CACHE_DRIVER", "DATABASE_URL", "REFERENCE_YEAR", "MAX_PAGES"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "8081", cfg.Server.APIPort)
	assert.Equal(t, DefaultBaseURL, cfg.WorldBank.BaseURL)
	assert.Equal(t, 15*time.Second, cfg.WorldBank.Timeout)
	assert.Equal(t, CacheDriverMemory, cfg.Cache.Driver)
	assert.Equal(t, 2023, cfg.Dashboard.ReferenceYear)
	assert.Equal(t, 5, cfg.WorldBank.MaxPages)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WORLDBANK_BASE_URL", "http://localhost:9999/")
	t.Setenv("HTTP_TIMEOUT", "2s")
	t.Setenv("REFERENCE_YEAR", "2024")
	t.Setenv("CACHE_DRIVER", "NONE")
	t.Setenv("MAX_PAGES", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9999", cfg.WorldBank.BaseURL)
	assert.Equal(t, 2*time.Second, cfg.WorldBank.Timeout)
	assert.Equal(t, 2024, cfg.Dashboard.ReferenceYear)
	assert.Equal(t, CacheDriverNone, cfg.Cache.Driver)
	assert.Equal(t, 5, cfg.WorldBank.MaxPages)
}

func TestLoadRejectsSQLCacheWithoutDatabase(t *testing.T) {
	t.Setenv("CACHE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("CACHE_DRIVER", "redis")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported CACHE_DRIVER")
}
