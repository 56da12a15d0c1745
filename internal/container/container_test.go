package container

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"popdash/domain/population"
	"popdash/internal/cache"
	"popdash/internal/config"
	"popdash/internal/errors"
	"popdash/internal/testkit"
)

func testConfig(driver string) *config.Config {
	return &config.Config{
		WorldBank: config.WorldBankConfig{BaseURL: "http://127.0.0.1:0", Timeout: time.Second, RateLimitPerMinute: 60, MaxConcurrentRequests: 2, MaxPages: 2},
		Cache:     config.CacheConfig{Driver: driver, TTL: time.Minute},
		Dashboard: config.DashboardConfig{ReferenceYear: 2020},
		Log:       config.LogConfig{Level: "ERROR"},
	}
}

func TestNewRejectsNilConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestInitWiresMemoryCache(t *testing.T) {
	c, err := New(testConfig(config.CacheDriverMemory))
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background()))
	defer c.Shutdown(context.Background())

	assert.IsType(t, &cache.MemoryCache{}, c.Cache)
	assert.Nil(t, c.SQLCache)
	require.NotNil(t, c.Store)
	assert.Equal(t, 2020, c.Store.ReferenceYear())
	assert.NotNil(t, c.SSEHub)
	assert.NotNil(t, c.Exporter)
}

func TestInitWithoutCache(t *testing.T) {
	c, err := New(testConfig(config.CacheDriverNone))
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background()))
	defer c.Shutdown(context.Background())

	assert.Nil(t, c.Cache)
}

func TestInitUnknownDriver(t *testing.T) {
	c, err := New(testConfig("redis"))
	require.NoError(t, err)

	err = c.Init(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestHomeFetchServedFromMemoryCache(t *testing.T) {
	fakeConfig := testkit.DefaultWorldBankConfig()
	fakeConfig.PerPage = 100
	api := testkit.NewFakeWorldBank(t, fakeConfig)

	cfg := testConfig(config.CacheDriverMemory)
	cfg.WorldBank.BaseURL = api.URL
	cfg.WorldBank.RateLimitPerMinute = 6000
	cfg.Dashboard.ReferenceYear = 2023

	c, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, c.Init(context.Background()))
	defer c.Shutdown(context.Background())

	require.NoError(t, c.Store.DispatchHomeFetch(context.Background()))
	assert.Equal(t, 3, api.Calls())

	require.NoError(t, c.Store.DispatchHomeFetch(context.Background()))
	assert.Equal(t, 3, api.Calls())

	snap := c.Store.Snapshot()
	require.NotNil(t, snap.Metrics.TotalPopulation)
	assert.Equal(t, *api.Value(population.IndicatorPopulation, 2023), *snap.Metrics.TotalPopulation)
}
