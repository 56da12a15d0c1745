package container

import (
	"context"
	"fmt"

	"popdash/adapters/excel"
	"popdash/adapters/postgres"
	"popdash/adapters/worldbank"
	"popdash/internal"
	"popdash/internal/api"
	"popdash/internal/cache"
	"popdash/internal/config"
	"popdash/internal/errors"
	"popdash/internal/store"
	"popdash/ports"
)

// memoryCacheEntries bounds the in-memory response cache.
const memoryCacheEntries = 512

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	Cache    ports.ResponseCache
	SQLCache *postgres.ResponseCacheRepository
	Client   *worldbank.Client

	// Application state
	Store *store.Store

	// Views
	SSEHub   *api.SSEHub
	Exporter ports.TableExporter
}

// New creates a new dependency injection container
func New(cfg *config.Config) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	c := &Container{
		Config: cfg,
		Logger: internal.NewLogger(internal.ParseLogLevel(cfg.Log.Level)),
	}

	return c, nil
}

// Init builds the cache, API client, store and views
func (c *Container) Init(ctx context.Context) error {
	if err := c.initCache(ctx); err != nil {
		return err
	}

	c.initClient()

	c.Store = store.New(c.Client,
		store.WithReferenceYear(c.Config.Dashboard.ReferenceYear),
		store.WithLogger(c.Logger.WithComponent("store")),
	)
	c.SSEHub = api.NewSSEHub(c.Store)
	c.Exporter = excel.XLSXWriter{}

	c.Logger.Info("container initialized (cache=%s, reference year=%d)",
		c.Config.Cache.Driver, c.Config.Dashboard.ReferenceYear)
	return nil
}

func (c *Container) initCache(ctx context.Context) error {
	switch c.Config.Cache.Driver {
	case config.CacheDriverNone:
		c.Logger.Info("response cache disabled")
	case config.CacheDriverMemory:
		c.Cache = cache.NewMemoryCache(memoryCacheEntries)
	case config.CacheDriverPostgres, config.CacheDriverSQLite:
		repo, err := postgres.OpenResponseCache(ctx, c.Config.Cache.Driver, c.Config.Cache.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "failed to open response cache")
		}
		c.SQLCache = repo
		c.Cache = repo
	default:
		return errors.ConfigInvalid(fmt.Sprintf("unknown cache driver %q", c.Config.Cache.Driver))
	}
	return nil
}

func (c *Container) initClient() {
	wb := c.Config.WorldBank
	opts := []worldbank.Option{worldbank.WithLogger(c.Logger.WithComponent("worldbank"))}
	if c.Cache != nil {
		opts = append(opts, worldbank.WithCache(c.Cache, c.Config.Cache.TTL))
	}

	c.Client = worldbank.NewClient(worldbank.Config{
		BaseURL:               wb.BaseURL,
		Timeout:               wb.Timeout,
		RateLimitPerMinute:    wb.RateLimitPerMinute,
		MaxConcurrentRequests: wb.MaxConcurrentRequests,
		MaxPages:              wb.MaxPages,
	}, opts...)
}

// RunBackground starts the SSE hub until ctx is done
func (c *Container) RunBackground(ctx context.Context) {
	if c.SSEHub != nil {
		go c.SSEHub.Run(ctx)
	}
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	if c.Client != nil {
		c.Client.Close()
	}

	if c.SQLCache != nil {
		if purged, err := c.SQLCache.PurgeExpired(ctx); err != nil {
			c.Logger.Warn("failed to purge expired responses: %v", err)
		} else if purged > 0 {
			c.Logger.Info("purged %d expired cached responses", purged)
		}
		return c.SQLCache.Close()
	}
	return nil
}
