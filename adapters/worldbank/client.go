// Package worldbank fetches indicator series for the world aggregate from the
// World Bank v2 REST API.
package worldbank

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"

	"popdash/domain/core"
	"popdash/domain/population"
	"popdash/internal"
	"popdash/ports"
)

// Country is the aggregate every request is scoped to.
const Country = "WLD"

// maxErrorBody caps how much of a failed response is kept in the error.
const maxErrorBody = 512

// Config holds client settings.
type Config struct {
	BaseURL               string
	Timeout               time.Duration
	RateLimitPerMinute    int
	MaxConcurrentRequests int
	MaxPages              int
	// MaxResponseBytes caps a single response page.
	MaxResponseBytes int64
}

// DefaultConfig returns sensible defaults for the public API
func DefaultConfig() Config {
	return Config{
		BaseURL:               "https://api.worldbank.org",
		Timeout:               15 * time.Second,
		RateLimitPerMinute:    120,
		MaxConcurrentRequests: 4,
		MaxPages:              5,
		MaxResponseBytes:      8 << 20,
	}
}

// Client implements ports.IndicatorFetcher.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *RateLimiter
	sem        *semaphore.Weighted
	cache      ports.ResponseCache
	cacheTTL   time.Duration
	maxPages   int
	maxBody    int64
	logger     *internal.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithCache serves and stores response pages through cache.
func WithCache(cache ports.ResponseCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		c.cacheTTL = ttl
	}
}

// WithLogger sets the logger.
func WithLogger(logger *internal.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

var _ ports.IndicatorFetcher = (*Client)(nil)

// NewClient creates a new API client
func NewClient(cfg Config, opts ...Option) *Client {
	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = defaults.RateLimitPerMinute
	}
	if cfg.MaxConcurrentRequests <= 0 {
		cfg.MaxConcurrentRequests = defaults.MaxConcurrentRequests
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaults.MaxPages
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = defaults.MaxResponseBytes
	}

	c := &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    NewRateLimiter(cfg.RateLimitPerMinute),
		sem:        semaphore.NewWeighted(int64(cfg.MaxConcurrentRequests)),
		maxPages:   cfg.MaxPages,
		maxBody:    cfg.MaxResponseBytes,
		logger:     internal.DefaultLogger.WithComponent("worldbank"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close stops the rate limiter refill loop.
func (c *Client) Close() {
	c.limiter.Stop()
}

// Fetch returns the series for code over the inclusive range startYear:endYear.
func (c *Client) Fetch(ctx context.Context, code population.Indicator, startYear, endYear int) (population.IndicatorSeries, error) {
	if err := population.ValidateRange(code, startYear, endYear); err != nil {
		return nil, err
	}

	dateQuery := fmt.Sprintf("%d:%d", startYear, endYear)
	records, err := c.fetchAll(ctx, code, dateQuery, startYear, endYear)
	if err != nil {
		return nil, err
	}
	return population.SeriesFromRecords(records), nil
}

// FetchYear returns the records for a single year.
func (c *Client) FetchYear(ctx context.Context, code population.Indicator, year int) ([]population.Record, error) {
	if err := population.ValidateRange(code, year, year); err != nil {
		return nil, err
	}
	return c.fetchAll(ctx, code, strconv.Itoa(year), year, year)
}

// IndicatorURL builds the request URL for a date query ("2020:2023" or "2023").
// page <= 1 omits the page parameter.
func (c *Client) IndicatorURL(code population.Indicator, dateQuery string, page int) string {
	url := fmt.Sprintf("%s/v2/country/%s/indicator/%s?date=%s&format=json", c.baseURL, Country, code, dateQuery)
	if page > 1 {
		url += "&page=" + strconv.Itoa(page)
	}
	return url
}

// fetchAll follows pagination up to maxPages and concatenates the records.
func (c *Client) fetchAll(ctx context.Context, code population.Indicator, dateQuery string, start, end int) ([]population.Record, error) {
	meta, records, err := c.fetchPage(ctx, code, dateQuery, 1, start, end)
	if err != nil {
		return nil, err
	}

	lastPage := meta.Pages
	if lastPage > c.maxPages {
		c.logger.Warn("%s %s spans %d pages, reading first %d", code, dateQuery, meta.Pages, c.maxPages)
		lastPage = c.maxPages
	}

	for page := 2; page <= lastPage; page++ {
		_, more, err := c.fetchPage(ctx, code, dateQuery, page, start, end)
		if err != nil {
			return nil, err
		}
		records = append(records, more...)
	}

	c.logger.Debug("fetched %d records for %s %s", len(records), code, dateQuery)
	return records, nil
}

func (c *Client) fetchPage(ctx context.Context, code population.Indicator, dateQuery string, page, start, end int) (pageMeta, []population.Record, error) {
	url := c.IndicatorURL(code, dateQuery, page)

	if body, ok := c.cached(ctx, url); ok {
		meta, records, err := parseEnvelope(body)
		if err == nil {
			c.logger.Trace("cache hit %s", url)
			return meta, records, nil
		}
		c.logger.Warn("discarding unreadable cache entry for %s: %v", url, err)
	}

	body, err := c.get(ctx, url, code, start, end)
	if err != nil {
		return pageMeta{}, nil, err
	}

	meta, records, err := parseEnvelope(body)
	if err != nil {
		return pageMeta{}, nil, population.NewMalformedResponseError(code, start, end, err)
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, url, body, c.cacheTTL); err != nil {
			c.logger.Warn("failed to cache %s: %v", url, err)
		}
	}
	return meta, records, nil
}

func (c *Client) cached(ctx context.Context, url string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	body, err := c.cache.Get(ctx, url)
	if err != nil {
		if !errors.Is(err, core.ErrCacheMiss) {
			c.logger.Warn("cache lookup failed for %s: %v", url, err)
		}
		return nil, false
	}
	return body, true
}

// get performs one rate-limited, concurrency-bounded GET.
func (c *Client) get(ctx context.Context, url string, code population.Indicator, start, end int) ([]byte, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, population.NewRemoteFetchError(code, start, end, 0, err)
	}
	defer c.sem.Release(1)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, population.NewRemoteFetchError(code, start, end, 0, fmt.Errorf("rate limit wait: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, population.NewRemoteFetchError(code, start, end, 0, fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	reqStart := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, population.NewRemoteFetchError(code, start, end, 0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, population.NewRemoteFetchError(code, start, end, resp.StatusCode, fmt.Errorf("failed to read response: %w", err))
	}

	c.logger.Debug("GET %s -> %d in %s", url, resp.StatusCode, time.Since(reqStart))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := body
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		var cause error
		if len(snippet) > 0 {
			cause = errors.New(string(snippet))
		}
		return nil, population.NewRemoteFetchError(code, start, end, resp.StatusCode, cause)
	}
	if int64(len(body)) > c.maxBody {
		return nil, population.NewMalformedResponseError(code, start, end,
			fmt.Errorf("response exceeds %d bytes", c.maxBody))
	}
	return body, nil
}
