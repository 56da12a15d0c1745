package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"popdash/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig
	WorldBank WorldBankConfig
	Cache     CacheConfig
	Dashboard DashboardConfig
	Log       LogConfig
	Profiling ProfilingConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string
	APIPort string
	GinMode string
}

// WorldBankConfig holds settings for the statistics API client
type WorldBankConfig struct {
	BaseURL               string
	Timeout               time.Duration
	RateLimitPerMinute    int
	MaxConcurrentRequests int
	MaxPages              int
}

// CacheConfig selects the response cache backend
type CacheConfig struct {
	Driver      string // memory, postgres, sqlite3, none
	DatabaseURL string
	TTL         time.Duration
}

// DashboardConfig holds data selection settings
type DashboardConfig struct {
	ReferenceYear int
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string
}

// ProfilingConfig holds performance profiling settings
type ProfilingConfig struct {
	Port    string
	Enabled bool
}

// Cache drivers
const (
	CacheDriverMemory   = "memory"
	CacheDriverPostgres = "postgres"
	CacheDriverSQLite   = "sqlite3"
	CacheDriverNone     = "none"
)

// DefaultBaseURL is the public World Bank API host
const DefaultBaseURL = "https://api.worldbank.org"

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	config := &Config{
		Server:    *loadServerConfig(),
		WorldBank: *loadWorldBankConfig(),
		Cache:     *loadCacheConfig(),
		Dashboard: *loadDashboardConfig(),
		Log:       LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "INFO")},
		Profiling: *loadProfilingConfig(),
	}

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		APIPort: getEnvOrDefault("API_PORT", "8081"),
		GinMode: getEnvOrDefault("GIN_MODE", "release"),
	}
}

func loadWorldBankConfig() *WorldBankConfig {
	return &WorldBankConfig{
		BaseURL:               strings.TrimRight(getEnvOrDefault("WORLDBANK_BASE_URL", DefaultBaseURL), "/"),
		Timeout:               getEnvDurationOrDefault("HTTP_TIMEOUT", 15*time.Second),
		RateLimitPerMinute:    getEnvIntOrDefault("RATE_LIMIT_PER_MINUTE", 120),
		MaxConcurrentRequests: getEnvIntOrDefault("MAX_CONCURRENT_REQUESTS", 4),
		MaxPages:              getEnvIntOrDefault("MAX_PAGES", 5),
	}
}

func loadCacheConfig() *CacheConfig {
	return &CacheConfig{
		Driver:      strings.ToLower(getEnvOrDefault("CACHE_DRIVER", CacheDriverMemory)),
		DatabaseURL: getEnvOrDefault("DATABASE_URL", ""),
		TTL:         getEnvDurationOrDefault("CACHE_TTL", 6*time.Hour),
	}
}

func loadDashboardConfig() *DashboardConfig {
	return &DashboardConfig{
		ReferenceYear: getEnvIntOrDefault("REFERENCE_YEAR", 2023),
	}
}

func loadProfilingConfig() *ProfilingConfig {
	return &ProfilingConfig{
		Port:    getEnvOrDefault("PPROF_PORT", "6060"),
		Enabled: getEnvBoolOrDefault("PPROF_ENABLED", false),
	}
}

func validateConfig(config *Config) error {
	if config.WorldBank.BaseURL == "" {
		return errors.ConfigInvalid("WORLDBANK_BASE_URL is required")
	}
	if config.WorldBank.RateLimitPerMinute <= 0 {
		return errors.ConfigInvalid("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if config.WorldBank.MaxConcurrentRequests <= 0 {
		return errors.ConfigInvalid("MAX_CONCURRENT_REQUESTS must be positive")
	}
	if config.WorldBank.MaxPages <= 0 {
		return errors.ConfigInvalid("MAX_PAGES must be positive")
	}
	if config.Dashboard.ReferenceYear < 1961 {
		return errors.ConfigInvalid("REFERENCE_YEAR must be after 1960")
	}
	switch config.Cache.Driver {
	case CacheDriverMemory, CacheDriverNone:
	case CacheDriverPostgres, CacheDriverSQLite:
		if config.Cache.DatabaseURL == "" {
			return errors.ConfigInvalid("DATABASE_URL is required for the " + config.Cache.Driver + " cache")
		}
	default:
		return errors.ConfigInvalid("unsupported CACHE_DRIVER: " + config.Cache.Driver)
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
