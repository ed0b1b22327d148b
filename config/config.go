package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"sjsage522/steamdealworker/pkg/errors"
)

// Config represents the application configuration
type Config struct {
	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int64

	// Memcache configuration, empty means an in-process cache
	MemcacheAddr string

	// Postgres configuration, empty disables the weekly-top store
	PostgresDSN string

	// Digest worker configuration
	DigestInterval      time.Duration
	SpecialsMinDiscount int
	SpecialsMaxResults  int
	WeeklyTopLimit      int

	// Steam endpoints and locale
	SteamCountry      string
	SteamLanguage     string
	SteamWebAPIKey    string
	SteamCommunityURL string
	SteamStoreURL     string
	SteamAPIURL       string
	HTTPTimeout       time.Duration

	// Price checking
	PriceCheckDelay       time.Duration
	PriceCheckMaxItems    int
	PriceCheckConcurrency int
	PipelineBudget        time.Duration

	// Rate-limit back-off
	RateLimitBackoff    time.Duration
	RateLimitBackoffMax time.Duration

	// Scoring price tiers in minor units
	PriceTierCheap   int64
	PriceTierMid     int64
	PriceTierPremium int64

	// Metrics listen address, empty disables the endpoint
	MetricsAddr string

	// Environment
	Environment string
}

// Load reads a .env file if present and then loads the configuration
func Load() *Config {
	_ = godotenv.Load()
	return LoadConfig()
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:               getEnvInt("REDIS_DB", 0),
		RedisStream:           getEnv("REDIS_STREAM", "steamdeals"),
		RedisStreamCount:      getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength:  int64(getEnvInt("REDIS_STREAM_MAX_LENGTH", 500)),
		MemcacheAddr:          getEnv("MEMCACHE_ADDR", ""),
		PostgresDSN:           getEnv("POSTGRES_DSN", ""),
		DigestInterval:        getEnvSeconds("DIGEST_INTERVAL_SECONDS", 6*60*60),
		SpecialsMinDiscount:   getEnvInt("SPECIALS_MIN_DISCOUNT", 30),
		SpecialsMaxResults:    getEnvInt("SPECIALS_MAX_RESULTS", 50),
		WeeklyTopLimit:        getEnvInt("WEEKLY_TOP_LIMIT", 15),
		SteamCountry:          getEnv("STEAM_COUNTRY", "ru"),
		SteamLanguage:         getEnv("STEAM_LANGUAGE", "english"),
		SteamWebAPIKey:        getEnv("STEAM_WEB_API_KEY", ""),
		SteamCommunityURL:     getEnv("STEAM_COMMUNITY_URL", "https://steamcommunity.com"),
		SteamStoreURL:         getEnv("STEAM_STORE_URL", "https://store.steampowered.com"),
		SteamAPIURL:           getEnv("STEAM_API_URL", "https://api.steampowered.com"),
		HTTPTimeout:           getEnvSeconds("HTTP_TIMEOUT_SECONDS", 30),
		PriceCheckDelay:       time.Duration(getEnvInt("PRICE_CHECK_DELAY_MS", 150)) * time.Millisecond,
		PriceCheckMaxItems:    getEnvInt("PRICE_CHECK_MAX_ITEMS", 100),
		PriceCheckConcurrency: getEnvInt("PRICE_CHECK_CONCURRENCY", 1),
		PipelineBudget:        getEnvSeconds("PIPELINE_BUDGET_SECONDS", 600),
		RateLimitBackoff:      getEnvSeconds("RATE_LIMIT_BACKOFF_SECONDS", 30),
		RateLimitBackoffMax:   getEnvSeconds("RATE_LIMIT_BACKOFF_MAX_SECONDS", 600),
		PriceTierCheap:        int64(getEnvInt("PRICE_TIER_CHEAP", 500)),
		PriceTierMid:          int64(getEnvInt("PRICE_TIER_MID", 1500)),
		PriceTierPremium:      int64(getEnvInt("PRICE_TIER_PREMIUM", 3000)),
		MetricsAddr:           getEnv("METRICS_ADDR", ""),
		Environment:           getEnv("STEAMDEAL_ENVIRONMENT", "development"),
	}
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return errors.NewConfiguration("invalid configuration", err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.RedisStreamCount < 1 {
		return fmt.Errorf("REDIS_STREAM_COUNT must be at least 1, got %d", c.RedisStreamCount)
	}
	if c.DigestInterval <= 0 {
		return fmt.Errorf("DIGEST_INTERVAL_SECONDS must be positive")
	}
	if c.SpecialsMinDiscount < 0 || c.SpecialsMinDiscount > 100 {
		return fmt.Errorf("SPECIALS_MIN_DISCOUNT must be between 0 and 100, got %d", c.SpecialsMinDiscount)
	}
	if c.PriceCheckConcurrency < 1 {
		return fmt.Errorf("PRICE_CHECK_CONCURRENCY must be at least 1, got %d", c.PriceCheckConcurrency)
	}
	if c.PriceCheckDelay < 0 {
		return fmt.Errorf("PRICE_CHECK_DELAY_MS must not be negative")
	}
	if !(c.PriceTierCheap < c.PriceTierMid && c.PriceTierMid < c.PriceTierPremium) {
		return fmt.Errorf("price tiers must be increasing: %d < %d < %d",
			c.PriceTierCheap, c.PriceTierMid, c.PriceTierPremium)
	}
	if c.RateLimitBackoffMax < c.RateLimitBackoff {
		return fmt.Errorf("RATE_LIMIT_BACKOFF_MAX_SECONDS must not be below RATE_LIMIT_BACKOFF_SECONDS")
	}
	return nil
}

// IsProduction reports whether the worker runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}
