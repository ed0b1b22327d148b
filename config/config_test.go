package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"sjsage522/steamdealworker/pkg/errors"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, "localhost:6379", config.RedisAddr)
	assert.Equal(t, 0, config.RedisDB)
	assert.Equal(t, 1, config.RedisStreamCount)
	assert.Equal(t, "", config.MemcacheAddr)
	assert.Equal(t, 150*time.Millisecond, config.PriceCheckDelay)
	assert.Equal(t, 100, config.PriceCheckMaxItems)
	assert.Equal(t, 10*time.Minute, config.PipelineBudget)
	assert.Equal(t, "ru", config.SteamCountry)
	assert.Equal(t, 15, config.WeeklyTopLimit)
	assert.NoError(t, config.Validate())

	// Test with environment variables
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "1")
	t.Setenv("MEMCACHE_ADDR", "memcache.example.com:11211")
	t.Setenv("PRICE_CHECK_DELAY_MS", "400")
	t.Setenv("PRICE_CHECK_CONCURRENCY", "3")
	t.Setenv("STEAM_STORE_URL", "https://example.com/store")
	t.Setenv("DIGEST_INTERVAL_SECONDS", "30")

	config = LoadConfig()
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 1, config.RedisDB)
	assert.Equal(t, "memcache.example.com:11211", config.MemcacheAddr)
	assert.Equal(t, 400*time.Millisecond, config.PriceCheckDelay)
	assert.Equal(t, 3, config.PriceCheckConcurrency)
	assert.Equal(t, "https://example.com/store", config.SteamStoreURL)
	assert.Equal(t, 30*time.Second, config.DigestInterval)
}

func TestLoadConfigIgnoresGarbageNumbers(t *testing.T) {
	t.Setenv("PRICE_CHECK_MAX_ITEMS", "lots")

	config := LoadConfig()
	assert.Equal(t, 100, config.PriceCheckMaxItems)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero streams", func(c *Config) { c.RedisStreamCount = 0 }, true},
		{"zero concurrency", func(c *Config) { c.PriceCheckConcurrency = 0 }, true},
		{"discount above 100", func(c *Config) { c.SpecialsMinDiscount = 101 }, true},
		{"tiers out of order", func(c *Config) { c.PriceTierMid = 100 }, true},
		{"backoff cap below base", func(c *Config) { c.RateLimitBackoffMax = time.Second }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := LoadConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
