package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DEFAULT_GROUP_SIZE", "")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "http://localhost:9090", cfg.BaseURL)
	assert.Equal(t, 4, cfg.DefaultGroupSize)
	assert.Equal(t, 5*time.Minute, cfg.MatchingInterval)
	assert.Equal(t, 30*time.Minute, cfg.CatalogCacheTTL)
	assert.True(t, cfg.EnableScheduler)
	require.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DEFAULT_GROUP_SIZE", "6")
	t.Setenv("MATCHING_RANDOM_SEED", "42")
	t.Setenv("TMDB_RATE_LIMIT", "2.5")
	t.Setenv("TMDB_TIMEOUT", "not-a-duration")
	t.Setenv("ENABLE_MATCHING_SCHEDULER", "false")

	cfg := Load()

	assert.Equal(t, 6, cfg.DefaultGroupSize)
	assert.Equal(t, int64(42), cfg.MatchingSeed)
	assert.Equal(t, 2.5, cfg.TMDBRateLimit)
	assert.Equal(t, 10*time.Second, cfg.TMDBTimeout)
	assert.False(t, cfg.EnableScheduler)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"group size too small", func(c *Config) { c.DefaultGroupSize = 1 }, false},
		{"group size too large", func(c *Config) { c.DefaultGroupSize = 21 }, false},
		{"no database", func(c *Config) { c.DatabaseURL = "" }, false},
		{"zero rate limit", func(c *Config) { c.TMDBRateLimit = 0 }, false},
		{"production default secret", func(c *Config) { c.Environment = "production"; c.TMDBAPIKey = "k" }, false},
		{"production without tmdb key", func(c *Config) { c.Environment = "production"; c.JWTSecret = "s3cret" }, false},
		{"production ready", func(c *Config) { c.Environment = "production"; c.JWTSecret = "s3cret"; c.TMDBAPIKey = "k" }, true},
		{"interval too short", func(c *Config) { c.MatchingInterval = time.Millisecond }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
