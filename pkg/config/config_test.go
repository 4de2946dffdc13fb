package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Server:   ServerConfig{Host: "0.0.0.0", Port: 8080},
		Cache:    CacheConfig{Backend: "memory", CeilingMultiplier: 3},
		Facility: FacilityConfig{Backend: "postgres", ResultLimit: 5},
		Monitor:  MonitorConfig{Interval: time.Minute, AEWaitThreshold: 8 * time.Hour, AQHIThreshold: 8},
		Upstream: UpstreamConfig{FetchTimeout: 5 * time.Second},
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative ttl", func(c *Config) { c.Cache.AirQualityTTL = -time.Second }},
		{"zero ceiling multiplier", func(c *Config) { c.Cache.CeilingMultiplier = 0 }},
		{"unknown cache backend", func(c *Config) { c.Cache.Backend = "memcached" }},
		{"unknown facility backend", func(c *Config) { c.Facility.Backend = "mongo" }},
		{"non-positive result limit", func(c *Config) { c.Facility.ResultLimit = 0 }},
		{"non-positive monitor interval", func(c *Config) { c.Monitor.Interval = 0 }},
		{"non-positive fetch timeout", func(c *Config) { c.Upstream.FetchTimeout = 0 }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadUsesDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 3, cfg.Cache.CeilingMultiplier)
	assert.Equal(t, 5, cfg.Facility.ResultLimit)
	assert.Equal(t, 5*time.Second, cfg.Upstream.FetchTimeout)
	assert.Equal(t, time.Minute, cfg.Monitor.Interval)
}

func TestLoadRejectsUnparseableEnvValues(t *testing.T) {
	t.Setenv("CACHE_TTL_FACILITIES", "banana")
	t.Setenv("CACHE_CEILING_MULTIPLIER", "not-a-number")

	cfg, err := Load()

	require.Error(t, err)
	assert.Nil(t, cfg)
	// Every bad variable is named, not just the first one hit
	assert.ErrorContains(t, err, "CACHE_TTL_FACILITIES")
	assert.ErrorContains(t, err, "CACHE_CEILING_MULTIPLIER")
}

func TestDurationEnvAcceptsBareSeconds(t *testing.T) {
	t.Setenv("CACHE_TTL_AIR_QUALITY", "600")
	t.Setenv("CACHE_TTL_AE_WAITING_TIMES", "3m")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 600*time.Second, cfg.Cache.AirQualityTTL)
	assert.Equal(t, 3*time.Minute, cfg.Cache.AEWaitTimesTTL)
}
