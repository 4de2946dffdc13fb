package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Typesense TypesenseConfig
	Upstream  UpstreamConfig
	Cache     CacheConfig
	Facility  FacilityConfig
	Monitor   MonitorConfig
	OTEL      OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	URL    string
	APIKey string
}

// UpstreamConfig holds the base URLs for live data sources and the
// per-fetch timeout applied to every upstream call
type UpstreamConfig struct {
	AEWaitTimesURL    string
	AirQualityURL     string
	HealthAdvisoryURL string
	FetchTimeout      time.Duration
}

// CacheConfig holds freshness-cache configuration. TTL overrides of zero
// mean "use the built-in default for that data type"; negative values are
// rejected at startup.
type CacheConfig struct {
	Backend           string // "memory" or "redis"
	FacilitiesTTL     time.Duration
	AEWaitTimesTTL    time.Duration
	AirQualityTTL     time.Duration
	HealthAdvisoryTTL time.Duration
	CeilingMultiplier int
}

// FacilityConfig holds facility query configuration
type FacilityConfig struct {
	Backend     string // "postgres" or "typesense"
	ResultLimit int
}

// MonitorConfig holds emergency-monitor configuration
type MonitorConfig struct {
	Interval        time.Duration
	AEWaitThreshold time.Duration
	AQHIThreshold   int
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables and validates it.
// Invalid values are a fatal startup error, never silently defaulted.
func Load() (*Config, error) {
	env := &envReader{}
	cfg := &Config{
		Server: ServerConfig{
			Host: env.str("SERVER_HOST", "0.0.0.0"),
			Port: env.intVal("SERVER_PORT", 8080),
		},
		Database: DatabaseConfig{
			Host:     env.str("DB_HOST", "localhost"),
			Port:     env.intVal("DB_PORT", 5432),
			User:     env.str("DB_USER", "postgres"),
			Password: env.str("DB_PASSWORD", ""),
			Database: env.str("DB_NAME", "healthcare_ai"),
			SSLMode:  env.str("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     env.str("REDIS_HOST", "localhost"),
			Port:     env.intVal("REDIS_PORT", 6379),
			Password: env.str("REDIS_PASSWORD", ""),
			DB:       env.intVal("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			URL:    env.str("TYPESENSE_URL", "http://localhost:8108"),
			APIKey: env.str("TYPESENSE_API_KEY", "xyz"),
		},
		Upstream: UpstreamConfig{
			AEWaitTimesURL:    env.str("UPSTREAM_AE_WAIT_URL", "https://www.ha.org.hk/opendata/aed/aedwtdata-en.json"),
			AirQualityURL:     env.str("UPSTREAM_AQHI_URL", "https://dashboard.data.gov.hk/api/aqhi-individual"),
			HealthAdvisoryURL: env.str("UPSTREAM_ADVISORY_URL", "https://www.chp.gov.hk/api/advisories"),
			FetchTimeout:      env.durationVal("UPSTREAM_FETCH_TIMEOUT", 5*time.Second),
		},
		Cache: CacheConfig{
			Backend:           env.str("CACHE_BACKEND", "memory"),
			FacilitiesTTL:     env.durationVal("CACHE_TTL_FACILITIES", 0),
			AEWaitTimesTTL:    env.durationVal("CACHE_TTL_AE_WAITING_TIMES", 0),
			AirQualityTTL:     env.durationVal("CACHE_TTL_AIR_QUALITY", 0),
			HealthAdvisoryTTL: env.durationVal("CACHE_TTL_HEALTH_ADVISORIES", 0),
			CeilingMultiplier: env.intVal("CACHE_CEILING_MULTIPLIER", 3),
		},
		Facility: FacilityConfig{
			Backend:     env.str("FACILITY_BACKEND", "postgres"),
			ResultLimit: env.intVal("FACILITY_RESULT_LIMIT", 5),
		},
		Monitor: MonitorConfig{
			Interval:        env.durationVal("MONITOR_INTERVAL", 60*time.Second),
			AEWaitThreshold: env.durationVal("MONITOR_AE_WAIT_THRESHOLD", 8*time.Hour),
			AQHIThreshold:   env.intVal("MONITOR_AQHI_THRESHOLD", 8),
		},
		OTEL: OTELConfig{
			ServiceName:    env.str("OTEL_SERVICE_NAME", "healthcare-ai-realtime"),
			ServiceVersion: env.str("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       env.str("OTEL_ENDPOINT", ""),
			Enabled:        env.boolVal("OTEL_ENABLED", false),
		},
	}

	if err := errors.Join(env.errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values that would otherwise fail
// at an arbitrary point later
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	for name, ttl := range map[string]time.Duration{
		"CACHE_TTL_FACILITIES":        c.Cache.FacilitiesTTL,
		"CACHE_TTL_AE_WAITING_TIMES":  c.Cache.AEWaitTimesTTL,
		"CACHE_TTL_AIR_QUALITY":       c.Cache.AirQualityTTL,
		"CACHE_TTL_HEALTH_ADVISORIES": c.Cache.HealthAdvisoryTTL,
	} {
		if ttl < 0 {
			return fmt.Errorf("%s must not be negative, got %s", name, ttl)
		}
	}
	if c.Cache.CeilingMultiplier < 1 {
		return fmt.Errorf("CACHE_CEILING_MULTIPLIER must be at least 1, got %d", c.Cache.CeilingMultiplier)
	}
	if c.Cache.Backend != "memory" && c.Cache.Backend != "redis" {
		return fmt.Errorf("unknown cache backend: %q", c.Cache.Backend)
	}
	if c.Facility.Backend != "postgres" && c.Facility.Backend != "typesense" {
		return fmt.Errorf("unknown facility backend: %q", c.Facility.Backend)
	}
	if c.Facility.ResultLimit <= 0 {
		return fmt.Errorf("FACILITY_RESULT_LIMIT must be positive, got %d", c.Facility.ResultLimit)
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("MONITOR_INTERVAL must be positive, got %s", c.Monitor.Interval)
	}
	if c.Upstream.FetchTimeout <= 0 {
		return fmt.Errorf("UPSTREAM_FETCH_TIMEOUT must be positive, got %s", c.Upstream.FetchTimeout)
	}
	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// envReader reads typed environment variables and records every parse
// failure so Load can report them all in one fatal error.
type envReader struct {
	errs []error
}

func (r *envReader) str(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func (r *envReader) intVal(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intVal, err := strconv.Atoi(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, value))
		return defaultValue
	}
	return intVal
}

func (r *envReader) boolVal(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, value))
		return defaultValue
	}
	return boolVal
}

func (r *envReader) durationVal(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare numbers are read as seconds for compatibility with the
	// original TTL tables
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, value))
	return defaultValue
}
