// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names recognized by the service. Isolation enforcement is
// always strict in production; the development carve-outs in the middleware
// layer only apply outside it.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config holds all application configuration
type Config struct {
	Environment string

	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Cache    CacheConfig
	Token    TokenConfig
	MFA      MFAConfig
	Security SecurityConfig
	LogLevel string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// PostgresConfig holds relational store configuration
type PostgresConfig struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
	QueryTimeout time.Duration
}

// RedisConfig holds distributed cache store configuration
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// CacheConfig holds TTLs for the cache tiers. The L1 TTL must never exceed
// an L2 TTL for the same namespace.
type CacheConfig struct {
	L1TTL     time.Duration
	L1MaxSize int

	TenantTTL          time.Duration
	RolePermissionsTTL time.Duration
}

// TokenConfig holds JWT signing configuration
type TokenConfig struct {
	Issuer          string
	AccessTTL       time.Duration
	RefreshTTL      time.Duration
	AccessKeyName   string
	RefreshKeyName  string
	RotationOverlap time.Duration
}

// MFAConfig holds MFA challenge configuration
type MFAConfig struct {
	ChallengeTTL time.Duration
	SetupTTL     time.Duration
	TOTPIssuer   string
	BackupCodes  int
}

// SecurityConfig holds operational security settings
type SecurityConfig struct {
	// InternalKey gates the health/ops endpoints (x-internal-key header).
	InternalKey string

	// RateLimitPerMinute bounds login/MFA attempts per (tenant, ip).
	RateLimitPerMinute int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("IDENTITYD_ENV", EnvDevelopment),
		LogLevel:    getEnv("IDENTITYD_LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:            getEnv("IDENTITYD_HOST", "0.0.0.0"),
			Port:            getEnv("IDENTITYD_PORT", "8080"),
			ReadTimeout:     getEnvDuration("IDENTITYD_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("IDENTITYD_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("IDENTITYD_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("IDENTITYD_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("IDENTITYD_HEALTH_PORT", "9090"),
		},
		Postgres: PostgresConfig{
			URL:          getEnv("IDENTITYD_POSTGRES_URL", ""),
			MaxOpenConns: getEnvInt("IDENTITYD_POSTGRES_MAX_CONNS", 20),
			MaxIdleConns: getEnvInt("IDENTITYD_POSTGRES_IDLE_CONNS", 2),
			QueryTimeout: getEnvDuration("IDENTITYD_POSTGRES_TIMEOUT", 5*time.Second),
		},
		Redis: RedisConfig{
			URL:        getEnv("IDENTITYD_REDIS_URL", "redis://localhost:6379"),
			Password:   getEnv("IDENTITYD_REDIS_PASSWORD", ""),
			DB:         getEnvInt("IDENTITYD_REDIS_DB", 0),
			MaxRetries: getEnvInt("IDENTITYD_REDIS_MAX_RETRIES", 3),
			PoolSize:   getEnvInt("IDENTITYD_REDIS_POOL_SIZE", 10),
		},
		Cache: CacheConfig{
			L1TTL:              getEnvDuration("IDENTITYD_CACHE_L1_TTL", 2*time.Second),
			L1MaxSize:          getEnvInt("IDENTITYD_CACHE_L1_SIZE", 4096),
			TenantTTL:          getEnvDuration("IDENTITYD_CACHE_TENANT_TTL", 10*time.Minute),
			RolePermissionsTTL: getEnvDuration("IDENTITYD_CACHE_ROLE_TTL", 15*time.Minute),
		},
		Token: TokenConfig{
			Issuer:          getEnv("IDENTITYD_TOKEN_ISSUER", "identityd"),
			AccessTTL:       getEnvDuration("IDENTITYD_ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTTL:      getEnvDuration("IDENTITYD_REFRESH_TOKEN_TTL", 7*24*time.Hour),
			AccessKeyName:   getEnv("IDENTITYD_ACCESS_KEY_NAME", "jwt-access-secret"),
			RefreshKeyName:  getEnv("IDENTITYD_REFRESH_KEY_NAME", "jwt-refresh-secret"),
			RotationOverlap: getEnvDuration("IDENTITYD_KEY_ROTATION_OVERLAP", 2*time.Hour),
		},
		MFA: MFAConfig{
			ChallengeTTL: getEnvDuration("IDENTITYD_MFA_CHALLENGE_TTL", 5*time.Minute),
			SetupTTL:     getEnvDuration("IDENTITYD_MFA_SETUP_TTL", 10*time.Minute),
			TOTPIssuer:   getEnv("IDENTITYD_TOTP_ISSUER", "erp-sub005"),
			BackupCodes:  getEnvInt("IDENTITYD_MFA_BACKUP_CODES", 10),
		},
		Security: SecurityConfig{
			InternalKey:        getEnv("IDENTITYD_INTERNAL_KEY", ""),
			RateLimitPerMinute: getEnvInt("IDENTITYD_RATE_LIMIT_PER_MINUTE", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid combinations
func (c *Config) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}

	if c.Postgres.URL == "" {
		return fmt.Errorf("IDENTITYD_POSTGRES_URL is required")
	}

	if c.Cache.L1TTL > c.Cache.TenantTTL {
		return fmt.Errorf("L1 TTL (%s) must not exceed tenant L2 TTL (%s)", c.Cache.L1TTL, c.Cache.TenantTTL)
	}
	if c.Cache.L1TTL > c.Cache.RolePermissionsTTL {
		return fmt.Errorf("L1 TTL (%s) must not exceed role L2 TTL (%s)", c.Cache.L1TTL, c.Cache.RolePermissionsTTL)
	}

	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.Token.RotationOverlap < c.Token.AccessTTL {
		return fmt.Errorf("key rotation overlap (%s) must cover the access token lifetime (%s)", c.Token.RotationOverlap, c.Token.AccessTTL)
	}

	if c.IsProduction() && c.Security.InternalKey == "" {
		return fmt.Errorf("IDENTITYD_INTERNAL_KEY is required in production")
	}

	return nil
}

// IsProduction reports whether the service runs in a production-like environment
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns an environment variable as an integer or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns an environment variable as a duration or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return defaultValue
}
