// Package config provides configuration management for the data API.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Ledger, store and cache drivers
const (
	LedgerDriverSQLite   = "sqlite"
	LedgerDriverPostgres = "postgres"

	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"

	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

// Config holds all configuration for the data API.
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Cipher       CipherConfig       `mapstructure:"cipher"`
	Ledger       LedgerConfig       `mapstructure:"ledger"`
	Store        StoreConfig        `mapstructure:"store"`
	Cache        CacheConfig        `mapstructure:"cache"`
	Provisioning ProvisioningConfig `mapstructure:"provisioning"`
	Health       HealthConfig       `mapstructure:"health"`
	RateLimiter  RateLimiterConfig  `mapstructure:"rate_limiter"`
	Metrics      MetricsConfig      `mapstructure:"metrics"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port               int           `mapstructure:"port"`
	ReadTimeout        time.Duration `mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout    time.Duration `mapstructure:"shutdown_timeout"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
	MaxBodyBytes       int64         `mapstructure:"max_body_bytes"`
	CORSAllowedOrigins []string      `mapstructure:"cors_allowed_origins"`
}

// CipherConfig holds the tenant secret encryption key.
type CipherConfig struct {
	Key string `mapstructure:"key"`
}

// LedgerConfig selects and configures the credential ledger.
type LedgerConfig struct {
	Driver   string         `mapstructure:"driver"`
	Path     string         `mapstructure:"path"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
	MinConns int    `mapstructure:"min_conns"`
}

// StoreConfig selects and configures the document store.
type StoreConfig struct {
	Driver         string        `mapstructure:"driver"`
	URI            string        `mapstructure:"uri"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// CacheConfig configures the tenant cache.
type CacheConfig struct {
	Driver    string        `mapstructure:"driver"`
	TenantTTL time.Duration `mapstructure:"tenant_ttl"`
	MaxSize   int           `mapstructure:"max_size"`
	Redis     RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ProvisioningConfig bounds tenant provisioning.
type ProvisioningConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

// HealthConfig configures background dependency checks.
type HealthConfig struct {
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// RateLimiterConfig holds rate limiter configuration.
type RateLimiterConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	BurstSize         int     `mapstructure:"burst_size"`
}

// MetricsConfig holds Prometheus metrics configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/ymts-crud-api/")
	}

	v.SetEnvPrefix("YMTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// variables understood by earlier deployments
	v.BindEnv("server.port", "YMTS_SERVER_PORT", "PORT")
	v.BindEnv("store.uri", "YMTS_STORE_URI", "MONGO_URI")
	v.BindEnv("cipher.key", "YMTS_CIPHER_KEY", "ENCRYPTION_KEY")

	// Read config file (ignore if not found, use defaults/env)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.request_timeout", "30s")
	v.SetDefault("server.max_body_bytes", 10<<20)
	v.SetDefault("server.cors_allowed_origins", []string{"*.ymtsindia.net"})

	v.SetDefault("cipher.key", "")

	// Ledger defaults
	v.SetDefault("ledger.driver", LedgerDriverSQLite)
	v.SetDefault("ledger.path", "db.sqlite")
	v.SetDefault("ledger.postgres.host", "localhost")
	v.SetDefault("ledger.postgres.port", 5432)
	v.SetDefault("ledger.postgres.database", "ymts")
	v.SetDefault("ledger.postgres.user", "ymts")
	v.SetDefault("ledger.postgres.password", "")
	v.SetDefault("ledger.postgres.max_conns", 10)
	v.SetDefault("ledger.postgres.min_conns", 1)

	// Store defaults
	v.SetDefault("store.driver", StoreDriverMongo)
	v.SetDefault("store.uri", "mongodb://localhost:27017/dynamic-api")
	v.SetDefault("store.connect_timeout", "10s")

	// Cache defaults
	v.SetDefault("cache.driver", CacheDriverMemory)
	v.SetDefault("cache.tenant_ttl", "5m")
	v.SetDefault("cache.max_size", 10000)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)

	v.SetDefault("provisioning.timeout", "30s")
	v.SetDefault("health.check_interval", "5s")

	// Rate limiter defaults
	v.SetDefault("rate_limiter.enabled", true)
	v.SetDefault("rate_limiter.requests_per_second", 1000.0)
	v.SetDefault("rate_limiter.burst_size", 100)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// zero disables the per-request deadline
	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("server request timeout must not be negative")
	}

	switch c.Ledger.Driver {
	case LedgerDriverSQLite:
		if c.Ledger.Path == "" {
			return fmt.Errorf("ledger path is required for the sqlite driver")
		}
	case LedgerDriverPostgres:
		if c.Ledger.Postgres.Host == "" || c.Ledger.Postgres.Database == "" {
			return fmt.Errorf("ledger postgres host and database are required")
		}
	default:
		return fmt.Errorf("unknown ledger driver: %q", c.Ledger.Driver)
	}

	switch c.Store.Driver {
	case StoreDriverMongo:
		if c.Store.URI == "" {
			return fmt.Errorf("store uri is required for the mongo driver")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}

	switch c.Cache.Driver {
	case CacheDriverMemory, CacheDriverRedis:
	default:
		return fmt.Errorf("unknown cache driver: %q", c.Cache.Driver)
	}

	if c.Cache.TenantTTL <= 0 {
		return fmt.Errorf("cache tenant ttl must be positive")
	}

	if c.Provisioning.Timeout <= 0 {
		return fmt.Errorf("provisioning timeout must be positive")
	}

	if c.RateLimiter.Enabled {
		if c.RateLimiter.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate limiter requests per second must be positive")
		}
		if c.RateLimiter.BurstSize <= 0 {
			return fmt.Errorf("rate limiter burst size must be positive")
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			return fmt.Errorf("invalid metrics port: %d", c.Metrics.Port)
		}
	}

	return nil
}
