package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/identity/pkg/observability"
	"github.com/platinummonkey/identity/pkg/storage/postgres"
)

// EnvPrefix prefixes every environment variable read by Load
const EnvPrefix = "IDENTITY_"

// Session backends
const (
	SessionBackendPostgres = "postgres"
	SessionBackendRedis    = "redis"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig              `yaml:"server"`
	Database      postgres.ConnectionConfig `yaml:"database"`
	Redis         postgres.RedisConfig      `yaml:"redis"`
	Sessions      SessionConfig             `yaml:"sessions"`
	OIDC          OIDCConfig                `yaml:"oidc"`
	Agents        AgentCacheConfig          `yaml:"agents"`
	RootEmail     string                    `yaml:"root_email"`
	Observability ObservabilityConfig       `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`

	// Health/metrics server on its own port
	HealthPort string `yaml:"health_port"`
}

// SessionConfig holds the browser session settings
type SessionConfig struct {
	Backend       string        `yaml:"backend"`
	CookieName    string        `yaml:"cookie_name"`
	TTL           time.Duration `yaml:"ttl"`
	Secure        bool          `yaml:"secure"`
	PurgeSchedule string        `yaml:"purge_schedule"`
}

// OIDCConfig describes the identity provider
type OIDCConfig struct {
	IssuerURL   string `yaml:"issuer_url"`
	Audience    string `yaml:"audience"`
	UserInfoURL string `yaml:"userinfo_url"`
}

// AgentCacheConfig sizes the agent directory cache
type AgentCacheConfig struct {
	CacheSize int           `yaml:"cache_size"`
	CacheTTL  time.Duration `yaml:"cache_ttl"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel string `yaml:"log_level"`

	MetricsEnabled bool `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
			HealthPort:      "9090",
		},
		Database: postgres.ConnectionConfig{
			MaxConns:    20,
			MinConns:    2,
			Timeout:     5 * time.Second,
			MaxLifetime: 30 * time.Minute,
			MaxIdleTime: 5 * time.Minute,
		},
		Sessions: SessionConfig{
			Backend:       SessionBackendPostgres,
			CookieName:    "connect.sid",
			TTL:           14 * 24 * time.Hour,
			Secure:        true,
			PurgeSchedule: "@every 1h",
		},
		Agents: AgentCacheConfig{
			CacheSize: 1024,
			CacheTTL:  5 * time.Minute,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "identity",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file
// named by IDENTITY_CONFIG_FILE and finally IDENTITY_* environment variables
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(EnvPrefix + "CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Host, "HOST")
	setString(&c.Server.Port, "PORT")
	setDuration(&c.Server.ReadTimeout, "READ_TIMEOUT")
	setDuration(&c.Server.WriteTimeout, "WRITE_TIMEOUT")
	setDuration(&c.Server.IdleTimeout, "IDLE_TIMEOUT")
	setDuration(&c.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT")
	setInt64(&c.Server.MaxBodyBytes, "MAX_BODY_BYTES")
	setString(&c.Server.HealthPort, "HEALTH_PORT")

	setString(&c.Database.URL, "DATABASE_URL")
	setInt(&c.Database.MaxConns, "DATABASE_MAX_CONNS")
	setInt(&c.Database.MinConns, "DATABASE_MIN_CONNS")
	setDuration(&c.Database.Timeout, "DATABASE_TIMEOUT")
	setDuration(&c.Database.MaxLifetime, "DATABASE_MAX_LIFETIME")
	setDuration(&c.Database.MaxIdleTime, "DATABASE_MAX_IDLE_TIME")

	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")
	setInt(&c.Redis.MaxRetries, "REDIS_MAX_RETRIES")
	setInt(&c.Redis.PoolSize, "REDIS_POOL_SIZE")

	setString(&c.Sessions.Backend, "SESSION_BACKEND")
	setString(&c.Sessions.CookieName, "SESSION_COOKIE_NAME")
	setDuration(&c.Sessions.TTL, "SESSION_TTL")
	setBool(&c.Sessions.Secure, "SESSION_SECURE")
	setString(&c.Sessions.PurgeSchedule, "SESSION_PURGE_SCHEDULE")

	setString(&c.OIDC.IssuerURL, "OIDC_ISSUER_URL")
	setString(&c.OIDC.Audience, "OIDC_AUDIENCE")
	setString(&c.OIDC.UserInfoURL, "OIDC_USERINFO_URL")

	setInt(&c.Agents.CacheSize, "AGENT_CACHE_SIZE")
	setDuration(&c.Agents.CacheTTL, "AGENT_CACHE_TTL")

	setString(&c.RootEmail, "ROOT_EMAIL")

	setString(&c.Observability.LogLevel, "LOG_LEVEL")
	setBool(&c.Observability.MetricsEnabled, "METRICS_ENABLED")
	setBool(&c.Observability.OTelEnabled, "OTEL_ENABLED")
	setString(&c.Observability.OTelEndpoint, "OTEL_ENDPOINT")
	setString(&c.Observability.OTelServiceName, "OTEL_SERVICE_NAME")
	setString(&c.Observability.OTelServiceVersion, "OTEL_SERVICE_VERSION")
	setBool(&c.Observability.OTelInsecure, "OTEL_INSECURE")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if err := c.Database.Validate(); err != nil {
		return err
	}

	switch c.Sessions.Backend {
	case SessionBackendPostgres:
		if _, err := cron.ParseStandard(c.Sessions.PurgeSchedule); err != nil {
			return fmt.Errorf("invalid session purge schedule %q: %w", c.Sessions.PurgeSchedule, err)
		}
	case SessionBackendRedis:
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required for the redis session backend")
		}
	default:
		return fmt.Errorf("invalid session backend: %s (must be postgres or redis)", c.Sessions.Backend)
	}
	if c.Sessions.CookieName == "" {
		return fmt.Errorf("session cookie name is required")
	}
	if c.Sessions.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}

	if c.OIDC.IssuerURL == "" {
		return fmt.Errorf("OIDC issuer URL is required")
	}
	if c.OIDC.Audience == "" {
		return fmt.Errorf("OIDC audience is required")
	}

	if _, err := observability.ParseLogLevel(c.Observability.LogLevel); err != nil {
		return err
	}
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// LogLevel returns the parsed log level, info when invalid
func (c *Config) LogLevel() observability.LogLevel {
	level, _ := observability.ParseLogLevel(c.Observability.LogLevel)
	return level
}

func lookup(key string) (string, bool) {
	value := os.Getenv(EnvPrefix + key)
	return value, value != ""
}

func setString(dst *string, key string) {
	if value, ok := lookup(key); ok {
		*dst = value
	}
}

func setBool(dst *bool, key string) {
	if value, ok := lookup(key); ok {
		*dst = strings.ToLower(value) == "true" || value == "1"
	}
}

func setInt(dst *int, key string) {
	if value, ok := lookup(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if value, ok := lookup(key); ok {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if value, ok := lookup(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			*dst = d
		}
	}
}
