// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/folioworks/folio/pkg/observability"
	"github.com/folioworks/folio/pkg/signature"
)

// AppMode selects the deployment posture
type AppMode string

const (
	ModeDevelopment AppMode = "development"
	ModeProduction  AppMode = "production"
)

// ReplayCacheBackend selects where one-shot request ids are tracked
type ReplayCacheBackend string

const (
	ReplayCacheOff    ReplayCacheBackend = "off"
	ReplayCacheMemory ReplayCacheBackend = "memory"
	ReplayCacheRedis  ReplayCacheBackend = "redis"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Auth          AuthConfig
	Signature     SignatureConfig
	Storage       StorageConfig
	Observability ObservabilityConfig
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

// AuthConfig holds identity and tenancy settings
type AuthConfig struct {
	// AppMode: production mandates signature verification for external
	// tenant calls unless explicitly overridden
	AppMode AppMode

	// CookiePrefix names the session and tenant-scope cookies
	// ({prefix}-session, {prefix}-tenant)
	CookiePrefix string

	// TenantCollections lists the document collections whose rows are
	// partitioned by tenant and served through the collection routes
	TenantCollections []string
}

// SignatureConfig holds the request-signing handshake settings
type SignatureConfig struct {
	// Secret is the deployment-wide fallback signing secret
	Secret string

	// Require forces verification of external tenant calls. Defaults to
	// true in production mode.
	Require bool

	// TTL is the maximum accepted age of a signed request
	TTL time.Duration

	// ReplayCache selects the optional one-shot request id tracking
	ReplayCache ReplayCacheBackend

	// ReplayCacheSize bounds the in-memory replay cache
	ReplayCacheSize int
}

// StorageConfig holds backing store connections
type StorageConfig struct {
	PostgresURL      string
	PostgresMaxConns int
	RedisURL         string
	RedisPassword    string
	RedisDB          int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
	AuditLogPath   string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	mode := AppMode(getEnv("FOLIO_APP_MODE", string(ModeDevelopment)))

	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("FOLIO_HOST", "0.0.0.0"),
			Port:            getEnv("FOLIO_PORT", "8080"),
			ReadTimeout:     getEnvDuration("FOLIO_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("FOLIO_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("FOLIO_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("FOLIO_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("FOLIO_HEALTH_PORT", "9090"),
		},
		Auth: AuthConfig{
			AppMode:           mode,
			CookiePrefix:      getEnv("FOLIO_COOKIE_PREFIX", "folio"),
			TenantCollections: getEnvList("FOLIO_TENANT_COLLECTIONS", []string{"articles", "assets"}),
		},
		Signature: SignatureConfig{
			Secret:          getEnv("FOLIO_SIGNATURE_SECRET", ""),
			Require:         getEnvBool("FOLIO_SIGNATURE_REQUIRED", mode == ModeProduction),
			TTL:             getEnvDuration("FOLIO_SIGNATURE_TTL", signature.DefaultTTL),
			ReplayCache:     ReplayCacheBackend(getEnv("FOLIO_REPLAY_CACHE", string(ReplayCacheOff))),
			ReplayCacheSize: getEnvInt("FOLIO_REPLAY_CACHE_SIZE", 65536),
		},
		Storage: StorageConfig{
			PostgresURL:      getEnv("FOLIO_POSTGRES_URL", ""),
			PostgresMaxConns: getEnvInt("FOLIO_POSTGRES_MAX_CONNS", 25),
			RedisURL:         getEnv("FOLIO_REDIS_URL", ""),
			RedisPassword:    getEnv("FOLIO_REDIS_PASSWORD", ""),
			RedisDB:          getEnvInt("FOLIO_REDIS_DB", 0),
		},
		Observability: ObservabilityConfig{
			LogLevel:       parseLogLevel(getEnv("FOLIO_LOG_LEVEL", "info")),
			MetricsEnabled: getEnvBool("FOLIO_METRICS_ENABLED", true),
			AuditLogPath:   getEnv("FOLIO_AUDIT_LOG_PATH", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
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

	switch c.Auth.AppMode {
	case ModeDevelopment, ModeProduction:
	default:
		return fmt.Errorf("invalid app mode: %s (must be development or production)", c.Auth.AppMode)
	}
	if c.Auth.CookiePrefix == "" {
		return fmt.Errorf("cookie prefix is required")
	}

	if c.Signature.TTL <= 0 {
		return fmt.Errorf("signature TTL must be positive")
	}
	switch c.Signature.ReplayCache {
	case ReplayCacheOff, ReplayCacheMemory:
	case ReplayCacheRedis:
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("redis URL is required for the redis replay cache")
		}
	default:
		return fmt.Errorf("invalid replay cache backend: %s (must be off, memory, or redis)", c.Signature.ReplayCache)
	}

	if c.Storage.PostgresURL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvList returns a comma-separated environment variable or a default
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
