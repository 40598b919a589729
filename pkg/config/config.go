package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/taskgrid/taskgrid/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// Authorization engine configuration
	Authz AuthzConfig

	// Audit configuration
	Audit AuditConfig

	// Observability configuration
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

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration for the cache invalidation bus
type RedisConfig struct {
	// Enabled toggles the invalidation bus. When false, decision cache
	// invalidation is local to this process only.
	Enabled    bool
	Addr       string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// AuthzConfig holds decision engine configuration
type AuthzConfig struct {
	// CacheSize is the maximum number of cached decisions
	CacheSize int
	// CacheTTL is how long a cached decision stays valid
	CacheTTL time.Duration
	// SystemMaxItems caps list responses regardless of subscription tier
	SystemMaxItems int
}

// AuditConfig holds audit trail configuration
type AuditConfig struct {
	// FilePath is where NDJSON audit events are appended. Empty disables
	// the file sink.
	FilePath string
	// RetentionDays controls how long audit files are kept before the
	// retention sweeper removes them. Zero disables sweeping.
	RetentionDays int
	// Workers is the size of the async write pool
	Workers int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Redis:         loadRedisConfig(),
		Authz:         loadAuthzConfig(),
		Audit:         loadAuditConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("TASKGRID_HOST", "0.0.0.0"),
		Port:            getEnv("TASKGRID_PORT", "8080"),
		ReadTimeout:     getEnvDuration("TASKGRID_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("TASKGRID_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("TASKGRID_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("TASKGRID_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("TASKGRID_HEALTH_PORT", "9090"),
	}
}

// loadDatabaseConfig loads PostgreSQL configuration from environment
func loadDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		URL:             getEnv("TASKGRID_POSTGRES_URL", ""),
		MaxOpenConns:    getEnvInt("TASKGRID_POSTGRES_MAX_CONNS", 25),
		MaxIdleConns:    getEnvInt("TASKGRID_POSTGRES_IDLE_CONNS", 5),
		ConnMaxLifetime: getEnvDuration("TASKGRID_POSTGRES_CONN_LIFETIME", 5*time.Minute),
	}
}

// loadRedisConfig loads Redis configuration from environment
func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Enabled:    getEnvBool("TASKGRID_REDIS_ENABLED", false),
		Addr:       getEnv("TASKGRID_REDIS_ADDR", "localhost:6379"),
		Password:   getEnv("TASKGRID_REDIS_PASSWORD", ""),
		DB:         getEnvInt("TASKGRID_REDIS_DB", 0),
		MaxRetries: getEnvInt("TASKGRID_REDIS_MAX_RETRIES", 3),
		PoolSize:   getEnvInt("TASKGRID_REDIS_POOL_SIZE", 10),
	}
}

// loadAuthzConfig loads decision engine configuration from environment
func loadAuthzConfig() AuthzConfig {
	return AuthzConfig{
		CacheSize:      getEnvInt("TASKGRID_DECISION_CACHE_SIZE", 4096),
		CacheTTL:       getEnvDuration("TASKGRID_DECISION_CACHE_TTL", 30*time.Second),
		SystemMaxItems: getEnvInt("TASKGRID_SYSTEM_MAX_ITEMS", 1000),
	}
}

// loadAuditConfig loads audit configuration from environment
func loadAuditConfig() AuditConfig {
	return AuditConfig{
		FilePath:      getEnv("TASKGRID_AUDIT_FILE", ""),
		RetentionDays: getEnvInt("TASKGRID_AUDIT_RETENTION_DAYS", 90),
		Workers:       getEnvInt("TASKGRID_AUDIT_WORKERS", 2),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("TASKGRID_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("TASKGRID_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("TASKGRID_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("TASKGRID_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("TASKGRID_OTEL_SERVICE_NAME", "taskgrid-api"),
		OTelServiceVersion: getEnv("TASKGRID_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("TASKGRID_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate database config
	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("postgres max connections must be positive")
	}

	// Validate Redis config
	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis address is required when redis is enabled")
	}

	// Validate decision engine config
	if c.Authz.CacheSize <= 0 {
		return fmt.Errorf("decision cache size must be positive")
	}
	if c.Authz.CacheTTL <= 0 {
		return fmt.Errorf("decision cache TTL must be positive")
	}
	if c.Authz.SystemMaxItems <= 0 {
		return fmt.Errorf("system max items must be positive")
	}

	// Validate audit config
	if c.Audit.RetentionDays < 0 {
		return fmt.Errorf("audit retention days cannot be negative")
	}
	if c.Audit.Workers <= 0 {
		return fmt.Errorf("audit workers must be positive")
	}

	// Validate OpenTelemetry config
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

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
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
