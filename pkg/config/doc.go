// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	TASKGRID_HOST="0.0.0.0"
//	TASKGRID_PORT="8080"
//	TASKGRID_HEALTH_PORT="9090"
//	TASKGRID_READ_TIMEOUT="15s"
//	TASKGRID_WRITE_TIMEOUT="15s"
//
// Database settings:
//
//	TASKGRID_POSTGRES_URL="postgres://localhost/taskgrid"
//	TASKGRID_POSTGRES_MAX_CONNS="25"
//	TASKGRID_POSTGRES_IDLE_CONNS="5"
//
// Decision engine settings:
//
//	TASKGRID_DECISION_CACHE_SIZE="4096"
//	TASKGRID_DECISION_CACHE_TTL="30s"
//	TASKGRID_SYSTEM_MAX_ITEMS="1000"
//
// Redis invalidation bus settings:
//
//	TASKGRID_REDIS_ENABLED="true"
//	TASKGRID_REDIS_ADDR="localhost:6379"
//	TASKGRID_REDIS_POOL_SIZE="10"
//
// Audit settings:
//
//	TASKGRID_AUDIT_FILE="/var/log/taskgrid/audit.ndjson"
//	TASKGRID_AUDIT_RETENTION_DAYS="90"
//	TASKGRID_AUDIT_WORKERS="2"
//
// Observability settings:
//
//	TASKGRID_LOG_LEVEL="info"  # debug, info, warn, error
//	TASKGRID_METRICS_ENABLED="true"
//	TASKGRID_OTEL_ENABLED="true"
//	TASKGRID_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
// Load configuration:
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	fmt.Printf("Server: %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//	fmt.Printf("Cache TTL: %s\n", cfg.Authz.CacheTTL)
//	fmt.Printf("Log level: %v\n", cfg.Observability.LogLevel)
//
// # Related Packages
//
//   - pkg/authz: Uses decision engine configuration
//   - pkg/observability: Uses observability configuration
package config
