package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net"
	"net/http"
	"os"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskgrid/taskgrid/pkg/api"
	"github.com/taskgrid/taskgrid/pkg/audit"
	"github.com/taskgrid/taskgrid/pkg/authz"
	"github.com/taskgrid/taskgrid/pkg/config"
	"github.com/taskgrid/taskgrid/pkg/identity"
	"github.com/taskgrid/taskgrid/pkg/observability"
	"github.com/taskgrid/taskgrid/pkg/shaping"
	"github.com/taskgrid/taskgrid/pkg/tasks"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	ctx := context.Background()

	// Database
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Connected to database")

	// Metrics
	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)

	// Tracing
	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Warn("OpenTelemetry initialization failed, continuing without tracing")
	}

	// Decision engine
	registry := authz.NewRegistry(authz.DefaultRegistryConfig(cfg.Authz.SystemMaxItems))
	calculator := authz.NewCalculator(registry, logger)
	cache := authz.NewDecisionCache(cfg.Authz.CacheSize, cfg.Authz.CacheTTL)
	logger.WithFields(map[string]interface{}{
		"rules_version": registry.Version(),
		"cache_size":    cfg.Authz.CacheSize,
		"cache_ttl":     cfg.Authz.CacheTTL.String(),
	}).Info("Decision engine ready")

	// Audit trail: database sink always, file sink when configured, all
	// writes behind the async pool.
	dbAudit, err := audit.NewDBLogger(db)
	if err != nil {
		log.Fatalf("Failed to initialize audit storage: %v", err)
	}
	var auditSink audit.Logger = dbAudit
	if cfg.Audit.FilePath != "" {
		fileAudit, err := audit.NewFileLogger(audit.FileLoggerConfig{
			Path:   cfg.Audit.FilePath,
			Rotate: true,
		})
		if err != nil {
			log.Fatalf("Failed to open audit file: %v", err)
		}
		auditSink = audit.NewMultiLogger(dbAudit, fileAudit)
	}
	auditLogger := audit.NewAsyncLogger(ctx, logger, auditSink, cfg.Audit.Workers)

	sweeper := audit.NewRetentionSweeper(dbAudit, audit.RetentionPolicy{
		RetentionDays: cfg.Audit.RetentionDays,
	}, "", logger)
	if err := sweeper.Start(); err != nil {
		log.Fatalf("Failed to start audit retention sweeper: %v", err)
	}

	// Invalidation bus
	var redisClient *redis.Client
	var bus *identity.Bus
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to ping redis: %v", err)
		}
		bus = identity.NewBus(redisClient, cache, logger, metrics)
		if err := bus.Start(ctx); err != nil {
			log.Fatalf("Failed to start invalidation bus: %v", err)
		}
		logger.WithField("addr", cfg.Redis.Addr).Info("Invalidation bus connected")
	} else {
		logger.Info("Redis disabled, cache invalidation is instance-local")
	}

	// Identity layer
	identityService := identity.NewService(identity.NewStore(db), cache, bus, auditLogger, logger, metrics)

	// HTTP surface
	server := api.NewServer(api.Config{
		Logger:         logger,
		Metrics:        metrics,
		Calculator:     calculator,
		Cache:          cache,
		Policy:         shaping.DefaultFieldPolicy(),
		Tasks:          tasks.NewStore(db),
		Identity:       identityService,
		IdentityWriter: identityService,
		AuditLogger:    auditLogger,
		AuditSearch:    dbAudit,
		BaseCtx:        ctx,
	})

	httpServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Health and metrics on a separate port so probes bypass the API
	// middleware chain.
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, observability.NewHealthChecker(db, redisClient))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, promRegistry)
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	// Shutdown runs in reverse registration order: register dependencies
	// first so the things using them stop before they do.
	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.RegisterShutdownFunc("database", func(context.Context) error {
		return db.Close()
	})
	if otelProviders != nil {
		shutdown.RegisterShutdownFunc("tracing", func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, otelProviders, logger)
		})
	}
	shutdown.RegisterShutdownFunc("audit logger", func(context.Context) error {
		return auditLogger.Close()
	})
	shutdown.RegisterShutdownFunc("retention sweeper", func(context.Context) error {
		sweeper.Stop()
		return nil
	})
	if redisClient != nil {
		shutdown.RegisterShutdownFunc("redis", func(context.Context) error {
			return redisClient.Close()
		})
	}
	if bus != nil {
		shutdown.RegisterShutdownFunc("invalidation bus", func(context.Context) error {
			return bus.Close()
		})
	}
	shutdown.RegisterShutdownFunc("health server", func(ctx context.Context) error {
		return healthServer.Shutdown(ctx)
	})

	go func() {
		logger.WithField("addr", healthServer.Addr).Info("Health server listening")
		if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("Health server failed")
		}
	}()

	go func() {
		logger.WithField("addr", httpServer.Addr).Info("API server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	if err := shutdown.WaitForShutdown(); err != nil {
		logger.WithError(err).Error("Shutdown finished with errors")
		os.Exit(1)
	}
}
