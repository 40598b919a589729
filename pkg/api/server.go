package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/taskgrid/taskgrid/pkg/audit"
	"github.com/taskgrid/taskgrid/pkg/authz"
	"github.com/taskgrid/taskgrid/pkg/httputil"
	"github.com/taskgrid/taskgrid/pkg/middleware"
	"github.com/taskgrid/taskgrid/pkg/observability"
	"github.com/taskgrid/taskgrid/pkg/shaping"
	"github.com/taskgrid/taskgrid/pkg/tasks"
)

// MaxRequestBodySize limits inbound request bodies
const MaxRequestBodySize = 1 << 20 // 1MB

// Server is the HTTP surface over the permission engine. Every resource route
// runs the same pipeline: resolve principal, compute (or recall) the
// effective permission set, then shape the response to it.
type Server struct {
	router         *mux.Router
	logger         *observability.Logger
	metrics        *observability.Metrics
	calculator     *authz.Calculator
	cache          *authz.DecisionCache
	policy         *shaping.FieldPolicy
	tasks          *tasks.Store
	identityWriter IdentityMutator
	auditLogger    audit.Logger
	baseCtx        context.Context
}

// Config carries the server's collaborators. Calculator, Cache, Logger, and
// Metrics are required; the rest degrade gracefully when absent.
type Config struct {
	Logger         *observability.Logger
	Metrics        *observability.Metrics
	Calculator     *authz.Calculator
	Cache          *authz.DecisionCache
	Policy         *shaping.FieldPolicy
	Tasks          *tasks.Store
	Identity       middleware.SnapshotLoader
	IdentityWriter IdentityMutator
	AuditLogger    audit.Logger
	AuditSearch    audit.Searcher

	// BaseCtx parents the background goroutines spawned per request (audit
	// writes). Defaults to context.Background.
	BaseCtx context.Context
}

// NewServer assembles the router and middleware chain
func NewServer(cfg Config) *Server {
	s := &Server{
		router:         mux.NewRouter(),
		logger:         cfg.Logger,
		metrics:        cfg.Metrics,
		calculator:     cfg.Calculator,
		cache:          cfg.Cache,
		policy:         cfg.Policy,
		tasks:          cfg.Tasks,
		identityWriter: cfg.IdentityWriter,
		auditLogger:    cfg.AuditLogger,
		baseCtx:        cfg.BaseCtx,
	}
	if s.policy == nil {
		s.policy = shaping.DefaultFieldPolicy()
	}
	if s.auditLogger == nil {
		s.auditLogger = audit.NopLogger{}
	}
	if s.baseCtx == nil {
		s.baseCtx = context.Background()
	}

	s.setupRoutes(cfg)
	return s
}

// setupRoutes configures the middleware chain and all API routes
func (s *Server) setupRoutes(cfg Config) {
	s.router.Use(httputil.RecoveryMiddleware(s.logger))
	s.router.Use(middleware.RequestID)
	s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	s.router.Use(httputil.MaxBytesMiddleware(MaxRequestBodySize))

	// Every route below requires a resolved principal.
	principalMW := middleware.NewPrincipalMiddleware(cfg.Identity, s.logger)
	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(principalMW.Handler)

	v1.HandleFunc("/tasks", s.listTasks).Methods("GET")
	v1.HandleFunc("/tasks/{id}", s.getTask).Methods("GET")
	v1.HandleFunc("/tasks/{id}", s.deleteTask).Methods("DELETE")

	v1.HandleFunc("/permissions/check", s.checkPermission).Methods("POST")
	v1.HandleFunc("/permissions/cache/stats", s.cacheStats).Methods("GET")

	// Identity administration sits outside the resource rule table; it is
	// admin-only by construction.
	if cfg.IdentityWriter != nil {
		admin := v1.PathPrefix("/users").Subrouter()
		admin.Use(s.requireAdmin)
		admin.HandleFunc("/{id}/roles", s.changeRoles).Methods("PUT")
		admin.HandleFunc("/{id}/tier", s.changeTier).Methods("PUT")
	}

	// Audit queries sit behind an explicit audit_log decision. Roles without
	// a configured audit_log rule fail closed here.
	if cfg.AuditSearch != nil {
		auditRouter := v1.PathPrefix("").Subrouter()
		auditRouter.Use(s.requirePermission(authz.ResourceAuditLog, authz.ActionList))
		audit.NewHandlers(cfg.AuditSearch).RegisterRoutes(auditRouter)
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying router for route registration in cmd
func (s *Server) Router() *mux.Router {
	return s.router
}

// cacheStats handles GET /api/v1/permissions/cache/stats
func (s *Server) cacheStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.cache.Stats())
}
