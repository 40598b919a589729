// Package api provides the HTTP surface over the permission engine.
//
// # Overview
//
// Every resource route runs the same pipeline: the principal middleware
// resolves the caller into an immutable snapshot, the decision helper
// computes (or recalls from cache) the effective permission set, and the
// response is shaped to that set before it leaves the process. Handlers
// never interpret rules themselves; they consume decisions.
//
// # Routes
//
//	GET    /api/v1/tasks                      List tasks within the resolved scope
//	GET    /api/v1/tasks/{id}                 Fetch one task with field redaction
//	DELETE /api/v1/tasks/{id}                 Delete a task (Own ceiling for members)
//	POST   /api/v1/permissions/check          Introspect a permission decision
//	GET    /api/v1/permissions/cache/stats    Decision cache counters
//	PUT    /api/v1/users/{id}/roles           Replace a user's roles (admin only)
//	PUT    /api/v1/users/{id}/tier            Change a user's subscription tier (admin only)
//	GET    /api/v1/audit/events               Search audit events (admin only)
//	GET    /api/v1/audit/denials              Denial counts by reason (admin only)
//
// # Usage Example
//
//	server := api.NewServer(api.Config{
//		Logger:     logger,
//		Metrics:    metrics,
//		Calculator: authz.NewCalculator(registry, logger),
//		Cache:      authz.NewDecisionCache(4096, 30*time.Second),
//		Tasks:      tasks.NewStore(db),
//		Identity:   identityService,
//	})
//	http.ListenAndServe(":8080", server)
//
// # Related Packages
//
//   - pkg/authz: Decision computation and caching
//   - pkg/shaping: Truncation and field redaction
//   - pkg/middleware: Principal resolution
//   - pkg/audit: Decision audit trail
package api
