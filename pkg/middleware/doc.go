// Package middleware provides HTTP middleware for request identity and tracing.
//
// # Overview
//
// This package implements the request-scoped plumbing that runs before any
// handler: request ID assignment for tracing and principal resolution from
// the authenticated user header.
//
// # Middleware Components
//
// RequestID: Assigns or propagates a request identifier
//
//	router.Use(middleware.RequestID)
//	// Honors an inbound X-Request-ID header, otherwise generates a UUID.
//	// The ID is stored in the request context and echoed on the response.
//
// PrincipalMiddleware: Resolves the calling principal
//
//	pm := middleware.NewPrincipalMiddleware(identityService, logger)
//	router.Use(pm.Handler)
//	// Reads X-User-ID (set by the authenticating edge proxy), loads the
//	// identity snapshot, and stores the principal in the request context.
//
// Handlers retrieve the resolved principal with GetPrincipal:
//
//	principal := middleware.GetPrincipal(r)
//
// # Related Packages
//
//   - pkg/contextkeys: Context value storage
//   - pkg/identity: Principal snapshot loading
//   - pkg/api: Route handlers consuming the principal
package middleware
