// Package httputil provides HTTP utilities for standardized request/response handling.
//
// # Overview
//
// Helper functions for JSON encoding/decoding, error responses, parameter
// parsing, and common middleware.
//
// # Response Helpers
//
//	httputil.WriteJSON(w, http.StatusOK, data)
//	httputil.WriteBadRequest(w, "Invalid input")
//	httputil.WriteDecisionDenied(w, decision) // 403 with the denial reason
//
// # Request Parsing
//
//	id, err := httputil.ParsePathString(r, "id")
//	limit, err := httputil.ParseQueryInt(r, "limit", 100)
//
// # Middleware
//
//	httputil.Chain(
//		httputil.RecoveryMiddleware(logger),
//		httputil.MaxBytesMiddleware(1<<20),
//	)
//
// # Related Packages
//
//   - pkg/middleware: Request ID and principal loading middleware
//   - pkg/api: Handlers built on these helpers
package httputil
