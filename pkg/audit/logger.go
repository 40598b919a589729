package audit

import (
	"context"
	"net/http"

	"github.com/taskgrid/taskgrid/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	// Log logs an audit event
	Log(ctx context.Context, event *AuditEvent) error

	// Close closes the logger and flushes any buffered logs
	Close() error
}

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context, falling back to a
// no-op logger
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NopLogger{}
}

// NopLogger discards every event. Used when auditing is not configured.
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, event *AuditEvent) error { return nil }

func (NopLogger) Close() error { return nil }

// AnnotateFromRequest fills the request-context fields of an event from the
// HTTP request and its context
func AnnotateFromRequest(event *AuditEvent, r *http.Request) {
	if r == nil {
		return
	}
	event.RequestID = contextkeys.GetRequestID(r.Context())
	event.IPAddress = clientIP(r)
	event.Method = r.Method
	event.Path = r.URL.Path
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return xff
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
