// Package audit records permission decisions and cache invalidations for
// compliance and forensics.
//
// # Overview
//
// Every resolved decision can be captured as an AuditEvent carrying the
// principal, the requested action, the outcome, and the rules version that
// produced it. Events flow to one or more sinks: an NDJSON file
// (FileLogger), PostgreSQL (DBLogger), or both via MultiLogger. AsyncLogger
// keeps sink latency off the request path.
//
// # Event Types
//
// Authorization: decision, access_denied, cache_invalidate
// Identity: role_change, tier_change
//
// # Usage Example
//
// Record a decision:
//
//	event := audit.NewDecisionEvent(principal, req, decision, registry.Version())
//	audit.AnnotateFromRequest(event, r)
//	if err := logger.Log(ctx, event); err != nil {
//		log.WithError(err).Warn("Audit write failed")
//	}
//
// Search the trail:
//
//	events, err := dbLogger.Search(ctx, audit.SearchFilter{
//		StartTime:  &start,
//		EventTypes: []audit.EventType{audit.EventTypeAccessDenied},
//		Reason:     "role_denied",
//		Limit:      100,
//	})
//
// # Retention Policy
//
// RetentionSweeper prunes database events past the configured window
// (default 90 days) on a daily cron schedule. A retention of zero days
// keeps events forever.
//
// # Related Packages
//
//   - pkg/authz: The decisions being recorded
//   - pkg/async: Worker pool behind AsyncLogger
//   - pkg/api: Emits decision events per request
package audit
