package api

import (
	"context"
	"net/http"
	"time"

	"github.com/taskgrid/taskgrid/pkg/async"
	"github.com/taskgrid/taskgrid/pkg/audit"
	"github.com/taskgrid/taskgrid/pkg/authz"
	"github.com/taskgrid/taskgrid/pkg/contextkeys"
	"github.com/taskgrid/taskgrid/pkg/httputil"
	"github.com/taskgrid/taskgrid/pkg/middleware"
)

// auditWriteTimeout bounds the asynchronous audit write per decision
const auditWriteTimeout = 5 * time.Second

// decide resolves the effective permission set for one request, going through
// the decision cache. Metrics and the audit trail are recorded on every call;
// the returned set is what response shaping runs against.
func (s *Server) decide(r *http.Request, principal *authz.Principal, req authz.RequestedAction, ownership authz.ResourceOwnership) authz.EffectivePermissionSet {
	key := authz.CacheKey{
		PrincipalID:  principal.ID,
		ResourceType: req.ResourceType,
		Action:       req.Action,
		ResourceID:   req.ResourceID,
	}

	start := time.Now()
	computed := false
	result := s.cache.GetOrCompute(key, func() authz.EffectivePermissionSet {
		computed = true
		return s.calculator.Compute(principal, req.Action, req.ResourceType, ownership)
	})

	resource := string(req.ResourceType)
	action := string(req.Action)
	reason := string(result.Reason)

	if computed {
		s.metrics.CacheMissesTotal.WithLabelValues(resource).Inc()
		s.metrics.DecisionDuration.WithLabelValues(resource, action).Observe(time.Since(start).Seconds())
	} else {
		s.metrics.CacheHitsTotal.WithLabelValues(resource).Inc()
	}
	s.metrics.DecisionsTotal.WithLabelValues(resource, action, reason).Inc()
	if !result.Allowed {
		s.metrics.DenialsTotal.WithLabelValues(resource, action, reason).Inc()
	}

	s.emitDecisionEvent(r, principal, req, result.Decision())
	return result
}

// emitDecisionEvent records the decision on the audit trail without blocking
// the request. The event is fully assembled on the request goroutine; only
// the write happens in the background.
func (s *Server) emitDecisionEvent(r *http.Request, principal *authz.Principal, req authz.RequestedAction, decision authz.PermissionDecision) {
	event := audit.NewDecisionEvent(principal, req, decision, s.calculator.Registry().Version())
	audit.AnnotateFromRequest(event, r)

	async.SafeGo(s.baseCtx, s.logger, auditWriteTimeout, "audit decision write", func(ctx context.Context) error {
		return s.auditLogger.Log(ctx, event)
	})
}

// requireAdmin gates identity administration routes on the admin role. These
// mutations are about principals, not resources, so the resource rule table
// does not apply.
func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := middleware.GetPrincipal(r)
		if principal == nil {
			httputil.WriteUnauthorized(w, "missing user identity")
			return
		}
		if principal.HighestRole() != authz.RoleAdmin {
			httputil.WriteDecisionDenied(w, authz.PermissionDecision{Reason: authz.ReasonRoleDenied})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requirePermission gates a route subtree on a permission decision with no
// resource instance. Denials return 403 before the handler runs.
func (s *Server) requirePermission(resource authz.ResourceType, action authz.Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := middleware.GetPrincipal(r)
			if principal == nil {
				httputil.WriteUnauthorized(w, "missing user identity")
				return
			}

			req := authz.RequestedAction{ResourceType: resource, Action: action}
			result := s.decide(r, principal, req, authz.ResourceOwnership{})
			if !result.Allowed {
				httputil.WriteDecisionDenied(w, result.Decision())
				return
			}
			next.ServeHTTP(w, r.WithContext(contextkeys.WithDecision(r.Context(), result)))
		})
	}
}
