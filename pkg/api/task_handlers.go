package api

import (
	"errors"
	"net/http"

	"github.com/taskgrid/taskgrid/pkg/authz"
	"github.com/taskgrid/taskgrid/pkg/httputil"
	"github.com/taskgrid/taskgrid/pkg/middleware"
	"github.com/taskgrid/taskgrid/pkg/shaping"
	"github.com/taskgrid/taskgrid/pkg/tasks"
)

// listTasksResponse is the body returned by GET /api/v1/tasks
type listTasksResponse struct {
	Tasks        []map[string]interface{} `json:"tasks"`
	Count        int                      `json:"count"`
	Scope        string                   `json:"scope"`
	Truncated    bool                     `json:"truncated"`
	Capabilities []shaping.CapabilityFlag `json:"capabilities"`
}

// listTasks handles GET /api/v1/tasks. The visible window is derived from the
// resolved scope, never from client parameters: the caller cannot ask for a
// wider slice than the decision grants.
func (s *Server) listTasks(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	req := authz.RequestedAction{ResourceType: authz.ResourceTask, Action: authz.ActionList}
	decision := s.decide(r, principal, req, selfOwnership(principal))
	if !decision.Allowed {
		httputil.WriteDecisionDenied(w, decision.Decision())
		return
	}

	filter := scopeFilter(decision, principal)
	filter.Status = tasks.TaskStatus(httputil.ParseQueryString(r, "status", ""))

	items, err := s.tasks.List(r.Context(), filter)
	if err != nil {
		s.logger.WithError(err).Error("Failed to list tasks")
		httputil.WriteInternalError(w, errors.New("failed to list tasks"))
		return
	}

	shaped := shaping.ShapeCollection(decision, items)
	if shaped.Truncated {
		s.metrics.TruncationsTotal.WithLabelValues(string(authz.ResourceTask), string(principal.Tier)).Inc()
	}

	redacted := 0
	payloads := make([]map[string]interface{}, 0, len(shaped.Items))
	for _, task := range shaped.Items {
		item := shaping.ShapeItem(s.policy, decision, authz.ResourceTask, task.Payload())
		payloads = append(payloads, item.Payload)
		redacted += item.Redacted
	}
	if redacted > 0 {
		s.metrics.RedactionsTotal.WithLabelValues(string(authz.ResourceTask), decision.Scope.String()).Inc()
	}

	httputil.WriteJSON(w, http.StatusOK, listTasksResponse{
		Tasks:        payloads,
		Count:        len(payloads),
		Scope:        decision.Scope.String(),
		Truncated:    shaped.Truncated,
		Capabilities: shaped.Capabilities,
	})
}

// getTask handles GET /api/v1/tasks/{id}
func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := httputil.ParsePathString(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	task, err := s.tasks.Get(r.Context(), id)
	if err == tasks.ErrTaskNotFound {
		httputil.WriteNotFound(w, "task not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("task_id", id).Error("Failed to load task")
		httputil.WriteInternalError(w, errors.New("failed to load task"))
		return
	}

	req := authz.RequestedAction{ResourceType: authz.ResourceTask, Action: authz.ActionRead, ResourceID: task.ID}
	decision := s.decide(r, principal, req, task.Ownership())
	if !decision.Allowed {
		httputil.WriteDecisionDenied(w, decision.Decision())
		return
	}

	item := shaping.ShapeItem(s.policy, decision, authz.ResourceTask, task.Payload())
	if item.Redacted > 0 {
		s.metrics.RedactionsTotal.WithLabelValues(string(authz.ResourceTask), decision.Scope.String()).Inc()
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"task":         item.Payload,
		"scope":        decision.Scope.String(),
		"capabilities": item.Capabilities,
	})
}

// deleteTask handles DELETE /api/v1/tasks/{id}. Delete carries an Own ceiling
// for members, so this route is where the destructive-action capping shows.
func (s *Server) deleteTask(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	id, err := httputil.ParsePathString(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	task, err := s.tasks.Get(r.Context(), id)
	if err == tasks.ErrTaskNotFound {
		httputil.WriteNotFound(w, "task not found")
		return
	}
	if err != nil {
		s.logger.WithError(err).WithField("task_id", id).Error("Failed to load task")
		httputil.WriteInternalError(w, errors.New("failed to load task"))
		return
	}

	req := authz.RequestedAction{ResourceType: authz.ResourceTask, Action: authz.ActionDelete, ResourceID: task.ID}
	decision := s.decide(r, principal, req, task.Ownership())
	if !decision.Allowed {
		httputil.WriteDecisionDenied(w, decision.Decision())
		return
	}

	if err := s.tasks.Delete(r.Context(), id); err != nil {
		if err == tasks.ErrTaskNotFound {
			httputil.WriteNotFound(w, "task not found")
			return
		}
		s.logger.WithError(err).WithField("task_id", id).Error("Failed to delete task")
		httputil.WriteInternalError(w, errors.New("failed to delete task"))
		return
	}

	httputil.WriteNoContent(w)
}

// checkPermissionRequest is the body for POST /api/v1/permissions/check
type checkPermissionRequest struct {
	ResourceType authz.ResourceType `json:"resource_type"`
	Action       authz.Action       `json:"action"`
	ResourceID   string             `json:"resource_id,omitempty"`
}

// checkPermission handles POST /api/v1/permissions/check. It exposes the full
// effective permission set for introspection without touching any resource.
func (s *Server) checkPermission(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)

	var body checkPermissionRequest
	if err := httputil.ParseJSON(r, &body); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if body.ResourceType == "" || body.Action == "" {
		httputil.WriteBadRequest(w, "resource_type and action are required")
		return
	}

	ownership := authz.ResourceOwnership{}
	if body.ResourceID != "" && body.ResourceType == authz.ResourceTask {
		task, err := s.tasks.Get(r.Context(), body.ResourceID)
		if err == tasks.ErrTaskNotFound {
			httputil.WriteNotFound(w, "task not found")
			return
		}
		if err != nil {
			s.logger.WithError(err).WithField("task_id", body.ResourceID).Error("Failed to load task for permission check")
			httputil.WriteInternalError(w, errors.New("failed to load resource"))
			return
		}
		ownership = task.Ownership()
	}

	req := authz.RequestedAction{ResourceType: body.ResourceType, Action: body.Action, ResourceID: body.ResourceID}
	decision := s.decide(r, principal, req, ownership)

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"allowed":      decision.Allowed,
		"scope":        decision.Scope.String(),
		"reason":       decision.Reason,
		"quota":        decision.Quota,
		"features":     decision.Features,
		"capabilities": shaping.Capabilities(decision.Features),
	})
}

// selfOwnership builds the placement used for collection decisions, where no
// single resource instance anchors the scope resolution: the principal's own
// primary membership stands in for the resource.
func selfOwnership(principal *authz.Principal) authz.ResourceOwnership {
	ownership := authz.ResourceOwnership{OwnerUserID: principal.ID}
	if len(principal.Memberships) > 0 {
		m := principal.Memberships[0]
		ownership.OrgID = &m.OrgID
		ownership.TeamID = m.TeamID
	}
	return ownership
}

// scopeFilter translates a resolved scope into the widest query window the
// decision permits.
func scopeFilter(decision authz.EffectivePermissionSet, principal *authz.Principal) tasks.ListFilter {
	filter := tasks.ListFilter{OwnerUserID: principal.ID}
	if !decision.Quota.Unbounded() {
		// Fetch one past the cap so shaping can tell a full window from a
		// truncated one.
		filter.Limit = decision.Quota.MaxItems + 1
	}

	switch decision.Scope {
	case authz.ScopeGlobal:
		filter.Global = true
	case authz.ScopeOrganization:
		if len(principal.Memberships) > 0 {
			filter.OrgID = &principal.Memberships[0].OrgID
		}
	case authz.ScopeTeam:
		for i := range principal.Memberships {
			if teamID := principal.Memberships[i].TeamID; teamID != nil {
				filter.TeamID = teamID
				break
			}
		}
	}
	return filter
}
