package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/taskgrid/taskgrid/pkg/authz"
	"github.com/taskgrid/taskgrid/pkg/httputil"
	"github.com/taskgrid/taskgrid/pkg/identity"
)

// IdentityMutator is the write side of the identity layer. identity.Service
// implements it.
type IdentityMutator interface {
	ChangeRoles(ctx context.Context, userID int64, roles []authz.Role) error
	ChangeTier(ctx context.Context, userID int64, tier authz.SubscriptionTier) error
}

type changeRolesRequest struct {
	Roles []authz.Role `json:"roles"`
}

type changeTierRequest struct {
	Tier authz.SubscriptionTier `json:"tier"`
}

// changeRoles handles PUT /api/v1/users/{id}/roles. Mounted behind the
// admin-only gate; the mutation sweeps the target's cached decisions.
func (s *Server) changeRoles(w http.ResponseWriter, r *http.Request) {
	userID, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var body changeRolesRequest
	if err := httputil.ParseJSON(r, &body); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if len(body.Roles) == 0 {
		httputil.WriteBadRequest(w, "at least one role is required")
		return
	}
	for _, role := range body.Roles {
		if !role.Valid() {
			httputil.WriteBadRequest(w, "unknown role: "+string(role))
			return
		}
	}

	if err := s.identityWriter.ChangeRoles(r.Context(), userID, body.Roles); err != nil {
		if errors.Is(err, identity.ErrPrincipalNotFound) {
			httputil.WriteNotFound(w, "user not found")
			return
		}
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to change roles")
		httputil.WriteInternalError(w, errors.New("failed to change roles"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"roles":   body.Roles,
	})
}

// changeTier handles PUT /api/v1/users/{id}/tier
func (s *Server) changeTier(w http.ResponseWriter, r *http.Request) {
	userID, err := httputil.ParsePathInt64(r, "id")
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	var body changeTierRequest
	if err := httputil.ParseJSON(r, &body); err != nil {
		httputil.WriteBadRequest(w, "invalid request body")
		return
	}
	if !body.Tier.Valid() {
		httputil.WriteBadRequest(w, "unknown tier: "+string(body.Tier))
		return
	}

	if err := s.identityWriter.ChangeTier(r.Context(), userID, body.Tier); err != nil {
		if errors.Is(err, identity.ErrPrincipalNotFound) {
			httputil.WriteNotFound(w, "user not found")
			return
		}
		s.logger.WithError(err).WithField("user_id", userID).Error("Failed to change tier")
		httputil.WriteInternalError(w, errors.New("failed to change tier"))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user_id": userID,
		"tier":    body.Tier,
	})
}
