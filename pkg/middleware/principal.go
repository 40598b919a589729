package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/taskgrid/taskgrid/pkg/authz"
	"github.com/taskgrid/taskgrid/pkg/contextkeys"
	"github.com/taskgrid/taskgrid/pkg/httputil"
	"github.com/taskgrid/taskgrid/pkg/identity"
	"github.com/taskgrid/taskgrid/pkg/observability"
)

// UserIDHeader identifies the authenticated user. Authentication happens at
// the edge; this service trusts the header and only resolves what the user
// may do.
const UserIDHeader = "X-User-ID"

// SnapshotLoader loads a principal snapshot for a user. identity.Service
// implements it.
type SnapshotLoader interface {
	Snapshot(ctx context.Context, userID int64) (*authz.Principal, error)
}

// PrincipalMiddleware resolves the authenticated user into an immutable
// Principal snapshot, once per request.
type PrincipalMiddleware struct {
	loader SnapshotLoader
	logger *observability.Logger
}

// NewPrincipalMiddleware creates the principal loading middleware.
func NewPrincipalMiddleware(loader SnapshotLoader, logger *observability.Logger) *PrincipalMiddleware {
	return &PrincipalMiddleware{loader: loader, logger: logger}
}

// Handler rejects requests without a resolvable principal with 401. It
// never falls through with a partial principal; a failed snapshot load is a
// failed request.
func (m *PrincipalMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(UserIDHeader)
		if header == "" {
			httputil.WriteUnauthorized(w, "missing user identity")
			return
		}

		userID, err := strconv.ParseInt(header, 10, 64)
		if err != nil {
			httputil.WriteUnauthorized(w, "malformed user identity")
			return
		}

		principal, err := m.loader.Snapshot(r.Context(), userID)
		if err == identity.ErrPrincipalNotFound {
			httputil.WriteUnauthorized(w, "unknown user")
			return
		}
		if err != nil {
			m.logger.WithError(err).WithField("user_id", userID).Error("Failed to load principal snapshot")
			httputil.WriteInternalError(w, fmt.Errorf("failed to resolve identity"))
			return
		}

		ctx := contextkeys.WithPrincipal(r.Context(), principal)
		ctx = contextkeys.WithUserID(ctx, header)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetPrincipal extracts the principal snapshot placed by Handler. The nil
// return means the route was mounted without the middleware.
func GetPrincipal(r *http.Request) *authz.Principal {
	principal, ok := r.Context().Value(contextkeys.PrincipalKey).(*authz.Principal)
	if !ok {
		return nil
	}
	return principal
}
