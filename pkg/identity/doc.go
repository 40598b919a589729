// Package identity assembles principal snapshots and propagates the cache
// invalidations that identity changes require.
//
// # Overview
//
// Store reads a user's roles, subscription tier, and org/team memberships
// from PostgreSQL into an immutable authz.Principal, one snapshot per
// request. Service wraps mutations (role and tier changes) so that every
// change sweeps the principal's cached decisions locally and, when Redis is
// enabled, broadcasts the sweep to every instance over Bus.
//
// # Usage Example
//
//	store := identity.NewStore(db)
//	svc := identity.NewService(store, cache, bus, auditLogger, logger, metrics)
//
//	principal, err := svc.Snapshot(ctx, userID)
//	if err == identity.ErrPrincipalNotFound {
//		// 401
//	}
//
//	// Promote a user; their cached decisions are gone before this returns.
//	err = svc.ChangeRoles(ctx, userID, []authz.Role{authz.RoleAdmin})
//
// # Related Packages
//
//   - pkg/authz: Principal consumer and the decision cache being swept
//   - pkg/audit: Role and tier changes are audited
//   - pkg/middleware: Loads snapshots per request
package identity
