package authz

import (
	"github.com/taskgrid/taskgrid/pkg/observability"
)

// Resolver determines the scope level at which a principal has standing on a
// resource. It performs no I/O; membership data arrives already fetched inside
// the Principal snapshot.
type Resolver struct {
	logger *observability.Logger
}

// NewResolver creates a scope resolver. The logger is only used for
// data-consistency warnings; passing nil disables them.
func NewResolver(logger *observability.Logger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve returns the widest scope level the principal satisfies for the
// resource, capped at the role ceiling for the action in question. If no
// level is satisfied it returns ScopeNone, which callers treat as denial
// regardless of the role grant.
//
// A principal with inconsistent membership data (a team membership without a
// resolvable parent organization) resolves at most to Own; the inconsistency
// is logged as a warning and never fails the request.
func (r *Resolver) Resolve(principal *Principal, ownership ResourceOwnership, ceiling ScopeLevel) ScopeLevel {
	widest := ScopeNone

	if ownership.OwnerUserID != 0 && ownership.OwnerUserID == principal.ID {
		widest = ScopeOwn
	}

	if r.membershipsConsistent(principal) {
		if ownership.TeamID != nil && r.hasTeamStanding(principal, *ownership.TeamID) {
			widest = maxScope(widest, ScopeTeam)
		}
		if ownership.OrgID != nil && r.hasOrgStanding(principal, *ownership.OrgID) {
			widest = maxScope(widest, ScopeOrganization)
		}
		if ceiling == ScopeGlobal {
			// The role carries global standing; the resource need not be
			// reachable through any membership.
			widest = maxScope(widest, ScopeGlobal)
		}
	}

	if widest == ScopeNone {
		return ScopeNone
	}
	// Own-level standing is identity-based: org standing subsumes team
	// standing over the org's resources, but no amount of wider standing
	// makes the principal the owner. Under an Own ceiling only actual
	// ownership satisfies.
	if ceiling == ScopeOwn && ownership.OwnerUserID != principal.ID {
		return ScopeNone
	}
	return minScope(widest, ceiling)
}

// membershipsConsistent checks the principal's membership rows for teams that
// lack a resolvable parent organization. Inconsistent data demotes resolution
// to Own-only.
func (r *Resolver) membershipsConsistent(principal *Principal) bool {
	for _, m := range principal.Memberships {
		if m.TeamID != nil && m.OrgID == 0 {
			if r.logger != nil {
				r.logger.WithFields(map[string]interface{}{
					"principal_id": principal.ID,
					"team_id":      *m.TeamID,
				}).Warn("membership references a team without a parent organization; resolving own scope only")
			}
			return false
		}
	}
	return true
}

// hasTeamStanding reports whether the principal belongs to the given team
func (r *Resolver) hasTeamStanding(principal *Principal, teamID int64) bool {
	for _, m := range principal.Memberships {
		if m.TeamID != nil && *m.TeamID == teamID {
			return true
		}
	}
	return false
}

// hasOrgStanding reports whether the principal has an organization-wide
// membership (no team restriction) in the given organization
func (r *Resolver) hasOrgStanding(principal *Principal, orgID int64) bool {
	for _, m := range principal.Memberships {
		if m.OrgID == orgID && m.TeamID == nil {
			return true
		}
	}
	return false
}

// maxScope returns the wider of two scope levels
func maxScope(a, b ScopeLevel) ScopeLevel {
	if a > b {
		return a
	}
	return b
}
