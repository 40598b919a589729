package authz

import "sort"

// ResourceType represents a resource type in the system
type ResourceType string

const (
	ResourceTask     ResourceType = "task"
	ResourceProject  ResourceType = "project"
	ResourceComment  ResourceType = "comment"
	ResourceAuditLog ResourceType = "audit_log"
)

// Action represents an action that can be performed on a resource
type Action string

const (
	ActionCreate     Action = "create"
	ActionRead       Action = "read"
	ActionList       Action = "list"
	ActionUpdate     Action = "update"
	ActionDelete     Action = "delete"
	ActionExport     Action = "export"
	ActionBulkDelete Action = "bulk_delete"
)

// Role represents a ranked principal role.
// Ranks form a total order used for ceiling comparisons: Admin > Member > Viewer.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleMember Role = "member"
	RoleAdmin  Role = "admin"
)

// Rank returns the role's position in the total order.
// Unknown roles rank below Viewer so they never widen a grant.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleMember:
		return 2
	case RoleViewer:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the role is one of the closed set
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// HighestRole returns the highest-ranked role in the set, or empty if none are valid
func HighestRole(roles []Role) Role {
	var best Role
	for _, r := range roles {
		if r.Rank() > best.Rank() {
			best = r
		}
	}
	return best
}

// SubscriptionTier represents a ranked subscription tier: Free < Pro < Enterprise
type SubscriptionTier string

const (
	TierFree       SubscriptionTier = "free"
	TierPro        SubscriptionTier = "pro"
	TierEnterprise SubscriptionTier = "enterprise"
)

// Rank returns the tier's position in the total order
func (t SubscriptionTier) Rank() int {
	switch t {
	case TierEnterprise:
		return 3
	case TierPro:
		return 2
	case TierFree:
		return 1
	default:
		return 0
	}
}

// Valid reports whether the tier is one of the closed set
func (t SubscriptionTier) Valid() bool {
	return t.Rank() > 0
}

// ScopeLevel represents the breadth of resources a principal may act on.
// Totally ordered: ScopeNone < ScopeOwn < ScopeTeam < ScopeOrganization < ScopeGlobal.
type ScopeLevel int

const (
	// ScopeNone is the "no standing" sentinel; the calculator treats it as denial
	ScopeNone ScopeLevel = iota
	ScopeOwn
	ScopeTeam
	ScopeOrganization
	ScopeGlobal
)

// String returns a string representation of the scope level
func (s ScopeLevel) String() string {
	switch s {
	case ScopeOwn:
		return "own"
	case ScopeTeam:
		return "team"
	case ScopeOrganization:
		return "organization"
	case ScopeGlobal:
		return "global"
	default:
		return "none"
	}
}

// Valid reports whether the scope level is within the closed range
func (s ScopeLevel) Valid() bool {
	return s >= ScopeNone && s <= ScopeGlobal
}

// minScope returns the narrower of two scope levels
func minScope(a, b ScopeLevel) ScopeLevel {
	if a < b {
		return a
	}
	return b
}

// OrgMembership represents a principal's membership in an organization,
// optionally restricted to a single team within it.
type OrgMembership struct {
	OrgID    int64  `json:"org_id"`
	TeamID   *int64 `json:"team_id,omitempty"`
	TeamRole Role   `json:"team_role,omitempty"`
}

// Principal is an immutable snapshot of the authenticated actor for the
// lifetime of one request. It is assembled by the identity layer; this
// package never mutates it.
type Principal struct {
	ID          int64            `json:"id"`
	Roles       []Role           `json:"roles"`
	Tier        SubscriptionTier `json:"tier"`
	Memberships []OrgMembership  `json:"memberships,omitempty"`
}

// HighestRole returns the principal's highest-ranked role
func (p *Principal) HighestRole() Role {
	return HighestRole(p.Roles)
}

// ResourceOwnership identifies who owns the specific resource instance being
// checked. Supplied by the repository layer, not owned by this package.
type ResourceOwnership struct {
	OwnerUserID int64  `json:"owner_user_id"`
	TeamID      *int64 `json:"team_id,omitempty"`
	OrgID       *int64 `json:"org_id,omitempty"`
}

// RequestedAction describes one permission check request
type RequestedAction struct {
	ResourceType ResourceType `json:"resource_type"`
	Action       Action       `json:"action"`
	ResourceID   string       `json:"resource_id,omitempty"`
}

// Grant is a registry entry stating whether a role may perform an action on a
// resource type, and the maximum scope at which it may do so.
type Grant struct {
	Allowed  bool       `json:"allowed"`
	MaxScope ScopeLevel `json:"max_scope"`
}

// FeatureFlag represents a tier- or role-gated capability
type FeatureFlag string

const (
	FeatureExport          FeatureFlag = "export"
	FeatureExportMetadata  FeatureFlag = "export_metadata"
	FeatureAdvancedFilters FeatureFlag = "advanced_filters"
	FeatureBulkDelete      FeatureFlag = "bulk_delete"
)

// FeatureSet is a deduplicated, sorted set of feature flags. Keeping it
// sorted makes decisions deterministic and directly comparable.
type FeatureSet []FeatureFlag

// NewFeatureSet builds a normalized feature set from the given flags
func NewFeatureSet(flags ...FeatureFlag) FeatureSet {
	seen := make(map[FeatureFlag]bool, len(flags))
	out := make(FeatureSet, 0, len(flags))
	for _, f := range flags {
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Has reports whether the set contains the given flag
func (fs FeatureSet) Has(flag FeatureFlag) bool {
	for _, f := range fs {
		if f == flag {
			return true
		}
	}
	return false
}

// Intersect returns the normalized intersection of two feature sets
func (fs FeatureSet) Intersect(other FeatureSet) FeatureSet {
	out := make(FeatureSet, 0, len(fs))
	for _, f := range fs {
		if other.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Unlimited marks an unbounded item quota. It must be configured explicitly;
// quota arithmetic never produces it by accident.
const Unlimited = -1

// QuotaSet represents the numeric and feature limits attached to a tier for a
// resource type.
type QuotaSet struct {
	MaxItems int        `json:"max_items"`
	Features FeatureSet `json:"features,omitempty"`
}

// Unbounded reports whether the item quota is explicitly unlimited
func (q QuotaSet) Unbounded() bool {
	return q.MaxItems == Unlimited
}

// DecisionReason explains a calculator outcome
type DecisionReason string

const (
	// ReasonGranted is the only reason carried by an allowed decision
	ReasonGranted DecisionReason = "granted"
	// ReasonRoleDenied means the base role grant denies the action
	ReasonRoleDenied DecisionReason = "role_denied"
	// ReasonOutOfScope means the principal has no standing on the resource
	ReasonOutOfScope DecisionReason = "out_of_scope"
	// ReasonUnconfigured means no rule matched; the registry fails closed
	ReasonUnconfigured DecisionReason = "unconfigured"
)

// Valid reports whether the reason is one of the closed set
func (r DecisionReason) Valid() bool {
	switch r {
	case ReasonGranted, ReasonRoleDenied, ReasonOutOfScope, ReasonUnconfigured:
		return true
	default:
		return false
	}
}

// EffectivePermissionSet is the fully resolved, request-scoped
// authorization-and-shaping decision. Constructed once per
// (principal, action, resource type) and never mutated.
type EffectivePermissionSet struct {
	Allowed  bool           `json:"allowed"`
	Scope    ScopeLevel     `json:"scope"`
	Quota    QuotaSet       `json:"quota"`
	Features FeatureSet     `json:"features,omitempty"`
	Reason   DecisionReason `json:"reason"`
}

// Decision returns the authorization summary consumed by the request-handling
// layer to short-circuit with a denial response.
func (e EffectivePermissionSet) Decision() PermissionDecision {
	return PermissionDecision{
		Allowed: e.Allowed,
		Scope:   e.Scope,
		Reason:  e.Reason,
	}
}

// wellFormed is the shape check applied to cached entries on read. A cached
// decision that fails it is treated as corrupt, evicted, and recomputed.
func (e EffectivePermissionSet) wellFormed() bool {
	if !e.Reason.Valid() || !e.Scope.Valid() {
		return false
	}
	if e.Allowed != (e.Reason == ReasonGranted) {
		return false
	}
	if e.Quota.MaxItems < Unlimited {
		return false
	}
	return true
}

// PermissionDecision is the authorization outcome without shaping parameters
type PermissionDecision struct {
	Allowed bool           `json:"allowed"`
	Scope   ScopeLevel     `json:"scope"`
	Reason  DecisionReason `json:"reason"`
}

// deny builds a terminal denial with zeroed shaping parameters
func deny(reason DecisionReason) EffectivePermissionSet {
	return EffectivePermissionSet{
		Allowed: false,
		Scope:   ScopeNone,
		Reason:  reason,
	}
}
