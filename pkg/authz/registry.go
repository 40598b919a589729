package authz

// ruleKey identifies a base grant row
type ruleKey struct {
	Role     Role
	Resource ResourceType
	Action   Action
}

// quotaKey identifies a tier quota row
type quotaKey struct {
	Tier     SubscriptionTier
	Resource ResourceType
}

// Rule is one declarative grant row used to construct a Registry
type Rule struct {
	Role     Role         `json:"role"`
	Resource ResourceType `json:"resource"`
	Action   Action       `json:"action"`
	Grant    Grant        `json:"grant"`
}

// TierQuota is one declarative quota row used to construct a Registry
type TierQuota struct {
	Tier     SubscriptionTier `json:"tier"`
	Resource ResourceType     `json:"resource"`
	Quota    QuotaSet         `json:"quota"`
}

// RegistryConfig holds the declarative inputs for a Registry
type RegistryConfig struct {
	// Version identifies the rule table revision for audit events
	Version string

	Rules      []Rule
	TierQuotas []TierQuota

	// RoleFeatures caps the feature flags each role may carry; effective
	// features are the intersection of tier features with this set
	RoleFeatures map[Role]FeatureSet

	// SystemMaxItems is the system-wide collection ceiling applied on top of
	// every tier quota. Unlimited disables the ceiling.
	SystemMaxItems int
}

// Registry is the immutable, process-wide permission rule table. It is built
// once at startup and only read afterwards, so concurrent readers need no
// synchronization.
type Registry struct {
	version        string
	rules          map[ruleKey]Grant
	quotas         map[quotaKey]QuotaSet
	roleFeatures   map[Role]FeatureSet
	systemMaxItems int
}

// NewRegistry constructs a Registry from declarative rows. The input slices
// and maps are copied; later mutation of the config does not affect the
// registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{
		version:        cfg.Version,
		rules:          make(map[ruleKey]Grant, len(cfg.Rules)),
		quotas:         make(map[quotaKey]QuotaSet, len(cfg.TierQuotas)),
		roleFeatures:   make(map[Role]FeatureSet, len(cfg.RoleFeatures)),
		systemMaxItems: cfg.SystemMaxItems,
	}
	if r.systemMaxItems == 0 {
		r.systemMaxItems = Unlimited
	}

	for _, rule := range cfg.Rules {
		r.rules[ruleKey{rule.Role, rule.Resource, rule.Action}] = rule.Grant
	}
	for _, tq := range cfg.TierQuotas {
		q := tq.Quota
		q.Features = NewFeatureSet(q.Features...)
		r.quotas[quotaKey{tq.Tier, tq.Resource}] = q
	}
	for role, features := range cfg.RoleFeatures {
		r.roleFeatures[role] = NewFeatureSet(features...)
	}

	return r
}

// Version returns the rule table revision identifier
func (r *Registry) Version() string {
	return r.version
}

// Grant looks up the base grant for (role, resource, action).
// The second return value is false when no rule is configured; callers must
// treat that as a fail-closed denial.
func (r *Registry) Grant(role Role, resource ResourceType, action Action) (Grant, bool) {
	g, ok := r.rules[ruleKey{role, resource, action}]
	return g, ok
}

// Quota returns the quota set for (tier, resource). A missing row yields a
// zero quota: no items, no features.
func (r *Registry) Quota(tier SubscriptionTier, resource ResourceType) QuotaSet {
	if q, ok := r.quotas[quotaKey{tier, resource}]; ok {
		return q
	}
	return QuotaSet{}
}

// RoleFeatures returns the feature flags the given role is permitted to carry
func (r *Registry) RoleFeatures(role Role) FeatureSet {
	return r.roleFeatures[role]
}

// SystemMaxItems returns the system-wide collection ceiling
func (r *Registry) SystemMaxItems() int {
	return r.systemMaxItems
}

// capItems applies the system ceiling to a tier quota: min(tier, ceiling).
// The result is never negative and never silently unbounded.
func (r *Registry) capItems(maxItems int) int {
	if maxItems < 0 && maxItems != Unlimited {
		return 0
	}
	switch {
	case maxItems == Unlimited:
		return r.systemMaxItems
	case r.systemMaxItems == Unlimited:
		return maxItems
	case maxItems < r.systemMaxItems:
		return maxItems
	default:
		return r.systemMaxItems
	}
}

// DefaultRulesVersion identifies the built-in rule table revision
const DefaultRulesVersion = "2025-09-01"

// DefaultRules returns the built-in grant table.
//
// Destructive actions carry narrower ceilings than reads: a Member may read at
// Team scope but only delete resources they own.
func DefaultRules() []Rule {
	allow := func(role Role, resource ResourceType, action Action, max ScopeLevel) Rule {
		return Rule{Role: role, Resource: resource, Action: action, Grant: Grant{Allowed: true, MaxScope: max}}
	}
	refuse := func(role Role, resource ResourceType, action Action) Rule {
		return Rule{Role: role, Resource: resource, Action: action, Grant: Grant{Allowed: false}}
	}

	rules := []Rule{}
	for _, resource := range []ResourceType{ResourceTask, ResourceProject, ResourceComment} {
		// Viewer: read-only, org-wide visibility, everything else denied
		rules = append(rules,
			allow(RoleViewer, resource, ActionRead, ScopeOrganization),
			allow(RoleViewer, resource, ActionList, ScopeOrganization),
			refuse(RoleViewer, resource, ActionCreate),
			refuse(RoleViewer, resource, ActionUpdate),
			refuse(RoleViewer, resource, ActionDelete),
			refuse(RoleViewer, resource, ActionExport),
			refuse(RoleViewer, resource, ActionBulkDelete),
		)

		// Member: team-wide collaboration, own-only destruction
		rules = append(rules,
			allow(RoleMember, resource, ActionCreate, ScopeTeam),
			allow(RoleMember, resource, ActionRead, ScopeTeam),
			allow(RoleMember, resource, ActionList, ScopeTeam),
			allow(RoleMember, resource, ActionUpdate, ScopeTeam),
			allow(RoleMember, resource, ActionDelete, ScopeOwn),
			allow(RoleMember, resource, ActionExport, ScopeTeam),
			refuse(RoleMember, resource, ActionBulkDelete),
		)

		// Admin: full access with a global ceiling
		for _, action := range []Action{ActionCreate, ActionRead, ActionList, ActionUpdate, ActionDelete, ActionExport, ActionBulkDelete} {
			rules = append(rules, allow(RoleAdmin, resource, action, ScopeGlobal))
		}
	}

	// Audit logs are admin-only and read-only
	rules = append(rules,
		allow(RoleAdmin, ResourceAuditLog, ActionRead, ScopeGlobal),
		allow(RoleAdmin, ResourceAuditLog, ActionList, ScopeGlobal),
	)

	return rules
}

// DefaultTierQuotas returns the built-in tier-to-response contract
func DefaultTierQuotas() []TierQuota {
	quotas := []TierQuota{}
	for _, resource := range []ResourceType{ResourceTask, ResourceProject, ResourceComment} {
		quotas = append(quotas,
			TierQuota{Tier: TierFree, Resource: resource, Quota: QuotaSet{
				MaxItems: 100,
			}},
			TierQuota{Tier: TierPro, Resource: resource, Quota: QuotaSet{
				MaxItems: 10000,
				Features: NewFeatureSet(FeatureExport, FeatureExportMetadata, FeatureAdvancedFilters),
			}},
			TierQuota{Tier: TierEnterprise, Resource: resource, Quota: QuotaSet{
				MaxItems: Unlimited,
				Features: NewFeatureSet(FeatureExport, FeatureExportMetadata, FeatureAdvancedFilters, FeatureBulkDelete),
			}},
		)
	}
	quotas = append(quotas, TierQuota{Tier: TierEnterprise, Resource: ResourceAuditLog, Quota: QuotaSet{
		MaxItems: 10000,
		Features: NewFeatureSet(FeatureExport),
	}})
	return quotas
}

// DefaultRoleFeatures returns the built-in role feature caps. Viewers carry no
// capability flags regardless of tier.
func DefaultRoleFeatures() map[Role]FeatureSet {
	return map[Role]FeatureSet{
		RoleViewer: nil,
		RoleMember: NewFeatureSet(FeatureExport, FeatureExportMetadata, FeatureAdvancedFilters),
		RoleAdmin:  NewFeatureSet(FeatureExport, FeatureExportMetadata, FeatureAdvancedFilters, FeatureBulkDelete),
	}
}

// DefaultRegistryConfig assembles the built-in rule table with the given
// system-wide collection ceiling
func DefaultRegistryConfig(systemMaxItems int) RegistryConfig {
	return RegistryConfig{
		Version:        DefaultRulesVersion,
		Rules:          DefaultRules(),
		TierQuotas:     DefaultTierQuotas(),
		RoleFeatures:   DefaultRoleFeatures(),
		SystemMaxItems: systemMaxItems,
	}
}
