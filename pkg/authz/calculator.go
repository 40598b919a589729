package authz

import (
	"github.com/taskgrid/taskgrid/pkg/observability"
)

// Calculator combines the rule registry lookup, scope resolution, and tier
// quota arithmetic into a single immutable decision per request.
//
// Compute is pure: the result depends only on the principal snapshot, the
// requested action, and the resource ownership metadata. No hidden state, no
// I/O, safe to call from any number of goroutines.
type Calculator struct {
	registry *Registry
	resolver *Resolver
	logger   *observability.Logger
}

// NewCalculator creates an effective permission calculator backed by the given
// rule registry
func NewCalculator(registry *Registry, logger *observability.Logger) *Calculator {
	return &Calculator{
		registry: registry,
		resolver: NewResolver(logger),
		logger:   logger,
	}
}

// Registry returns the rule registry backing this calculator
func (c *Calculator) Registry() *Registry {
	return c.registry
}

// Compute resolves the effective permission set for one request. Steps are
// strictly ordered; a terminal denial skips everything after it.
func (c *Calculator) Compute(principal *Principal, action Action, resource ResourceType, ownership ResourceOwnership) EffectivePermissionSet {
	role := principal.HighestRole()

	// Step 1: base grant lookup for the highest-ranked role. A missing rule
	// is a deployment defect and fails closed.
	grant, ok := c.registry.Grant(role, resource, action)
	if !ok {
		if c.logger != nil {
			c.logger.WithFields(map[string]interface{}{
				"role":     string(role),
				"resource": string(resource),
				"action":   string(action),
				"rules":    c.registry.Version(),
			}).Error("no permission rule configured; failing closed")
		}
		return deny(ReasonUnconfigured)
	}

	// Step 2: a base deny is terminal; no tier or scope computation can
	// recover it.
	if !grant.Allowed {
		return deny(ReasonRoleDenied)
	}

	// Step 3: scope resolution. No standing is terminal even though the role
	// grant allowed the action.
	scope := c.resolver.Resolve(principal, ownership, grant.MaxScope)
	if scope == ScopeNone {
		return deny(ReasonOutOfScope)
	}

	// Step 4: cap at the role ceiling. Resolve already enforces this, but the
	// cap is restated here so reordering earlier steps cannot widen scope.
	scope = minScope(scope, grant.MaxScope)

	// Step 5: tier quota with the system-wide ceiling applied.
	quota := c.registry.Quota(principal.Tier, resource)
	quota.MaxItems = c.registry.capItems(quota.MaxItems)

	// Step 6: assemble. Features are the tier features intersected with what
	// the role is permitted to carry.
	features := quota.Features.Intersect(c.registry.RoleFeatures(role))
	quota.Features = features

	return EffectivePermissionSet{
		Allowed:  true,
		Scope:    scope,
		Quota:    quota,
		Features: features,
		Reason:   ReasonGranted,
	}
}
