// Package authz implements taskgrid's dynamic permission resolution engine.
//
// # Overview
//
// For every authenticated request the engine computes, from a principal's
// role, subscription tier, and organizational memberships, an effective
// permission set that both authorizes the requested action and parametrizes
// how the response payload is shaped (item limits, visible fields, capability
// flags). A single logical endpoint legitimately returns structurally
// different JSON to different callers based on this decision.
//
// The moving parts, leaves first:
//
//   - Registry: immutable, process-wide rule table mapping
//     (role, resource type, action) to a base grant and
//     (tier, resource type) to a quota/feature set. Built once at startup,
//     read-only thereafter; concurrent readers need no locking.
//   - Resolver: determines the narrowest-to-widest scope standing
//     (Own/Team/Organization/Global) a principal has on a resource, capped by
//     the role's ceiling for the action.
//   - Calculator: combines registry lookup, scope resolution, and tier quota
//     arithmetic into one immutable EffectivePermissionSet per request. Pure
//     and deterministic: identical inputs yield identical decisions.
//   - DecisionCache: bounded LRU with TTL memoizing calculator output, with
//     targeted per-principal invalidation for role/tier changes.
//
// # Fail-closed combination
//
// Denials are values, never errors. The combination logic is strictly
// ordered and terminal:
//
//	missing rule        -> Deny (unconfigured)
//	base grant denies   -> Deny (role_denied); tier and scope cannot recover it
//	no standing         -> Deny (out_of_scope); the role grant cannot recover it
//	otherwise           -> Allow with capped scope, capped quota, intersected features
//
// # Usage Example
//
//	registry := authz.NewRegistry(authz.DefaultRegistryConfig(50000))
//	calc := authz.NewCalculator(registry, logger)
//	cache := authz.NewDecisionCache(4096, 30*time.Second)
//
//	key := authz.CacheKey{PrincipalID: p.ID, ResourceType: authz.ResourceTask, Action: authz.ActionList}
//	eps := cache.GetOrCompute(key, func() authz.EffectivePermissionSet {
//		return calc.Compute(p, authz.ActionList, authz.ResourceTask, ownership)
//	})
//	if !eps.Allowed {
//		return eps.Decision() // 403 with reason
//	}
//
// # Related Packages
//
//   - pkg/shaping: consumes EffectivePermissionSet to truncate, redact, and flag payloads
//   - pkg/identity: assembles Principal snapshots and fans out cache invalidation
//   - pkg/audit: decision events emitted per check
package authz
