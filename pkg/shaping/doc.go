// Package shaping transforms raw results into payloads appropriate to the
// caller's effective permissions.
//
// # Overview
//
// The shaper consumes an authz.EffectivePermissionSet and a raw result and
// produces the shaped payload the serialization layer returns to clients:
// collections truncated to the item quota, single items with fields redacted
// by scope and feature, and advisory capability flags.
//
// # Usage Example
//
// Shape a collection:
//
//	shaped := shaping.ShapeCollection(decision, tasks)
//	// shaped.Items is at most decision.Quota.MaxItems long,
//	// shaped.Truncated reports whether anything was dropped.
//
// Shape a single item:
//
//	policy := shaping.DefaultFieldPolicy()
//	item := shaping.ShapeItem(policy, decision, authz.ResourceTask, payload)
//
// Capability flags are advisory for client UI decisioning only; they never
// authorize anything. The calculator remains the sole authority.
//
// # Related Packages
//
//   - pkg/authz: produces the decisions this package consumes
//   - pkg/api: calls the shaper before serializing responses
package shaping
