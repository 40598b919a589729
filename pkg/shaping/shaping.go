package shaping

import (
	"github.com/taskgrid/taskgrid/pkg/authz"
)

// CapabilityFlag is an advisory capability surfaced to clients for UI
// decisioning. Flags never authorize anything themselves; the calculator is
// the sole authority.
type CapabilityFlag string

const (
	CanExport     CapabilityFlag = "can_export"
	CanBulkDelete CapabilityFlag = "can_bulk_delete"
)

// Capabilities derives the advisory flags from an effective feature set
func Capabilities(features authz.FeatureSet) []CapabilityFlag {
	flags := []CapabilityFlag{}
	if features.Has(authz.FeatureExport) {
		flags = append(flags, CanExport)
	}
	if features.Has(authz.FeatureBulkDelete) {
		flags = append(flags, CanBulkDelete)
	}
	return flags
}

// ShapedCollection is a truncated collection payload with shaping metadata
type ShapedCollection[T any] struct {
	Items        []T              `json:"items"`
	Truncated    bool             `json:"truncated"`
	Capabilities []CapabilityFlag `json:"capabilities"`
}

// ShapeCollection truncates a collection to the decision's item quota.
// Truncation keeps a stable prefix of the caller-supplied order; it never
// reorders. A denial yields an empty collection.
func ShapeCollection[T any](decision authz.EffectivePermissionSet, items []T) ShapedCollection[T] {
	if !decision.Allowed {
		return ShapedCollection[T]{Items: []T{}, Capabilities: []CapabilityFlag{}}
	}

	out := ShapedCollection[T]{
		Items:        items,
		Capabilities: Capabilities(decision.Features),
	}
	if out.Items == nil {
		out.Items = []T{}
	}

	max := decision.Quota.MaxItems
	if max == authz.Unlimited {
		return out
	}
	if len(items) > max {
		out.Items = items[:max]
		out.Truncated = true
	}
	return out
}

// ShapedItem is a single-item payload after field redaction
type ShapedItem struct {
	Payload      map[string]interface{} `json:"payload"`
	Redacted     int                    `json:"-"`
	Capabilities []CapabilityFlag       `json:"capabilities"`
}

// ShapeItem redacts the payload's fields per the policy and attaches
// capability flags. The input map is not mutated. A denial yields a nil
// payload.
func ShapeItem(policy *FieldPolicy, decision authz.EffectivePermissionSet, resource authz.ResourceType, payload map[string]interface{}) ShapedItem {
	if !decision.Allowed {
		return ShapedItem{Capabilities: []CapabilityFlag{}}
	}

	out := ShapedItem{
		Payload:      make(map[string]interface{}, len(payload)),
		Capabilities: Capabilities(decision.Features),
	}
	for field, value := range payload {
		if policy.Visible(resource, field, decision) {
			out.Payload[field] = value
		} else {
			out.Redacted++
		}
	}
	return out
}
