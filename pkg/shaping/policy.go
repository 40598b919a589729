package shaping

import (
	"github.com/taskgrid/taskgrid/pkg/authz"
)

// DefaultFieldPolicyVersion identifies the built-in visibility table revision
const DefaultFieldPolicyVersion = "2025-09-01"

// scopeRule gates a field on a minimum scope level
type scopeRule struct {
	Resource authz.ResourceType
	Field    string
	MinScope authz.ScopeLevel
}

// featureRule gates a field on a feature flag in the effective set
type featureRule struct {
	Resource authz.ResourceType
	Field    string
	Feature  authz.FeatureFlag
}

// FieldPolicy is the immutable, versioned field visibility table. Fields
// absent from the table are visible at every scope. Like the rule registry it
// is built once at startup and only read afterwards.
type FieldPolicy struct {
	version   string
	minScopes map[authz.ResourceType]map[string]authz.ScopeLevel
	features  map[authz.ResourceType]map[string]authz.FeatureFlag
}

// FieldPolicyConfig holds the declarative inputs for a FieldPolicy
type FieldPolicyConfig struct {
	Version      string
	ScopeRules   []scopeRule
	FeatureRules []featureRule
}

// NewFieldPolicy constructs a FieldPolicy from declarative rows
func NewFieldPolicy(cfg FieldPolicyConfig) *FieldPolicy {
	p := &FieldPolicy{
		version:   cfg.Version,
		minScopes: make(map[authz.ResourceType]map[string]authz.ScopeLevel),
		features:  make(map[authz.ResourceType]map[string]authz.FeatureFlag),
	}
	for _, r := range cfg.ScopeRules {
		if p.minScopes[r.Resource] == nil {
			p.minScopes[r.Resource] = make(map[string]authz.ScopeLevel)
		}
		p.minScopes[r.Resource][r.Field] = r.MinScope
	}
	for _, r := range cfg.FeatureRules {
		if p.features[r.Resource] == nil {
			p.features[r.Resource] = make(map[string]authz.FeatureFlag)
		}
		p.features[r.Resource][r.Field] = r.Feature
	}
	return p
}

// Version returns the visibility table revision identifier
func (p *FieldPolicy) Version() string {
	return p.version
}

// Visible reports whether the field may appear in a payload shaped under the
// given decision. A field must clear both its scope gate and its feature gate.
func (p *FieldPolicy) Visible(resource authz.ResourceType, field string, decision authz.EffectivePermissionSet) bool {
	if min, ok := p.minScopes[resource][field]; ok && decision.Scope < min {
		return false
	}
	if feature, ok := p.features[resource][field]; ok && !decision.Features.Has(feature) {
		return false
	}
	return true
}

// DefaultFieldPolicy returns the built-in visibility table. Audit and internal
// fields are hidden below Organization scope; export metadata rides on the
// export_metadata feature.
func DefaultFieldPolicy() *FieldPolicy {
	cfg := FieldPolicyConfig{Version: DefaultFieldPolicyVersion}
	for _, resource := range []authz.ResourceType{authz.ResourceTask, authz.ResourceProject, authz.ResourceComment} {
		cfg.ScopeRules = append(cfg.ScopeRules,
			scopeRule{Resource: resource, Field: "internal_notes", MinScope: authz.ScopeOrganization},
			scopeRule{Resource: resource, Field: "audit_trail", MinScope: authz.ScopeOrganization},
			scopeRule{Resource: resource, Field: "owner_email", MinScope: authz.ScopeTeam},
		)
		cfg.FeatureRules = append(cfg.FeatureRules,
			featureRule{Resource: resource, Field: "export_metadata", Feature: authz.FeatureExportMetadata},
		)
	}
	return NewFieldPolicy(cfg)
}
