package authz

import (
	"bytes"
	"strings"
	"testing"

	"github.com/taskgrid/taskgrid/pkg/observability"
)

func intPtr(v int64) *int64 { return &v }

func TestResolver_Resolve(t *testing.T) {
	resolver := NewResolver(nil)

	tests := []struct {
		name      string
		principal Principal
		ownership ResourceOwnership
		ceiling   ScopeLevel
		want      ScopeLevel
	}{
		{
			name:      "owner resolves to own",
			principal: Principal{ID: 7},
			ownership: ResourceOwnership{OwnerUserID: 7},
			ceiling:   ScopeTeam,
			want:      ScopeOwn,
		},
		{
			name:      "non-owner with no memberships and team ceiling",
			principal: Principal{ID: 7},
			ownership: ResourceOwnership{OwnerUserID: 8},
			ceiling:   ScopeTeam,
			want:      ScopeNone,
		},
		{
			name: "team member resolves to team",
			principal: Principal{
				ID:          7,
				Memberships: []OrgMembership{{OrgID: 1, TeamID: intPtr(10)}},
			},
			ownership: ResourceOwnership{OwnerUserID: 8, TeamID: intPtr(10), OrgID: intPtr(1)},
			ceiling:   ScopeTeam,
			want:      ScopeTeam,
		},
		{
			name: "different team no shared org membership",
			principal: Principal{
				ID:          7,
				Memberships: []OrgMembership{{OrgID: 1, TeamID: intPtr(10)}},
			},
			ownership: ResourceOwnership{OwnerUserID: 8, TeamID: intPtr(20), OrgID: intPtr(1)},
			ceiling:   ScopeTeam,
			want:      ScopeNone,
		},
		{
			name: "org-wide membership reaches other teams resources",
			principal: Principal{
				ID:          7,
				Memberships: []OrgMembership{{OrgID: 1}},
			},
			ownership: ResourceOwnership{OwnerUserID: 8, TeamID: intPtr(20), OrgID: intPtr(1)},
			ceiling:   ScopeOrganization,
			want:      ScopeOrganization,
		},
		{
			name: "org standing capped by team ceiling",
			principal: Principal{
				ID:          7,
				Memberships: []OrgMembership{{OrgID: 1}},
			},
			ownership: ResourceOwnership{OwnerUserID: 8, TeamID: intPtr(20), OrgID: intPtr(1)},
			ceiling:   ScopeTeam,
			want:      ScopeTeam,
		},
		{
			name: "own standing capped by own ceiling despite team membership",
			principal: Principal{
				ID:          7,
				Memberships: []OrgMembership{{OrgID: 1, TeamID: intPtr(10)}},
			},
			ownership: ResourceOwnership{OwnerUserID: 7, TeamID: intPtr(10), OrgID: intPtr(1)},
			ceiling:   ScopeOwn,
			want:      ScopeOwn,
		},
		{
			name: "wrong org membership has no standing",
			principal: Principal{
				ID:          7,
				Memberships: []OrgMembership{{OrgID: 2}},
			},
			ownership: ResourceOwnership{OwnerUserID: 8, OrgID: intPtr(1)},
			ceiling:   ScopeOrganization,
			want:      ScopeNone,
		},
		{
			name:      "ownerless resource with no memberships",
			principal: Principal{ID: 7},
			ownership: ResourceOwnership{},
			ceiling:   ScopeTeam,
			want:      ScopeNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolver.Resolve(&tt.principal, tt.ownership, tt.ceiling)
			if got != tt.want {
				t.Errorf("Resolve() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolver_GlobalCeiling(t *testing.T) {
	resolver := NewResolver(nil)

	// A global ceiling means the role itself carries standing on every
	// resource; no membership path to the resource is required.
	principal := Principal{ID: 7}
	ownership := ResourceOwnership{OwnerUserID: 8, TeamID: intPtr(20), OrgID: intPtr(1)}

	if got := resolver.Resolve(&principal, ownership, ScopeGlobal); got != ScopeGlobal {
		t.Errorf("Resolve() = %v, want ScopeGlobal", got)
	}

	// A narrower ceiling withdraws that standing.
	if got := resolver.Resolve(&principal, ownership, ScopeOrganization); got != ScopeNone {
		t.Errorf("Resolve() = %v, want ScopeNone", got)
	}
}

func TestResolver_InconsistentMembership(t *testing.T) {
	var buf bytes.Buffer
	logger := observability.NewLogger(observability.WarnLevel, &buf)
	resolver := NewResolver(logger)

	// Team membership without a parent organization: resolution demotes to
	// own-only and the inconsistency is logged.
	principal := Principal{
		ID:          7,
		Memberships: []OrgMembership{{TeamID: intPtr(10)}},
	}

	t.Run("team standing withdrawn", func(t *testing.T) {
		ownership := ResourceOwnership{OwnerUserID: 8, TeamID: intPtr(10)}
		if got := resolver.Resolve(&principal, ownership, ScopeTeam); got != ScopeNone {
			t.Errorf("Resolve() = %v, want ScopeNone", got)
		}
	})

	t.Run("own standing survives", func(t *testing.T) {
		ownership := ResourceOwnership{OwnerUserID: 7, TeamID: intPtr(10)}
		if got := resolver.Resolve(&principal, ownership, ScopeTeam); got != ScopeOwn {
			t.Errorf("Resolve() = %v, want ScopeOwn", got)
		}
	})

	t.Run("inconsistency logged as warning", func(t *testing.T) {
		if !strings.Contains(buf.String(), "parent organization") {
			t.Error("expected a consistency warning in the log")
		}
	})
}

func TestMaxScope(t *testing.T) {
	if maxScope(ScopeOwn, ScopeTeam) != ScopeTeam {
		t.Error("maxScope must return the wider level")
	}
	if minScope(ScopeOrganization, ScopeTeam) != ScopeTeam {
		t.Error("minScope must return the narrower level")
	}
}
