package identity

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/taskgrid/taskgrid/pkg/authz"
)

// ErrPrincipalNotFound is returned when no user exists for the given ID.
var ErrPrincipalNotFound = fmt.Errorf("principal not found")

// Store assembles principal snapshots from PostgreSQL. A snapshot is read
// once per request and never refreshed mid-request; role or tier changes
// take effect on the next snapshot.
type Store struct {
	db *sql.DB
}

// NewStore creates a principal store over the given database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Snapshot loads the authenticated actor's roles, subscription tier, and
// memberships as of now. Users without a subscription row default to the
// free tier.
func (s *Store) Snapshot(ctx context.Context, userID int64) (*authz.Principal, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)", userID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		return nil, ErrPrincipalNotFound
	}

	roles, err := s.loadRoles(ctx, userID)
	if err != nil {
		return nil, err
	}

	tier, err := s.loadTier(ctx, userID)
	if err != nil {
		return nil, err
	}

	memberships, err := s.loadMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &authz.Principal{
		ID:          userID,
		Roles:       roles,
		Tier:        tier,
		Memberships: memberships,
	}, nil
}

func (s *Store) loadRoles(ctx context.Context, userID int64) ([]authz.Role, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT role FROM user_roles WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	defer rows.Close()

	var roles []authz.Role
	for rows.Next() {
		var role string
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, authz.Role(role))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}
	return roles, nil
}

func (s *Store) loadTier(ctx context.Context, userID int64) (authz.SubscriptionTier, error) {
	var tier string
	err := s.db.QueryRowContext(ctx,
		"SELECT tier FROM subscriptions WHERE user_id = $1 AND active = true", userID).Scan(&tier)
	if err == sql.ErrNoRows {
		return authz.TierFree, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load subscription tier: %w", err)
	}
	return authz.SubscriptionTier(tier), nil
}

func (s *Store) loadMemberships(ctx context.Context, userID int64) ([]authz.OrgMembership, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT org_id, team_id, team_role FROM org_memberships WHERE user_id = $1", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	defer rows.Close()

	var memberships []authz.OrgMembership
	for rows.Next() {
		var m authz.OrgMembership
		var teamID sql.NullInt64
		var teamRole sql.NullString
		if err := rows.Scan(&m.OrgID, &teamID, &teamRole); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		if teamID.Valid {
			m.TeamID = &teamID.Int64
		}
		if teamRole.Valid {
			m.TeamRole = authz.Role(teamRole.String)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating memberships: %w", err)
	}
	return memberships, nil
}

// ReplaceRoles swaps the user's role set in one transaction.
func (s *Store) ReplaceRoles(ctx context.Context, userID int64, roles []authz.Role) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_roles WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to clear roles: %w", err)
	}
	for _, role := range roles {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_roles (user_id, role) VALUES ($1, $2)", userID, string(role)); err != nil {
			return fmt.Errorf("failed to insert role: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role change: %w", err)
	}
	return nil
}

// SetTier updates the user's active subscription tier.
func (s *Store) SetTier(ctx context.Context, userID int64, tier authz.SubscriptionTier) error {
	query := `
		INSERT INTO subscriptions (user_id, tier, active)
		VALUES ($1, $2, true)
		ON CONFLICT (user_id) DO UPDATE SET tier = EXCLUDED.tier, active = true
	`
	if _, err := s.db.ExecContext(ctx, query, userID, string(tier)); err != nil {
		return fmt.Errorf("failed to set subscription tier: %w", err)
	}
	return nil
}
