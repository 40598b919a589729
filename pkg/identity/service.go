package identity

import (
	"context"

	"github.com/taskgrid/taskgrid/pkg/audit"
	"github.com/taskgrid/taskgrid/pkg/authz"
	"github.com/taskgrid/taskgrid/pkg/observability"
)

// Service coordinates identity mutations with cache invalidation and audit.
// A role or tier change must sweep the principal's cached decisions; stale
// grants otherwise survive until the cache TTL expires.
type Service struct {
	store       *Store
	cache       *authz.DecisionCache
	bus         *Bus
	auditLogger audit.Logger
	logger      *observability.Logger
	metrics     *observability.Metrics
}

// NewService wires the identity service. bus may be nil when Redis is
// disabled; invalidation then stays instance-local.
func NewService(store *Store, cache *authz.DecisionCache, bus *Bus, auditLogger audit.Logger, logger *observability.Logger, metrics *observability.Metrics) *Service {
	if auditLogger == nil {
		auditLogger = audit.NopLogger{}
	}
	return &Service{
		store:       store,
		cache:       cache,
		bus:         bus,
		auditLogger: auditLogger,
		logger:      logger,
		metrics:     metrics,
	}
}

// Snapshot loads the principal for a request, recording load outcomes.
func (s *Service) Snapshot(ctx context.Context, userID int64) (*authz.Principal, error) {
	principal, err := s.store.Snapshot(ctx, userID)
	if s.metrics != nil {
		status := "ok"
		if err == ErrPrincipalNotFound {
			status = "not_found"
		} else if err != nil {
			status = "error"
		}
		s.metrics.SnapshotLoadsTotal.WithLabelValues(status).Inc()
	}
	return principal, err
}

// ChangeRoles replaces the user's roles and invalidates their decisions.
func (s *Service) ChangeRoles(ctx context.Context, userID int64, roles []authz.Role) error {
	if err := s.store.ReplaceRoles(ctx, userID, roles); err != nil {
		return err
	}
	s.invalidate(ctx, userID, "role_change", audit.EventTypeRoleChange)
	return nil
}

// ChangeTier updates the user's subscription tier and invalidates their
// decisions.
func (s *Service) ChangeTier(ctx context.Context, userID int64, tier authz.SubscriptionTier) error {
	if err := s.store.SetTier(ctx, userID, tier); err != nil {
		return err
	}
	s.invalidate(ctx, userID, "tier_change", audit.EventTypeTierChange)
	return nil
}

func (s *Service) invalidate(ctx context.Context, userID int64, source string, eventType audit.EventType) {
	removed := s.cache.InvalidatePrincipal(userID)
	if s.metrics != nil {
		s.metrics.CacheInvalidations.WithLabelValues(source).Inc()
		s.metrics.CacheEntries.Set(float64(s.cache.Len()))
	}

	if s.bus != nil {
		if err := s.bus.Publish(ctx, userID, source); err != nil {
			// Local sweep already happened; other instances converge at TTL.
			s.logger.WithError(err).
				WithField("principal_id", userID).
				Warn("Failed to broadcast invalidation")
		}
	}

	event := audit.NewInvalidationEvent(userID, removed, source)
	event.EventType = eventType
	if err := s.auditLogger.Log(ctx, event); err != nil {
		s.logger.WithError(err).Warn("Failed to record invalidation event")
	}

	s.logger.WithField("principal_id", userID).
		WithField("source", source).
		WithField("removed", removed).
		Info("Invalidated cached decisions")
}
