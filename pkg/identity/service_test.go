package identity

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgrid/taskgrid/pkg/audit"
	"github.com/taskgrid/taskgrid/pkg/authz"
	"github.com/taskgrid/taskgrid/pkg/observability"
)

// capturingAuditLogger records events across goroutines.
type capturingAuditLogger struct {
	mu     sync.Mutex
	events []*audit.AuditEvent
}

func (c *capturingAuditLogger) Log(ctx context.Context, event *audit.AuditEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *capturingAuditLogger) Close() error { return nil }

func newTestService(t *testing.T) (*Service, sqlmock.Sqlmock, *authz.DecisionCache, *capturingAuditLogger, *observability.Metrics) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cache := authz.NewDecisionCache(16, time.Minute)
	auditLogger := &capturingAuditLogger{}
	logger := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	svc := NewService(NewStore(db), cache, nil, auditLogger, logger, metrics)
	return svc, mock, cache, auditLogger, metrics
}

func TestService_SnapshotMetrics(t *testing.T) {
	svc, mock, _, _, metrics := newTestService(t)

	expectUserExists(mock, 99, false)
	_, err := svc.Snapshot(context.Background(), 99)
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SnapshotLoadsTotal.WithLabelValues("not_found")))

	expectUserExists(mock, 42, true)
	mock.ExpectQuery("SELECT role FROM user_roles").
		WillReturnRows(sqlmock.NewRows([]string{"role"}).AddRow("viewer"))
	mock.ExpectQuery("SELECT tier FROM subscriptions").
		WillReturnRows(sqlmock.NewRows([]string{"tier"}))
	mock.ExpectQuery("SELECT org_id, team_id, team_role FROM org_memberships").
		WillReturnRows(sqlmock.NewRows([]string{"org_id", "team_id", "team_role"}))

	_, err = svc.Snapshot(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.SnapshotLoadsTotal.WithLabelValues("ok")))
}

func TestService_ChangeRolesInvalidates(t *testing.T) {
	svc, mock, cache, auditLogger, metrics := newTestService(t)

	seedCache(cache, 42, "t-1")
	seedCache(cache, 42, "t-2")
	seedCache(cache, 7, "t-3")

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM user_roles").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs(int64(42), "admin").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, svc.ChangeRoles(context.Background(), 42, []authz.Role{authz.RoleAdmin}))

	assert.Equal(t, 1, cache.Len(), "only the other principal's entry survives")
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheInvalidations.WithLabelValues("role_change")))

	require.Len(t, auditLogger.events, 1)
	event := auditLogger.events[0]
	assert.Equal(t, audit.EventTypeRoleChange, event.EventType)
	assert.Equal(t, int64(42), event.PrincipalID)
	assert.Equal(t, 2, event.Metadata["removed"])
	assert.Equal(t, "role_change", event.Metadata["source"])
}

func TestService_ChangeTierInvalidates(t *testing.T) {
	svc, mock, cache, auditLogger, _ := newTestService(t)

	seedCache(cache, 42, "t-1")

	mock.ExpectExec("INSERT INTO subscriptions").
		WithArgs(int64(42), "free").
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, svc.ChangeTier(context.Background(), 42, authz.TierFree))

	assert.Equal(t, 0, cache.Len(), "downgrade sweeps cached decisions immediately")
	require.Len(t, auditLogger.events, 1)
	assert.Equal(t, audit.EventTypeTierChange, auditLogger.events[0].EventType)
}

func TestService_StoreErrorSkipsInvalidation(t *testing.T) {
	svc, mock, cache, auditLogger, _ := newTestService(t)

	seedCache(cache, 42, "t-1")

	mock.ExpectExec("INSERT INTO subscriptions").
		WillReturnError(assert.AnError)

	err := svc.ChangeTier(context.Background(), 42, authz.TierPro)
	assert.Error(t, err)
	assert.Equal(t, 1, cache.Len(), "failed write must not sweep the cache")
	assert.Empty(t, auditLogger.events)
}
