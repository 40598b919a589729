package identity

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskgrid/taskgrid/pkg/authz"
	"github.com/taskgrid/taskgrid/pkg/observability"
)

func newTestBus(t *testing.T) (*Bus, *authz.DecisionCache, *observability.Metrics) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := authz.NewDecisionCache(16, time.Minute)
	logger := observability.NewLogger(observability.InfoLevel, &bytes.Buffer{})
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	bus := NewBus(client, cache, logger, metrics)
	t.Cleanup(func() { bus.Close() })
	return bus, cache, metrics
}

func seedCache(cache *authz.DecisionCache, principalID int64, resourceID string) {
	key := authz.CacheKey{
		PrincipalID:  principalID,
		ResourceType: authz.ResourceTask,
		Action:       authz.ActionRead,
		ResourceID:   resourceID,
	}
	cache.GetOrCompute(key, func() authz.EffectivePermissionSet {
		return authz.EffectivePermissionSet{
			Allowed: true,
			Scope:   authz.ScopeOwn,
			Reason:  authz.ReasonGranted,
		}
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within deadline")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestBus_PublishSweepsSubscribers(t *testing.T) {
	bus, cache, metrics := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.Start(ctx))

	seedCache(cache, 42, "t-1")
	seedCache(cache, 42, "t-2")
	seedCache(cache, 7, "t-3")
	require.Equal(t, 3, cache.Len())

	require.NoError(t, bus.Publish(ctx, 42, "role_change"))

	waitFor(t, func() bool { return cache.Len() == 1 })

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.InvalidationBusEvents.WithLabelValues("published")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.InvalidationBusEvents.WithLabelValues("received")))
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CacheInvalidations.WithLabelValues("role_change")))
}

func TestBus_MalformedMessageIgnored(t *testing.T) {
	bus, cache, _ := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.Start(ctx))
	seedCache(cache, 42, "t-1")

	require.NoError(t, bus.client.Publish(ctx, InvalidationChannel, "not json").Err())
	require.NoError(t, bus.Publish(ctx, 42, "tier_change"))

	// The well-formed message still lands after the malformed one.
	waitFor(t, func() bool { return cache.Len() == 0 })
}

func TestBus_CloseStopsListener(t *testing.T) {
	bus, cache, _ := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, bus.Start(ctx))
	require.NoError(t, bus.Close())

	seedCache(cache, 42, "t-1")
	// Publish after close must not panic; the sweep simply never happens.
	_ = bus.client.Publish(ctx, InvalidationChannel, `{"principal_id":42,"source":"test"}`).Err()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, cache.Len())
}
