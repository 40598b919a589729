package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/taskgrid/taskgrid/pkg/authz"
	"github.com/taskgrid/taskgrid/pkg/observability"
)

// InvalidationChannel is the pub/sub channel carrying cache invalidations
// between instances.
const InvalidationChannel = "taskgrid:invalidations"

// InvalidationMessage is the wire format for one invalidation.
type InvalidationMessage struct {
	PrincipalID int64  `json:"principal_id"`
	Source      string `json:"source"`
}

// Bus fans cache invalidations out to every instance over Redis pub/sub.
// Each instance sweeps its own decision cache when a message arrives, so a
// role change on one node takes effect everywhere within the propagation
// delay rather than the full cache TTL.
type Bus struct {
	client  *redis.Client
	cache   *authz.DecisionCache
	logger  *observability.Logger
	metrics *observability.Metrics
	pubsub  *redis.PubSub
	done    chan struct{}
	closed  sync.Once
}

// NewBus creates an invalidation bus over the given Redis client.
func NewBus(client *redis.Client, cache *authz.DecisionCache, logger *observability.Logger, metrics *observability.Metrics) *Bus {
	return &Bus{
		client:  client,
		cache:   cache,
		logger:  logger,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// Publish broadcasts an invalidation for one principal. The local cache is
// swept by the subscription loop like every other instance's.
func (b *Bus) Publish(ctx context.Context, principalID int64, source string) error {
	msg := InvalidationMessage{PrincipalID: principalID, Source: source}
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal invalidation: %w", err)
	}

	if err := b.client.Publish(ctx, InvalidationChannel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	if b.metrics != nil {
		b.metrics.InvalidationBusEvents.WithLabelValues("published").Inc()
	}
	return nil
}

// Start subscribes to the invalidation channel and sweeps the local cache
// for every received message. It returns once the subscription is
// established; delivery runs in a background goroutine until Close.
func (b *Bus) Start(ctx context.Context) error {
	b.pubsub = b.client.Subscribe(ctx, InvalidationChannel)

	// Receive forces the SUBSCRIBE round trip so a broken Redis fails here
	// instead of silently dropping messages later.
	if _, err := b.pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to invalidation channel: %w", err)
	}

	go b.listen()

	b.logger.WithField("channel", InvalidationChannel).Info("Invalidation bus started")
	return nil
}

func (b *Bus) listen() {
	ch := b.pubsub.Channel()
	for {
		select {
		case <-b.done:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handle(msg.Payload)
		}
	}
}

func (b *Bus) handle(payload string) {
	var msg InvalidationMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		b.logger.WithError(err).Warn("Dropping malformed invalidation message")
		return
	}

	removed := b.cache.InvalidatePrincipal(msg.PrincipalID)
	if b.metrics != nil {
		b.metrics.InvalidationBusEvents.WithLabelValues("received").Inc()
		b.metrics.CacheInvalidations.WithLabelValues(msg.Source).Inc()
	}

	b.logger.WithField("principal_id", msg.PrincipalID).
		WithField("source", msg.Source).
		WithField("removed", removed).
		Debug("Swept decision cache for principal")
}

// Close stops the subscription loop. Safe to call more than once.
func (b *Bus) Close() error {
	var err error
	b.closed.Do(func() {
		close(b.done)
		if b.pubsub != nil {
			err = b.pubsub.Close()
		}
	})
	return err
}
