package authz

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// CacheKey identifies one memoized decision. ResourceID is included because
// scope depends on the specific instance's ownership.
type CacheKey struct {
	PrincipalID  int64
	ResourceType ResourceType
	Action       Action
	ResourceID   string
}

// String renders the key in its canonical form. The principal segment comes
// first so targeted invalidation can match on it as a prefix.
func (k CacheKey) String() string {
	return fmt.Sprintf("%d|%s|%s|%s", k.PrincipalID, k.ResourceType, k.Action, k.ResourceID)
}

// principalPrefix returns the invalidation prefix for a principal
func principalPrefix(principalID int64) string {
	return fmt.Sprintf("%d|", principalID)
}

// DecisionCache memoizes calculator output across multiple checks within a
// short window. Bounded capacity with LRU eviction plus a fixed TTL to limit
// staleness after a role or tier change; targeted invalidation by principal
// closes the over-privilege window that TTL alone would leave open.
//
// The underlying LRU is safe for concurrent use; this is the only shared
// mutable structure in the package.
type DecisionCache struct {
	cache *lru.LRU[string, EffectivePermissionSet]
	ttl   time.Duration

	hits        atomic.Int64
	misses      atomic.Int64
	corruptions atomic.Int64
}

// DefaultCacheSize bounds the cache when no size is configured
const DefaultCacheSize = 4096

// DefaultCacheTTL bounds staleness when no TTL is configured
const DefaultCacheTTL = 30 * time.Second

// NewDecisionCache creates a bounded decision cache. Size and TTL fall back
// to defaults when non-positive.
func NewDecisionCache(size int, ttl time.Duration) *DecisionCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &DecisionCache{
		cache: lru.NewLRU[string, EffectivePermissionSet](size, nil, ttl),
		ttl:   ttl,
	}
}

// GetOrCompute returns the cached decision for the key, computing and storing
// it on a miss. Concurrent callers may race to compute the same key; the
// calculator is pure, so duplicate computation is harmless and the last write
// wins.
//
// A cached entry that fails its shape check is treated as corrupt: it is
// evicted and the decision recomputed, bypassing the bad entry.
func (c *DecisionCache) GetOrCompute(key CacheKey, compute func() EffectivePermissionSet) EffectivePermissionSet {
	keyStr := key.String()

	if cached, ok := c.cache.Get(keyStr); ok {
		if cached.wellFormed() {
			c.hits.Add(1)
			return cached
		}
		c.corruptions.Add(1)
		c.cache.Remove(keyStr)
	} else {
		c.misses.Add(1)
	}

	result := compute()
	c.cache.Add(keyStr, result)
	return result
}

// InvalidatePrincipal removes every cached decision for the given principal.
// The identity layer calls this on role or tier mutation. Returns the number
// of entries removed.
func (c *DecisionCache) InvalidatePrincipal(principalID int64) int {
	prefix := principalPrefix(principalID)
	removed := 0
	for _, key := range c.cache.Keys() {
		if strings.HasPrefix(key, prefix) {
			if c.cache.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// Purge drops every cached decision
func (c *DecisionCache) Purge() {
	c.cache.Purge()
}

// Len returns the current number of cached decisions
func (c *DecisionCache) Len() int {
	return c.cache.Len()
}

// TTL returns the configured entry lifetime
func (c *DecisionCache) TTL() time.Duration {
	return c.ttl
}

// CacheStats reports cache effectiveness counters
type CacheStats struct {
	Hits        int64   `json:"hits"`
	Misses      int64   `json:"misses"`
	Corruptions int64   `json:"corruptions"`
	HitRate     float64 `json:"hit_rate"`
	Entries     int     `json:"entries"`
}

// Stats returns a snapshot of the cache counters
func (c *DecisionCache) Stats() CacheStats {
	stats := CacheStats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Corruptions: c.corruptions.Load(),
		Entries:     c.cache.Len(),
	}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total)
	}
	return stats
}
