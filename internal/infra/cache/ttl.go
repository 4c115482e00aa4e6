package cache

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 16

// TTL is a bounded in-process cache with per-entry expiration. Entries are
// sharded by key hash to reduce lock contention. When a shard exceeds its
// capacity the expired entries are evicted first, then the oldest entry.
type TTL[V any] struct {
	shards  [shardCount]*shard[V]
	ttl     time.Duration
	perCap  int
	nowFunc func() time.Time
}

type shard[V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
}

type entry[V any] struct {
	value    V
	deadline time.Time
}

// NewTTL builds a cache holding up to capacity entries with the given
// time-to-live. Capacity below shardCount is raised to one entry per shard.
func NewTTL[V any](capacity int, ttl time.Duration) *TTL[V] {
	perCap := capacity / shardCount
	if perCap < 1 {
		perCap = 1
	}

	c := &TTL[V]{
		ttl:     ttl,
		perCap:  perCap,
		nowFunc: time.Now,
	}
	for i := range c.shards {
		c.shards[i] = &shard[V]{entries: make(map[string]entry[V])}
	}

	return c
}

// Get returns the live value for key, if present.
func (c *TTL[V]) Get(key string) (V, bool) {
	s := c.shardFor(key)
	now := c.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || now.After(e.deadline) {
		if ok {
			delete(s.entries, key)
		}
		var zero V
		return zero, false
	}

	return e.value, true
}

// Set stores the value for key, replacing any existing entry.
func (c *TTL[V]) Set(key string, value V) {
	s := c.shardFor(key)
	now := c.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()

	c.makeRoomLocked(s, key, now)
	s.entries[key] = entry[V]{value: value, deadline: now.Add(c.ttl)}
}

// Once stores the value only if no live entry exists for key. It reports
// whether the store happened, so concurrent callers racing on the same key
// coalesce to a single winner per TTL window.
func (c *TTL[V]) Once(key string, value V) bool {
	s := c.shardFor(key)
	now := c.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && !now.After(e.deadline) {
		return false
	}

	c.makeRoomLocked(s, key, now)
	s.entries[key] = entry[V]{value: value, deadline: now.Add(c.ttl)}

	return true
}

// GetOrCreate returns the live value for key, creating it with build when
// absent. The build function runs under the shard lock and must be cheap.
func (c *TTL[V]) GetOrCreate(key string, build func() V) V {
	s := c.shardFor(key)
	now := c.nowFunc()

	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.entries[key]; ok && !now.After(e.deadline) {
		return e.value
	}

	c.makeRoomLocked(s, key, now)
	v := build()
	s.entries[key] = entry[V]{value: v, deadline: now.Add(c.ttl)}

	return v
}

// Len reports the number of entries currently held, expired ones included.
func (c *TTL[V]) Len() int {
	total := 0
	for _, s := range c.shards {
		s.mu.Lock()
		total += len(s.entries)
		s.mu.Unlock()
	}
	return total
}

func (c *TTL[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	h.Write([]byte(key))
	return c.shards[h.Sum32()%shardCount]
}

// makeRoomLocked makes room for an insert of key. Expired entries go first;
// when the shard is still full the entry closest to expiry is dropped.
func (c *TTL[V]) makeRoomLocked(s *shard[V], key string, now time.Time) {
	if _, exists := s.entries[key]; exists {
		return
	}
	if len(s.entries) < c.perCap {
		return
	}

	for k, e := range s.entries {
		if now.After(e.deadline) {
			delete(s.entries, k)
		}
	}
	for len(s.entries) >= c.perCap {
		s.evictOldestLocked()
	}
}

// evictOldestLocked drops the entry with the earliest deadline.
func (s *shard[V]) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	first := true
	for k, e := range s.entries {
		if first || e.deadline.Before(oldest) {
			oldestKey = k
			oldest = e.deadline
			first = false
		}
	}
	if !first {
		delete(s.entries, oldestKey)
	}
}
