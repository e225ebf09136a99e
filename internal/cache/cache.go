// Package cache provides the in-memory result cache used by the query
// router.
//
// The cache is sharded to keep lock contention low under concurrent
// queries: keys hash to one of 16 shards, each with its own mutex, map and
// LRU list. Entries expire by TTL (checked lazily on read) and the oldest
// entry in a shard is evicted when the shard is at capacity. Negative
// entries, caching a "no data" answer, carry a shorter TTL so newly
// arrived data surfaces quickly.
package cache

import (
	"container/list"
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 16

// Config tunes a cache. Zero fields fall back to the defaults.
type Config struct {
	Capacity    int           // total entries across all shards
	TTL         time.Duration // positive-entry lifetime
	NegativeTTL time.Duration // negative-entry lifetime
	Now         func() time.Time
}

// Defaults applied by New for unset Config fields.
const (
	DefaultCapacity    = 4096
	DefaultTTL         = 5 * time.Minute
	DefaultNegativeTTL = 30 * time.Second
)

// Cache is a sharded LRU cache with per-entry TTL. Safe for concurrent
// use. The zero value is not usable; construct with New.
type Cache[V any] struct {
	shards [shardCount]shard[V]
	ttl    time.Duration
	negTTL time.Duration
	now    func() time.Time
}

type shard[V any] struct {
	mu       sync.Mutex
	entries  map[string]*list.Element
	order    *list.List // front is most recently used
	capacity int
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// New constructs a cache from cfg, applying defaults for zero fields.
func New[V any](cfg Config) *Cache[V] {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.NegativeTTL <= 0 {
		cfg.NegativeTTL = DefaultNegativeTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	perShard := (cfg.Capacity + shardCount - 1) / shardCount
	c := &Cache[V]{ttl: cfg.TTL, negTTL: cfg.NegativeTTL, now: cfg.Now}
	for i := range c.shards {
		c.shards[i].entries = make(map[string]*list.Element)
		c.shards[i].order = list.New()
		c.shards[i].capacity = perShard
	}
	return c
}

// Get returns the cached value for key. Expired entries are removed on
// the way out and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	ent := el.Value.(*entry[V])
	if c.now().After(ent.expiresAt) {
		s.remove(el)
		var zero V
		return zero, false
	}
	s.order.MoveToFront(el)
	return ent.value, true
}

// Put stores value under key with the standard TTL, replacing any
// existing entry.
func (c *Cache[V]) Put(key string, value V) {
	c.put(key, value, c.ttl)
}

// PutNegative stores a "no data" answer under key with the short
// negative TTL.
func (c *Cache[V]) PutNegative(key string, value V) {
	c.put(key, value, c.negTTL)
}

func (c *Cache[V]) put(key string, value V, ttl time.Duration) {
	s := c.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	expires := c.now().Add(ttl)
	if el, ok := s.entries[key]; ok {
		ent := el.Value.(*entry[V])
		ent.value = value
		ent.expiresAt = expires
		s.order.MoveToFront(el)
		return
	}
	if s.order.Len() >= s.capacity {
		s.remove(s.order.Back())
	}
	el := s.order.PushFront(&entry[V]{key: key, value: value, expiresAt: expires})
	s.entries[key] = el
}

// Purge drops every entry. Called when a new generation is published so
// stale results never outlive the data they were computed from.
func (c *Cache[V]) Purge() {
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		s.entries = make(map[string]*list.Element)
		s.order.Init()
		s.mu.Unlock()
	}
}

// Len reports the number of live entries, counting expired-but-unswept
// ones.
func (c *Cache[V]) Len() int {
	var n int
	for i := range c.shards {
		s := &c.shards[i]
		s.mu.Lock()
		n += s.order.Len()
		s.mu.Unlock()
	}
	return n
}

func (c *Cache[V]) shardFor(key string) *shard[V] {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &c.shards[h.Sum32()%shardCount]
}

func (s *shard[V]) remove(el *list.Element) {
	if el == nil {
		return
	}
	ent := el.Value.(*entry[V])
	delete(s.entries, ent.key)
	s.order.Remove(el)
}
