// Package directory caches participant display names so message creation
// does not hit the lookup backend for every turn.
package directory

import (
	"container/list"
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/logging"
)

// Resolver fetches display information for a participant on cache miss.
type Resolver interface {
	Resolve(ctx context.Context, p domain.Participant) (string, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, p domain.Participant) (string, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context, p domain.Participant) (string, error) {
	return f(ctx, p)
}

// Config sizes the two cache pools. Agent identity changes rarely and gets a
// long TTL; user identity/presence changes often and gets a short one.
type Config struct {
	AgentTTL      time.Duration
	UserTTL       time.Duration
	AgentCapacity int
	UserCapacity  int
}

func (c *Config) applyDefaults() {
	if c.AgentTTL <= 0 {
		c.AgentTTL = 30 * time.Minute
	}
	if c.UserTTL <= 0 {
		c.UserTTL = 2 * time.Minute
	}
	if c.AgentCapacity <= 0 {
		c.AgentCapacity = 64
	}
	if c.UserCapacity <= 0 {
		c.UserCapacity = 256
	}
}

type entry struct {
	id        string
	name      string
	expiresAt time.Time
}

// pool is a bounded, recency-ordered map of id → display name.
type pool struct {
	capacity int
	ttl      time.Duration
	order    *list.List               // front = most recently used
	items    map[string]*list.Element // id → element holding *entry
}

func newPool(capacity int, ttl time.Duration) *pool {
	return &pool{
		capacity: capacity,
		ttl:      ttl,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (p *pool) get(id string, now time.Time) (string, bool) {
	el, ok := p.items[id]
	if !ok {
		return "", false
	}
	e := el.Value.(*entry)
	if now.After(e.expiresAt) {
		p.order.Remove(el)
		delete(p.items, id)
		return "", false
	}
	p.order.MoveToFront(el)
	return e.name, true
}

func (p *pool) put(id, name string, now time.Time) {
	if el, ok := p.items[id]; ok {
		e := el.Value.(*entry)
		e.name = name
		e.expiresAt = now.Add(p.ttl)
		p.order.MoveToFront(el)
		return
	}
	el := p.order.PushFront(&entry{id: id, name: name, expiresAt: now.Add(p.ttl)})
	p.items[id] = el

	for p.order.Len() > p.capacity {
		oldest := p.order.Back()
		if oldest == nil {
			break
		}
		p.order.Remove(oldest)
		delete(p.items, oldest.Value.(*entry).id)
	}
}

// Cache maps participant ids to display names with per-kind TTL and LRU
// eviction. Concurrent misses for the same participant are coalesced into a
// single resolver call.
type Cache struct {
	cfg      Config
	resolver Resolver
	log      *logging.Logger

	mu     sync.Mutex
	agents *pool
	users  *pool

	sf  singleflight.Group
	now func() time.Time
}

// New creates a display-name cache backed by the given resolver.
func New(cfg Config, resolver Resolver, log *logging.Logger) *Cache {
	cfg.applyDefaults()
	return &Cache{
		cfg:      cfg,
		resolver: resolver,
		log:      log.Sub("directory"),
		agents:   newPool(cfg.AgentCapacity, cfg.AgentTTL),
		users:    newPool(cfg.UserCapacity, cfg.UserTTL),
		now:      time.Now,
	}
}

func (c *Cache) poolFor(kind domain.ParticipantKind) *pool {
	if kind == domain.KindAgent {
		return c.agents
	}
	return c.users
}

// Lookup returns the display name for a participant, consulting the cache
// first and the resolver on miss. A stale entry simply causes one extra
// lookup.
func (c *Cache) Lookup(ctx context.Context, p domain.Participant) (string, error) {
	c.mu.Lock()
	name, ok := c.poolFor(p.Kind).get(p.ID, c.now())
	c.mu.Unlock()
	if ok {
		return name, nil
	}

	key := string(p.Kind) + "/" + p.ID
	v, err, _ := c.sf.Do(key, func() (any, error) {
		resolved, err := c.resolver.Resolve(ctx, p)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.poolFor(p.Kind).put(p.ID, resolved, c.now())
		c.mu.Unlock()
		return resolved, nil
	})
	if err != nil {
		c.log.Warn().Err(err).
			Str("kind", string(p.Kind)).
			Str("id", p.ID).
			Msg("display name lookup failed")
		return "", err
	}
	return v.(string), nil
}

// Put seeds the cache, e.g. from data already present on an inbound frame.
func (c *Cache) Put(p domain.Participant, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.poolFor(p.Kind).put(p.ID, name, c.now())
}

// Len returns the number of live entries in the pool for the given kind.
func (c *Cache) Len(kind domain.ParticipantKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.poolFor(kind).order.Len()
}
