package session

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rotisserie/eris"

	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
	"github.com/danyelajunebrown/reparations-pipeline/internal/store"
)

// Cache is a read-through/write-through session cache in front of the
// durable store. It also owns a per-session mutex so that concurrent
// requests against the same session serialize instead of silently losing
// writes.
type Cache struct {
	store    store.Store
	sessions *lru.Cache[string, *model.Session]

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewCache creates a Cache with the given capacity.
func NewCache(st store.Store, size int) (*Cache, error) {
	if size <= 0 {
		size = 256
	}
	sessions, err := lru.New[string, *model.Session](size)
	if err != nil {
		return nil, eris.Wrap(err, "session: create lru")
	}
	return &Cache{
		store:    st,
		sessions: sessions,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// Lock acquires the per-session mutex and returns its unlock function.
// Lock entries are never evicted; sessions are bounded by usage, not
// by the LRU capacity.
func (c *Cache) Lock(id string) func() {
	c.mu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &sync.Mutex{}
		c.locks[id] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Get returns the session, reading through to the store on cache miss.
func (c *Cache) Get(ctx context.Context, id string) (*model.Session, error) {
	if sess, ok := c.sessions.Get(id); ok {
		return sess, nil
	}
	sess, err := c.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	c.sessions.Add(id, sess)
	return sess, nil
}

// Put writes the session through to the store, then refreshes the cache.
// The cache entry is only updated after the durable write succeeds, so a
// failed write never leaves the cache ahead of the store.
func (c *Cache) Put(ctx context.Context, sess *model.Session) error {
	if err := c.store.UpdateSession(ctx, sess); err != nil {
		return err
	}
	c.sessions.Add(sess.ID, sess)
	return nil
}

// Create persists a brand-new session and seeds the cache.
func (c *Cache) Create(ctx context.Context, sess *model.Session) error {
	if err := c.store.CreateSession(ctx, sess); err != nil {
		return err
	}
	c.sessions.Add(sess.ID, sess)
	return nil
}
