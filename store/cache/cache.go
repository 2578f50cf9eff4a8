package cache

import (
	"container/list"
	"sync"
	"time"
)

// Config holds the cache settings.
type Config struct {
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
	MaxItems        int
	OnEviction      func(key string, value any)
}

type entry struct {
	key       string
	value     any
	expiresAt time.Time
	element   *list.Element
}

// Cache is an in-process LRU cache with TTL support. It fronts session
// metadata reads so repeated history requests skip the backend.
type Cache struct {
	config Config
	mu     sync.Mutex

	items map[string]*entry
	order *list.List

	done chan struct{}
	once sync.Once
}

// New creates a new cache and starts its cleanup goroutine.
func New(config Config) *Cache {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 5 * time.Minute
	}
	if config.MaxItems <= 0 {
		config.MaxItems = 1000
	}

	c := &Cache{
		config: config,
		items:  make(map[string]*entry),
		order:  list.New(),
		done:   make(chan struct{}),
	}

	if config.CleanupInterval > 0 {
		go c.janitor(config.CleanupInterval)
	}

	return c
}

// Set stores a value with the given TTL. A non-positive ttl uses the default.
func (c *Cache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.config.DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		e.value = value
		e.expiresAt = time.Now().Add(ttl)
		c.order.MoveToFront(e.element)
		return
	}

	e := &entry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	e.element = c.order.PushFront(e)
	c.items[key] = e

	for len(c.items) > c.config.MaxItems {
		c.evictOldest()
	}
}

// Get retrieves a value. Expired entries are removed on access.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		c.removeEntry(e)
		return nil, false
	}

	c.order.MoveToFront(e.element)
	return e.value, true
}

// Delete removes a key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok {
		c.removeEntry(e)
	}
}

// Size returns the current number of entries.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

func (c *Cache) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.removeEntry(oldest.Value.(*entry))
}

// removeEntry must be called with the mutex held.
func (c *Cache) removeEntry(e *entry) {
	c.order.Remove(e.element)
	delete(c.items, e.key)
	if c.config.OnEviction != nil {
		c.config.OnEviction(e.key, e.value)
	}
}

func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.removeExpired()
		}
	}
}

func (c *Cache) removeExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for e := c.order.Back(); e != nil; {
		prev := e.Prev()
		item := e.Value.(*entry)
		if now.After(item.expiresAt) {
			c.removeEntry(item)
		}
		e = prev
	}
}
