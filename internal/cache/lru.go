package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache evicts the least recently used entry once maxSize is exceeded and
// expires entries that sit idle longer than ttl. Every successful Get pushes
// the deadline out again.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	now     func() time.Time
	onEvict func(key string, data T)
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

// Option configures an LRUCache.
type Option[T any] func(*LRUCache[T])

// WithClock replaces time.Now.
func WithClock[T any](now func() time.Time) Option[T] {
	return func(c *LRUCache[T]) { c.now = now }
}

// WithEvictHook is called, outside the cache lock, for every entry removed by
// expiry or capacity. Explicit Delete does not trigger it.
func WithEvictHook[T any](fn func(key string, data T)) Option[T] {
	return func(c *LRUCache[T]) { c.onEvict = fn }
}

func NewLRUCache[T any](maxSize int, ttl time.Duration, opts ...Option[T]) *LRUCache[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	c := &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	value, ok, evicted := c.getLocked(key)
	c.mu.Unlock()
	c.notify(evicted)
	return value, ok
}

func (c *LRUCache[T]) GetOrCreate(key string, create func() T) (T, bool) {
	c.mu.Lock()
	value, ok, evicted := c.getLocked(key)
	if ok {
		c.mu.Unlock()
		c.notify(evicted)
		return value, false
	}
	value = create()
	evicted = append(evicted, c.setLocked(key, value)...)
	c.mu.Unlock()
	c.notify(evicted)
	return value, true
}

func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	evicted := c.setLocked(key, data)
	c.mu.Unlock()
	c.notify(evicted)
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.items[key]; exists {
		c.removeElement(elem)
	}
}

// CleanExpired removes all expired entries and returns how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	now := c.now()
	var evicted []*cacheItem[T]
	for elem := c.lru.Front(); elem != nil; {
		next := elem.Next()
		item := elem.Value.(*cacheItem[T])
		if now.After(item.expiresAt) {
			evicted = append(evicted, c.removeElement(elem))
		}
		elem = next
	}
	c.mu.Unlock()

	c.notify(evicted)
	return len(evicted)
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRUCache[T]) getLocked(key string) (T, bool, []*cacheItem[T]) {
	var zero T
	elem, exists := c.items[key]
	if !exists {
		return zero, false, nil
	}

	item := elem.Value.(*cacheItem[T])
	now := c.now()
	if now.After(item.expiresAt) {
		return zero, false, []*cacheItem[T]{c.removeElement(elem)}
	}

	item.expiresAt = now.Add(c.ttl)
	c.lru.MoveToFront(elem)
	return item.data, true, nil
}

func (c *LRUCache[T]) setLocked(key string, data T) []*cacheItem[T] {
	item := &cacheItem[T]{
		key:       key,
		data:      data,
		expiresAt: c.now().Add(c.ttl),
	}

	if elem, exists := c.items[key]; exists {
		elem.Value = item
		c.lru.MoveToFront(elem)
		return nil
	}

	c.items[key] = c.lru.PushFront(item)

	var evicted []*cacheItem[T]
	for c.lru.Len() > c.maxSize {
		evicted = append(evicted, c.removeElement(c.lru.Back()))
	}
	return evicted
}

func (c *LRUCache[T]) removeElement(elem *list.Element) *cacheItem[T] {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
	return item
}

func (c *LRUCache[T]) notify(items []*cacheItem[T]) {
	if c.onEvict == nil {
		return
	}
	for _, item := range items {
		c.onEvict(item.key, item.data)
	}
}
