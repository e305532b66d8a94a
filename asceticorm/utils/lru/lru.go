// Package lru is a size-bounded least-recently-used cache shared by the
// identity map and the compiled query cache.
package lru

import (
	"container/list"
	"sync"
)

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Cache is safe for concurrent use. A size of zero or less disables
// eviction.
type Cache[K comparable, V any] struct {
	mu      sync.Mutex
	items   map[K]*list.Element
	order   *list.List
	size    int
	onEvict func(K, V)
}

func New[K comparable, V any](size int) *Cache[K, V] {
	return &Cache[K, V]{
		items: make(map[K]*list.Element),
		order: list.New(),
		size:  size,
	}
}

// OnEvict registers a callback run (under the cache lock) for each evicted
// entry.
func (c *Cache[K, V]) OnEvict(fn func(K, V)) {
	c.mu.Lock()
	c.onEvict = fn
	c.mu.Unlock()
}

func (c *Cache[K, V]) Add(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		elem.Value = entry[K, V]{key: key, value: value}
		c.order.MoveToBack(elem)
		return
	}
	c.items[key] = c.order.PushBack(entry[K, V]{key: key, value: value})
	c.evict()
}

func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToBack(elem)
	return elem.Value.(entry[K, V]).value, true
}

func (c *Cache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

func (c *Cache[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.items[key]
	if !ok {
		return
	}
	delete(c.items, key)
	c.order.Remove(elem)
}

func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element)
	c.order.Init()
}

// Keys returns keys from least to most recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]K, 0, len(c.items))
	for e := c.order.Front(); e != nil; e = e.Next() {
		keys = append(keys, e.Value.(entry[K, V]).key)
	}
	return keys
}

func (c *Cache[K, V]) SetSize(size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.size = size
	c.evict()
}

func (c *Cache[K, V]) evict() {
	if c.size <= 0 {
		return
	}
	for len(c.items) > c.size {
		front := c.order.Front()
		e := front.Value.(entry[K, V])
		c.order.Remove(front)
		delete(c.items, e.key)
		if c.onEvict != nil {
			c.onEvict(e.key, e.value)
		}
	}
}
