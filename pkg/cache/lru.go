package cache

import (
	"container/list"
	"fmt"
	"sync"

	"github.com/c360/sitekit/errors"
)

type lruEntry[V any] struct {
	key   string
	value V
}

// lruCache evicts the least recently used entry once maxSize is exceeded.
type lruCache[V any] struct {
	observer[V]
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	order   *list.List // front is most recently used
}

// NewLRU creates a cache holding at most maxSize entries.
func NewLRU[V any](maxSize int, options ...Option[V]) (Cache[V], error) {
	if maxSize <= 0 {
		return nil, errors.WrapInvalid(fmt.Errorf("max size %d", maxSize), "cache", "NewLRU", "validate size")
	}
	obs, err := newObserver(applyOptions(options...), "NewLRU")
	if err != nil {
		return nil, err
	}
	return &lruCache[V]{
		observer: obs,
		maxSize:  maxSize,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}, nil
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	element, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		c.miss()
		var zero V
		return zero, false
	}
	c.order.MoveToFront(element)
	value := element.Value.(*lruEntry[V]).value
	c.mu.Unlock()

	c.hit()
	return value, true
}

func (c *lruCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	if element, ok := c.items[key]; ok {
		element.Value.(*lruEntry[V]).value = value
		c.order.MoveToFront(element)
		size := len(c.items)
		c.mu.Unlock()
		c.set(size)
		return false, nil
	}

	c.items[key] = c.order.PushFront(&lruEntry[V]{key: key, value: value})

	var victims []*lruEntry[V]
	for len(c.items) > c.maxSize {
		back := c.order.Back()
		entry := back.Value.(*lruEntry[V])
		c.order.Remove(back)
		delete(c.items, entry.key)
		victims = append(victims, entry)
	}
	size := len(c.items)
	c.mu.Unlock()

	c.set(size)
	for _, v := range victims {
		c.evicted(size)
		c.notify(v.key, v.value)
	}
	return true, nil
}

func (c *lruCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	element, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return false, nil
	}
	entry := element.Value.(*lruEntry[V])
	c.order.Remove(element)
	delete(c.items, key)
	size := len(c.items)
	c.mu.Unlock()

	c.deleted(size)
	c.notify(entry.key, entry.value)
	return true, nil
}

func (c *lruCache[V]) Clear() error {
	c.mu.Lock()
	old := c.order
	c.items = make(map[string]*list.Element)
	c.order = list.New()
	c.mu.Unlock()

	c.cleared()
	for element := old.Back(); element != nil; element = element.Prev() {
		entry := element.Value.(*lruEntry[V])
		c.notify(entry.key, entry.value)
	}
	return nil
}

func (c *lruCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns keys most recently used first.
func (c *lruCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]string, 0, len(c.items))
	for element := c.order.Front(); element != nil; element = element.Next() {
		keys = append(keys, element.Value.(*lruEntry[V]).key)
	}
	return keys
}

func (c *lruCache[V]) Stats() *Statistics { return c.stats }

func (c *lruCache[V]) Close() error { return nil }
