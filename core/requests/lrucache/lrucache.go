// Copyright 2023 - 2025, VnPower and the PixivFE contributors
// SPDX-License-Identifier: AGPL-3.0-only

/*
Package lrucache provides a thread-safe, fixed-capacity least-recently-used store
of byte slices keyed by strings.

Adding a key to a full cache evicts the least recently used entry. With
[WithCompression], values are kept zstd compressed whenever that saves space
and are decompressed transparently on read.
*/
package lrucache

import (
	"container/list"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var ErrInvalidSize = errors.New("must provide a positive size")

// Option configures a Cache.
type Option func(*Cache) error

// WithCompression stores values zstd compressed when that makes them smaller.
func WithCompression() Option {
	return func(c *Cache) error {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return fmt.Errorf("zstd encoder: %w", err)
		}

		dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
		if err != nil {
			return fmt.Errorf("zstd decoder: %w", err)
		}

		c.enc, c.dec = enc, dec

		return nil
	}
}

// WithEvictionCallback calls fn with the key of every entry pushed out by
// capacity. It runs with the cache lock held and must not call back into the cache.
func WithEvictionCallback(fn func(key string)) Option {
	return func(c *Cache) error {
		c.onEvict = fn

		return nil
	}
}

// Cache is a fixed-capacity LRU store. Construct it with [New]; the zero value is not usable.
type Cache struct {
	capacity  int
	evictList *list.List
	items     map[string]*list.Element
	lock      sync.RWMutex

	enc     *zstd.Encoder
	dec     *zstd.Decoder
	onEvict func(key string)
}

type entry struct {
	key        string
	value      []byte
	compressed bool
}

// New returns an empty cache holding at most capacity entries.
func New(capacity int, opts ...Option) (*Cache, error) {
	if capacity <= 0 {
		return nil, ErrInvalidSize
	}

	c := &Cache{
		capacity:  capacity,
		evictList: list.New(),
		items:     make(map[string]*list.Element, capacity),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Add stores value under key, making it the most recently used entry.
// It reports whether another entry was evicted to make room.
func (c *Cache) Add(key string, value []byte) bool {
	stored, compressed := c.encode(value)

	c.lock.Lock()
	defer c.lock.Unlock()

	if el, ok := c.items[key]; ok {
		c.evictList.MoveToFront(el)

		ent := el.Value.(*entry) //nolint:forcetypeassert // only *entry is ever stored
		ent.value, ent.compressed = stored, compressed

		return false
	}

	c.items[key] = c.evictList.PushFront(&entry{key: key, value: stored, compressed: compressed})

	if c.evictList.Len() <= c.capacity {
		return false
	}

	if oldest := c.evictList.Back(); oldest != nil {
		evictedKey := c.removeElement(oldest)

		if c.onEvict != nil {
			c.onEvict(evictedKey)
		}
	}

	return true
}

// Get returns a copy of the value for key and marks it most recently used.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.lock.Lock()

	el, ok := c.items[key]
	if !ok {
		c.lock.Unlock()

		return nil, false
	}

	c.evictList.MoveToFront(el)
	ent := *el.Value.(*entry) //nolint:forcetypeassert // only *entry is ever stored

	c.lock.Unlock()

	return c.decode(ent)
}

// Peek is like Get but leaves the recency order untouched.
func (c *Cache) Peek(key string) ([]byte, bool) {
	c.lock.RLock()

	el, ok := c.items[key]
	if !ok {
		c.lock.RUnlock()

		return nil, false
	}

	ent := *el.Value.(*entry) //nolint:forcetypeassert // only *entry is ever stored

	c.lock.RUnlock()

	return c.decode(ent)
}

// Remove deletes key and reports whether it was present.
func (c *Cache) Remove(key string) bool {
	c.lock.Lock()
	defer c.lock.Unlock()

	el, ok := c.items[key]
	if ok {
		c.removeElement(el)
	}

	return ok
}

// Keys returns all keys from the least to the most recently used.
func (c *Cache) Keys() []string {
	c.lock.RLock()
	defer c.lock.RUnlock()

	keys := make([]string, 0, len(c.items))

	for el := c.evictList.Back(); el != nil; el = el.Prev() {
		keys = append(keys, el.Value.(*entry).key) //nolint:forcetypeassert // only *entry is ever stored
	}

	return keys
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.lock.RLock()
	defer c.lock.RUnlock()

	return c.evictList.Len()
}

// Cap returns the maximum number of entries.
func (c *Cache) Cap() int {
	return c.capacity
}

func (c *Cache) removeElement(el *list.Element) string {
	c.evictList.Remove(el)

	key := el.Value.(*entry).key //nolint:forcetypeassert // only *entry is ever stored
	delete(c.items, key)

	return key
}

// encode runs outside the lock; zstd.Encoder.EncodeAll is safe for concurrent use.
func (c *Cache) encode(value []byte) ([]byte, bool) {
	if len(value) == 0 {
		return nil, false
	}

	if c.enc != nil {
		if packed := c.enc.EncodeAll(value, nil); len(packed) < len(value) {
			return packed, true
		}
	}

	return append([]byte(nil), value...), false
}

// decode returns a copy so callers cannot mutate cached data. A value that
// fails to decompress is reported as missing.
func (c *Cache) decode(ent entry) ([]byte, bool) {
	if !ent.compressed {
		return append([]byte(nil), ent.value...), true
	}

	if c.dec == nil {
		return nil, false
	}

	out, err := c.dec.DecodeAll(ent.value, nil)
	if err != nil {
		return nil, false
	}

	return out, true
}
