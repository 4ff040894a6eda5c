package source

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lvillar/pdfmcp"
)

// Cache is an in-memory LRU store for PDF bytes, keyed by generated UUIDs.
// It bounds both the entry count and the total byte size; the least
// recently used documents are evicted first.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int64
	totalBytes int64
	order      *list.List // front = most recently used
	entries    map[string]*list.Element
}

type cacheEntry struct {
	key      string
	name     string
	data     []byte
	storedAt time.Time
}

// CacheInfo describes one cached document.
type CacheInfo struct {
	Key      string    `json:"key"`
	Name     string    `json:"name,omitempty"`
	Size     int64     `json:"size"`
	StoredAt time.Time `json:"stored_at"`
}

// NewCache creates a cache bounded to maxEntries documents and maxBytes
// total. Non-positive limits fall back to the package defaults.
func NewCache(maxEntries int, maxBytes int64) *Cache {
	if maxEntries <= 0 {
		maxEntries = pdfmcp.DefaultCacheMaxEntries
	}
	if maxBytes <= 0 {
		maxBytes = pdfmcp.DefaultCacheMaxBytes
	}
	return &Cache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

// Put stores data under a fresh key and returns it. The name is a display
// label (typically the original filename or URL). Data larger than the
// cache's byte limit is refused.
func (c *Cache) Put(data []byte, name string) (string, error) {
	if int64(len(data)) > c.maxBytes {
		return "", fmt.Errorf("%w: document of %d bytes exceeds cache capacity", pdfmcp.ErrInvalidParam, len(data))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := uuid.NewString()
	elem := c.order.PushFront(&cacheEntry{
		key:      key,
		name:     name,
		data:     data,
		storedAt: time.Now(),
	})
	c.entries[key] = elem
	c.totalBytes += int64(len(data))

	for c.order.Len() > c.maxEntries || c.totalBytes > c.maxBytes {
		c.evictOldest()
	}
	return key, nil
}

// Get returns the data stored under key and marks it recently used.
func (c *Cache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pdfmcp.ErrCacheMiss, key)
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheEntry).data, nil
}

// Remove drops the entry stored under key. It reports whether the key was
// present.
func (c *Cache) Remove(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return false
	}
	c.remove(elem)
	return true
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.order.Init()
	c.entries = make(map[string]*list.Element)
	c.totalBytes = 0
}

// Len returns the number of cached documents.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Entries lists the cached documents, most recently used first.
func (c *Cache) Entries() []CacheInfo {
	c.mu.Lock()
	defer c.mu.Unlock()

	infos := make([]CacheInfo, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		e := elem.Value.(*cacheEntry)
		infos = append(infos, CacheInfo{
			Key:      e.key,
			Name:     e.name,
			Size:     int64(len(e.data)),
			StoredAt: e.storedAt,
		})
	}
	return infos
}

func (c *Cache) evictOldest() {
	if elem := c.order.Back(); elem != nil {
		c.remove(elem)
	}
}

// remove must be called with the mutex held.
func (c *Cache) remove(elem *list.Element) {
	e := elem.Value.(*cacheEntry)
	c.order.Remove(elem)
	delete(c.entries, e.key)
	c.totalBytes -= int64(len(e.data))
}
