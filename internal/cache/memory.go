package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache keeps recently played clips in memory, bounded by their total
// byte size. Every clip it holds is also on disk, so dropping one is never a
// loss.
type MemoryCache struct {
	mu sync.Mutex

	limit int64
	used  int64

	byText map[string]*list.Element
	recent *list.List // front is most recently played

	metrics Metrics
}

type hotClip struct {
	text string
	blob []byte
}

// NewMemoryCache creates a memory tier that holds up to limit bytes.
func NewMemoryCache(limit int64) *MemoryCache {
	return &MemoryCache{
		limit:  limit,
		byText: make(map[string]*list.Element),
		recent: list.New(),
	}
}

// Get returns the clip stored for text.
func (c *MemoryCache) Get(text string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.LastAccess = time.Now()
	el, ok := c.byText[text]
	if !ok {
		c.metrics.Misses++
		return nil, false
	}
	c.metrics.Hits++
	c.recent.MoveToFront(el)
	return el.Value.(*hotClip).blob, true
}

// Put stores blob for text, dropping the least recently played clips until
// it fits. A blob larger than the whole tier is refused with
// ErrItemTooLarge and any older clip for text is dropped.
func (c *MemoryCache) Put(text string, blob []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.byText[text]; ok {
		c.drop(el)
	}
	n := int64(len(blob))
	if n > c.limit {
		return ErrItemTooLarge
	}

	for c.used+n > c.limit {
		c.evict()
	}
	c.byText[text] = c.recent.PushFront(&hotClip{text: text, blob: blob})
	c.used += n
	return nil
}

// Delete drops the clip for text, if held.
func (c *MemoryCache) Delete(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.byText[text]; ok {
		c.drop(el)
	}
}

// Clear drops every clip.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.byText)
	c.recent.Init()
	c.used = 0
}

// Contains reports whether text is held, without touching recency.
func (c *MemoryCache) Contains(text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byText[text]
	return ok
}

// Size returns the bytes held.
func (c *MemoryCache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}

// Len returns the number of clips held.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recent.Len()
}

func (c *MemoryCache) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.metrics
	if total := m.Hits + m.Misses; total > 0 {
		m.HitRate = float64(m.Hits) / float64(total)
	}
	return m
}

// evict drops the least recently played clip. c.mu must be held.
func (c *MemoryCache) evict() {
	if el := c.recent.Back(); el != nil {
		c.drop(el)
		c.metrics.Evictions++
		c.metrics.LastEvict = time.Now()
	}
}

// drop unlinks el. c.mu must be held.
func (c *MemoryCache) drop(el *list.Element) {
	hc := c.recent.Remove(el).(*hotClip)
	delete(c.byText, hc.text)
	c.used -= int64(len(hc.blob))
}
