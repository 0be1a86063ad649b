package api

import (
	"container/list"
	"sync"

	"microstructure-lab/internal/domain"
	"microstructure-lab/internal/idhash"
	"microstructure-lab/internal/pipeline"
)

type cacheEntry struct {
	key       string
	datasetID string
	result    *pipeline.Result
}

// rollingCache keeps the most recently used pipeline results, keyed by
// dataset and rolling windows. A result carries its feature and rolling
// tables, so a hit skips both stages.
type rollingCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recent
	entries  map[string]*list.Element
}

func newRollingCache(capacity int) *rollingCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &rollingCache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func cacheKey(datasetID string, w domain.Windows) string {
	return idhash.ComputeWindowsKey(datasetID, w)
}

// get returns the result computed for exactly these windows.
func (c *rollingCache) get(datasetID string, w domain.Windows) (*pipeline.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[cacheKey(datasetID, w)]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).result, true
}

// anyForDataset returns the most recent result of a dataset with any windows.
// Its feature table can seed a rerun.
func (c *rollingCache) anyForDataset(datasetID string) (*pipeline.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Front(); el != nil; el = el.Next() {
		if e := el.Value.(*cacheEntry); e.datasetID == datasetID {
			return e.result, true
		}
	}
	return nil, false
}

func (c *rollingCache) put(datasetID string, res *pipeline.Result) {
	key := cacheKey(datasetID, res.Rolling.Windows)

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*cacheEntry).result = res
		c.order.MoveToFront(el)
		return
	}
	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, datasetID: datasetID, result: res})
	for c.order.Len() > c.capacity {
		c.remove(c.order.Back())
	}
}

// invalidate drops every entry of a dataset and returns how many were removed.
func (c *rollingCache) invalidate(datasetID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*cacheEntry).datasetID == datasetID {
			c.remove(el)
			n++
		}
		el = next
	}
	return n
}

// countByDataset returns the number of cached window sets per dataset.
func (c *rollingCache) countByDataset() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	counts := make(map[string]int)
	for _, el := range c.entries {
		counts[el.Value.(*cacheEntry).datasetID]++
	}
	return counts
}

func (c *rollingCache) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.entries, el.Value.(*cacheEntry).key)
}
