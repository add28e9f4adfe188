package analysis

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/storm-data-gridder/internal/config"
	"github.com/couchcryptid/storm-data-gridder/internal/domain"
	"github.com/couchcryptid/storm-data-gridder/internal/interpolate"
	"github.com/couchcryptid/storm-data-gridder/internal/observability"
)

// analysisOverhead approximates the fixed cost of one cached analysis
// beyond its grid values.
const analysisOverhead = 512

// CachedAnalyzer wraps an Analyzer with an in-memory cache keyed by
// RequestKey. Cached analyses keep their original GeneratedAt.
type CachedAnalyzer struct {
	inner   Analyzer
	cache   *gridCache
	metrics *observability.Metrics
}

// NewCachedAnalyzer creates a cache decorator that holds at most maxBytes of
// analyses, evicting the least recently used grids first.
func NewCachedAnalyzer(inner Analyzer, maxBytes int64, metrics *observability.Metrics) *CachedAnalyzer {
	return &CachedAnalyzer{
		inner:   inner,
		cache:   newGridCache(maxBytes),
		metrics: metrics,
	}
}

func (c *CachedAnalyzer) Analyze(ctx context.Context, product config.Product, bucket time.Time, obs []interpolate.Observation[float64]) (domain.Analysis, error) {
	key := RequestKey(product, bucket, obs)
	if a, ok := c.cache.get(key); ok {
		c.metrics.AnalysisCache.WithLabelValues("hit").Inc()
		return a, nil
	}
	c.metrics.AnalysisCache.WithLabelValues("miss").Inc()

	a, err := c.inner.Analyze(ctx, product, bucket, obs)
	if err != nil {
		return a, err
	}
	c.cache.put(key, a)
	return a, nil
}

// Len returns the number of cached analyses.
func (c *CachedAnalyzer) Len() int {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	return c.cache.order.Len()
}

// Bytes returns the approximate size of the cached analyses.
func (c *CachedAnalyzer) Bytes() int64 {
	c.cache.mu.Lock()
	defer c.cache.mu.Unlock()
	return c.cache.used
}

// analysisBytes approximates the memory held by a.
func analysisBytes(a domain.Analysis) int64 {
	return int64(8*len(a.Values)+len(a.ID)+len(a.Product)+len(a.EventType)+len(a.Method)) + analysisOverhead
}

// gridCache is an LRU of analyses bounded by their approximate size. A grid
// larger than the whole budget is never cached.
type gridCache struct {
	maxBytes int64
	mu       sync.Mutex
	used     int64
	order    *list.List // front is most recently used
	entries  map[string]*list.Element
}

type cached struct {
	key   string
	value domain.Analysis
	size  int64
}

func newGridCache(maxBytes int64) *gridCache {
	return &gridCache{
		maxBytes: max(maxBytes, 0),
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

func (c *gridCache) get(key string) (domain.Analysis, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Analysis{}, false
	}
	c.order.MoveToFront(e)
	return e.Value.(*cached).value, true
}

func (c *gridCache) put(key string, value domain.Analysis) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.remove(e)
	}
	size := analysisBytes(value)
	if size > c.maxBytes {
		return
	}

	c.entries[key] = c.order.PushFront(&cached{key: key, value: value, size: size})
	c.used += size
	for c.used > c.maxBytes {
		c.remove(c.order.Back())
	}
}

func (c *gridCache) remove(e *list.Element) {
	v := e.Value.(*cached)
	c.order.Remove(e)
	delete(c.entries, v.key)
	c.used -= v.size
}
