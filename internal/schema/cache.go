package schema

import (
	"context"
	"sync"

	"queryforge/internal/model"
)

// CachedExtractor wraps a backend Extractor with an initialize-once guard:
// the first caller to reach Extract pays the real extraction cost under an
// exclusive lock; every later caller, concurrent or not, reads the cached
// FieldMap under a shared lock (spec §5). Distinct-value lookups are cached
// per field the same way, since repeated identical calls during a single
// conversation are the common case.
type CachedExtractor struct {
	delegate Extractor

	mu       sync.RWMutex
	fieldMap *model.FieldMap
	distinct map[string][]string
}

// NewCachedExtractor wraps delegate with a cache. delegate.Extract is never
// called again once the FieldMap has been built (delegate.Distinct is still
// called once per not-yet-cached field), so a live schema change on the
// backend is not picked up until the process restarts — by design, schema
// evolution at runtime is out of scope.
func NewCachedExtractor(delegate Extractor) *CachedExtractor {
	return &CachedExtractor{
		delegate: delegate,
		distinct: make(map[string][]string),
	}
}

func (c *CachedExtractor) Extract(ctx context.Context) (*model.FieldMap, error) {
	c.mu.RLock()
	if c.fieldMap != nil {
		defer c.mu.RUnlock()
		return c.fieldMap, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fieldMap != nil {
		return c.fieldMap, nil
	}
	fm, err := c.delegate.Extract(ctx)
	if err != nil {
		return nil, err
	}
	c.fieldMap = fm
	return c.fieldMap, nil
}

func (c *CachedExtractor) Distinct(ctx context.Context, field string, limit int) ([]string, error) {
	c.mu.RLock()
	if vals, ok := c.distinct[field]; ok {
		defer c.mu.RUnlock()
		return vals, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if vals, ok := c.distinct[field]; ok {
		return vals, nil
	}
	vals, err := c.delegate.Distinct(ctx, field, limit)
	if err != nil {
		return nil, err
	}
	c.distinct[field] = vals
	return vals, nil
}
