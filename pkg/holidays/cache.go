package holidays

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

type cacheKey struct {
	year   int
	source string
}

// Cache memoizes the selected holiday set per year and source. Entries never
// expire; callers invalidate explicitly. Concurrent misses for the same key
// may load redundantly.
type Cache struct {
	mu   sync.Mutex
	sets map[cacheKey]types.HolidaySet
}

// NewCache creates an empty Cache.
func NewCache() *Cache {
	return &Cache{
		sets: make(map[cacheKey]types.HolidaySet),
	}
}

// Get returns the cached set for the year and source, if any.
func (c *Cache) Get(year int, source string) (types.HolidaySet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sets[cacheKey{year, source}]
	return s, ok
}

// GetOrLoad returns the cached set or loads the records from src, applies
// Select and caches the result. Failures are not cached, including records
// that don't cover the year, which fail with ErrNotPublished.
func (c *Cache) GetOrLoad(ctx context.Context, year int, src Source) (types.HolidaySet, error) {
	if s, ok := c.Get(year, src.Kind()); ok {
		return s, nil
	}

	records, err := LoadRecords(ctx, src, year)
	if err != nil {
		return nil, err
	}
	if !coversYear(records, year) {
		return nil, fmt.Errorf("%w: %s has no %d holidays among %d records", ErrNotPublished, src.Kind(), year, len(records))
	}
	s := Select(ctx, records, year)
	log.Ctx(ctx).InfoContext(
		ctx,
		"computed pvpc holidays",
		slog.Int("year", year),
		slog.String("source", src.Kind()),
		slog.Int("count", len(s)),
	)

	c.Prime(year, src.Kind(), s)
	return s, nil
}

// Prime stores a set for the year and source, replacing any cached one.
func (c *Cache) Prime(year int, source string, s types.HolidaySet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets[cacheKey{year, source}] = s
}

// Invalidate drops the cached sets of a year for every source.
func (c *Cache) Invalidate(year int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.sets {
		if k.year == year {
			delete(c.sets, k)
		}
	}
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets = make(map[cacheKey]types.HolidaySet)
}

// Len returns the number of cached sets.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sets)
}
