package holidays

import (
	"context"
	"fmt"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// Resolver resolves the PVPC holiday set of a year from a single source
// through a shared cache.
type Resolver struct {
	cache  *Cache
	source Source
	opts   Options
}

// NewResolver creates a Resolver for src backed by cache. A nil cache gets a
// private one.
func NewResolver(cache *Cache, src Source) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	return &Resolver{cache: cache, source: src}
}

// NewResolverForSource builds the source identified by kind from opts and
// returns a Resolver for it.
func NewResolverForSource(cache *Cache, kind string, opts Options) (*Resolver, error) {
	src, err := NewSource(kind, opts)
	if err != nil {
		return nil, err
	}
	r := NewResolver(cache, src)
	r.opts = opts
	return r, nil
}

// Configured registers the holiday flags and returns a Resolver once flags
// are parsed.
func Configured() *Resolver {
	source := lflag.String("holiday-source", types.HolidaySourceCSV, "Holiday source (csv or national)")
	csvURL := lflag.String("holiday-csv-url", DefaultCSVURL, "URL of the holiday CSV feed, may contain {year}")
	timeout := lflag.Duration("holiday-timeout", DefaultTimeout, "Timeout for downloading the holiday CSV feed")

	r := &Resolver{cache: NewCache()}
	lflag.Do(func() {
		r.opts = Options{
			CSVURL:  *csvURL,
			Timeout: *timeout,
		}
		src, err := NewSource(types.NormalizeHolidaySource(*source), r.opts)
		if err != nil {
			panic(fmt.Sprintf("holiday source init failed: %v", err))
		}
		r.source = src
	})
	return r
}

// WithSource returns a Resolver sharing the cache and options of r that loads
// from the source identified by kind.
func (r *Resolver) WithSource(kind string) (*Resolver, error) {
	if r.source != nil && r.source.Kind() == kind {
		return r, nil
	}
	src, err := NewSource(kind, r.opts)
	if err != nil {
		return nil, err
	}
	return &Resolver{cache: r.cache, source: src, opts: r.opts}, nil
}

// Holidays returns the PVPC holiday set of the year.
func (r *Resolver) Holidays(ctx context.Context, year int) (types.HolidaySet, error) {
	return r.cache.GetOrLoad(ctx, year, r.source)
}

// Source returns the source the resolver loads from.
func (r *Resolver) Source() Source {
	return r.source
}

// Cache returns the cache the resolver stores sets in.
func (r *Resolver) Cache() *Cache {
	return r.cache
}

// LocalYear returns the calendar year of t in loc.
func LocalYear(t time.Time, loc *time.Location) int {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Year()
}
