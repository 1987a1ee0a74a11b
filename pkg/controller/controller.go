// Package controller keeps the holiday cache and price series fresh and turns
// them into tariff snapshots.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/levenlabs/go-lflag"

	"github.com/pvpcnext/pvpcnext/pkg/holidays"
	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/storage"
	"github.com/pvpcnext/pvpcnext/pkg/tariff"
	"github.com/pvpcnext/pvpcnext/pkg/types"
	"github.com/pvpcnext/pvpcnext/pkg/utility"
)

// DefaultTimeZone is the local time zone of the peninsular PVPC day.
const DefaultTimeZone = "Europe/Madrid"

// provisionalLastDay is the last day of January a missing holiday feed for
// the new year is tolerated.
const provisionalLastDay = 6

// Options holds the collaborators of a Coordinator.
type Options struct {
	Resolver      *holidays.Resolver
	Prices        utility.Provider
	PriceProvider string
	Storage       storage.Database
	Location      *time.Location
	Settings      types.Settings
}

// Coordinator refreshes holidays and prices and answers tariff questions
// about an instant.
type Coordinator struct {
	base          *holidays.Resolver
	prices        utility.Provider
	priceProvider string
	storage       storage.Database
	loc           *time.Location

	mu          sync.RWMutex
	settings    types.Settings
	resolver    *holidays.Resolver
	classifier  *tariff.Classifier
	series      types.PriceSeries
	provisional map[int]bool
	persisted   map[string]bool
	lastRefresh time.Time
	lastErr     error
}

// New creates a Coordinator and applies opts.Settings.
func New(ctx context.Context, opts Options) (*Coordinator, error) {
	c := &Coordinator{}
	if err := c.init(ctx, opts); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Coordinator) init(ctx context.Context, opts Options) error {
	if opts.Resolver == nil {
		return errors.New("holiday resolver is required")
	}
	if opts.Prices == nil {
		return errors.New("price provider is required")
	}
	if opts.Storage == nil {
		opts.Storage = storage.None{}
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	c.base = opts.Resolver
	c.prices = opts.Prices
	c.priceProvider = opts.PriceProvider
	c.storage = opts.Storage
	c.loc = opts.Location
	c.provisional = make(map[int]bool)
	c.persisted = make(map[string]bool)
	return c.ApplySettings(ctx, opts.Settings)
}

// Configured registers the tariff flags and returns a Coordinator once flags
// are parsed. resolver and utilities must be configured before calling it.
func Configured(resolver *holidays.Resolver, utilities *utility.Map, db storage.Database) *Coordinator {
	tariffFlag := lflag.String("tariff", types.TariffMainland, "Tariff identifier (2.0TD or \"2.0TD (Ceuta/Melilla)\")")
	target := lflag.String("better-price-target", string(types.PriceLevelNeutral), "Better price target (very_cheap, cheap or neutral)")
	timeZone := lflag.String("time-zone", DefaultTimeZone, "Local time zone used for periods and day ratios")

	c := &Coordinator{}
	lflag.Do(func() {
		loc, err := time.LoadLocation(*timeZone)
		if err != nil {
			panic(fmt.Sprintf("invalid time zone %q: %v", *timeZone, err))
		}
		prices, err := utilities.Provider(utility.ProviderESIOS)
		if err != nil {
			panic(fmt.Sprintf("price provider init failed: %v (registered: %v)", err, utilities.Names()))
		}
		source := types.HolidaySourceCSV
		if resolver.Source() != nil {
			source = resolver.Source().Kind()
		}
		err = c.init(context.Background(), Options{
			Resolver:      resolver,
			Prices:        prices,
			PriceProvider: utility.ProviderESIOS,
			Storage:       db,
			Location:      loc,
			Settings: types.Settings{
				Tariff:            *tariffFlag,
				HolidaySource:     source,
				BetterPriceTarget: types.NormalizeBetterPriceTarget(*target),
			},
		})
		if err != nil {
			panic(fmt.Sprintf("coordinator init failed: %v", err))
		}
	})
	return c
}

// Location returns the local time zone.
func (c *Coordinator) Location() *time.Location {
	return c.loc
}

// Settings returns the settings in effect.
func (c *Coordinator) Settings() types.Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

// Classifier returns the classifier of the settings in effect.
func (c *Coordinator) Classifier() *tariff.Classifier {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.classifier
}

// ApplySettings normalises and validates s and switches the classifier,
// holiday source and price provider over to it.
func (c *Coordinator) ApplySettings(ctx context.Context, s types.Settings) error {
	s = types.NormalizeSettings(s)
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	resolver, err := c.base.WithSource(s.HolidaySource)
	if err != nil {
		return fmt.Errorf("failed to set holiday source: %w", err)
	}
	if err := c.prices.ApplySettings(ctx, s); err != nil {
		return fmt.Errorf("failed to apply settings to price provider: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.settings.Tariff != s.Tariff {
		// the price column depends on the tariff
		c.series = nil
	}
	c.settings = s
	c.resolver = resolver
	c.classifier = tariff.NewClassifier(s.PeakZone(), &holidayLookup{c: c, resolver: resolver}, c.loc)
	log.Ctx(ctx).InfoContext(
		ctx,
		"applied settings",
		slog.String("tariff", s.Tariff),
		slog.String("holidaySource", s.HolidaySource),
		slog.String("betterPriceTarget", string(s.BetterPriceTarget)),
	)
	return nil
}

// Holidays returns the PVPC holiday set of a year from the active source.
func (c *Coordinator) Holidays(ctx context.Context, year int) (types.HolidaySet, error) {
	c.mu.RLock()
	lookup := &holidayLookup{c: c, resolver: c.resolver}
	c.mu.RUnlock()
	return lookup.Holidays(ctx, year)
}

// Provisional reports whether the holiday set of year is a stand-in awaiting
// the authoritative one.
func (c *Coordinator) Provisional(year int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.provisional[year]
}

func (c *Coordinator) setProvisional(year int, provisional bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if provisional {
		c.provisional[year] = true
	} else {
		delete(c.provisional, year)
	}
}

// LastRefresh returns when Refresh last ran and the error it returned.
func (c *Coordinator) LastRefresh() (time.Time, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh, c.lastErr
}

// Series returns the price series from the last refresh.
func (c *Coordinator) Series() types.PriceSeries {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.series
}

// holidayLookup serves the classifier. Years after the refreshed one fall back
// to the provisional January set so a scan crossing New Year doesn't fail
// while the new feed is unpublished. The January dates a cached set carries
// for the following year are merged into that year's set.
type holidayLookup struct {
	c        *Coordinator
	resolver *holidays.Resolver
}

func (h *holidayLookup) Holidays(ctx context.Context, year int) (types.HolidaySet, error) {
	set, err := h.lookup(ctx, year)
	if err != nil {
		return nil, err
	}
	return h.withCarriedOver(year, set), nil
}

func (h *holidayLookup) lookup(ctx context.Context, year int) (types.HolidaySet, error) {
	set, err := h.resolver.Holidays(ctx, year)
	if err == nil {
		return set, nil
	}
	h.c.mu.RLock()
	refreshed := h.c.lastRefresh
	h.c.mu.RUnlock()
	if !errors.Is(err, holidays.ErrDataSource) || refreshed.IsZero() || year <= refreshed.In(h.c.loc).Year() {
		return nil, err
	}
	log.Ctx(ctx).WarnContext(
		ctx,
		"using provisional holidays for upcoming year",
		slog.Int("year", year),
		slog.Any("error", err),
	)
	provisional := holidays.ProvisionalJanuary(year)
	h.resolver.Cache().Prime(year, h.resolver.Source().Kind(), provisional)
	h.c.setProvisional(year, true)
	return provisional, nil
}

// withCarriedOver adds the dates of year held by the cached set of year-1.
// Only the previous set is consulted from cache so a missing one never
// triggers a load.
func (h *holidayLookup) withCarriedOver(year int, set types.HolidaySet) types.HolidaySet {
	prev, ok := h.resolver.Cache().Get(year-1, h.resolver.Source().Kind())
	if !ok {
		return set
	}
	var merged types.HolidaySet
	for d, name := range prev {
		if d.Year != year || set.Contains(d) {
			continue
		}
		if merged == nil {
			merged = set.Clone()
		}
		merged[d] = name
	}
	if merged == nil {
		return set
	}
	return merged
}
