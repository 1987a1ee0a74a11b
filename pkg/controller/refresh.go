package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pvpcnext/pvpcnext/pkg/holidays"
	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// Refresh warms the holiday cache for the local year of now and fetches the
// upcoming prices. Both are persisted when storage is configured. Holiday
// sets cached as provisional are dropped first so the authoritative source is
// retried on every refresh.
func (c *Coordinator) Refresh(ctx context.Context, now time.Time) error {
	local := now.In(c.loc)
	ctx = log.WithAttrs(ctx, slog.Int("year", local.Year()))

	c.mu.RLock()
	resolver := c.resolver
	var provisional []int
	for year := range c.provisional {
		provisional = append(provisional, year)
	}
	c.mu.RUnlock()

	for _, year := range provisional {
		log.Ctx(ctx).DebugContext(ctx, "retrying provisional holidays", slog.Int("provisionalYear", year))
		resolver.Cache().Invalidate(year)
	}

	holidayErr := c.refreshHolidays(ctx, resolver, local)
	if holidayErr != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to refresh holidays", slog.Any("error", holidayErr))
	}
	priceErr := c.refreshPrices(ctx, now)
	if priceErr != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to refresh prices", slog.Any("error", priceErr))
	}

	err := errors.Join(holidayErr, priceErr)
	c.mu.Lock()
	c.lastRefresh = now
	c.lastErr = err
	c.mu.Unlock()
	return err
}

func (c *Coordinator) refreshHolidays(ctx context.Context, resolver *holidays.Resolver, local time.Time) error {
	year := local.Year()
	source := resolver.Source().Kind()

	set, err := resolver.Holidays(ctx, year)
	if err == nil {
		c.setProvisional(year, false)
		c.persistHolidays(ctx, year, source, set)
		return nil
	}
	if !errors.Is(err, holidays.ErrDataSource) {
		return err
	}

	// a missing feed is expected in the first days of January
	tolerated := local.Month() == time.January && local.Day() <= provisionalLastDay

	stored, storedErr := c.storage.GetHolidaySet(ctx, year, source)
	if storedErr == nil && len(stored) > 0 {
		log.Ctx(ctx).WarnContext(
			ctx,
			"holiday source failed, using stored holidays",
			slog.String("source", source),
			slog.Int("count", len(stored)),
			slog.Any("error", err),
		)
		resolver.Cache().Prime(year, source, stored)
		c.setProvisional(year, true)
		if tolerated {
			return nil
		}
		return fmt.Errorf("serving %d stored holidays: %w", len(stored), err)
	}

	if tolerated {
		provisional := holidays.ProvisionalJanuary(year)
		log.Ctx(ctx).WarnContext(
			ctx,
			"holiday source not available yet, using provisional January holidays",
			slog.String("source", source),
			slog.Int("count", len(provisional)),
			slog.Any("error", err),
		)
		resolver.Cache().Prime(year, source, provisional)
		c.setProvisional(year, true)
		return nil
	}
	return err
}

// persistHolidays writes each authoritative set once per process.
func (c *Coordinator) persistHolidays(ctx context.Context, year int, source string, set types.HolidaySet) {
	key := fmt.Sprintf("%s-%d", source, year)
	c.mu.RLock()
	done := c.persisted[key]
	c.mu.RUnlock()
	if done {
		return
	}
	if err := c.storage.SetHolidaySet(ctx, year, source, set); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to store holidays", slog.String("source", source), slog.Any("error", err))
		return
	}
	c.mu.Lock()
	c.persisted[key] = true
	c.mu.Unlock()
}

func (c *Coordinator) refreshPrices(ctx context.Context, now time.Time) error {
	series, err := c.prices.GetFuturePrices(ctx, now)
	if err != nil {
		return fmt.Errorf("failed to get future prices: %w", err)
	}
	c.mu.Lock()
	c.series = series
	c.mu.Unlock()

	log.Ctx(ctx).DebugContext(ctx, "refreshed prices", slog.Int("count", len(series)))
	if err := c.storage.UpsertPrices(ctx, series.Prices(c.priceProvider)); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to store prices", slog.Any("error", err))
	}
	return nil
}
