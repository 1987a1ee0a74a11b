package controller

import (
	"context"
	"log/slog"
	"time"

	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/ranking"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// PeriodInfo describes the period in effect and the one that follows.
type PeriodInfo struct {
	Current   types.Period `json:"current"`
	Next      types.Period `json:"next"`
	NextStart time.Time    `json:"nextStart"`
	Until     string       `json:"until"`
}

// PriceInfo is a price with its day ratio and level.
type PriceInfo struct {
	TS    time.Time        `json:"ts"`
	Price float64          `json:"price"`
	Ratio float64          `json:"ratio"`
	Level types.PriceLevel `json:"level"`
	Until string           `json:"until,omitempty"`
}

// Snapshot is the tariff state at an instant. Fields that can't be computed
// are nil rather than guessed.
type Snapshot struct {
	Time              time.Time        `json:"time"`
	Tariff            string           `json:"tariff"`
	HolidaySource     string           `json:"holidaySource"`
	Year              int              `json:"year"`
	ProvisionalYear   bool             `json:"provisionalHolidays"`
	BetterPriceTarget types.PriceLevel `json:"betterPriceTarget"`

	PricePeriod *PeriodInfo `json:"pricePeriod,omitempty"`
	PowerPeriod *PeriodInfo `json:"powerPeriod,omitempty"`

	CurrentPrice *PriceInfo `json:"currentPrice,omitempty"`
	NextPrice    *PriceInfo `json:"nextPrice,omitempty"`
	BetterPrice  *PriceInfo `json:"betterPrice,omitempty"`
}

func periodInfo(now time.Time, res types.PeriodResult) *PeriodInfo {
	return &PeriodInfo{
		Current:   res.Current,
		Next:      res.Next,
		NextStart: res.NextStart(now),
		Until:     types.FormatUntil(res.Until),
	}
}

// NewPriceInfo labels a price candidate, with the time until it starts when
// withUntil is set.
func NewPriceInfo(now time.Time, c types.PriceCandidate, withUntil bool) *PriceInfo {
	info := &PriceInfo{
		TS:    c.TS,
		Price: c.Price,
		Ratio: c.Ratio,
		Level: types.LevelFromRatio(c.Ratio),
	}
	if withUntil {
		info.Until = types.FormatUntil(c.TS.Sub(now))
	}
	return info
}

// Snapshot computes the tariff state at now from the cached holidays and the
// last refreshed prices.
func (c *Coordinator) Snapshot(ctx context.Context, now time.Time) Snapshot {
	c.mu.RLock()
	settings := c.settings
	classifier := c.classifier
	series := c.series
	c.mu.RUnlock()

	year := now.In(c.loc).Year()
	snap := Snapshot{
		Time:              now,
		Tariff:            settings.Tariff,
		HolidaySource:     settings.HolidaySource,
		Year:              year,
		ProvisionalYear:   c.Provisional(year),
		BetterPriceTarget: settings.BetterPriceTarget,
	}

	if res, err := classifier.CurrentAndNextPrice(ctx, now); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "price period unavailable", slog.Any("error", err))
	} else {
		snap.PricePeriod = periodInfo(now, res)
	}
	if res, err := classifier.CurrentAndNextPower(ctx, now); err != nil {
		log.Ctx(ctx).WarnContext(ctx, "power period unavailable", slog.Any("error", err))
	} else {
		snap.PowerPeriod = periodInfo(now, res)
	}

	if len(series) == 0 {
		return snap
	}
	r := ranking.New(series, c.loc)
	if cur, ok := r.Candidate(now.Truncate(time.Hour)); ok {
		snap.CurrentPrice = NewPriceInfo(now, cur, false)
	}
	if next, ok := r.NextPrice(now); ok {
		snap.NextPrice = NewPriceInfo(now, next, true)
	}
	if better, ok := r.NextTargetPrice(ctx, now, settings.BetterPriceTarget); ok {
		snap.BetterPrice = NewPriceInfo(now, better, true)
	}
	return snap
}

// NextPrice returns the first price after now.
func (c *Coordinator) NextPrice(now time.Time) (types.PriceCandidate, bool) {
	return ranking.New(c.Series(), c.loc).NextPrice(now)
}

// BetterPrice returns the soonest price after now meeting target, falling
// back to the cheapest upcoming one. An empty target uses the configured one.
func (c *Coordinator) BetterPrice(ctx context.Context, now time.Time, target types.PriceLevel) (types.PriceCandidate, bool) {
	if target == "" {
		target = c.Settings().BetterPriceTarget
	}
	return ranking.New(c.Series(), c.loc).NextTargetPrice(ctx, now, target)
}
