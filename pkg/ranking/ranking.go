// Package ranking picks upcoming PVPC prices out of an hourly price series.
package ranking

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// FlatDayRatio is the ratio of every hour of a day whose prices are all equal.
const FlatDayRatio = 0.6

// Ranker computes day-relative ratios for a price series in a local time zone.
type Ranker struct {
	series types.PriceSeries
	loc    *time.Location
	ranges map[civil.Date]dayRange
}

type dayRange struct {
	min, max float64
}

// New indexes the series by local calendar day. A nil location means UTC.
func New(series types.PriceSeries, loc *time.Location) *Ranker {
	if loc == nil {
		loc = time.UTC
	}
	r := &Ranker{
		series: series,
		loc:    loc,
		ranges: make(map[civil.Date]dayRange),
	}
	for ts, price := range series {
		day := civil.DateOf(ts.In(loc))
		dr, ok := r.ranges[day]
		if !ok {
			r.ranges[day] = dayRange{min: price, max: price}
			continue
		}
		dr.min = min(dr.min, price)
		dr.max = max(dr.max, price)
		r.ranges[day] = dr
	}
	return r
}

// Ratio returns where price sits within the min/max range of ts's local day,
// rounded to two decimals. It returns false when the series has no prices for
// that day.
func (r *Ranker) Ratio(ts time.Time, price float64) (float64, bool) {
	dr, ok := r.ranges[civil.DateOf(ts.In(r.loc))]
	if !ok {
		return 0, false
	}
	if dr.max == dr.min {
		return FlatDayRatio, true
	}
	return math.Round((price-dr.min)/(dr.max-dr.min)*100) / 100, true
}

// Candidate returns the series entry at ts with its ratio.
func (r *Ranker) Candidate(ts time.Time) (types.PriceCandidate, bool) {
	price, ok := r.series.Get(ts)
	if !ok {
		return types.PriceCandidate{}, false
	}
	ratio, ok := r.Ratio(ts, price)
	if !ok {
		return types.PriceCandidate{}, false
	}
	return types.PriceCandidate{TS: ts.UTC(), Price: price, Ratio: ratio}, true
}

// Future returns every entry strictly after now, ordered by time.
func (r *Ranker) Future(now time.Time) []types.PriceCandidate {
	var out []types.PriceCandidate
	for _, ts := range r.series.Times() {
		if !ts.After(now) {
			continue
		}
		if c, ok := r.Candidate(ts); ok {
			out = append(out, c)
		}
	}
	return out
}

// NextPrice returns the entry with the smallest timestamp strictly after now.
func (r *Ranker) NextPrice(now time.Time) (types.PriceCandidate, bool) {
	future := r.Future(now)
	if len(future) == 0 {
		return types.PriceCandidate{}, false
	}
	return future[0], true
}

// NextTargetPrice returns the soonest future entry whose ratio meets target.
// When none does, it falls back to the cheapest future entry, earliest first
// on ties. It only returns false when there are no future entries at all.
func (r *Ranker) NextTargetPrice(ctx context.Context, now time.Time, target types.PriceLevel) (types.PriceCandidate, bool) {
	future := r.Future(now)
	if len(future) == 0 {
		log.Ctx(ctx).DebugContext(
			ctx,
			"no better-price candidates",
			slog.String("target", string(target)),
			slog.Int("totalPrices", len(r.series)),
		)
		return types.PriceCandidate{}, false
	}

	maxRatio, ok := types.TargetMaxRatio(target)
	if !ok {
		log.Ctx(ctx).WarnContext(ctx, "unknown better-price target", slog.String("target", string(target)))
	} else {
		for _, c := range future {
			if c.Ratio <= maxRatio {
				log.Ctx(ctx).DebugContext(
					ctx,
					"better-price target found",
					slog.String("target", string(target)),
					slog.Float64("maxRatio", maxRatio),
					slog.Time("ts", c.TS),
					slog.Float64("price", c.Price),
					slog.Float64("ratio", c.Ratio),
				)
				return c, true
			}
		}
	}

	cheapest := make([]types.PriceCandidate, len(future))
	copy(cheapest, future)
	sort.SliceStable(cheapest, func(i, j int) bool {
		if cheapest[i].Price != cheapest[j].Price {
			return cheapest[i].Price < cheapest[j].Price
		}
		return cheapest[i].TS.Before(cheapest[j].TS)
	})
	fallback := cheapest[0]
	log.Ctx(ctx).DebugContext(
		ctx,
		"falling back to cheapest future price",
		slog.String("target", string(target)),
		slog.Time("ts", fallback.TS),
		slog.Float64("price", fallback.Price),
		slog.Float64("ratio", fallback.Ratio),
	)
	return fallback, true
}

// NextPrice is a shortcut for New(series, nil).NextPrice(now).
func NextPrice(series types.PriceSeries, now time.Time) (types.PriceCandidate, bool) {
	return New(series, nil).NextPrice(now)
}

// NextTargetPrice is a shortcut for New(series, loc).NextTargetPrice.
func NextTargetPrice(
	ctx context.Context,
	series types.PriceSeries,
	now time.Time,
	target types.PriceLevel,
	loc *time.Location,
) (types.PriceCandidate, bool) {
	return New(series, loc).NextTargetPrice(ctx, now, target)
}
