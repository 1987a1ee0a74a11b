package types

import (
	"sort"
	"time"
)

// Price represents the cost of electricity in a time interval.
type Price struct {
	Provider string    `json:"provider"`
	TSStart  time.Time `json:"tsStart"`
	TSEnd    time.Time `json:"tsEnd"`

	// EurosPerKWH is the PVPC energy term for the interval.
	EurosPerKWH float64 `json:"eurosPerKWH"`
}

// PriceSeries maps hour-aligned instants to €/kWh. Keys are always stored in
// UTC so that the same instant from different locations is a single key.
type PriceSeries map[time.Time]float64

// NewPriceSeries builds a series from a list of prices. Later entries for the
// same instant replace earlier ones.
func NewPriceSeries(prices []Price) PriceSeries {
	s := make(PriceSeries, len(prices))
	for _, p := range prices {
		s.Set(p.TSStart, p.EurosPerKWH)
	}
	return s
}

// Set stores the price for ts.
func (s PriceSeries) Set(ts time.Time, price float64) {
	s[ts.UTC()] = price
}

// Get returns the price for ts.
func (s PriceSeries) Get(ts time.Time) (float64, bool) {
	p, ok := s[ts.UTC()]
	return p, ok
}

// Times returns the instants of the series in ascending order.
func (s PriceSeries) Times() []time.Time {
	times := make([]time.Time, 0, len(s))
	for ts := range s {
		times = append(times, ts)
	}
	sort.Slice(times, func(i, j int) bool {
		return times[i].Before(times[j])
	})
	return times
}

// Prices converts the series back into hourly prices ordered by start.
func (s PriceSeries) Prices(provider string) []Price {
	times := s.Times()
	prices := make([]Price, 0, len(times))
	for _, ts := range times {
		prices = append(prices, Price{
			Provider:    provider,
			TSStart:     ts,
			TSEnd:       ts.Add(time.Hour),
			EurosPerKWH: s[ts],
		})
	}
	return prices
}

// PriceCandidate is a price together with its position in its day's range.
type PriceCandidate struct {
	TS    time.Time `json:"ts"`
	Price float64   `json:"price"`
	Ratio float64   `json:"ratio"`
}

// PriceLevel labels a price ratio.
type PriceLevel string

const (
	PriceLevelVeryCheap     PriceLevel = "very_cheap"
	PriceLevelCheap         PriceLevel = "cheap"
	PriceLevelNeutral       PriceLevel = "neutral"
	PriceLevelExpensive     PriceLevel = "expensive"
	PriceLevelVeryExpensive PriceLevel = "very_expensive"
)

var priceLevelThresholds = []struct {
	max   float64
	level PriceLevel
}{
	{0.2, PriceLevelVeryCheap},
	{0.4, PriceLevelCheap},
	{0.6, PriceLevelNeutral},
	{0.8, PriceLevelExpensive},
}

// LevelFromRatio labels a day-relative price ratio.
func LevelFromRatio(ratio float64) PriceLevel {
	for _, t := range priceLevelThresholds {
		if ratio <= t.max {
			return t.level
		}
	}
	return PriceLevelVeryExpensive
}

// TargetMaxRatio returns the highest ratio accepted by a better-price target.
// Only the three cheap-side levels are valid targets.
func TargetMaxRatio(target PriceLevel) (float64, bool) {
	switch target {
	case PriceLevelVeryCheap:
		return 0.2, true
	case PriceLevelCheap:
		return 0.4, true
	case PriceLevelNeutral:
		return 0.6, true
	}
	return 0, false
}
