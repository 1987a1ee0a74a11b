// Package tariff classifies instants into Peaje 2.0TD price and power periods.
package tariff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// ErrInvariantViolation is returned when the next-period scan doesn't find a
// change within maxScanHours. It indicates a bug in the hour tables.
var ErrInvariantViolation = errors.New("tariff invariant violation")

// maxScanHours bounds the next-period scan.
const maxScanHours = 366

// HourSet is a set of local clock hours.
type HourSet [24]bool

// Hours builds an HourSet.
func Hours(hours ...int) HourSet {
	var s HourSet
	for _, h := range hours {
		s[h] = true
	}
	return s
}

// Contains reports whether the hour is in the set.
func (s HourSet) Contains(hour int) bool {
	return hour >= 0 && hour < len(s) && s[hour]
}

// Zone holds the peak-hour tables of a tariff zone.
type Zone struct {
	P1 HourSet
	P2 HourSet
}

var (
	// Mainland covers the peninsula, the Balearic and the Canary islands.
	Mainland = Zone{
		P1: Hours(10, 11, 12, 13, 18, 19, 20, 21),
		P2: Hours(8, 9, 14, 15, 16, 17, 22, 23),
	}
	// CeutaMelilla is shifted one hour later than Mainland.
	CeutaMelilla = Zone{
		P1: Hours(11, 12, 13, 14, 19, 20, 21, 22),
		P2: Hours(8, 9, 10, 15, 16, 17, 18, 23),
	}
)

// ZoneFor returns the zone of the peak-zone flag.
func ZoneFor(peakZone bool) Zone {
	if peakZone {
		return CeutaMelilla
	}
	return Mainland
}

// HolidayProvider returns the PVPC holiday set of a year.
type HolidayProvider interface {
	Holidays(ctx context.Context, year int) (types.HolidaySet, error)
}

// Classifier resolves the price and power periods of an instant.
type Classifier struct {
	Zone     Zone
	Holidays HolidayProvider
	// Location is the local time zone. When nil the location of the
	// timestamps passed in is used as-is.
	Location *time.Location
}

// NewClassifier creates a Classifier for the zone flag.
func NewClassifier(peakZone bool, holidays HolidayProvider, loc *time.Location) *Classifier {
	return &Classifier{
		Zone:     ZoneFor(peakZone),
		Holidays: holidays,
		Location: loc,
	}
}

func (c *Classifier) local(ts time.Time) time.Time {
	if c.Location != nil {
		return ts.In(c.Location)
	}
	return ts
}

// offPeak reports whether the whole hour is P3 for both price and power:
// weekends, hours before 8 and holidays.
func (c *Classifier) offPeak(ctx context.Context, local time.Time) (bool, error) {
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return true, nil
	}
	if local.Hour() < 8 {
		return true, nil
	}
	if c.Holidays == nil {
		return false, nil
	}
	day := civil.DateOf(local)
	set, err := c.Holidays.Holidays(ctx, day.Year)
	if err != nil {
		return false, fmt.Errorf("failed to resolve holidays for %d: %w", day.Year, err)
	}
	return set.Contains(day), nil
}

// PricePeriod returns the P1/P2/P3 energy price period of ts.
func (c *Classifier) PricePeriod(ctx context.Context, ts time.Time) (types.Period, error) {
	local := c.local(ts)
	off, err := c.offPeak(ctx, local)
	if err != nil {
		return "", err
	}
	if off {
		return types.PeriodP3, nil
	}
	h := local.Hour()
	switch {
	case c.Zone.P2.Contains(h):
		return types.PeriodP2, nil
	case c.Zone.P1.Contains(h):
		return types.PeriodP1, nil
	default:
		return types.PeriodP2, nil
	}
}

// PowerPeriod returns the P1/P3 contracted power period of ts.
func (c *Classifier) PowerPeriod(ctx context.Context, ts time.Time) (types.Period, error) {
	off, err := c.offPeak(ctx, c.local(ts))
	if err != nil {
		return "", err
	}
	if off {
		return types.PeriodP3, nil
	}
	return types.PeriodP1, nil
}

// CurrentAndNextPrice returns the price period of ts, the one after it and
// the time until it starts.
func (c *Classifier) CurrentAndNextPrice(ctx context.Context, ts time.Time) (types.PeriodResult, error) {
	return c.currentAndNext(ctx, ts, c.PricePeriod)
}

// CurrentAndNextPower is CurrentAndNextPrice for power periods.
func (c *Classifier) CurrentAndNextPower(ctx context.Context, ts time.Time) (types.PeriodResult, error) {
	return c.currentAndNext(ctx, ts, c.PowerPeriod)
}

// currentAndNext scans forward hour by hour from the start of ts's hour,
// which is the smallest unit a period can change on, so the returned duration
// reaches exactly the first instant with a different label.
func (c *Classifier) currentAndNext(
	ctx context.Context,
	ts time.Time,
	classify func(context.Context, time.Time) (types.Period, error),
) (types.PeriodResult, error) {
	current, err := classify(ctx, ts)
	if err != nil {
		return types.PeriodResult{}, err
	}
	hourStart := ts.Truncate(time.Hour)
	for i := 1; i <= maxScanHours; i++ {
		candidate := hourStart.Add(time.Duration(i) * time.Hour)
		next, err := classify(ctx, candidate)
		if err != nil {
			return types.PeriodResult{}, err
		}
		if next != current {
			return types.PeriodResult{
				Current: current,
				Next:    next,
				Until:   candidate.Sub(ts),
			}, nil
		}
	}
	return types.PeriodResult{}, fmt.Errorf(
		"%w: period %s unchanged for %d hours from %s",
		ErrInvariantViolation, current, maxScanHours, ts.Format(time.RFC3339),
	)
}
