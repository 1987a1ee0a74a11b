package tariff

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

func init() {
	log.SetDefaultLogLevel(slog.LevelError)
}

type staticHolidays types.HolidaySet

func (s staticHolidays) Holidays(ctx context.Context, year int) (types.HolidaySet, error) {
	return types.HolidaySet(s), nil
}

type failingHolidays struct{}

func (failingHolidays) Holidays(ctx context.Context, year int) (types.HolidaySet, error) {
	return nil, errors.New("boom")
}

// everyDay marks every weekday as a holiday so nothing but P3 exists.
type everyDay struct{}

func (everyDay) Holidays(ctx context.Context, year int) (types.HolidaySet, error) {
	set := types.HolidaySet{}
	for d := (civil.Date{Year: year, Month: time.January, Day: 1}); d.Year == year; d = d.AddDays(1) {
		set[d] = "holiday"
	}
	return set, nil
}

func madrid(t *testing.T) *time.Location {
	loc, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	return loc
}

func testHolidays() staticHolidays {
	return staticHolidays{
		{Year: 2024, Month: time.November, Day: 1}:  "Todos los Santos",
		{Year: 2024, Month: time.December, Day: 25}: "Natividad del Señor",
	}
}

func TestPricePeriodBoundaries(t *testing.T) {
	loc := madrid(t)
	c := NewClassifier(false, testHolidays(), loc)
	ctx := context.Background()

	tests := []struct {
		ts   time.Time
		want types.Period
	}{
		{time.Date(2024, 11, 4, 7, 59, 0, 0, loc), types.PeriodP3},
		{time.Date(2024, 11, 4, 8, 0, 0, 0, loc), types.PeriodP2},
		{time.Date(2024, 11, 4, 10, 0, 0, 0, loc), types.PeriodP1},
		{time.Date(2024, 11, 4, 13, 59, 59, 0, loc), types.PeriodP1},
		{time.Date(2024, 11, 4, 14, 0, 0, 0, loc), types.PeriodP2},
		{time.Date(2024, 11, 4, 18, 0, 0, 0, loc), types.PeriodP1},
		{time.Date(2024, 11, 4, 22, 0, 0, 0, loc), types.PeriodP2},
		{time.Date(2024, 11, 4, 23, 59, 0, 0, loc), types.PeriodP2},
		{time.Date(2024, 11, 5, 0, 0, 0, 0, loc), types.PeriodP3},
		{time.Date(2024, 11, 1, 10, 0, 0, 0, loc), types.PeriodP3},
		{time.Date(2024, 11, 2, 12, 0, 0, 0, loc), types.PeriodP3},
		{time.Date(2024, 11, 3, 19, 0, 0, 0, loc), types.PeriodP3},
	}
	for _, tt := range tests {
		got, err := c.PricePeriod(ctx, tt.ts)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.ts.String())
	}
}

func TestPricePeriodUsesLocation(t *testing.T) {
	loc := madrid(t)
	c := NewClassifier(false, testHolidays(), loc)
	// 09:00 UTC is 10:00 in Madrid during winter.
	got, err := c.PricePeriod(context.Background(), time.Date(2024, 11, 4, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, types.PeriodP1, got)
}

func TestPricePeriodCeutaMelilla(t *testing.T) {
	loc := madrid(t)
	c := NewClassifier(true, testHolidays(), loc)
	ctx := context.Background()

	tests := map[int]types.Period{
		7:  types.PeriodP3,
		8:  types.PeriodP2,
		10: types.PeriodP2,
		11: types.PeriodP1,
		14: types.PeriodP1,
		15: types.PeriodP2,
		18: types.PeriodP2,
		19: types.PeriodP1,
		22: types.PeriodP1,
		23: types.PeriodP2,
	}
	for hour, want := range tests {
		got, err := c.PricePeriod(ctx, time.Date(2024, 11, 4, hour, 30, 0, 0, loc))
		require.NoError(t, err)
		assert.Equal(t, want, got, "hour %d", hour)
	}
}

func TestPowerPeriod(t *testing.T) {
	loc := madrid(t)
	c := NewClassifier(false, testHolidays(), loc)
	ctx := context.Background()

	for hour := 0; hour < 24; hour++ {
		got, err := c.PowerPeriod(ctx, time.Date(2024, 11, 4, hour, 0, 0, 0, loc))
		require.NoError(t, err)
		if hour < 8 {
			assert.Equal(t, types.PeriodP3, got, "hour %d", hour)
		} else {
			assert.Equal(t, types.PeriodP1, got, "hour %d", hour)
		}

		got, err = c.PowerPeriod(ctx, time.Date(2024, 11, 1, hour, 0, 0, 0, loc))
		require.NoError(t, err)
		assert.Equal(t, types.PeriodP3, got, "holiday hour %d", hour)
	}
}

func TestHolidayError(t *testing.T) {
	c := NewClassifier(false, failingHolidays{}, madrid(t))
	_, err := c.PricePeriod(context.Background(), time.Date(2024, 11, 4, 12, 0, 0, 0, time.UTC))
	assert.Error(t, err)

	// weekends and early hours never need the holiday set
	got, err := c.PricePeriod(context.Background(), time.Date(2024, 11, 2, 12, 0, 0, 0, madrid(t)))
	require.NoError(t, err)
	assert.Equal(t, types.PeriodP3, got)
}

func TestNilHolidays(t *testing.T) {
	c := NewClassifier(false, nil, madrid(t))
	got, err := c.PricePeriod(context.Background(), time.Date(2024, 11, 1, 10, 0, 0, 0, madrid(t)))
	require.NoError(t, err)
	assert.Equal(t, types.PeriodP1, got)
}

func TestCurrentAndNextPrice(t *testing.T) {
	loc := madrid(t)
	c := NewClassifier(false, testHolidays(), loc)
	ctx := context.Background()

	res, err := c.CurrentAndNextPrice(ctx, time.Date(2024, 11, 4, 7, 59, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, types.PeriodP3, res.Current)
	assert.Equal(t, types.PeriodP2, res.Next)
	assert.Equal(t, time.Minute, res.Until)

	res, err = c.CurrentAndNextPrice(ctx, time.Date(2024, 11, 4, 10, 15, 30, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, types.PeriodP1, res.Current)
	assert.Equal(t, types.PeriodP2, res.Next)
	assert.Equal(t, 3*time.Hour+44*time.Minute+30*time.Second, res.Until)

	// Thursday Oct 31 at 23:00 runs into the Nov 1 holiday and the weekend.
	res, err = c.CurrentAndNextPrice(ctx, time.Date(2024, 10, 31, 23, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, types.PeriodP2, res.Current)
	assert.Equal(t, types.PeriodP3, res.Next)
	assert.Equal(t, time.Hour, res.Until)

	res, err = c.CurrentAndNextPrice(ctx, time.Date(2024, 11, 1, 0, 0, 0, 0, loc))
	require.NoError(t, err)
	assert.Equal(t, types.PeriodP3, res.Current)
	assert.Equal(t, types.PeriodP2, res.Next)
	assert.Equal(t, time.Date(2024, 11, 4, 8, 0, 0, 0, loc), res.NextStart(time.Date(2024, 11, 1, 0, 0, 0, 0, loc)))
}

func TestCurrentAndNextPower(t *testing.T) {
	loc := madrid(t)
	c := NewClassifier(false, testHolidays(), loc)
	from := time.Date(2024, 11, 4, 9, 0, 0, 0, loc)
	res, err := c.CurrentAndNextPower(context.Background(), from)
	require.NoError(t, err)
	assert.Equal(t, types.PeriodP1, res.Current)
	assert.Equal(t, types.PeriodP3, res.Next)
	assert.Equal(t, time.Date(2024, 11, 5, 0, 0, 0, 0, loc), res.NextStart(from))
}

func TestCurrentAndNextConstantBetween(t *testing.T) {
	loc := madrid(t)
	c := NewClassifier(false, testHolidays(), loc)
	ctx := context.Background()

	start := time.Date(2024, 10, 28, 0, 0, 0, 0, loc)
	for ts := start; ts.Before(start.AddDate(0, 0, 7)); ts = ts.Add(37 * time.Minute) {
		res, err := c.CurrentAndNextPrice(ctx, ts)
		require.NoError(t, err)
		assert.Positive(t, res.Until)
		assert.NotEqual(t, res.Current, res.Next)

		end := res.NextStart(ts)
		for at := ts; at.Before(end); at = at.Add(15 * time.Minute) {
			p, err := c.PricePeriod(ctx, at)
			require.NoError(t, err)
			require.Equal(t, res.Current, p, "at %s from %s", at, ts)
		}
		p, err := c.PricePeriod(ctx, end)
		require.NoError(t, err)
		require.Equal(t, res.Next, p)
	}
}

func TestCurrentAndNextAcrossDST(t *testing.T) {
	loc := madrid(t)
	c := NewClassifier(false, nil, loc)
	ctx := context.Background()

	// Spring forward on Sunday 2024-03-31: 02:00 becomes 03:00.
	from := time.Date(2024, 3, 30, 12, 0, 0, 0, loc)
	res, err := c.CurrentAndNextPrice(ctx, from)
	require.NoError(t, err)
	assert.Equal(t, types.PeriodP3, res.Current)
	assert.Equal(t, types.PeriodP2, res.Next)
	assert.Equal(t, time.Date(2024, 4, 1, 8, 0, 0, 0, loc), res.NextStart(from))
	assert.Equal(t, 43*time.Hour, res.Until)

	// Fall back on Sunday 2024-10-27 adds an hour.
	from = time.Date(2024, 10, 26, 12, 0, 0, 0, loc)
	res, err = c.CurrentAndNextPrice(ctx, from)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Hour, res.Until)
}

func TestCurrentAndNextInvariantViolation(t *testing.T) {
	c := NewClassifier(false, everyDay{}, madrid(t))
	_, err := c.CurrentAndNextPrice(context.Background(), time.Date(2024, 6, 5, 12, 0, 0, 0, madrid(t)))
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestHourSet(t *testing.T) {
	s := Hours(1, 23)
	assert.True(t, s.Contains(1))
	assert.True(t, s.Contains(23))
	assert.False(t, s.Contains(2))
	assert.False(t, s.Contains(-1))
	assert.False(t, s.Contains(24))

	for h := 0; h < 24; h++ {
		assert.False(t, Mainland.P1.Contains(h) && Mainland.P2.Contains(h))
		assert.False(t, CeutaMelilla.P1.Contains(h) && CeutaMelilla.P2.Contains(h))
		if h >= 8 {
			assert.True(t, Mainland.P1.Contains(h) || Mainland.P2.Contains(h))
			assert.True(t, CeutaMelilla.P1.Contains(h) || CeutaMelilla.P2.Contains(h))
		}
	}
}
