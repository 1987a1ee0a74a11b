package holidays

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// FixedDate is a holiday that falls on the same day every year.
type FixedDate struct {
	Month       time.Month
	Day         int
	Description string
}

// On returns the date of the holiday in year.
func (f FixedDate) On(year int) civil.Date {
	return civil.Date{Year: year, Month: f.Month, Day: f.Day}
}

var (
	// FixedHolidays are added to every year's set.
	FixedHolidays = []FixedDate{
		{time.November, 1, "Todos los Santos"},
		{time.December, 6, "Día de la Constitución"},
	}

	// NextYearFixedHolidays are added to a year's set for the following
	// year, so classification keeps working in early January before that
	// year's calendar is published.
	NextYearFixedHolidays = []FixedDate{
		{time.January, 1, "Año Nuevo"},
		{time.January, 6, "Epifanía del Señor"},
	}
)

// Select applies the PVPC rules to raw holiday records of year: only
// weekdays of that year count, Good Friday never counts, the first record of
// a date wins, and the fixed dates of the year and the January dates of the
// next year are added when they are weekdays.
func Select(ctx context.Context, records []types.HolidayRecord, year int) types.HolidaySet {
	l := log.Ctx(ctx)
	sorted := make([]types.HolidayRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Day != sorted[j].Day {
			return sorted[i].Day.Before(sorted[j].Day)
		}
		return sorted[i].Description < sorted[j].Description
	})

	selected := make(types.HolidaySet)
	for _, r := range sorted {
		day := r.Day.String()
		switch {
		case r.Day.Year != year:
			l.DebugContext(ctx, "EXCLUDE holiday: different year", slog.String("day", day), slog.String("description", r.Description), slog.Int("year", year))
		case types.IsWeekend(r.Day):
			l.DebugContext(ctx, "EXCLUDE holiday: weekend", slog.String("day", day), slog.String("description", r.Description), slog.String("weekday", weekdayShort(r.Day)))
		case IsGoodFriday(r.Description):
			l.DebugContext(ctx, "EXCLUDE holiday: Viernes Santo is never a P3 holiday", slog.String("day", day), slog.String("description", r.Description))
		case selected.Contains(r.Day):
			l.DebugContext(ctx, "EXCLUDE holiday: duplicate date", slog.String("day", day), slog.String("description", r.Description), slog.String("existing", selected[r.Day]))
		default:
			selected[r.Day] = r.Description
			l.DebugContext(ctx, "INCLUDE holiday", slog.String("day", day), slog.String("description", r.Description))
		}
	}

	addFixed(ctx, selected, FixedHolidays, year, "fixed")
	addFixed(ctx, selected, NextYearFixedHolidays, year+1, "next-year fixed")

	if l.Enabled(ctx, slog.LevelDebug) {
		entries := make([]string, 0, len(selected))
		for _, e := range selected.Entries() {
			entries = append(entries, e.Day.String()+" - "+e.Description)
		}
		l.DebugContext(
			ctx,
			"final pvpc holiday list",
			slog.Int("year", year),
			slog.Int("nextYear", year+1),
			slog.Int("count", len(selected)),
			slog.Any("holidays", entries),
		)
	}
	return selected
}

// coversYear reports whether any record falls in year.
func coversYear(records []types.HolidayRecord, year int) bool {
	for _, r := range records {
		if r.Day.Year == year {
			return true
		}
	}
	return false
}

func addFixed(ctx context.Context, selected types.HolidaySet, fixed []FixedDate, year int, kind string) {
	l := log.Ctx(ctx)
	for _, f := range fixed {
		d := f.On(year)
		switch {
		case types.IsWeekend(d):
			l.DebugContext(ctx, "EXCLUDE holiday: "+kind+" date falls on weekend", slog.String("day", d.String()), slog.String("description", f.Description), slog.String("weekday", weekdayShort(d)))
		case selected.Contains(d):
			l.DebugContext(ctx, "KEEP holiday: "+kind+" date already present", slog.String("day", d.String()), slog.String("description", selected[d]))
		default:
			selected[d] = f.Description
			l.DebugContext(ctx, "INCLUDE holiday: "+kind+" date added", slog.String("day", d.String()), slog.String("description", f.Description))
		}
	}
}

// ProvisionalJanuary returns the holidays assumed for early January of year
// while its calendar is not yet published: January 1 and 6 on weekdays.
func ProvisionalJanuary(year int) types.HolidaySet {
	s := make(types.HolidaySet)
	for _, f := range NextYearFixedHolidays {
		d := f.On(year)
		if !types.IsWeekend(d) {
			s[d] = f.Description
		}
	}
	return s
}

func weekdayShort(d civil.Date) string {
	return d.In(time.UTC).Weekday().String()[:3]
}
