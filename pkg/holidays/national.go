package holidays

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/es"

	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// NationalHolidayProvider returns the statutory holidays of a country for a
// year as date to name.
type NationalHolidayProvider interface {
	NationalHolidays(ctx context.Context, country string, year int) (map[civil.Date]string, error)
}

// CalendarProvider resolves national holidays from the rickar/cal tables.
type CalendarProvider struct{}

var countryHolidays = map[string][]*cal.Holiday{
	"ES": es.Holidays,
}

// NationalHolidays implements NationalHolidayProvider.
func (CalendarProvider) NationalHolidays(ctx context.Context, country string, year int) (map[civil.Date]string, error) {
	hols, ok := countryHolidays[country]
	if !ok {
		return nil, fmt.Errorf("no holiday table for country %q", country)
	}
	days := make(map[civil.Date]string, len(hols))
	for _, h := range hols {
		// Calc returns zero times when the holiday doesn't apply to the year
		actual, _ := h.Calc(year)
		if actual.IsZero() {
			continue
		}
		days[civil.DateOf(actual)] = h.Name
	}
	return days, nil
}

// NationalSource loads Spain's national holidays from a
// NationalHolidayProvider.
type NationalSource struct {
	provider NationalHolidayProvider
}

// Kind implements Source.
func (s *NationalSource) Kind() string {
	return types.HolidaySourceNational
}

// Load implements Source.
func (s *NationalSource) Load(ctx context.Context, year int) ([]types.HolidayRecord, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("%w: national holiday provider unavailable", ErrDataSource)
	}
	days, err := s.provider.NationalHolidays(ctx, "ES", year)
	if err != nil {
		return nil, fmt.Errorf("%w: national holiday provider failed: %w", ErrDataSource, err)
	}

	dates := make([]civil.Date, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool {
		return dates[i].Before(dates[j])
	})

	records := make([]types.HolidayRecord, 0, len(dates))
	for _, d := range dates {
		sourceName := days[d]
		record := types.HolidayRecord{
			Day:         d,
			Description: CanonicalName(sourceName),
			HolidayType: "Nacional",
		}
		records = append(records, record)
		logRecord(ctx, "national holiday found", record, sourceName)
	}

	if len(records) == 0 {
		log.Ctx(ctx).ErrorContext(ctx, "no national holidays found", slog.Int("year", year))
		return nil, fmt.Errorf("%w: no national holidays found for year %d", ErrDataSource, year)
	}
	return records, nil
}
