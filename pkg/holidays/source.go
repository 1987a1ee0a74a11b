package holidays

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pvpcnext/pvpcnext/pkg/common"
	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// DefaultCSVURL is the Spanish social security holiday calendar export.
const DefaultCSVURL = "https://www.seg-social.es/wps/PA_POINCALAB/CalendarioServlet?exportacion=CSV&tipo=2"

// DefaultTimeout bounds the CSV download.
const DefaultTimeout = 20 * time.Second

var (
	// ErrDataSource is wrapped by every error caused by a holiday source
	// failing to produce a usable dataset.
	ErrDataSource = errors.New("holiday data source error")

	// ErrUnknownSource is returned when constructing a source from an
	// unsupported identifier.
	ErrUnknownSource = fmt.Errorf("%w: unknown source", ErrDataSource)

	// ErrNotPublished is returned when a source answers with a calendar that
	// has no entries for the requested year, as a feed without a {year}
	// placeholder does until the new calendar is out.
	ErrNotPublished = fmt.Errorf("%w: calendar not published", ErrDataSource)
)

// Source loads the raw holiday records of a year.
type Source interface {
	// Kind is the identifier of the source, used as part of cache keys.
	Kind() string
	// Load fetches and parses the records of the year.
	Load(ctx context.Context, year int) ([]types.HolidayRecord, error)
}

// Options configures the sources built by NewSource.
type Options struct {
	CSVURL   string
	Timeout  time.Duration
	Client   *http.Client
	National NationalHolidayProvider
}

// NewSource builds the source for a holiday source identifier. Unknown
// identifiers fail here instead of at load time.
func NewSource(kind string, opts Options) (Source, error) {
	switch kind {
	case types.HolidaySourceCSV:
		url := opts.CSVURL
		if url == "" {
			url = DefaultCSVURL
		}
		client := opts.Client
		if client == nil {
			timeout := opts.Timeout
			if timeout <= 0 {
				timeout = DefaultTimeout
			}
			client = common.HTTPClientAccepting(timeout, "text/csv,*/*;q=0.8")
		}
		return &CSVSource{url: url, client: client}, nil
	case types.HolidaySourceNational:
		national := opts.National
		if national == nil {
			national = CalendarProvider{}
		}
		return &NationalSource{provider: national}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, kind)
	}
}

// LoadRecords loads the records of a year from src, logging the selection.
func LoadRecords(ctx context.Context, src Source, year int) ([]types.HolidayRecord, error) {
	return loadRecords(ctx, src, year, "full")
}

// Warmup loads the records of a year to check the source is usable and
// returns how many records it produced.
func Warmup(ctx context.Context, src Source, year int) (int, error) {
	records, err := loadRecords(ctx, src, year, "warmup")
	if err != nil {
		return 0, err
	}
	log.Ctx(ctx).InfoContext(
		ctx,
		"holiday source warmup completed",
		slog.String("source", src.Kind()),
		slog.Int("year", year),
		slog.Int("recordCount", len(records)),
	)
	return len(records), nil
}

func loadRecords(ctx context.Context, src Source, year int, mode string) ([]types.HolidayRecord, error) {
	log.Ctx(ctx).InfoContext(
		ctx,
		"holiday source selected",
		slog.String("source", src.Kind()),
		slog.Int("year", year),
		slog.String("mode", mode),
	)
	records, err := src.Load(ctx, year)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"loaded holiday records",
		slog.String("source", src.Kind()),
		slog.Int("year", year),
		slog.Int("count", len(records)),
		slog.String("mode", mode),
	)
	return records, nil
}

func logRecord(ctx context.Context, msg string, record types.HolidayRecord, sourceName string) {
	attrs := []any{
		slog.String("day", record.Day.String()),
		slog.String("description", record.Description),
		slog.String("type", orDash(record.HolidayType)),
		slog.String("province", orDash(record.Province)),
		slog.String("locality", orDash(record.Locality)),
	}
	if record.Description != sourceName {
		attrs = append(attrs, slog.String("mappedFrom", sourceName))
	}
	log.Ctx(ctx).DebugContext(ctx, msg, attrs...)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
