package holidays

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"cloud.google.com/go/civil"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

const (
	colDate        = "FECHA"
	colDescription = "DESCRIPCION"
	colType        = "TIPO"
	colProvince    = "PROVINCIA"
	colLocality    = "LOCALIDAD"

	csvDateLayout = "02-01-2006"
)

var requiredColumns = []string{colDate, colDescription, colType, colProvince, colLocality}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVSource downloads the holiday calendar as CSV. The URL may contain a
// {year} placeholder.
type CSVSource struct {
	url    string
	client *http.Client
}

// Kind implements Source.
func (s *CSVSource) Kind() string {
	return types.HolidaySourceCSV
}

// URL returns the feed URL resolved for the year.
func (s *CSVSource) URL(year int) string {
	return strings.ReplaceAll(s.url, "{year}", strconv.Itoa(year))
}

// Load implements Source.
func (s *CSVSource) Load(ctx context.Context, year int) ([]types.HolidayRecord, error) {
	text, err := s.download(ctx, year)
	if err != nil {
		return nil, err
	}
	return ParseCSV(ctx, text)
}

func (s *CSVSource) download(ctx context.Context, year int) (string, error) {
	u := s.URL(year)
	log.Ctx(ctx).DebugContext(ctx, "downloading holiday csv", slog.String("url", u))

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %w", ErrDataSource, err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "holiday csv download failed", slog.Any("error", err))
		return "", fmt.Errorf("%w: csv download failed: %w", ErrDataSource, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: csv download returned status: %d", ErrDataSource, resp.StatusCode)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read csv body: %w", ErrDataSource, err)
	}

	var charset string
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Type")); err == nil {
		charset = params["charset"]
	}
	text := decodePayload(payload, charset)
	log.Ctx(ctx).DebugContext(ctx, "holiday csv downloaded", slog.Int("characters", utf8.RuneCountInString(text)))
	return text, nil
}

// decodePayload tries the declared charset, then UTF-8 (with or without BOM),
// then Latin-1. It never fails.
func decodePayload(payload []byte, charset string) string {
	if charset != "" {
		if text, ok := decodeCharset(payload, charset); ok {
			return text
		}
	}
	if trimmed := bytes.TrimPrefix(payload, utf8BOM); utf8.Valid(trimmed) {
		return string(trimmed)
	}
	if text, err := charmap.ISO8859_1.NewDecoder().Bytes(payload); err == nil {
		return string(text)
	}
	return strings.ToValidUTF8(string(payload), "\ufffd")
}

func decodeCharset(payload []byte, charset string) (string, bool) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return "", false
	}
	name, _ := htmlindex.Name(enc)
	if name == "utf-8" {
		trimmed := bytes.TrimPrefix(payload, utf8BOM)
		if !utf8.Valid(trimmed) {
			return "", false
		}
		return string(trimmed), true
	}
	text, err := enc.NewDecoder().Bytes(payload)
	if err != nil {
		return "", false
	}
	return string(text), true
}

// ParseCSV parses the holiday calendar export. Rows without a date or a
// description, or with an unparseable date, are logged and skipped.
func ParseCSV(ctx context.Context, text string) ([]types.HolidayRecord, error) {
	text = strings.TrimPrefix(text, "\ufeff")

	reader := csv.NewReader(strings.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	if firstLine, _, _ := strings.Cut(text, "\n"); !strings.Contains(firstLine, ",") && strings.Contains(firstLine, ";") {
		reader.Comma = ';'
	}

	header, err := reader.Read()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: failed to read csv header: %w", ErrDataSource, err)
	}
	colMap := make(map[string]int, len(header))
	for i, name := range header {
		colMap[strings.ToUpper(strings.TrimSpace(name))] = i
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := colMap[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		log.Ctx(ctx).ErrorContext(ctx, "holiday csv header is incomplete", slog.Any("missing", missing))
		return nil, fmt.Errorf("%w: csv header is incomplete, missing: %s", ErrDataSource, strings.Join(missing, ", "))
	}

	field := func(row []string, name string) string {
		i := colMap[name]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var records []types.HolidayRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "holiday csv line discarded: parse error", slog.Int("line", line), slog.Any("error", err))
			continue
		}

		rawDate := field(row, colDate)
		sourceName := field(row, colDescription)
		if rawDate == "" || sourceName == "" {
			log.Ctx(ctx).ErrorContext(
				ctx,
				"holiday csv line discarded: FECHA or DESCRIPCION is missing",
				slog.Int("line", line),
				slog.String("fecha", rawDate),
				slog.String("descripcion", sourceName),
			)
			continue
		}

		parsed, err := time.Parse(csvDateLayout, rawDate)
		if err != nil {
			log.Ctx(ctx).ErrorContext(
				ctx,
				"holiday csv line discarded: invalid date format",
				slog.Int("line", line),
				slog.String("fecha", rawDate),
			)
			continue
		}

		record := types.HolidayRecord{
			Day:         civil.DateOf(parsed),
			Description: CanonicalName(sourceName),
			HolidayType: field(row, colType),
			Province:    field(row, colProvince),
			Locality:    field(row, colLocality),
		}
		records = append(records, record)
		logRecord(ctx, "csv holiday found", record, sourceName)
	}

	if len(records) == 0 {
		log.Ctx(ctx).ErrorContext(ctx, "no valid holidays found in csv")
		return nil, fmt.Errorf("%w: no valid holidays found in csv", ErrDataSource)
	}
	return records, nil
}
