package utility

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/civil"
	"github.com/levenlabs/go-lflag"

	"github.com/pvpcnext/pvpcnext/pkg/common"
	"github.com/pvpcnext/pvpcnext/pkg/log"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// ProviderESIOS is the name of the Red Eléctrica PVPC provider.
const ProviderESIOS = "esios"

// DefaultESIOSURL is the public ESIOS API.
const DefaultESIOSURL = "https://api.esios.ree.es"

// ErrNotPublished is returned when a day's prices are not available yet.
var ErrNotPublished = errors.New("prices not published")

// PVPC prices are published for the peninsular day in Madrid time.
var madridLocation = func() *time.Location {
	loc, err := time.LoadLocation("Europe/Madrid")
	if err != nil {
		panic(fmt.Errorf("failed to load madrid time location: %w", err))
	}
	return loc
}()

// ESIOS implements the Provider interface with the daily PVPC archive
// published by Red Eléctrica de España.
type ESIOS struct {
	apiURL string
	client *http.Client

	mu    sync.Mutex
	field string
	days  map[civil.Date][]types.Price
}

// NewESIOS creates an ESIOS provider for the mainland tariff.
func NewESIOS(apiURL string, client *http.Client) *ESIOS {
	return &ESIOS{
		apiURL: apiURL,
		client: client,
		field:  fieldForTariff(types.TariffMainland),
		days:   make(map[civil.Date][]types.Price),
	}
}

// configuredESIOS sets up flags for ESIOS and returns the instance.
func configuredESIOS() *ESIOS {
	e := NewESIOS(DefaultESIOSURL, nil)
	apiURL := lflag.String("esios-api-url", DefaultESIOSURL, "URL for the ESIOS API")
	timeout := lflag.Duration("esios-timeout", 10*time.Second, "Timeout for ESIOS requests")

	lflag.Do(func() {
		e.apiURL = *apiURL
		e.client = common.HTTPClientAccepting(*timeout, "application/json")
		if err := e.Validate(); err != nil {
			panic(fmt.Sprintf("invalid esios config: %v", err))
		}
	})

	return e
}

// Validate ensures the configuration is valid.
func (e *ESIOS) Validate() error {
	if e.apiURL == "" {
		return fmt.Errorf("esios-api-url is required")
	}
	u, err := url.Parse(e.apiURL)
	if err != nil {
		return fmt.Errorf("failed to parse esios url (%s): %w", e.apiURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("esios url must be an absolute http(s) url: %s", e.apiURL)
	}
	return nil
}

func fieldForTariff(tariff string) string {
	if types.NormalizeTariff(tariff) == types.TariffCeutaMelilla {
		return "CYM"
	}
	return "PCB"
}

// ApplySettings selects the price column of the configured tariff.
func (e *ESIOS) ApplySettings(ctx context.Context, settings types.Settings) error {
	field := fieldForTariff(settings.Tariff)
	e.mu.Lock()
	defer e.mu.Unlock()
	if field != e.field {
		log.Ctx(ctx).DebugContext(ctx, "esios tariff changed", slog.String("field", field))
		e.field = field
		e.days = make(map[civil.Date][]types.Price)
	}
	return nil
}

type esiosEntry struct {
	Day  string `json:"Dia"`
	Hour string `json:"Hora"`
	PCB  string `json:"PCB"`
	CYM  string `json:"CYM"`
}

type esiosResponse struct {
	PVPC []esiosEntry `json:"PVPC"`
}

// GetPrices returns the hourly prices of a Madrid calendar day. Complete days
// are kept in memory since published prices never change.
func (e *ESIOS) GetPrices(ctx context.Context, day civil.Date) ([]types.Price, error) {
	e.mu.Lock()
	if prices, ok := e.days[day]; ok {
		e.mu.Unlock()
		return prices, nil
	}
	field := e.field
	e.mu.Unlock()

	prices, err := e.fetchDay(ctx, day, field)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	if e.field == field && len(prices) >= 23 {
		e.days[day] = prices
	}
	e.mu.Unlock()

	return prices, nil
}

func (e *ESIOS) fetchDay(ctx context.Context, day civil.Date, field string) ([]types.Price, error) {
	u, err := url.Parse(strings.TrimRight(e.apiURL, "/") + "/archives/70/download_json")
	if err != nil {
		return nil, fmt.Errorf("invalid api url: %w", err)
	}
	params := url.Values{}
	params.Set("locale", "es")
	params.Set("date", day.String())
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	log.Ctx(ctx).DebugContext(ctx, "fetching prices from esios", slog.String("url", u.String()))

	client := e.client
	if client == nil {
		client = common.HTTPClientAccepting(10*time.Second, "application/json")
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to fetch prices", slog.Any("error", err))
		return nil, fmt.Errorf("failed to fetch prices: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotPublished, day)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("esios api returned status: %d", resp.StatusCode)
	}

	var data esiosResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode esios response", slog.Any("error", err))
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(data.PVPC) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotPublished, day)
	}

	prices, err := parseDay(ctx, day, field, data.PVPC)
	if err != nil {
		return nil, err
	}
	log.Ctx(ctx).DebugContext(
		ctx,
		"fetched esios prices",
		slog.String("day", day.String()),
		slog.String("field", field),
		slog.Int("count", len(prices)),
	)
	return prices, nil
}

// parseDay maps entry i onto local midnight plus i hours of absolute time so
// 23 and 25 hour days line up with the DST change.
func parseDay(ctx context.Context, day civil.Date, field string, entries []esiosEntry) ([]types.Price, error) {
	midnight := time.Date(day.Year, day.Month, day.Day, 0, 0, 0, 0, madridLocation)
	prices := make([]types.Price, 0, len(entries))
	for i, entry := range entries {
		raw := entry.PCB
		if field == "CYM" {
			raw = entry.CYM
		}
		perMWh, err := parseSpanishDecimal(raw)
		if err != nil {
			log.Ctx(ctx).WarnContext(
				ctx,
				"failed to parse esios price",
				slog.String("day", entry.Day),
				slog.String("hour", entry.Hour),
				slog.String("value", raw),
				slog.Any("error", err),
			)
			continue
		}
		start := midnight.Add(time.Duration(i) * time.Hour)
		prices = append(prices, types.Price{
			Provider:    ProviderESIOS,
			TSStart:     start.UTC(),
			TSEnd:       start.Add(time.Hour).UTC(),
			EurosPerKWH: perMWh / 1000,
		})
	}
	if len(prices) == 0 {
		return nil, fmt.Errorf("no valid %s prices for %s", field, day)
	}
	return prices, nil
}

// parseSpanishDecimal parses "1.234,56" style numbers.
func parseSpanishDecimal(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

// GetFuturePrices returns today's and, when published, tomorrow's prices.
func (e *ESIOS) GetFuturePrices(ctx context.Context, now time.Time) (types.PriceSeries, error) {
	today := civil.DateOf(now.In(madridLocation))
	prices, err := e.GetPrices(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("failed to get prices for %s: %w", today, err)
	}

	tomorrow, err := e.GetPrices(ctx, today.AddDays(1))
	switch {
	case errors.Is(err, ErrNotPublished):
		log.Ctx(ctx).DebugContext(ctx, "tomorrow's prices not published yet", slog.String("day", today.AddDays(1).String()))
	case err != nil:
		log.Ctx(ctx).WarnContext(ctx, "failed to get tomorrow's prices", slog.Any("error", err))
	default:
		prices = append(prices, tomorrow...)
	}

	return types.NewPriceSeries(prices), nil
}
