package utility

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
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

// esiosDay renders an archive response with hours entries where PCB is
// 100+i €/MWh and CYM is 200+i €/MWh.
func esiosDay(day civil.Date, hours int) string {
	var entries []string
	for i := 0; i < hours; i++ {
		entries = append(entries, fmt.Sprintf(
			`{"Dia":"%02d/%02d/%04d","Hora":"%02d-%02d","PCB":"%d,50","CYM":"%d,25"}`,
			day.Day, day.Month, day.Year, i, i+1, 100+i, 200+i,
		))
	}
	return `{"PVPC":[` + strings.Join(entries, ",") + `]}`
}

func newESIOSServer(t *testing.T, days map[string]string, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		assert.Equal(t, "/archives/70/download_json", r.URL.Path)
		assert.Equal(t, "es", r.URL.Query().Get("locale"))
		body, ok := days[r.URL.Query().Get("date")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestESIOSGetPrices(t *testing.T) {
	day := civil.Date{Year: 2024, Month: time.November, Day: 4}
	var requests atomic.Int32
	ts := newESIOSServer(t, map[string]string{"2024-11-04": esiosDay(day, 24)}, &requests)
	e := NewESIOS(ts.URL, ts.Client())
	ctx := context.Background()

	prices, err := e.GetPrices(ctx, day)
	require.NoError(t, err)
	require.Len(t, prices, 24)

	// Madrid is UTC+1 in November
	assert.Equal(t, time.Date(2024, 11, 3, 23, 0, 0, 0, time.UTC), prices[0].TSStart)
	assert.Equal(t, time.Date(2024, 11, 4, 0, 0, 0, 0, time.UTC), prices[0].TSEnd)
	assert.InDelta(t, 0.1005, prices[0].EurosPerKWH, 1e-9)
	assert.InDelta(t, 0.1235, prices[23].EurosPerKWH, 1e-9)
	assert.Equal(t, ProviderESIOS, prices[0].Provider)

	_, err = e.GetPrices(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load(), "expected cached day")
}

func TestESIOSCeutaMelilla(t *testing.T) {
	day := civil.Date{Year: 2024, Month: time.November, Day: 4}
	var requests atomic.Int32
	ts := newESIOSServer(t, map[string]string{"2024-11-04": esiosDay(day, 24)}, &requests)
	e := NewESIOS(ts.URL, ts.Client())
	ctx := context.Background()

	_, err := e.GetPrices(ctx, day)
	require.NoError(t, err)

	require.NoError(t, e.ApplySettings(ctx, types.Settings{Tariff: types.TariffCeutaMelilla}))
	prices, err := e.GetPrices(ctx, day)
	require.NoError(t, err)
	assert.InDelta(t, 0.20025, prices[0].EurosPerKWH, 1e-9)
	assert.Equal(t, int32(2), requests.Load(), "tariff change clears cache")
}

func TestESIOSDSTDays(t *testing.T) {
	spring := civil.Date{Year: 2024, Month: time.March, Day: 31}
	autumn := civil.Date{Year: 2024, Month: time.October, Day: 27}
	ts := newESIOSServer(t, map[string]string{
		"2024-03-31": esiosDay(spring, 23),
		"2024-10-27": esiosDay(autumn, 25),
	}, nil)
	e := NewESIOS(ts.URL, ts.Client())
	ctx := context.Background()

	prices, err := e.GetPrices(ctx, spring)
	require.NoError(t, err)
	require.Len(t, prices, 23)
	// the last entry starts at 23:00 CEST
	assert.Equal(t, time.Date(2024, 3, 31, 21, 0, 0, 0, time.UTC), prices[22].TSStart)

	prices, err = e.GetPrices(ctx, autumn)
	require.NoError(t, err)
	require.Len(t, prices, 25)
	assert.Equal(t, time.Date(2024, 10, 26, 22, 0, 0, 0, time.UTC), prices[0].TSStart)
	assert.Equal(t, time.Date(2024, 10, 27, 22, 0, 0, 0, time.UTC), prices[24].TSStart)
}

func TestESIOSNotPublished(t *testing.T) {
	ts := newESIOSServer(t, map[string]string{"2024-11-05": `{"PVPC":[]}`}, nil)
	e := NewESIOS(ts.URL, ts.Client())

	_, err := e.GetPrices(context.Background(), civil.Date{Year: 2024, Month: time.November, Day: 4})
	assert.ErrorIs(t, err, ErrNotPublished)
	_, err = e.GetPrices(context.Background(), civil.Date{Year: 2024, Month: time.November, Day: 5})
	assert.ErrorIs(t, err, ErrNotPublished)
}

func TestESIOSBadRows(t *testing.T) {
	body := `{"PVPC":[
		{"Dia":"04/11/2024","Hora":"00-01","PCB":"1.100,00"},
		{"Dia":"04/11/2024","Hora":"01-02","PCB":"n/a"},
		{"Dia":"04/11/2024","Hora":"02-03","PCB":"90,5"}
	]}`
	ts := newESIOSServer(t, map[string]string{"2024-11-04": body}, nil)
	e := NewESIOS(ts.URL, ts.Client())

	prices, err := e.GetPrices(context.Background(), civil.Date{Year: 2024, Month: time.November, Day: 4})
	require.NoError(t, err)
	require.Len(t, prices, 2)
	assert.InDelta(t, 1.1, prices[0].EurosPerKWH, 1e-9)
	// position in the list sets the hour even when a row is skipped
	assert.Equal(t, time.Date(2024, 11, 4, 1, 0, 0, 0, time.UTC), prices[1].TSStart)
	assert.InDelta(t, 0.0905, prices[1].EurosPerKWH, 1e-9)
}

func TestESIOSServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()
	e := NewESIOS(ts.URL, ts.Client())
	_, err := e.GetPrices(context.Background(), civil.Date{Year: 2024, Month: time.November, Day: 4})
	assert.ErrorContains(t, err, "status: 502")
}

func TestESIOSGetFuturePrices(t *testing.T) {
	today := civil.Date{Year: 2024, Month: time.November, Day: 4}
	tomorrow := today.AddDays(1)
	now := time.Date(2024, 11, 4, 12, 0, 0, 0, madridLocation)

	t.Run("TodayOnly", func(t *testing.T) {
		ts := newESIOSServer(t, map[string]string{"2024-11-04": esiosDay(today, 24)}, nil)
		e := NewESIOS(ts.URL, ts.Client())
		series, err := e.GetFuturePrices(context.Background(), now)
		require.NoError(t, err)
		assert.Len(t, series, 24)
		p, ok := series.Get(now)
		require.True(t, ok)
		assert.InDelta(t, 0.1125, p, 1e-9)
	})

	t.Run("TodayAndTomorrow", func(t *testing.T) {
		ts := newESIOSServer(t, map[string]string{
			"2024-11-04": esiosDay(today, 24),
			"2024-11-05": esiosDay(tomorrow, 24),
		}, nil)
		e := NewESIOS(ts.URL, ts.Client())
		series, err := e.GetFuturePrices(context.Background(), now)
		require.NoError(t, err)
		assert.Len(t, series, 48)
	})

	t.Run("TodayMissing", func(t *testing.T) {
		ts := newESIOSServer(t, map[string]string{}, nil)
		e := NewESIOS(ts.URL, ts.Client())
		_, err := e.GetFuturePrices(context.Background(), now)
		assert.ErrorIs(t, err, ErrNotPublished)
	})
}

func TestParseSpanishDecimal(t *testing.T) {
	tests := map[string]float64{
		"133,61":  133.61,
		"1.234,5": 1234.5,
		" 98 ":    98,
		"0,001":   0.001,
		"12.345":  12345,
		"-4,20":   -4.2,
	}
	for in, want := range tests {
		got, err := parseSpanishDecimal(in)
		require.NoError(t, err, in)
		assert.InDelta(t, want, got, 1e-9, in)
	}
	_, err := parseSpanishDecimal("")
	assert.Error(t, err)
	_, err = parseSpanishDecimal("abc")
	assert.Error(t, err)
}

func TestMap(t *testing.T) {
	m := NewMap()
	_, err := m.Provider(ProviderESIOS)
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.Empty(t, m.Names())

	e := NewESIOS("http://example.com", nil)
	m.SetProvider(ProviderESIOS, e)
	p, err := m.Provider(ProviderESIOS)
	require.NoError(t, err)
	assert.Same(t, e, p)
	assert.Equal(t, []string{ProviderESIOS}, m.Names())
	require.NoError(t, e.Validate())
	assert.Error(t, NewESIOS("", nil).Validate())
	assert.Error(t, NewESIOS("api.esios.ree.es/archives", nil).Validate())
	assert.Error(t, NewESIOS("ftp://api.esios.ree.es", nil).Validate())
	assert.Error(t, NewESIOS("http://%zz", nil).Validate())
}
