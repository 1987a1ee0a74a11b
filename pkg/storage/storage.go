package storage

import (
	"context"
	"errors"
	"time"

	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// Database defines the interface for persisting settings, holiday sets and
// prices.
type Database interface {
	// Settings
	GetSettings(ctx context.Context) (types.Settings, int, error)
	SetSettings(ctx context.Context, settings types.Settings, version int) error

	// Holidays
	GetHolidaySet(ctx context.Context, year int, source string) (types.HolidaySet, error)
	SetHolidaySet(ctx context.Context, year int, source string, set types.HolidaySet) error

	// Prices
	// UpsertPrices adds or updates price records keyed by their start.
	UpsertPrices(ctx context.Context, prices []types.Price) error
	GetPriceHistory(ctx context.Context, start, end time.Time) ([]types.Price, error)

	// Lifecycle
	Close() error
}
