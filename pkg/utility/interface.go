package utility

import (
	"context"
	"time"

	"cloud.google.com/go/civil"

	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// Provider defines the interface for fetching PVPC energy prices.
type Provider interface {
	// GetPrices returns the hourly prices of a local calendar day.
	GetPrices(ctx context.Context, day civil.Date) ([]types.Price, error)

	// GetFuturePrices returns the prices of today and, once published,
	// tomorrow. Past hours of today are included so day ratios can be
	// computed over the whole day.
	GetFuturePrices(ctx context.Context, now time.Time) (types.PriceSeries, error)

	// ApplySettings updates the provider with the tariff settings.
	ApplySettings(ctx context.Context, settings types.Settings) error
}
