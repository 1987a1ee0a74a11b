package storage

import (
	"context"
	"time"

	"github.com/pvpcnext/pvpcnext/pkg/types"
)

// None is a Database that keeps nothing. Reads behave as if nothing was ever
// written.
type None struct{}

var _ Database = None{}

func (None) GetSettings(ctx context.Context) (types.Settings, int, error) {
	return types.Settings{}, 0, nil
}

func (None) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	return nil
}

func (None) GetHolidaySet(ctx context.Context, year int, source string) (types.HolidaySet, error) {
	return nil, ErrNotFound
}

func (None) SetHolidaySet(ctx context.Context, year int, source string, set types.HolidaySet) error {
	return nil
}

func (None) UpsertPrices(ctx context.Context, prices []types.Price) error {
	return nil
}

func (None) GetPriceHistory(ctx context.Context, start, end time.Time) ([]types.Price, error) {
	return nil, nil
}

func (None) Close() error {
	return nil
}
