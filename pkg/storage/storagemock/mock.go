package storagemock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/pvpcnext/pvpcnext/pkg/storage"
	"github.com/pvpcnext/pvpcnext/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetSettings(ctx context.Context) (types.Settings, int, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).(types.Settings), args.Int(1), args.Error(2)
	}
	return types.Settings{}, 0, nil
}

func (m *MockDatabase) SetSettings(ctx context.Context, settings types.Settings, version int) error {
	args := m.Called(ctx, settings, version)
	return args.Error(0)
}

func (m *MockDatabase) GetHolidaySet(ctx context.Context, year int, source string) (types.HolidaySet, error) {
	args := m.Called(ctx, year, source)
	if len(args) > 0 {
		set, _ := args.Get(0).(types.HolidaySet)
		return set, args.Error(1)
	}
	return nil, storage.ErrNotFound
}

func (m *MockDatabase) SetHolidaySet(ctx context.Context, year int, source string, set types.HolidaySet) error {
	args := m.Called(ctx, year, source, set)
	return args.Error(0)
}

func (m *MockDatabase) UpsertPrices(ctx context.Context, prices []types.Price) error {
	args := m.Called(ctx, prices)
	return args.Error(0)
}

func (m *MockDatabase) GetPriceHistory(ctx context.Context, start, end time.Time) ([]types.Price, error) {
	args := m.Called(ctx, start, end)
	if len(args) > 0 {
		prices, _ := args.Get(0).([]types.Price)
		return prices, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	if len(args) > 0 {
		return args.Error(0)
	}
	return nil
}
