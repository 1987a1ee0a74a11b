package storage

import (
	"context"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvpcnext/pvpcnext/pkg/types"
)

func TestNone(t *testing.T) {
	ctx := context.Background()
	var db Database = None{}

	require.NoError(t, db.SetSettings(ctx, types.Settings{Tariff: types.TariffCeutaMelilla}, types.CurrentSettingsVersion))
	settings, version, err := db.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, version)
	assert.Equal(t, types.Settings{}, settings)

	set := types.HolidaySet{civil.Date{Year: 2025, Month: time.January, Day: 1}: "Año Nuevo"}
	require.NoError(t, db.SetHolidaySet(ctx, 2025, types.HolidaySourceCSV, set))
	_, err = db.GetHolidaySet(ctx, 2025, types.HolidaySourceCSV)
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now()
	require.NoError(t, db.UpsertPrices(ctx, []types.Price{{TSStart: now, TSEnd: now.Add(time.Hour)}}))
	prices, err := db.GetPriceHistory(ctx, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, prices)

	assert.NoError(t, db.Close())
}
