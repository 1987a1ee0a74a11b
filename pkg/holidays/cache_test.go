package holidays

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvpcnext/pvpcnext/pkg/types"
)

type countingSource struct {
	mu      sync.Mutex
	kind    string
	calls   map[int]int
	records []types.HolidayRecord
	err     error
}

func (s *countingSource) Kind() string {
	return s.kind
}

func (s *countingSource) Load(ctx context.Context, year int) ([]types.HolidayRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[int]int)
	}
	s.calls[year]++
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *countingSource) count(year int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[year]
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("memoizes per year and source", func(t *testing.T) {
		c := NewCache()
		csvSrc := &countingSource{kind: types.HolidaySourceCSV, records: records2024()}
		natSrc := &countingSource{kind: types.HolidaySourceNational, records: records2024()}

		s1, err := c.GetOrLoad(ctx, 2024, csvSrc)
		require.NoError(t, err)
		s2, err := c.GetOrLoad(ctx, 2024, csvSrc)
		require.NoError(t, err)
		assert.Equal(t, s1, s2)
		assert.Equal(t, 1, csvSrc.count(2024))

		_, err = c.GetOrLoad(ctx, 2024, natSrc)
		require.NoError(t, err)
		assert.Equal(t, 1, natSrc.count(2024))
		assert.Equal(t, 2, c.Len())
	})

	t.Run("failures are not cached", func(t *testing.T) {
		c := NewCache()
		src := &countingSource{kind: types.HolidaySourceCSV, err: ErrDataSource}

		_, err := c.GetOrLoad(ctx, 2025, src)
		assert.True(t, errors.Is(err, ErrDataSource))
		_, err = c.GetOrLoad(ctx, 2025, src)
		assert.Error(t, err)
		assert.Equal(t, 2, src.count(2025))
		assert.Equal(t, 0, c.Len())
	})

	t.Run("records of another year are not published", func(t *testing.T) {
		c := NewCache()
		src := &countingSource{kind: types.HolidaySourceCSV, records: records2024()}

		_, err := c.GetOrLoad(ctx, 2025, src)
		assert.ErrorIs(t, err, ErrNotPublished)
		assert.ErrorIs(t, err, ErrDataSource)
		_, ok := c.Get(2025, types.HolidaySourceCSV)
		assert.False(t, ok)

		_, err = c.GetOrLoad(ctx, 2025, src)
		assert.ErrorIs(t, err, ErrNotPublished)
		assert.Equal(t, 2, src.count(2025))

		src.mu.Lock()
		src.records = append(records2024(), types.HolidayRecord{
			Day:         date(2025, time.May, 1),
			Description: "Fiesta del Trabajo",
		})
		src.mu.Unlock()
		got, err := c.GetOrLoad(ctx, 2025, src)
		require.NoError(t, err)
		assert.True(t, got.Contains(date(2025, time.May, 1)))
		assert.False(t, got.Contains(date(2024, time.December, 25)))
	})

	t.Run("prime then invalidate", func(t *testing.T) {
		c := NewCache()
		src := &countingSource{kind: types.HolidaySourceCSV, records: records2024()}

		provisional := ProvisionalJanuary(2024)
		c.Prime(2024, types.HolidaySourceCSV, provisional)
		got, err := c.GetOrLoad(ctx, 2024, src)
		require.NoError(t, err)
		assert.Equal(t, provisional, got)
		assert.Equal(t, 0, src.count(2024))

		c.Invalidate(2024)
		_, ok := c.Get(2024, types.HolidaySourceCSV)
		assert.False(t, ok)

		got, err = c.GetOrLoad(ctx, 2024, src)
		require.NoError(t, err)
		assert.Len(t, got, 8)
		assert.Equal(t, 1, src.count(2024))
	})

	t.Run("invalidate only touches one year", func(t *testing.T) {
		c := NewCache()
		c.Prime(2024, types.HolidaySourceCSV, types.HolidaySet{})
		c.Prime(2024, types.HolidaySourceNational, types.HolidaySet{})
		c.Prime(2025, types.HolidaySourceCSV, types.HolidaySet{})

		c.Invalidate(2024)
		assert.Equal(t, 1, c.Len())
		_, ok := c.Get(2025, types.HolidaySourceCSV)
		assert.True(t, ok)

		c.InvalidateAll()
		assert.Equal(t, 0, c.Len())
	})

	t.Run("concurrent loads agree", func(t *testing.T) {
		c := NewCache()
		src := &countingSource{kind: types.HolidaySourceCSV, records: records2024()}

		var wg sync.WaitGroup
		results := make([]types.HolidaySet, 8)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s, err := c.GetOrLoad(ctx, 2024, src)
				assert.NoError(t, err)
				results[i] = s
			}(i)
		}
		wg.Wait()
		for _, s := range results {
			assert.Equal(t, results[0], s)
		}
		assert.GreaterOrEqual(t, src.count(2024), 1)
	})
}

func TestResolver(t *testing.T) {
	src := &countingSource{kind: types.HolidaySourceCSV, records: records2024()}
	r := NewResolver(nil, src)

	s, err := r.Holidays(context.Background(), 2024)
	require.NoError(t, err)
	assert.True(t, s.Contains(date(2024, time.December, 25)))
	assert.Equal(t, src, r.Source())
	assert.Equal(t, 1, r.Cache().Len())

	n, err := Warmup(context.Background(), src, 2024)
	require.NoError(t, err)
	assert.Equal(t, len(records2024()), n)

	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)
	assert.Equal(t, 2025, LocalYear(time.Date(2024, 12, 31, 23, 30, 0, 0, time.UTC), madrid))
}

func TestResolverWithSource(t *testing.T) {
	national := fakeNational{days: map[civil.Date]string{
		date(2024, time.December, 25): "Navidad",
	}}
	r, err := NewResolverForSource(nil, types.HolidaySourceNational, Options{National: national})
	require.NoError(t, err)

	same, err := r.WithSource(types.HolidaySourceNational)
	require.NoError(t, err)
	assert.Same(t, r, same)

	csv, err := r.WithSource(types.HolidaySourceCSV)
	require.NoError(t, err)
	assert.Equal(t, types.HolidaySourceCSV, csv.Source().Kind())
	assert.Same(t, r.Cache(), csv.Cache())

	_, err = r.WithSource("python")
	assert.ErrorIs(t, err, ErrUnknownSource)

	s, err := r.Holidays(context.Background(), 2024)
	require.NoError(t, err)
	assert.Equal(t, "Natividad del Señor", s[date(2024, time.December, 25)])
}
