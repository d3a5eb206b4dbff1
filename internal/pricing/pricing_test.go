package pricing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"computer-club-backend/internal/model"
	"computer-club-backend/internal/store"
)

var club = time.FixedZone("club", 3*60*60)

// fakeStore serves price tables and discounts from memory.
type fakeStore struct {
	mu          sync.Mutex
	tables      map[string]map[int]float64
	discounts   []model.Discount
	discountErr error
	tableReads  int
}

func (f *fakeStore) PriceTable(_ context.Context, zone string) (*model.PriceTable, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tableReads++
	prices, ok := f.tables[zone]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &model.PriceTable{Zone: zone, Prices: prices}, nil
}

func (f *fakeStore) PriceTables(_ context.Context) ([]model.PriceTable, error) {
	var out []model.PriceTable
	for _, zone := range []string{"PS", "Pro", "VIP"} {
		if prices, ok := f.tables[zone]; ok {
			out = append(out, model.PriceTable{Zone: zone, Prices: prices})
		}
	}
	return out, nil
}

func (f *fakeStore) ActiveDiscounts(_ context.Context, zone string, at time.Time) ([]model.Discount, error) {
	if f.discountErr != nil {
		return nil, f.discountErr
	}
	var out []model.Discount
	for _, d := range f.discounts {
		if (d.Zone == zone || d.Zone == model.AllZones) && !at.Before(d.StartDate) && !at.After(d.EndDate) {
			out = append(out, d)
		}
	}
	return out, nil
}

func standardTables() map[string]map[int]float64 {
	return map[string]map[int]float64{
		"Pro": {1: 80, 3: 225, 5: 350, 7: 450},
		"VIP": {1: 120, 3: 330},
	}
}

func newCalculator(fs *fakeStore, now time.Time) *Calculator {
	return NewCalculator(fs, NewResolver(fs, club), Options{
		Location: club,
		MinPrice: 1,
		Now:      func() time.Time { return now },
	})
}

func TestCalculator_TierSelection(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, club)
	calc := newCalculator(&fakeStore{tables: standardTables()}, now)

	testCases := []struct {
		name  string
		hours int
		want  float64
	}{
		{name: "exact tier", hours: 1, want: 80},
		{name: "between tiers uses lower", hours: 2, want: 80},
		{name: "between upper tiers", hours: 4, want: 225},
		{name: "beyond largest tier", hours: 10, want: 450},
		{name: "below smallest tier", hours: 0, want: 80},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			price, err := calc.Price(context.Background(), "Pro", tc.hours, time.Time{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, price)
		})
	}
}

func TestCalculator_Discounts(t *testing.T) {
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, club)
	window := func(pct float64, zone, period string) model.Discount {
		return model.Discount{
			Zone:               zone,
			StartDate:          day.AddDate(0, 0, -1),
			EndDate:            day.AddDate(0, 0, 2),
			DiscountPercentage: pct,
			SpecificPeriod:     period,
		}
	}

	testCases := []struct {
		name      string
		discounts []model.Discount
		at        time.Time
		want      float64
	}{
		{
			name: "no discount",
			at:   day.Add(12 * time.Hour),
			want: 80,
		},
		{
			name:      "zone discount applies",
			discounts: []model.Discount{window(25, "Pro", "")},
			at:        day.Add(12 * time.Hour),
			want:      60,
		},
		{
			name:      "other zone discount ignored",
			discounts: []model.Discount{window(25, "VIP", "")},
			at:        day.Add(12 * time.Hour),
			want:      80,
		},
		{
			name:      "highest percentage wins without stacking",
			discounts: []model.Discount{window(10, "Pro", ""), window(50, model.AllZones, ""), window(20, "Pro", "")},
			at:        day.Add(12 * time.Hour),
			want:      40,
		},
		{
			name:      "period discount outside its window",
			discounts: []model.Discount{window(50, "Pro", "18:00-22:00")},
			at:        day.Add(10 * time.Hour),
			want:      80,
		},
		{
			name:      "period discount inside its window",
			discounts: []model.Discount{window(50, "Pro", "18:00-22:00")},
			at:        day.Add(19 * time.Hour),
			want:      40,
		},
		{
			name:      "period end is inclusive",
			discounts: []model.Discount{window(50, "Pro", "18:00-22:00")},
			at:        day.Add(22 * time.Hour),
			want:      40,
		},
		{
			name:      "full discount floors at minimum price",
			discounts: []model.Discount{window(100, "Pro", "")},
			at:        day.Add(12 * time.Hour),
			want:      1,
		},
		{
			name:      "rounded to cents",
			discounts: []model.Discount{window(33.333, "Pro", "")},
			at:        day.Add(12 * time.Hour),
			want:      53.33,
		},
		{
			name:      "malformed period is skipped",
			discounts: []model.Discount{window(50, "Pro", "evening"), window(10, "Pro", "")},
			at:        day.Add(19 * time.Hour),
			want:      72,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := &fakeStore{tables: standardTables(), discounts: tc.discounts}
			calc := newCalculator(fs, tc.at)
			price, err := calc.Price(context.Background(), "Pro", 1, tc.at)
			require.NoError(t, err)
			assert.Equal(t, tc.want, price)
		})
	}
}

func TestCalculator_NeverBelowMinimum(t *testing.T) {
	day := time.Date(2025, 6, 10, 12, 0, 0, 0, club)
	for pct := 0.0; pct <= 100; pct += 12.5 {
		fs := &fakeStore{
			tables: map[string]map[int]float64{"Pro": {1: 0.5, 2: 80}},
			discounts: []model.Discount{{
				Zone: "Pro", StartDate: day.Add(-time.Hour), EndDate: day.Add(time.Hour), DiscountPercentage: pct,
			}},
		}
		calc := newCalculator(fs, day)
		for _, hours := range []int{1, 2} {
			price, err := calc.Price(context.Background(), "Pro", hours, day)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, price, 1.0)
		}
	}
}

func TestCalculator_MissingZone(t *testing.T) {
	calc := newCalculator(&fakeStore{tables: standardTables()}, time.Now())
	price, err := calc.Price(context.Background(), "Arena", 3, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, price)
}

func TestCalculator_ResolverFailure(t *testing.T) {
	fs := &fakeStore{tables: standardTables(), discountErr: errors.New("connection reset")}
	calc := newCalculator(fs, time.Now())
	_, err := calc.Price(context.Background(), "Pro", 1, time.Time{})
	assert.Error(t, err)
}

func TestCalculator_CacheAndInvalidate(t *testing.T) {
	at := time.Date(2025, 6, 10, 19, 0, 0, 0, club)
	fs := &fakeStore{tables: standardTables()}
	calc := newCalculator(fs, at)
	ctx := context.Background()

	price, err := calc.Price(ctx, "Pro", 1, at)
	require.NoError(t, err)
	assert.Equal(t, 80.0, price)

	// Same minute in another timezone hits the cache.
	_, err = calc.Price(ctx, "Pro", 1, at.Add(30*time.Second).UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, fs.tableReads)
	assert.Equal(t, 1, calc.cache.Len())

	fs.discounts = []model.Discount{{
		Zone: "Pro", StartDate: at.Add(-time.Hour), EndDate: at.Add(time.Hour), DiscountPercentage: 50,
	}}
	price, err = calc.Price(ctx, "Pro", 1, at)
	require.NoError(t, err)
	assert.Equal(t, 80.0, price, "stale until invalidated")

	calc.Invalidate("local")
	assert.Equal(t, 0, calc.cache.Len())
	price, err = calc.Price(ctx, "Pro", 1, at)
	require.NoError(t, err)
	assert.Equal(t, 40.0, price)
}

func TestCalculator_CacheKeyedByTier(t *testing.T) {
	at := time.Date(2025, 6, 10, 19, 0, 0, 0, club)
	fs := &fakeStore{tables: map[string]map[int]float64{"PS": {1: 80}}}
	calc := newCalculator(fs, at)

	for _, hours := range []int{2, 4000, 1, 17} {
		price, err := calc.Price(context.Background(), "PS", hours, at)
		require.NoError(t, err)
		assert.Equal(t, 80.0, price)
	}
	assert.Equal(t, 1, calc.cache.Len())
	assert.Equal(t, 1, fs.tableReads)
}

func TestCalculator_DiscountEndingMidMinute(t *testing.T) {
	end := time.Date(2025, 6, 10, 12, 0, 30, 0, club)
	fs := &fakeStore{
		tables: standardTables(),
		discounts: []model.Discount{{
			Zone: "Pro", StartDate: end.Add(-time.Hour), EndDate: end, DiscountPercentage: 50,
		}},
	}
	calc := newCalculator(fs, end)
	ctx := context.Background()

	early, err := calc.Price(ctx, "Pro", 1, end.Add(-20*time.Second))
	require.NoError(t, err)
	late, err := calc.Price(ctx, "Pro", 1, end.Add(15*time.Second))
	require.NoError(t, err)
	assert.Equal(t, early, late)

	// Order of requests within the minute does not matter.
	calc.Invalidate("local")
	first, err := calc.Price(ctx, "Pro", 1, end.Add(15*time.Second))
	require.NoError(t, err)
	assert.Equal(t, early, first)

	next, err := calc.Price(ctx, "Pro", 1, end.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 80.0, next)
}

func TestCalculator_DynamicTable(t *testing.T) {
	at := time.Date(2025, 6, 10, 12, 0, 0, 0, club)
	fs := &fakeStore{
		tables: standardTables(),
		discounts: []model.Discount{{
			Zone: "VIP", StartDate: at.Add(-time.Hour), EndDate: at.Add(time.Hour), DiscountPercentage: 10,
		}},
	}
	calc := newCalculator(fs, at)

	table, err := calc.DynamicTable(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, map[string]map[int]float64{
		"Pro": {1: 80, 3: 225, 5: 350, 7: 450},
		"VIP": {1: 108, 3: 297},
	}, table)
}

func TestCalculator_Tiers(t *testing.T) {
	calc := newCalculator(&fakeStore{tables: standardTables()}, time.Now())
	tiers, err := calc.Tiers(context.Background(), "Pro")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5, 7}, tiers)

	_, err = calc.Tiers(context.Background(), "Arena")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSnapTier(t *testing.T) {
	tiers := []int{1, 3, 5, 7}
	testCases := []struct {
		name  string
		hours float64
		want  int
	}{
		{name: "exact", hours: 3, want: 3},
		{name: "nearest below", hours: 3.6, want: 3},
		{name: "nearest above", hours: 4.4, want: 5},
		{name: "tie goes to shorter tier", hours: 2, want: 1},
		{name: "beyond largest", hours: 12, want: 7},
		{name: "zero", hours: 0, want: 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := SnapTier(tiers, tc.hours)
			require.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}

	_, ok := SnapTier(nil, 2)
	assert.False(t, ok)
}

func TestResolver_TieKeepsFirst(t *testing.T) {
	at := time.Date(2025, 6, 10, 12, 0, 0, 0, club)
	fs := &fakeStore{discounts: []model.Discount{
		{ID: "first", Zone: "Pro", StartDate: at.Add(-2 * time.Hour), EndDate: at.Add(time.Hour), DiscountPercentage: 30},
		{ID: "second", Zone: model.AllZones, StartDate: at.Add(-time.Hour), EndDate: at.Add(time.Hour), DiscountPercentage: 30},
	}}
	r := NewResolver(fs, club)

	d, err := r.Resolve(context.Background(), "Pro", at)
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "first", d.ID)

	d, err = r.Resolve(context.Background(), "Pro", at.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestResolver_ConvertsToClubTime(t *testing.T) {
	day := time.Date(2025, 6, 10, 0, 0, 0, 0, club)
	fs := &fakeStore{discounts: []model.Discount{{
		ID: "evening", Zone: "Pro", StartDate: day, EndDate: day.AddDate(0, 0, 1), DiscountPercentage: 20,
		SpecificPeriod: "18:00-22:00",
	}}}
	r := NewResolver(fs, club)

	// 16:30 UTC is 19:30 at the club.
	d, err := r.Resolve(context.Background(), "Pro", time.Date(2025, 6, 10, 16, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, "evening", d.ID)
}
