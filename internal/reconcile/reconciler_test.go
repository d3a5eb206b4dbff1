package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"computer-club-backend/internal/model"
	"computer-club-backend/internal/store"
)

var club = time.FixedZone("club", 3*60*60)

type mockStore struct {
	mu        sync.Mutex
	discounts map[string]model.Discount
	failOn    map[string]bool
	loadErr   error
}

func newMockStore(ds ...model.Discount) *mockStore {
	m := &mockStore{discounts: make(map[string]model.Discount), failOn: make(map[string]bool)}
	for _, d := range ds {
		m.discounts[d.ID] = d
	}
	return m
}

func (m *mockStore) DiscountsEndedBefore(_ context.Context, t time.Time) ([]model.Discount, error) {
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Discount
	for _, d := range m.discounts {
		if d.EndDate.Before(t) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *mockStore) DeleteDiscount(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn[id] {
		return errors.New("write conflict")
	}
	if _, ok := m.discounts[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.discounts, id)
	return nil
}

func (m *mockStore) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.discounts[id]
	return ok
}

func TestReconcileOnce(t *testing.T) {
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, club)

	testCases := []struct {
		name     string
		discount model.Discount
		now      time.Time
		wantGone bool
	}{
		{
			name:     "ended yesterday is deleted",
			discount: model.Discount{ID: "d", Zone: "Pro", StartDate: today.AddDate(0, 0, -5), EndDate: today.AddDate(0, 0, -1)},
			now:      today.Add(12 * time.Hour),
			wantGone: true,
		},
		{
			name:     "ends tomorrow is kept",
			discount: model.Discount{ID: "d", Zone: "Pro", StartDate: today.AddDate(0, 0, -5), EndDate: today.AddDate(0, 0, 1)},
			now:      today.Add(12 * time.Hour),
			wantGone: false,
		},
		{
			name: "last day before window end is kept",
			discount: model.Discount{ID: "d", Zone: "Pro", StartDate: today.AddDate(0, 0, -5), EndDate: today,
				SpecificPeriod: "18:00-20:00"},
			now:      today.Add(19 * time.Hour),
			wantGone: false,
		},
		{
			name: "last day at window end is kept",
			discount: model.Discount{ID: "d", Zone: "Pro", StartDate: today.AddDate(0, 0, -5), EndDate: today,
				SpecificPeriod: "18:00-20:00"},
			now:      today.Add(20 * time.Hour),
			wantGone: false,
		},
		{
			name: "last day after window end is deleted",
			discount: model.Discount{ID: "d", Zone: "Pro", StartDate: today.AddDate(0, 0, -5), EndDate: today,
				SpecificPeriod: "18:00-20:00"},
			now:      today.Add(20*time.Hour + time.Minute),
			wantGone: true,
		},
		{
			name: "window discount ended on an earlier day is deleted",
			discount: model.Discount{ID: "d", Zone: "Pro", StartDate: today.AddDate(0, 0, -5), EndDate: today.AddDate(0, 0, -1),
				SpecificPeriod: "18:00-20:00"},
			now:      today.Add(9 * time.Hour),
			wantGone: true,
		},
		{
			name: "end date compared in club time",
			// 22:30 UTC on the 9th is 01:30 on the 10th at the club.
			discount: model.Discount{ID: "d", Zone: "Pro", StartDate: today.AddDate(0, 0, -5),
				EndDate: time.Date(2025, 6, 9, 22, 30, 0, 0, time.UTC), SpecificPeriod: "18:00-20:00"},
			now:      today.Add(19 * time.Hour),
			wantGone: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ms := newMockStore(tc.discount)
			svc := NewService(ms, club, WithClock(func() time.Time { return tc.now }))

			_, err := svc.ReconcileOnce(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.wantGone, !ms.has("d"))
		})
	}
}

func TestReconcileOnce_PartialFailure(t *testing.T) {
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, club)
	old := func(id string) model.Discount {
		return model.Discount{ID: id, Zone: "Pro", StartDate: today.AddDate(0, 0, -5), EndDate: today.AddDate(0, 0, -1)}
	}
	ms := newMockStore(old("a"), old("b"), old("c"))
	ms.failOn["b"] = true

	var notified []string
	svc := NewService(ms, club,
		WithClock(func() time.Time { return today.Add(time.Hour) }),
		OnDelete(func(_ context.Context, ids []string) { notified = ids }),
	)

	res, err := svc.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, res.Deleted)
	assert.Contains(t, res.Failed, "b")
	assert.Equal(t, []string{"a", "c"}, notified)
	assert.True(t, ms.has("b"))

	// Idempotent: the next pass only retries what is left.
	ms.failOn["b"] = false
	res, err = svc.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, res.Deleted)

	res, err = svc.ReconcileOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Deleted)
}

func TestReconcileOnce_LoadError(t *testing.T) {
	ms := newMockStore()
	ms.loadErr = errors.New("connection refused")
	svc := NewService(ms, club)

	err := svc.Run(context.Background())
	assert.Error(t, err)
}
