package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"computer-club-backend/internal/logging"
	"computer-club-backend/internal/metrics"
	"computer-club-backend/internal/model"
	"computer-club-backend/internal/parse"
	"computer-club-backend/internal/store"
)

// Store is the subset of persistence the reconciler needs.
type Store interface {
	DiscountsEndedBefore(ctx context.Context, t time.Time) ([]model.Discount, error)
	DeleteDiscount(ctx context.Context, id string) error
}

// Result summarizes one reconciliation pass.
type Result struct {
	Deleted []string
	Failed  map[string]error
}

// Service removes discounts whose validity has elapsed.
type Service struct {
	store    Store
	loc      *time.Location
	now      func() time.Time
	onDelete func(ctx context.Context, ids []string)
	log      zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// OnDelete registers a callback invoked after a pass deleted at least one discount.
func OnDelete(fn func(ctx context.Context, ids []string)) Option {
	return func(s *Service) { s.onDelete = fn }
}

// NewService creates a reconciler evaluating dates in loc.
func NewService(st Store, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.Local
	}
	s := &Service{
		store: st,
		loc:   loc,
		now:   time.Now,
		log:   logging.Component("reconciler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconcileOnce deletes every expired discount. A failed deletion is logged and does
// not stop the others; the returned error is only set when the candidates could not
// be loaded.
func (s *Service) ReconcileOnce(ctx context.Context) (Result, error) {
	started := time.Now()
	now := s.now().In(s.loc)
	res := Result{Failed: make(map[string]error)}

	ended, err := s.store.DiscountsEndedBefore(ctx, now)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load ended discounts")
		return res, err
	}

	for _, d := range ended {
		if !s.expired(d, now) {
			continue
		}
		err := s.store.DeleteDiscount(ctx, d.ID)
		switch {
		case err == nil, errors.Is(err, store.ErrNotFound):
			res.Deleted = append(res.Deleted, d.ID)
		default:
			s.log.Warn().Err(err).Str("discount_id", d.ID).Msg("failed to delete expired discount")
			res.Failed[d.ID] = err
		}
	}

	metrics.RecordReconcile(time.Since(started), len(res.Deleted), len(res.Failed))
	if len(res.Deleted) > 0 {
		s.log.Info().Int("deleted", len(res.Deleted)).Int("failed", len(res.Failed)).Msg("expired discounts removed")
		if s.onDelete != nil {
			s.onDelete(ctx, res.Deleted)
		}
	}
	return res, nil
}

// Run is ReconcileOnce shaped as a scheduled task.
func (s *Service) Run(ctx context.Context) error {
	_, err := s.ReconcileOnce(ctx)
	return err
}

// expired reports whether a discount whose end date is already behind now should go.
// On the end date itself a discount with a clock window stays until the window closes.
func (s *Service) expired(d model.Discount, now time.Time) bool {
	if d.SpecificPeriod == "" {
		return true
	}
	end := d.EndDate.In(s.loc)
	if !sameDay(end, now) {
		return true
	}
	period, err := parse.ParsePeriod(d.SpecificPeriod)
	if err != nil {
		s.log.Warn().Str("discount_id", d.ID).Str("period", d.SpecificPeriod).Msg("malformed period on ended discount")
		return true
	}
	return period.EndedBy(now)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
