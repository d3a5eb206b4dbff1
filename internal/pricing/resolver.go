package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"computer-club-backend/internal/logging"
	"computer-club-backend/internal/model"
	"computer-club-backend/internal/parse"
)

// DiscountSource returns the discounts whose date range covers a moment.
type DiscountSource interface {
	ActiveDiscounts(ctx context.Context, zone string, at time.Time) ([]model.Discount, error)
}

// Resolver picks the discount that applies to a zone at a point in time.
type Resolver struct {
	source DiscountSource
	loc    *time.Location
	log    zerolog.Logger
}

// NewResolver creates a resolver evaluating clock windows in loc.
func NewResolver(source DiscountSource, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	return &Resolver{source: source, loc: loc, log: logging.Component("resolver")}
}

// Resolve returns the applicable discount with the highest percentage, or nil when
// none applies. Equal percentages keep the candidate that comes first in start date,
// id order; discounts never stack.
func (r *Resolver) Resolve(ctx context.Context, zone string, at time.Time) (*model.Discount, error) {
	at = at.In(r.loc)

	candidates, err := r.source.ActiveDiscounts(ctx, zone, at)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve discount for zone %q: %w", zone, err)
	}

	var best *model.Discount
	for i := range candidates {
		d := &candidates[i]
		if !r.applies(d, zone, at) {
			continue
		}
		if best == nil || d.DiscountPercentage > best.DiscountPercentage {
			best = d
		}
	}
	return best, nil
}

func (r *Resolver) applies(d *model.Discount, zone string, at time.Time) bool {
	if d.Zone != zone && d.Zone != model.AllZones {
		return false
	}
	if at.Before(d.StartDate) || at.After(d.EndDate) {
		return false
	}
	if d.SpecificPeriod == "" {
		return true
	}
	period, err := parse.ParsePeriod(d.SpecificPeriod)
	if err != nil {
		r.log.Warn().Str("discount_id", d.ID).Str("period", d.SpecificPeriod).Err(err).
			Msg("skipping discount with malformed period")
		return false
	}
	return period.Contains(at)
}
