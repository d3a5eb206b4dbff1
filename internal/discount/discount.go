package discount

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"computer-club-backend/internal/events"
	"computer-club-backend/internal/logging"
	"computer-club-backend/internal/model"
	"computer-club-backend/internal/parse"
)

// Store persists discounts.
type Store interface {
	ListDiscounts(ctx context.Context) ([]model.Discount, error)
	GetDiscount(ctx context.Context, id string) (*model.Discount, error)
	CreateDiscount(ctx context.Context, d *model.Discount) error
	DeleteDiscount(ctx context.Context, id string) error
}

// Invalidator drops memoized prices.
type Invalidator interface {
	Invalidate(origin string)
}

// Announcer queues a push announcement for a new discount.
type Announcer interface {
	Dispatch(discountID string)
}

// Input is an admin request to create a discount. Dates without a UTC offset are read
// in the club timezone.
type Input struct {
	Zone               string   `json:"zone" binding:"required"`
	StartDate          string   `json:"startDate" binding:"required"`
	EndDate            string   `json:"endDate" binding:"required"`
	DiscountPercentage *float64 `json:"discountPercentage" binding:"required"`
	SpecificPeriod     string   `json:"specificPeriod"`
}

// Service manages the discount registry and keeps prices consistent with it.
type Service struct {
	store       Store
	zones       map[string]bool
	loc         *time.Location
	invalidator Invalidator
	bus         events.Bus
	announcer   Announcer
	newID       func() string
	log         zerolog.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithAnnouncer sends a push announcement for every created discount.
func WithAnnouncer(a Announcer) Option {
	return func(s *Service) { s.announcer = a }
}

// WithIDGenerator overrides uuid generation.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// NewService creates a discount service accepting the given zones plus "all".
func NewService(st Store, zones []string, loc *time.Location, inv Invalidator, bus events.Bus, opts ...Option) *Service {
	if loc == nil {
		loc = time.Local
	}
	if bus == nil {
		bus = events.NopBus{}
	}
	s := &Service{
		store:       st,
		zones:       make(map[string]bool, len(zones)+1),
		loc:         loc,
		invalidator: inv,
		bus:         bus,
		newID:       uuid.NewString,
		log:         logging.Component("discount"),
	}
	for _, z := range zones {
		s.zones[z] = true
	}
	s.zones[model.AllZones] = true
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// List returns every discount ordered by start date.
func (s *Service) List(ctx context.Context) ([]model.Discount, error) {
	return s.store.ListDiscounts(ctx)
}

// Create validates in and stores a new discount.
func (s *Service) Create(ctx context.Context, in Input) (*model.Discount, error) {
	d, err := s.build(in)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateDiscount(ctx, d); err != nil {
		return nil, err
	}
	s.log.Info().Str("discount_id", d.ID).Str("zone", d.Zone).Float64("percentage", d.DiscountPercentage).
		Msg("discount created")

	s.changed(ctx, events.DiscountCreated, d.ID, d.Zone)
	if s.announcer != nil {
		s.announcer.Dispatch(d.ID)
	}
	return d, nil
}

// Delete removes a discount; unknown ids return store.ErrNotFound.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteDiscount(ctx, id); err != nil {
		return err
	}
	s.log.Info().Str("discount_id", id).Msg("discount deleted")
	s.changed(ctx, events.DiscountDeleted, id, "")
	return nil
}

// changed flushes local prices and tells other replicas to do the same. A failed
// publish only delays remote invalidation, so it is logged and not returned.
func (s *Service) changed(ctx context.Context, kind, id, zone string) {
	if s.invalidator != nil {
		s.invalidator.Invalidate("local")
	}
	if err := s.bus.Publish(ctx, events.Event{Kind: kind, DiscountID: id, Zone: zone}); err != nil {
		s.log.Warn().Err(err).Str("discount_id", id).Msg("failed to publish discount change")
	}
}

func (s *Service) build(in Input) (*model.Discount, error) {
	inputErr := newInputError()

	zone := strings.TrimSpace(in.Zone)
	if zone == "" {
		inputErr.addError("zone", "provide zone")
	} else if !s.zones[zone] {
		inputErr.addError("zone", fmt.Sprintf("unknown zone %q", zone))
	}

	if in.DiscountPercentage == nil {
		inputErr.addError("discountPercentage", "provide discountPercentage")
	} else if p := *in.DiscountPercentage; p < 0 || p > 100 {
		inputErr.addError("discountPercentage", "discountPercentage must be between 0 and 100")
	}

	var period *parse.Period
	if raw := strings.TrimSpace(in.SpecificPeriod); raw != "" {
		p, err := parse.ParsePeriod(raw)
		if err != nil {
			inputErr.addError("specificPeriod", err.Error())
		} else {
			period = &p
		}
	}

	start, err := s.parseDate(in.StartDate, nil)
	if err != nil {
		inputErr.addError("startDate", err.Error())
	}
	endOfDay := parse.Clock{Hour: 23, Minute: 59}
	if period != nil {
		endOfDay = period.End
	}
	end, err := s.parseDate(in.EndDate, &endOfDay)
	if err != nil {
		inputErr.addError("endDate", err.Error())
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		inputErr.addError("startDate", "startDate must not be after endDate")
	}

	if inputErr.fieldsCount() > 0 {
		return nil, inputErr
	}

	d := &model.Discount{
		ID:                 s.newID(),
		Zone:               zone,
		StartDate:          start,
		EndDate:            end,
		DiscountPercentage: *in.DiscountPercentage,
		CreatedAt:          time.Now().UTC(),
	}
	if period != nil {
		d.SpecificPeriod = period.String()
	}
	return d, nil
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// parseDate accepts RFC 3339, a local date-time, or a bare date. A bare date starts at
// midnight, or at dayClock when given. Seconds are dropped since prices resolve per minute.
func (s *Service) parseDate(raw string, dayClock *parse.Clock) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("date is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.In(s.loc).Truncate(time.Minute), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
			return t.Truncate(time.Minute), nil
		}
	}
	day, err := time.ParseInLocation("2006-01-02", raw, s.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	if dayClock != nil {
		day = time.Date(day.Year(), day.Month(), day.Day(), dayClock.Hour, dayClock.Minute, 0, 0, s.loc)
	}
	return day, nil
}
