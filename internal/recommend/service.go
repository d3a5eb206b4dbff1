package recommend

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"computer-club-backend/internal/logging"
	"computer-club-backend/internal/metrics"
	"computer-club-backend/internal/model"
	"computer-club-backend/internal/pricing"
	"computer-club-backend/internal/store"
)

// DeviceSource loads devices with their bookings and users.
type DeviceSource interface {
	ListDevices(ctx context.Context) ([]model.Device, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
}

// TierPricer exposes the offered durations and prices of a zone.
type TierPricer interface {
	Tiers(ctx context.Context, zone string) ([]int, error)
	Price(ctx context.Context, zone string, hours int, at time.Time) (float64, error)
}

// Options configures a Service.
type Options struct {
	Location        *time.Location
	TopK            int
	Horizon         time.Duration
	FilteredWeights Weights
	Now             func() time.Time
}

// Service computes user profiles and device recommendations from live booking data.
type Service struct {
	source  DeviceSource
	pricer  TierPricer
	encoder *Encoder
	opts    Options
	log     zerolog.Logger
}

// NewService creates a recommendation service.
func NewService(source DeviceSource, pricer TierPricer, encoder *Encoder, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	if opts.Horizon <= 0 {
		opts.Horizon = 48 * time.Hour
	}
	if opts.FilteredWeights == (Weights{}) {
		opts.FilteredWeights = Weights{Duration: 2.0, StartHour: 1.5}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		source:  source,
		pricer:  pricer,
		encoder: encoder,
		opts:    opts,
		log:     logging.Component("recommend"),
	}
}

func (s *Service) load(ctx context.Context, userID string) ([]model.Device, Profile, error) {
	if _, err := s.source.GetUser(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Profile{}, ErrUserNotFound
		}
		return nil, Profile{}, err
	}

	devices, err := s.source.ListDevices(ctx)
	if err != nil {
		return nil, Profile{}, err
	}

	profile, err := VectorizeUser(devices, userID, s.opts.Location)
	if err != nil {
		return nil, Profile{}, err
	}
	return devices, profile, nil
}

// Profile returns the booking profile of userID.
func (s *Service) Profile(ctx context.Context, userID string) (Profile, error) {
	_, p, err := s.load(ctx, userID)
	return p, err
}

// Activity classifies the engagement of userID. Users without bookings are still
// classified.
func (s *Service) Activity(ctx context.Context, userID string) (Activity, error) {
	a, err := s.activity(ctx, userID)
	metrics.RecommendationRequests.WithLabelValues("activity", outcome(err)).Inc()
	return a, err
}

func (s *Service) activity(ctx context.Context, userID string) (Activity, error) {
	user, err := s.source.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Activity{}, ErrUserNotFound
		}
		return Activity{}, err
	}
	devices, err := s.source.ListDevices(ctx)
	if err != nil {
		return Activity{}, err
	}

	features := ExtractActivity(*user, devices, s.opts.Now())
	return Activity{UserID: userID, Class: ClassifyActivity(features), Features: features}, nil
}

// Recommend ranks every device against the user's profile.
func (s *Service) Recommend(ctx context.Context, userID string) ([]Recommendation, error) {
	recs, err := s.recommend(ctx, userID)
	metrics.RecommendationRequests.WithLabelValues("similar", outcome(err)).Inc()
	return recs, err
}

func (s *Service) recommend(ctx context.Context, userID string) ([]Recommendation, error) {
	devices, profile, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	vectors, err := VectorizeDevices(devices, s.opts.Location)
	if err != nil {
		return nil, err
	}
	return Rank(s.encoder, profile, vectors, Unweighted, s.opts.TopK), nil
}

// RecommendAvailable ranks the devices the user has not already booked within the
// horizon, with durations snapped to offered tiers and prices recomputed at that tier.
func (s *Service) RecommendAvailable(ctx context.Context, userID string) ([]Recommendation, error) {
	recs, err := s.recommendAvailable(ctx, userID)
	metrics.RecommendationRequests.WithLabelValues("filtered", outcome(err)).Inc()
	return recs, err
}

func (s *Service) recommendAvailable(ctx context.Context, userID string) ([]Recommendation, error) {
	devices, profile, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	vectors, err := VectorizeDevices(devices, s.opts.Location)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now().In(s.opts.Location)
	busy := BusyDevices(devices, userID, now, s.opts.Horizon)
	kept := FilterAvailable(vectors, busy)

	for i := range kept {
		s.snap(ctx, &kept[i], now)
	}
	return Rank(s.encoder, profile, kept, s.opts.FilteredWeights, s.opts.TopK), nil
}

// snap replaces a device's average duration with the nearest offered tier and its
// average price with the current price of that tier. Devices in zones without a price
// table keep their historical averages.
func (s *Service) snap(ctx context.Context, v *DeviceVector, now time.Time) {
	tiers, err := s.pricer.Tiers(ctx, v.Zone)
	if err != nil {
		s.log.Warn().Err(err).Str("device_id", v.DeviceID).Str("zone", v.Zone).Msg("cannot snap device to a price tier")
		return
	}
	tier, ok := pricing.SnapTier(tiers, v.AvgDuration)
	if !ok {
		return
	}
	price, err := s.pricer.Price(ctx, v.Zone, tier, now)
	if err != nil {
		s.log.Warn().Err(err).Str("device_id", v.DeviceID).Msg("cannot price snapped tier")
		return
	}
	v.AvgDuration = float64(tier)
	v.AvgPrice = price
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoBookings), errors.Is(err, ErrNoDevices):
		return "empty"
	case errors.Is(err, ErrUserNotFound):
		return "not_found"
	default:
		return "error"
	}
}
