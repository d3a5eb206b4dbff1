package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"computer-club-backend/internal/logging"
	"computer-club-backend/internal/model"
)

// MaxForecastDays bounds the range a single Predict call may cover.
const MaxForecastDays = 31

// ErrNotReady is returned by Predict before the first successful Refresh.
var ErrNotReady = errors.New("load profile has not been built yet")

// DeviceLister loads devices with their booking history.
type DeviceLister interface {
	ListDevices(ctx context.Context) ([]model.Device, error)
}

// Forecast is the expected number of bookings starting in one zone during one hour.
type Forecast struct {
	Date              string `json:"date"`
	Hour              int    `json:"hour"`
	Zone              string `json:"zone"`
	PredictedBookings int    `json:"predictedBookings"`
}

type slot struct {
	zone    string
	weekday time.Weekday
	hour    int
}

// LoadProfile predicts booking load from the historical mean number of bookings that
// started in each zone, weekday and hour. Refresh rebuilds it from the store.
type LoadProfile struct {
	source    DeviceLister
	zones     []string
	loc       *time.Location
	openHour  int
	closeHour int
	log       zerolog.Logger

	mu      sync.RWMutex
	means   map[slot]float64
	builtAt time.Time
}

// NewLoadProfile creates an empty profile forecasting hours [openHour, closeHour).
func NewLoadProfile(source DeviceLister, zones []string, loc *time.Location, openHour, closeHour int) *LoadProfile {
	if loc == nil {
		loc = time.Local
	}
	return &LoadProfile{
		source:    source,
		zones:     zones,
		loc:       loc,
		openHour:  openHour,
		closeHour: closeHour,
		log:       logging.Component("analytics"),
	}
}

// Refresh rebuilds the profile from every booking that was not cancelled.
func (p *LoadProfile) Refresh(ctx context.Context) error {
	devices, err := p.source.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("failed to load bookings: %w", err)
	}

	means := build(devices, p.loc)

	p.mu.Lock()
	p.means = means
	p.builtAt = time.Now()
	p.mu.Unlock()

	p.log.Info().Int("slots", len(means)).Msg("load profile rebuilt")
	return nil
}

// Run is Refresh shaped as a scheduled task.
func (p *LoadProfile) Run(ctx context.Context) error {
	return p.Refresh(ctx)
}

// BuiltAt returns when the profile was last rebuilt.
func (p *LoadProfile) BuiltAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.builtAt
}

func build(devices []model.Device, loc *time.Location) map[slot]float64 {
	counts := make(map[slot]int)
	var first, last time.Time
	for _, d := range devices {
		for _, b := range d.Bookings {
			if b.StartTime.IsZero() || b.Status == model.BookingStatusCancelled {
				continue
			}
			start := b.StartTime.In(loc)
			counts[slot{zone: d.Zone, weekday: start.Weekday(), hour: start.Hour()}]++
			if first.IsZero() || start.Before(first) {
				first = start
			}
			if start.After(last) {
				last = start
			}
		}
	}

	means := make(map[slot]float64, len(counts))
	if len(counts) == 0 {
		return means
	}

	// Number of times each weekday occurs in the observed span.
	var occurrences [7]int
	day := truncateDay(first)
	for end := truncateDay(last); !day.After(end); day = day.AddDate(0, 0, 1) {
		occurrences[day.Weekday()]++
	}

	for s, c := range counts {
		means[s] = float64(c) / float64(occurrences[s.weekday])
	}
	return means
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Predict returns one forecast per day in [from, to], open hour and zone.
func (p *LoadProfile) Predict(from, to time.Time) ([]Forecast, error) {
	from, to = truncateDay(from.In(p.loc)), truncateDay(to.In(p.loc))
	if to.Before(from) {
		return nil, fmt.Errorf("forecast range ends before it starts")
	}
	if days := int(to.Sub(from).Hours()/24) + 1; days > MaxForecastDays {
		return nil, fmt.Errorf("forecast range of %d days exceeds %d", days, MaxForecastDays)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.means == nil {
		return nil, ErrNotReady
	}

	var out []Forecast
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		for hour := p.openHour; hour < p.closeHour; hour++ {
			for _, zone := range p.zones {
				mean := p.means[slot{zone: zone, weekday: day.Weekday(), hour: hour}]
				out = append(out, Forecast{
					Date:              day.Format("2006-01-02"),
					Hour:              hour,
					Zone:              zone,
					PredictedBookings: int(math.Round(mean)),
				})
			}
		}
	}
	return out, nil
}
