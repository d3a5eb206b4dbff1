package recommend

import (
	"errors"
	"time"

	"computer-club-backend/internal/model"
)

var (
	// ErrNoBookings is returned when a user has no booking history to profile.
	ErrNoBookings = errors.New("user has no bookings")
	// ErrNoDevices is returned when there are no devices to recommend from.
	ErrNoDevices = errors.New("no devices available")
	// ErrUserNotFound is returned for unknown user ids.
	ErrUserNotFound = errors.New("user not found")
)

// Profile is the aggregate booking behaviour of one user.
type Profile struct {
	UserID       string  `json:"userId"`
	Zone         string  `json:"most_common_zone"`
	Type         string  `json:"most_common_type"`
	AvgDuration  float64 `json:"avg_duration"`
	AvgStartHour float64 `json:"avg_start_hour"`
	AvgPrice     float64 `json:"avg_price"`
	Bookings     int     `json:"bookings"`
}

// DeviceVector is the aggregate booking history of one device.
type DeviceVector struct {
	DeviceID     string  `json:"deviceId"`
	Zone         string  `json:"zone"`
	Type         string  `json:"type"`
	AvgDuration  float64 `json:"avg_duration"`
	AvgStartHour float64 `json:"avg_start_hour"`
	AvgPrice     float64 `json:"avg_price"`
}

// IsZero reports whether the device has no usable booking signal.
func (v DeviceVector) IsZero() bool {
	return v.AvgDuration == 0 && v.AvgStartHour == 0 && v.AvgPrice == 0
}

// aggregate accumulates booking means. Duration and start hour only count bookings
// whose timestamps are usable; price counts every booking.
type aggregate struct {
	durationSum float64
	durations   int
	hourSum     float64
	hours       int
	priceSum    float64
	count       int
}

func (a *aggregate) add(b model.Booking, loc *time.Location) {
	a.count++
	a.priceSum += b.Price
	if !b.StartTime.IsZero() {
		a.hourSum += float64(b.StartTime.In(loc).Hour())
		a.hours++
	}
	if h, ok := b.Hours(); ok {
		a.durationSum += h
		a.durations++
	}
}

func (a aggregate) means() (duration, startHour, price float64) {
	if a.durations > 0 {
		duration = a.durationSum / float64(a.durations)
	}
	if a.hours > 0 {
		startHour = a.hourSum / float64(a.hours)
	}
	if a.count > 0 {
		price = a.priceSum / float64(a.count)
	}
	return duration, startHour, price
}

// VectorizeUser profiles userID from every booking they made on any device.
func VectorizeUser(devices []model.Device, userID string, loc *time.Location) (Profile, error) {
	var agg aggregate
	zones := make(map[string]int)
	types := make(map[string]int)

	for _, d := range devices {
		for _, b := range d.Bookings {
			if b.UserID != userID {
				continue
			}
			agg.add(b, loc)
			zones[d.Zone]++
			types[d.Type]++
		}
	}
	if agg.count == 0 {
		return Profile{}, ErrNoBookings
	}

	p := Profile{
		UserID:   userID,
		Zone:     mode(zones),
		Type:     mode(types),
		Bookings: agg.count,
	}
	p.AvgDuration, p.AvgStartHour, p.AvgPrice = agg.means()
	return p, nil
}

// VectorizeDevices aggregates each device's own history. Devices without bookings get
// zero averages.
func VectorizeDevices(devices []model.Device, loc *time.Location) ([]DeviceVector, error) {
	if len(devices) == 0 {
		return nil, ErrNoDevices
	}

	out := make([]DeviceVector, 0, len(devices))
	for _, d := range devices {
		var agg aggregate
		for _, b := range d.Bookings {
			agg.add(b, loc)
		}
		v := DeviceVector{DeviceID: d.ID, Zone: d.Zone, Type: d.Type}
		v.AvgDuration, v.AvgStartHour, v.AvgPrice = agg.means()
		out = append(out, v)
	}
	return out, nil
}

// mode returns the most frequent value; equal counts resolve to the lexically smallest.
func mode(counts map[string]int) string {
	best, bestCount := "", 0
	for v, c := range counts {
		if c > bestCount || (c == bestCount && v < best) {
			best, bestCount = v, c
		}
	}
	return best
}
