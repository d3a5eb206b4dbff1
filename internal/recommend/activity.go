package recommend

import (
	"time"

	"computer-club-backend/internal/model"
)

// Activity classes assigned by ClassifyActivity.
const (
	ActivityNew     = "new"
	ActivityAtRisk  = "at_risk"
	ActivityActive  = "active"
	ActivityPassive = "passive"
)

const (
	dayLength = 24 * time.Hour

	// Users without any dated booking are treated as last seen a year ago.
	noBookingLookback = 365 * dayLength
)

// ActivityFeatures summarises a user's booking history for classification.
type ActivityFeatures struct {
	TotalBookings        int     `json:"totalBookings"`
	CompletedBookings    int     `json:"completedBookings"`
	NoShowCount          int     `json:"noShowCount"`
	CancelCount          int     `json:"cancelCount"`
	AvgDuration          float64 `json:"avgDuration"`
	CompletedRatio       float64 `json:"completedRatio"`
	BookingFrequency     float64 `json:"bookingFrequency"`
	DaysSinceLastBooking int     `json:"daysSinceLastBooking"`
	AccountAgeDays       int     `json:"accountAgeDays"`
}

// Activity is the engagement class of one user.
type Activity struct {
	UserID   string           `json:"userId"`
	Class    string           `json:"activity"`
	Features ActivityFeatures `json:"features"`
}

// ExtractActivity computes the activity features of user as of now. BookingFrequency is
// bookings per 30 days of account age. When the account has no creation date its
// earliest booking stands in for it.
func ExtractActivity(user model.User, devices []model.Device, now time.Time) ActivityFeatures {
	var (
		f           ActivityFeatures
		durationSum float64
		first, last time.Time
	)
	for _, d := range devices {
		for _, b := range d.Bookings {
			if b.UserID != user.ID {
				continue
			}
			f.TotalBookings++
			switch b.Status {
			case model.BookingStatusCompleted:
				f.CompletedBookings++
			case model.BookingStatusNoShow:
				f.NoShowCount++
			case model.BookingStatusCancelled:
				f.CancelCount++
			}
			if h, ok := b.Hours(); ok {
				durationSum += h
			}
			if b.StartTime.IsZero() {
				continue
			}
			if first.IsZero() || b.StartTime.Before(first) {
				first = b.StartTime
			}
			if b.StartTime.After(last) {
				last = b.StartTime
			}
		}
	}

	created := user.CreatedAt
	if created.IsZero() {
		created = first
	}
	if created.IsZero() {
		created = now
	}
	f.AccountAgeDays = wholeDays(now.Sub(created))
	if f.AccountAgeDays < 1 {
		f.AccountAgeDays = 1
	}

	if last.IsZero() {
		last = now.Add(-noBookingLookback)
	}
	f.DaysSinceLastBooking = wholeDays(now.Sub(last))
	if f.DaysSinceLastBooking < 0 {
		f.DaysSinceLastBooking = 0
	}

	if f.TotalBookings > 0 {
		total := float64(f.TotalBookings)
		f.AvgDuration = durationSum / total
		f.CompletedRatio = float64(f.CompletedBookings) / total
		f.BookingFrequency = total / float64(f.AccountAgeDays) * 30
	}
	return f
}

func wholeDays(d time.Duration) int {
	days := int(d / dayLength)
	if d < 0 && d%dayLength != 0 {
		days--
	}
	return days
}

// ClassifyActivity assigns an activity class. Rules are checked in order: fresh accounts
// with at most one booking are new, lapsed users with a poor completion record are at
// risk, frequent reliable users are active, and everyone else is passive.
func ClassifyActivity(f ActivityFeatures) string {
	switch {
	case f.AccountAgeDays < 14 && f.TotalBookings <= 1:
		return ActivityNew
	case f.DaysSinceLastBooking > 14 && f.CompletedRatio < 0.8:
		return ActivityAtRisk
	case f.TotalBookings >= 10 && f.CompletedRatio >= 0.8 && f.BookingFrequency >= 1:
		return ActivityActive
	default:
		return ActivityPassive
	}
}
