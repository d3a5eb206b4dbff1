package model

import "time"

// Booking statuses recorded by the booking subsystem.
const (
	BookingStatusActive    = "active"
	BookingStatusCompleted = "completed"
	BookingStatusCancelled = "cancelled"
	BookingStatusNoShow    = "noShow"
)

// Device is a bookable seat in the club: a PC or a console in one of the zones.
type Device struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id" bson:"id"`
	Type      string    `gorm:"size:16;not null" json:"type" bson:"type"`
	Zone      string    `gorm:"size:32;index;not null" json:"zone" bson:"zone"`
	CreatedAt time.Time `json:"-" bson:"-"`
	UpdatedAt time.Time `json:"-" bson:"-"`

	// Associations
	Bookings []Booking `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE" json:"bookings" bson:"bookings"`
}

// Booking is one reservation of a device by a user.
type Booking struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-" bson:"-"`
	DeviceID  string    `gorm:"size:64;index;not null" json:"deviceId" bson:"-"`
	UserID    string    `gorm:"size:64;index;not null" json:"userId" bson:"userId"`
	UserEmail string    `gorm:"size:256" json:"userEmail" bson:"userEmail"`
	StartTime time.Time `gorm:"index" json:"startTime" bson:"startTime"`
	EndTime   time.Time `json:"endTime" bson:"endTime"`
	Price     float64   `gorm:"not null" json:"price" bson:"price"`
	Status    string    `gorm:"size:16" json:"status,omitempty" bson:"status,omitempty"`
}

// Hours returns the booked duration in hours and false when the timestamps are unusable.
func (b Booking) Hours() (float64, bool) {
	if b.StartTime.IsZero() || b.EndTime.IsZero() || b.EndTime.Before(b.StartTime) {
		return 0, false
	}
	return b.EndTime.Sub(b.StartTime).Hours(), true
}
