package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// Zone selects which discount announcements are delivered ("all" for every zone).
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey" bson:"endpoint"`
	P256DH    string    `gorm:"column:p256dh;not null" bson:"p256dh"`
	Auth      string    `gorm:"not null" bson:"auth"`
	Zone      string    `gorm:"size:32;index;not null;default:all" bson:"zone"`
	CreatedAt time.Time `gorm:"not null" bson:"createdAt"`
}
