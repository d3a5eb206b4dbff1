package model

import "time"

// AllZones is the zone value of a discount that applies everywhere.
const AllZones = "all"

// Discount is a percentage reduction valid for a zone (or all zones) between two dates,
// optionally restricted to a daily clock window ("HH:MM-HH:MM").
type Discount struct {
	ID                 string    `gorm:"primaryKey;size:36" json:"id" bson:"id"`
	Zone               string    `gorm:"size:32;index;not null" json:"zone" bson:"zone"`
	StartDate          time.Time `gorm:"index;not null" json:"startDate" bson:"startDate"`
	EndDate            time.Time `gorm:"index;not null" json:"endDate" bson:"endDate"`
	DiscountPercentage float64   `gorm:"not null" json:"discountPercentage" bson:"discountPercentage"`
	SpecificPeriod     string    `gorm:"size:11" json:"specificPeriod,omitempty" bson:"specificPeriod,omitempty"`
	CreatedAt          time.Time `json:"createdAt" bson:"createdAt"`
}
