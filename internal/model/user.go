package model

import "time"

// User is a registered club visitor.
type User struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	Username  string    `gorm:"size:128" json:"username"`
	Email     string    `gorm:"size:256" json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}
