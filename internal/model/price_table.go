package model

// PriceTier is one row of a zone's base price table.
type PriceTier struct {
	Zone  string  `gorm:"primaryKey;size:32"`
	Hours int     `gorm:"primaryKey;autoIncrement:false"`
	Price float64 `gorm:"not null"`
}

// PriceTable maps booking durations (whole hours) to base prices for one zone.
type PriceTable struct {
	Zone   string          `json:"zone"`
	Prices map[int]float64 `json:"prices"`
}
