package model

import "time"

// Equipment represents a tracked piece of heavy equipment.
// Tag is the business identifier (trimmed, uppercased at ingestion).
type Equipment struct {
	Tag                string  `gorm:"primaryKey;size:64" json:"tag"`
	Category           string  `gorm:"size:64" json:"category"`
	IntervalUnits      float64 `gorm:"not null;default:0" json:"interval"`
	LastServiceReading float64 `gorm:"not null;default:0" json:"lastService"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
