package model

import "time"

// UsageLog is one observed hour-meter/odometer reading for a tag.
// Rows are append-only; duplicate observations are permitted.
type UsageLog struct {
	ID      int64     `gorm:"autoIncrement;primaryKey" json:"id"`
	Tag     string    `gorm:"index;size:64;not null" json:"tag"`
	Date    time.Time `gorm:"index;not null" json:"date"`
	Reading float64   `gorm:"not null" json:"reading"`
}
