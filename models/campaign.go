package models

import "time"

// Campaign is a purpose donors can attach to a donation.
type Campaign struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Slug        string    `gorm:"uniqueIndex;size:100;not null" json:"slug"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Active      bool      `gorm:"default:true" json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}
