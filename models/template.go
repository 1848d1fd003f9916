package models

import "gorm.io/gorm"

// Template represents a reusable HTML skeleton for outreach emails.
// Placeholders like {{business_name}} are filled in by the generator.
type Template struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name        string `gorm:"not null" json:"name"`
	Subject     string `json:"subject"`
	HTMLContent string `gorm:"type:text;not null" json:"html_content"`
	Description string `json:"description"`

	// At most one default per user, enforced by the template service
	// (creation clears previous defaults), not by a DB constraint.
	IsDefault bool `gorm:"default:false;index" json:"is_default"`

	// Relations
	User User `json:"-"`
}
