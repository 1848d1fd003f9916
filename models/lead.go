package models

import (
	"time"

	"gorm.io/gorm"
)

// EmailStatus is the outreach state of a single lead.
type EmailStatus string

const (
	EmailPending   EmailStatus = "pending"
	EmailGenerated EmailStatus = "generated"
	EmailSent      EmailStatus = "sent"
	EmailFailed    EmailStatus = "failed"
)

// Lead represents a business discovered by the scraper for a campaign.
type Lead struct {
	gorm.Model
	// A lead always belongs to exactly one campaign; place_id is unique
	// within it so re-running a scrape cannot append duplicates.
	CampaignID uint   `gorm:"not null;index;uniqueIndex:idx_leads_campaign_place" json:"campaign_id"`
	PlaceID    string `gorm:"not null;uniqueIndex:idx_leads_campaign_place" json:"place_id"`

	BusinessName string  `gorm:"not null" json:"business_name"`
	Address      string  `json:"address"`
	Phone        string  `json:"phone"`
	Email        *string `gorm:"index" json:"email"` // nil: no address discovered
	Website      string  `json:"website"`
	Category     string  `json:"category"`
	Rating       float64 `gorm:"default:0" json:"rating"`
	ReviewCount  int     `gorm:"default:0" json:"review_count"`

	// Outreach state. A lead with no email never leaves "pending".
	EmailStatus      EmailStatus `gorm:"default:'pending';index" json:"email_status"`
	GeneratedSubject string      `json:"generated_subject"`
	GeneratedBody    string      `gorm:"type:text" json:"generated_body"`
	SentAt           *time.Time  `json:"sent_at"`
	LastError        string      `json:"last_error,omitempty"`

	// Relations
	Campaign Campaign `json:"-"`
}

// HasEmail reports whether the lead carries a usable email address.
func (l *Lead) HasEmail() bool {
	return l.Email != nil && *l.Email != ""
}
