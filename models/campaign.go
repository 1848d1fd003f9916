package models

import (
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CampaignStatus is the lifecycle state of a campaign. Transitions are
// validated against campaignTransitions instead of being overwritten
// ad hoc by individual handlers.
type CampaignStatus string

const (
	StatusDraft      CampaignStatus = "draft"
	StatusScraping   CampaignStatus = "scraping"
	StatusReady      CampaignStatus = "ready"
	StatusGenerating CampaignStatus = "generating"
	StatusSending    CampaignStatus = "sending"
	StatusDone       CampaignStatus = "done"
	StatusError      CampaignStatus = "error"
)

var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	StatusDraft:      {StatusScraping, StatusError},
	StatusScraping:   {StatusReady, StatusError},
	StatusReady:      {StatusScraping, StatusGenerating, StatusSending, StatusError},
	StatusGenerating: {StatusReady, StatusError},
	StatusSending:    {StatusDone, StatusError},
	StatusDone:       {StatusScraping, StatusError},
	StatusError:      {StatusScraping, StatusReady},
}

// CanTransitionTo reports whether moving from s to next is a valid
// lifecycle step.
func (s CampaignStatus) CanTransitionTo(next CampaignStatus) bool {
	for _, allowed := range campaignTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTransient reports whether the status marks an in-flight pipeline stage.
// A campaign left in a transient status after a crash has to be recovered.
func (s CampaignStatus) IsTransient() bool {
	return s == StatusScraping || s == StatusGenerating || s == StatusSending
}

// ErrCampaignBusy is returned when a status-guarded claim loses the race,
// e.g. two generate calls for the same campaign.
type ErrCampaignBusy struct {
	CampaignID uint
	Status     CampaignStatus
}

func (e *ErrCampaignBusy) Error() string {
	return fmt.Sprintf("campaign %d is in status %q and cannot start this stage", e.CampaignID, e.Status)
}

// SearchConfig describes what the scraper should look for.
type SearchConfig struct {
	Query      string `json:"query"`
	Location   string `json:"location"`
	Radius     int    `json:"radius,omitempty"`      // meters
	MaxResults int    `json:"max_results,omitempty"` // cap on persisted leads, 0 = no cap
}

// Campaign represents one unit of lead-generation work
type Campaign struct {
	gorm.Model
	UserID uint `gorm:"not null;index" json:"user_id"`

	Name         string         `gorm:"not null" json:"name"`
	Status       CampaignStatus `gorm:"default:'draft'" json:"status"`
	SearchConfig SearchConfig   `gorm:"type:jsonb;serializer:json" json:"search_config"`

	// Statistics (denormalized for performance)
	LeadsCount int `gorm:"default:0" json:"leads_count"`
	EmailsSent int `gorm:"default:0" json:"emails_sent"`

	// Last pipeline failure, kept alongside the status so a partially
	// successful scrape can end up "ready" without hiding the error.
	LastError string `json:"last_error,omitempty"`

	ScrapedAt   *time.Time `json:"scraped_at"`
	CompletedAt *time.Time `json:"completed_at"`

	// Relations
	Leads []Lead `gorm:"foreignKey:CampaignID" json:"leads,omitempty"`
}

// ClaimStatus performs a status-guarded transition: the campaign moves to
// next only if its current status is one of from, atomically. Returns
// ErrCampaignBusy when the guard fails, so concurrent stage invocations
// cannot both proceed.
func ClaimStatus(db *gorm.DB, campaignID uint, next CampaignStatus, from ...CampaignStatus) error {
	for _, f := range from {
		if !f.CanTransitionTo(next) {
			return fmt.Errorf("invalid campaign transition %q -> %q", f, next)
		}
	}

	res := db.Model(&Campaign{}).
		Where("id = ? AND status IN ?", campaignID, from).
		Update("status", next)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var current Campaign
		if err := db.Select("status").First(&current, campaignID).Error; err != nil {
			return err
		}
		return &ErrCampaignBusy{CampaignID: campaignID, Status: current.Status}
	}
	return nil
}
