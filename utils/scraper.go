package utils

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"leadforge/models"
)

// PlacesSearcher is the directory API surface the scraper needs.
type PlacesSearcher interface {
	TextSearch(ctx context.Context, query, location string, radius int) ([]PlaceResult, error)
	Details(ctx context.Context, placeID string) (*PlaceDetails, error)
}

// EmailFinder extracts a contact email for a scraped business.
type EmailFinder interface {
	FindEmail(ctx context.Context, website string) string
}

// ScrapeResult is what a completed (possibly partial) scrape reports.
type ScrapeResult struct {
	LeadsCount     int    `json:"leadsCount"`
	LeadsWithEmail int    `json:"leadsWithEmail"`
	Warning        string `json:"warning,omitempty"`
}

// ScraperService runs the scrape stage of a campaign: directory search,
// contact enrichment, dedup against existing leads, persistence, and the
// campaign status/counter updates.
type ScraperService struct {
	DB       *gorm.DB
	Places   PlacesSearcher
	Enricher EmailFinder
	Logger   *log.Logger
}

func NewScraperService(db *gorm.DB, places PlacesSearcher, enricher EmailFinder, logger *log.Logger) *ScraperService {
	return &ScraperService{
		DB:       db,
		Places:   places,
		Enricher: enricher,
		Logger:   logger,
	}
}

// RunScraping executes a scrape for the campaign. Ownership is the caller's
// concern; the service only requires that the campaign exists.
//
// Partial upstream failures (quota errors mid-pagination) keep every lead
// fetched so far and finish the campaign as ready with a warning; only a
// scrape that produced nothing at all moves the campaign to error.
func (ss *ScraperService) RunScraping(ctx context.Context, campaignID uint) (*ScrapeResult, error) {
	var campaign models.Campaign
	if err := ss.DB.First(&campaign, campaignID).Error; err != nil {
		return nil, err
	}

	if err := models.ClaimStatus(ss.DB, campaign.ID, models.StatusScraping,
		models.StatusDraft, models.StatusReady, models.StatusDone, models.StatusError); err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	cfg := campaign.SearchConfig
	ss.Logger.Printf("scrape %s: campaign %d query=%q location=%q", runID, campaign.ID, cfg.Query, cfg.Location)

	results, searchErr := ss.Places.TextSearch(ctx, cfg.Query, cfg.Location, cfg.Radius)
	if searchErr != nil && len(results) == 0 {
		ss.failScrape(campaign.ID, searchErr)
		return nil, searchErr
	}
	if searchErr != nil {
		ss.Logger.Printf("scrape %s: partial search failure, keeping %d results: %v", runID, len(results), searchErr)
	}

	// Dedup against what earlier runs already persisted.
	existing, err := ss.existingPlaceIDs(campaign.ID)
	if err != nil {
		ss.failScrape(campaign.ID, err)
		return nil, err
	}

	capacity := 0
	if cfg.MaxResults > 0 {
		capacity = cfg.MaxResults - len(existing)
	}

	var leads []models.Lead
	for _, r := range results {
		if r.PlaceID == "" {
			continue
		}
		if _, dup := existing[r.PlaceID]; dup {
			continue
		}
		if cfg.MaxResults > 0 && len(leads) >= capacity {
			break
		}
		existing[r.PlaceID] = struct{}{}
		leads = append(leads, ss.buildLead(ctx, campaign.ID, r))
	}

	if len(leads) > 0 {
		// Second line of defense after the pre-check: the unique index on
		// (campaign_id, place_id) turns races into silent skips.
		if err := ss.DB.Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(&leads, 100).Error; err != nil {
			ss.failScrape(campaign.ID, err)
			return nil, err
		}
	}

	var total, withEmail int64
	ss.DB.Model(&models.Lead{}).Where("campaign_id = ?", campaign.ID).Count(&total)
	ss.DB.Model(&models.Lead{}).
		Where("campaign_id = ? AND email IS NOT NULL AND email <> ''", campaign.ID).
		Count(&withEmail)

	lastError := ""
	if searchErr != nil {
		lastError = searchErr.Error()
	}

	if err := ss.DB.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaign.ID, models.StatusScraping).
		Updates(map[string]interface{}{
			"status":      models.StatusReady,
			"leads_count": total,
			"last_error":  lastError,
			"scraped_at":  time.Now(),
		}).Error; err != nil {
		return nil, err
	}

	ss.Logger.Printf("scrape %s: campaign %d done, %d leads (%d with email)", runID, campaign.ID, total, withEmail)

	result := &ScrapeResult{
		LeadsCount:     int(total),
		LeadsWithEmail: int(withEmail),
	}
	if searchErr != nil {
		result.Warning = "scrape completed partially: " + searchErr.Error()
	}
	return result, nil
}

func (ss *ScraperService) buildLead(ctx context.Context, campaignID uint, r PlaceResult) models.Lead {
	lead := models.Lead{
		CampaignID:   campaignID,
		PlaceID:      r.PlaceID,
		BusinessName: r.Name,
		Address:      r.Address,
		Category:     r.Category,
		Rating:       r.Rating,
		ReviewCount:  r.ReviewCount,
		EmailStatus:  models.EmailPending,
	}

	details, err := ss.Places.Details(ctx, r.PlaceID)
	if err != nil {
		ss.Logger.Printf("details lookup failed for %s: %v", r.PlaceID, err)
		return lead
	}
	lead.Phone = details.Phone
	lead.Website = details.Website

	if lead.Website != "" {
		if email := ss.Enricher.FindEmail(ctx, lead.Website); email != "" {
			lead.Email = &email
		}
	}
	return lead
}

func (ss *ScraperService) existingPlaceIDs(campaignID uint) (map[string]struct{}, error) {
	var placeIDs []string
	if err := ss.DB.Model(&models.Lead{}).
		Where("campaign_id = ?", campaignID).
		Pluck("place_id", &placeIDs).Error; err != nil {
		return nil, err
	}
	existing := make(map[string]struct{}, len(placeIDs))
	for _, id := range placeIDs {
		existing[id] = struct{}{}
	}
	return existing, nil
}

func (ss *ScraperService) failScrape(campaignID uint, cause error) {
	LogError("scrape_failed", cause, map[string]interface{}{"campaign_id": campaignID})
	if err := ss.DB.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaignID, models.StatusScraping).
		Updates(map[string]interface{}{
			"status":     models.StatusError,
			"last_error": cause.Error(),
		}).Error; err != nil {
		ss.Logger.Printf("failed to mark campaign %d as errored: %v", campaignID, err)
	}
}
