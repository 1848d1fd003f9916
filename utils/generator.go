package utils

import (
	"context"
	"errors"
	"log"

	"gorm.io/gorm"

	"leadforge/models"
)

// ErrNoPendingLeads means the campaign has no lead the generator may touch:
// nothing pending, or nothing pending that has an email address.
var ErrNoPendingLeads = errors.New("no pending leads with an email address")

// GenerateResult reports a finished generation batch. Per-lead failures are
// counted, never escalated.
type GenerateResult struct {
	Generated int `json:"generated"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// EmailGenerator runs the generate stage: it selects pending leads and asks
// the completion API for a personalized subject/body per lead, sequentially.
type EmailGenerator struct {
	DB     *gorm.DB
	Writer EmailWriterInterface
	Logger *log.Logger
}

func NewEmailGenerator(db *gorm.DB, writer EmailWriterInterface, logger *log.Logger) *EmailGenerator {
	return &EmailGenerator{
		DB:     db,
		Writer: writer,
		Logger: logger,
	}
}

// GenerateForCampaign personalizes emails for every selectable lead of the
// campaign. Only leads with email_status=pending AND a non-null email are
// ever selected; leadIDs, when non-empty, restricts the batch further.
//
// The campaign is claimed ready->generating up front and moved back to
// ready when the batch ends, regardless of how many leads failed.
func (eg *EmailGenerator) GenerateForCampaign(ctx context.Context, campaignID uint, tmpl *models.Template, leadIDs []uint) (*GenerateResult, error) {
	var campaign models.Campaign
	if err := eg.DB.First(&campaign, campaignID).Error; err != nil {
		return nil, err
	}

	if err := models.ClaimStatus(eg.DB, campaign.ID, models.StatusGenerating, models.StatusReady); err != nil {
		return nil, err
	}

	leads, err := eg.selectLeads(campaign.ID, leadIDs)
	if err != nil {
		eg.releaseCampaign(campaign.ID, err.Error())
		return nil, err
	}
	if len(leads) == 0 {
		eg.releaseCampaign(campaign.ID, "")
		return nil, ErrNoPendingLeads
	}

	eg.Logger.Printf("generating emails for campaign %d: %d leads, template %d", campaign.ID, len(leads), tmpl.ID)

	result := &GenerateResult{Total: len(leads)}
	for i := range leads {
		lead := &leads[i]

		email, genErr := eg.Writer.GeneratePersonalizedEmail(ctx, lead, tmpl)
		if genErr != nil {
			result.Failed++
			LogError("email_generation_failed", genErr, map[string]interface{}{
				"campaign_id": campaign.ID,
				"lead_id":     lead.ID,
			})
			if err := eg.DB.Model(lead).Updates(map[string]interface{}{
				"email_status": models.EmailFailed,
				"last_error":   genErr.Error(),
			}).Error; err != nil {
				eg.Logger.Printf("failed to mark lead %d as failed: %v", lead.ID, err)
			}
			continue
		}

		if err := eg.DB.Model(lead).Updates(map[string]interface{}{
			"email_status":      models.EmailGenerated,
			"generated_subject": email.Subject,
			"generated_body":    email.HTMLContent,
			"last_error":        "",
		}).Error; err != nil {
			result.Failed++
			eg.Logger.Printf("failed to persist generated email for lead %d: %v", lead.ID, err)
			continue
		}
		result.Generated++
	}

	// The campaign returns to ready even when every lead failed; the batch
	// outcome lives in the per-lead statuses and the response counts.
	lastError := ""
	if result.Generated == 0 && result.Failed > 0 {
		lastError = "email generation failed for every selected lead"
	}
	eg.releaseCampaign(campaign.ID, lastError)

	eg.Logger.Printf("generation for campaign %d finished: %d generated, %d failed of %d",
		campaign.ID, result.Generated, result.Failed, result.Total)

	return result, nil
}

func (eg *EmailGenerator) selectLeads(campaignID uint, leadIDs []uint) ([]models.Lead, error) {
	query := eg.DB.
		Where("campaign_id = ?", campaignID).
		Where("email_status = ?", models.EmailPending).
		Where("email IS NOT NULL AND email <> ''")
	if len(leadIDs) > 0 {
		query = query.Where("id IN ?", leadIDs)
	}

	var leads []models.Lead
	if err := query.Order("id").Find(&leads).Error; err != nil {
		return nil, err
	}
	return leads, nil
}

func (eg *EmailGenerator) releaseCampaign(campaignID uint, lastError string) {
	if err := eg.DB.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaignID, models.StatusGenerating).
		Updates(map[string]interface{}{
			"status":     models.StatusReady,
			"last_error": lastError,
		}).Error; err != nil {
		eg.Logger.Printf("failed to release campaign %d: %v", campaignID, err)
	}
}
