package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadforge/models"
	"leadforge/utils"
)

type SendController struct {
	DB     *gorm.DB
	Mailer *utils.CampaignMailer
	Logger *log.Logger
}

func NewSendController(db *gorm.DB, mailer *utils.CampaignMailer, logger *log.Logger) *SendController {
	return &SendController{
		DB:     db,
		Mailer: mailer,
		Logger: logger,
	}
}

// SendEmails delivers the generated emails for a campaign over SMTP
func (sc *SendController) SendEmails(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		CampaignID uint   `json:"campaignId"`
		LeadIDs    []uint `json:"leadIds"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if input.CampaignID == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "campaignId is required",
		})
	}

	var campaign models.Campaign
	if err := sc.DB.Where("id = ? AND user_id = ?", input.CampaignID, user.ID).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Campaign not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaign",
		})
	}

	result, err := sc.Mailer.SendForCampaign(c.Context(), campaign.ID, input.LeadIDs)
	if err != nil {
		var busy *models.ErrCampaignBusy
		if errors.As(err, &busy) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": busy.Error(),
			})
		}
		if errors.Is(err, utils.ErrNoGeneratedLeads) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "No generated leads ready to send for this campaign",
			})
		}
		sc.Logger.Printf("send failed for campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Sending failed: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"sent":    result.Sent,
		"failed":  result.Failed,
		"total":   result.Total,
	})
}
