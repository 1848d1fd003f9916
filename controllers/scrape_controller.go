package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadforge/models"
	"leadforge/utils"
)

type ScrapeController struct {
	DB      *gorm.DB
	Scraper *utils.ScraperService
	Logger  *log.Logger
}

func NewScrapeController(db *gorm.DB, scraper *utils.ScraperService, logger *log.Logger) *ScrapeController {
	return &ScrapeController{
		DB:      db,
		Scraper: scraper,
		Logger:  logger,
	}
}

// Scrape runs the lead scraper for one of the user's campaigns. The whole
// scrape happens within this request, so large campaigns take a while.
func (sc *ScrapeController) Scrape(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		CampaignID uint `json:"campaignId"`
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

	// Ownership check lives here, the scraper trusts its caller
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

	result, err := sc.Scraper.RunScraping(c.Context(), campaign.ID)
	if err != nil {
		var busy *models.ErrCampaignBusy
		if errors.As(err, &busy) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": busy.Error(),
			})
		}
		sc.Logger.Printf("scrape failed for campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Scraping failed: " + err.Error(),
		})
	}

	resp := fiber.Map{
		"success":        true,
		"leadsCount":     result.LeadsCount,
		"leadsWithEmail": result.LeadsWithEmail,
	}
	if result.Warning != "" {
		resp["warning"] = result.Warning
	}
	return c.JSON(resp)
}
