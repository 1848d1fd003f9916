package controller

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadforge/models"
	"leadforge/utils"
)

type GenerateController struct {
	DB        *gorm.DB
	Generator *utils.EmailGenerator
	Templates *utils.TemplateService
	Writer    utils.TemplateWriterInterface
	Logger    *log.Logger
}

func NewGenerateController(db *gorm.DB, generator *utils.EmailGenerator, templates *utils.TemplateService, writer utils.TemplateWriterInterface, logger *log.Logger) *GenerateController {
	return &GenerateController{
		DB:        db,
		Generator: generator,
		Templates: templates,
		Writer:    writer,
		Logger:    logger,
	}
}

// GenerateEmails runs the personalization batch for a campaign's pending leads
func (gc *GenerateController) GenerateEmails(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input struct {
		CampaignID uint   `json:"campaignId"`
		TemplateID *uint  `json:"templateId"`
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
	if err := gc.DB.Where("id = ? AND user_id = ?", input.CampaignID, user.ID).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "Campaign not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch campaign",
		})
	}

	var tmpl *models.Template
	var err error
	if input.TemplateID != nil {
		tmpl, err = gc.Templates.GetByID(user.ID, *input.TemplateID)
	} else {
		tmpl, err = gc.Templates.GetDefault(user.ID)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to resolve template",
		})
	}
	if tmpl == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	result, err := gc.Generator.GenerateForCampaign(c.Context(), campaign.ID, tmpl, input.LeadIDs)
	if err != nil {
		var busy *models.ErrCampaignBusy
		if errors.As(err, &busy) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": busy.Error(),
			})
		}
		if errors.Is(err, utils.ErrNoPendingLeads) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "No pending leads with email found for this campaign",
			})
		}
		gc.Logger.Printf("generation failed for campaign %d: %v", campaign.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Email generation failed: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"generated": result.Generated,
		"failed":    result.Failed,
		"total":     result.Total,
	})
}

// GenerateTemplate produces a freeform HTML email template from a text prompt
func (gc *GenerateController) GenerateTemplate(c *fiber.Ctx) error {
	var input struct {
		Prompt string `json:"prompt"`
	}
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if input.Prompt == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "prompt is required",
		})
	}

	html, err := gc.Writer.GenerateTemplateHTML(c.Context(), input.Prompt)
	if err != nil {
		gc.Logger.Printf("template generation failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Template generation failed: " + err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"html": html,
	})
}
