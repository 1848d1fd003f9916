package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"leadforge/models"
	"leadforge/utils"
)

type TemplateController struct {
	DB        *gorm.DB
	Templates *utils.TemplateService
	Logger    *log.Logger
}

func NewTemplateController(db *gorm.DB, templates *utils.TemplateService, logger *log.Logger) *TemplateController {
	return &TemplateController{
		DB:        db,
		Templates: templates,
		Logger:    logger,
	}
}

// CreateTemplate stores a new email template for the user
func (tc *TemplateController) CreateTemplate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var input utils.TemplateInput
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if err := utils.ValidateStruct(input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	tmpl, err := tc.Templates.Create(user.ID, input)
	if err != nil {
		tc.Logger.Printf("failed to create template for user %d: %v", user.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create template",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"template": tmpl,
	})
}

// GetTemplates returns all templates for the user
func (tc *TemplateController) GetTemplates(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	templates, err := tc.Templates.GetAll(user.ID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch templates",
		})
	}

	return c.JSON(fiber.Map{
		"templates": templates,
	})
}

// GetTemplate returns a single template, or the user's default when the
// id path segment is "default"
func (tc *TemplateController) GetTemplate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var (
		tmpl *models.Template
		err  error
	)
	if c.Params("id") == "default" {
		tmpl, err = tc.Templates.GetDefault(user.ID)
	} else {
		var templateID uint
		templateID, err = utils.ParseUint(c.Params("id"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid template id",
			})
		}
		tmpl, err = tc.Templates.GetByID(user.ID, templateID)
	}
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch template",
		})
	}
	if tmpl == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	return c.JSON(fiber.Map{
		"template": tmpl,
	})
}

// DeleteTemplate removes one of the user's templates
func (tc *TemplateController) DeleteTemplate(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	templateID, err := utils.ParseUint(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid template id",
		})
	}

	result := tc.DB.Where("id = ? AND user_id = ?", templateID, user.ID).Delete(&models.Template{})
	if result.Error != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to delete template",
		})
	}
	if result.RowsAffected == 0 {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Template not found",
		})
	}

	return c.JSON(fiber.Map{
		"message": "Template deleted successfully",
	})
}
