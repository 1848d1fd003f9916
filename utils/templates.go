package utils

import (
	"errors"
	"log"

	"gorm.io/gorm"

	"leadforge/models"
)

// TemplateService is the CRUD and default-resolution layer for email
// templates. All operations are scoped to one user.
type TemplateService struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewTemplateService(db *gorm.DB, logger *log.Logger) *TemplateService {
	return &TemplateService{
		DB:     db,
		Logger: logger,
	}
}

// TemplateInput is what creation requires. Name and HTMLContent are
// mandatory; the rest is optional.
type TemplateInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Subject     string `json:"subject" validate:"max=200"`
	HTMLContent string `json:"htmlContent" validate:"required"`
	Description string `json:"description" validate:"max=500"`
	IsDefault   bool   `json:"isDefault"`
}

// Create persists a template. When it is flagged default, previous defaults
// of the same user are cleared in the same transaction, keeping at most one
// default without a DB constraint.
func (ts *TemplateService) Create(userID uint, input TemplateInput) (*models.Template, error) {
	if err := ValidateStruct(input); err != nil {
		return nil, err
	}

	template := models.Template{
		UserID:      userID,
		Name:        input.Name,
		Subject:     input.Subject,
		HTMLContent: input.HTMLContent,
		Description: input.Description,
		IsDefault:   input.IsDefault,
	}

	err := ts.DB.Transaction(func(tx *gorm.DB) error {
		if input.IsDefault {
			if err := tx.Model(&models.Template{}).
				Where("user_id = ? AND is_default = ?", userID, true).
				Update("is_default", false).Error; err != nil {
				return err
			}
		}
		return tx.Create(&template).Error
	})
	if err != nil {
		return nil, err
	}

	return &template, nil
}

// GetAll returns the user's templates, newest first.
func (ts *TemplateService) GetAll(userID uint) ([]models.Template, error) {
	var templates []models.Template
	if err := ts.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

// GetByID returns one template, or nil when it doesn't exist or belongs to
// someone else.
func (ts *TemplateService) GetByID(userID, templateID uint) (*models.Template, error) {
	var template models.Template
	err := ts.DB.Where("id = ? AND user_id = ?", templateID, userID).First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &template, nil
}

// GetDefault resolves the user's default template. Should multiple rows be
// flagged (the schema does not forbid it), the most recently created one
// wins. Returns nil when no default exists.
func (ts *TemplateService) GetDefault(userID uint) (*models.Template, error) {
	var template models.Template
	err := ts.DB.Where("user_id = ? AND is_default = ?", userID, true).
		Order("created_at DESC").
		First(&template).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &template, nil
}
