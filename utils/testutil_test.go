package utils_test

import (
	"fmt"
	"io"
	"log"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"leadforge/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.Campaign{}, &models.Lead{}, &models.Template{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func seedCampaign(t *testing.T, db *gorm.DB, status models.CampaignStatus) *models.Campaign {
	t.Helper()

	campaign := models.Campaign{
		UserID: 1,
		Name:   "test campaign",
		Status: status,
		SearchConfig: models.SearchConfig{
			Query:    "gimnasios",
			Location: "Madrid",
		},
	}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatalf("failed to seed campaign: %v", err)
	}
	return &campaign
}

func seedLead(t *testing.T, db *gorm.DB, campaignID uint, placeID string, email string, status models.EmailStatus) *models.Lead {
	t.Helper()

	lead := models.Lead{
		CampaignID:   campaignID,
		PlaceID:      placeID,
		BusinessName: "Business " + placeID,
		EmailStatus:  status,
	}
	if email != "" {
		lead.Email = &email
	}
	if err := db.Create(&lead).Error; err != nil {
		t.Fatalf("failed to seed lead: %v", err)
	}
	return &lead
}
