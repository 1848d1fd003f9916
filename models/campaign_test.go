package models_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"leadforge/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&models.Campaign{}, &models.Lead{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from models.CampaignStatus
		to   models.CampaignStatus
		want bool
	}{
		{models.StatusDraft, models.StatusScraping, true},
		{models.StatusDraft, models.StatusGenerating, false},
		{models.StatusDraft, models.StatusSending, false},
		{models.StatusScraping, models.StatusReady, true},
		{models.StatusScraping, models.StatusSending, false},
		{models.StatusReady, models.StatusScraping, true},
		{models.StatusReady, models.StatusGenerating, true},
		{models.StatusReady, models.StatusSending, true},
		{models.StatusGenerating, models.StatusReady, true},
		{models.StatusGenerating, models.StatusSending, false},
		{models.StatusSending, models.StatusDone, true},
		{models.StatusSending, models.StatusReady, false},
		{models.StatusDone, models.StatusScraping, true},
		{models.StatusError, models.StatusScraping, true},
		{models.StatusError, models.StatusReady, true},
		{models.StatusDraft, models.StatusError, true},
		{models.StatusReady, models.StatusError, true},
	}

	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("CanTransitionTo(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	transient := []models.CampaignStatus{models.StatusScraping, models.StatusGenerating, models.StatusSending}
	for _, s := range transient {
		if !s.IsTransient() {
			t.Errorf("expected %s to be transient", s)
		}
	}
	settled := []models.CampaignStatus{models.StatusDraft, models.StatusReady, models.StatusDone, models.StatusError}
	for _, s := range settled {
		if s.IsTransient() {
			t.Errorf("expected %s not to be transient", s)
		}
	}
}

func TestClaimStatus(t *testing.T) {
	db := newTestDB(t)

	campaign := models.Campaign{UserID: 1, Name: "claim test", Status: models.StatusReady}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}

	if err := models.ClaimStatus(db, campaign.ID, models.StatusGenerating, models.StatusReady); err != nil {
		t.Fatalf("first claim failed: %v", err)
	}

	var current models.Campaign
	if err := db.First(&current, campaign.ID).Error; err != nil {
		t.Fatal(err)
	}
	if current.Status != models.StatusGenerating {
		t.Fatalf("status = %s, want %s", current.Status, models.StatusGenerating)
	}

	// A second claim must lose: the status guard no longer matches.
	err := models.ClaimStatus(db, campaign.ID, models.StatusGenerating, models.StatusReady)
	var busy *models.ErrCampaignBusy
	if !errors.As(err, &busy) {
		t.Fatalf("expected ErrCampaignBusy, got %v", err)
	}
	if busy.Status != models.StatusGenerating {
		t.Errorf("busy.Status = %s, want %s", busy.Status, models.StatusGenerating)
	}
}

func TestClaimStatusRejectsInvalidTransition(t *testing.T) {
	db := newTestDB(t)

	campaign := models.Campaign{UserID: 1, Name: "invalid transition", Status: models.StatusDraft}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}

	err := models.ClaimStatus(db, campaign.ID, models.StatusSending, models.StatusDraft)
	if err == nil {
		t.Fatal("expected invalid transition error, got nil")
	}
	var busy *models.ErrCampaignBusy
	if errors.As(err, &busy) {
		t.Fatal("invalid transition must not be reported as busy")
	}

	var current models.Campaign
	if err := db.First(&current, campaign.ID).Error; err != nil {
		t.Fatal(err)
	}
	if current.Status != models.StatusDraft {
		t.Fatalf("status changed to %s on rejected transition", current.Status)
	}
}

func TestLeadPlaceIDUniquePerCampaign(t *testing.T) {
	db := newTestDB(t)

	campaign := models.Campaign{UserID: 1, Name: "dedupe", Status: models.StatusDraft}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatal(err)
	}

	lead := models.Lead{CampaignID: campaign.ID, PlaceID: "place-1", BusinessName: "Gym One"}
	if err := db.Create(&lead).Error; err != nil {
		t.Fatalf("first insert failed: %v", err)
	}

	dup := models.Lead{CampaignID: campaign.ID, PlaceID: "place-1", BusinessName: "Gym One Again"}
	if err := db.Create(&dup).Error; err == nil {
		t.Fatal("expected unique index violation for duplicate place_id in same campaign")
	}

	// Same place-id in another campaign is fine.
	other := models.Campaign{UserID: 1, Name: "other", Status: models.StatusDraft}
	if err := db.Create(&other).Error; err != nil {
		t.Fatal(err)
	}
	crossCampaign := models.Lead{CampaignID: other.ID, PlaceID: "place-1", BusinessName: "Gym One"}
	if err := db.Create(&crossCampaign).Error; err != nil {
		t.Fatalf("insert into other campaign failed: %v", err)
	}
}
