package controller_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	controller "leadforge/controllers"
	"leadforge/models"
	"leadforge/utils"
)

type stubPlaces struct {
	results []utils.PlaceResult
	err     error
}

func (s *stubPlaces) TextSearch(ctx context.Context, query, location string, radius int) ([]utils.PlaceResult, error) {
	return s.results, s.err
}

func (s *stubPlaces) Details(ctx context.Context, placeID string) (*utils.PlaceDetails, error) {
	return &utils.PlaceDetails{}, nil
}

type stubEnricher struct{}

func (s *stubEnricher) FindEmail(ctx context.Context, website string) string { return "" }

type stubWriter struct {
	personalizeErr error
	templateHTML   string
}

func (s *stubWriter) GeneratePersonalizedEmail(ctx context.Context, lead *models.Lead, tmpl *models.Template) (*utils.GeneratedEmail, error) {
	if s.personalizeErr != nil {
		return nil, s.personalizeErr
	}
	return &utils.GeneratedEmail{Subject: "Hi", HTMLContent: "<p>Hi</p>"}, nil
}

func (s *stubWriter) GenerateTemplateHTML(ctx context.Context, prompt string) (string, error) {
	return s.templateHTML, nil
}

func newPipelineApp(t *testing.T, db *gorm.DB, user *models.User, places *stubPlaces, writer *stubWriter) *fiber.App {
	t.Helper()

	scraper := utils.NewScraperService(db, places, &stubEnricher{}, testLogger())
	templates := utils.NewTemplateService(db, testLogger())
	generator := utils.NewEmailGenerator(db, writer, testLogger())

	sc := controller.NewScrapeController(db, scraper, testLogger())
	gc := controller.NewGenerateController(db, generator, templates, writer, testLogger())

	app := fiber.New()
	app.Use(fakeAuth(user))
	app.Post("/scrape", sc.Scrape)
	app.Post("/generate-emails", gc.GenerateEmails)
	app.Post("/generate-template", gc.GenerateTemplate)
	return app
}

func TestScrapeEndpoint(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")

	campaign := models.Campaign{UserID: user.ID, Name: "scrapable", Status: models.StatusDraft}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatal(err)
	}

	places := &stubPlaces{results: []utils.PlaceResult{
		{PlaceID: "p1", Name: "Gym One"},
		{PlaceID: "p2", Name: "Gym Two"},
	}}
	app := newPipelineApp(t, db, user, places, &stubWriter{})

	resp, body := doJSON(t, app, http.MethodPost, "/scrape", map[string]interface{}{
		"campaignId": campaign.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%v)", resp.StatusCode, body)
	}
	if body["success"] != true {
		t.Error("success flag not set")
	}
	if body["leadsCount"].(float64) != 2 {
		t.Errorf("leadsCount = %v, want 2", body["leadsCount"])
	}
}

func TestScrapeEndpointValidation(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")
	app := newPipelineApp(t, db, user, &stubPlaces{}, &stubWriter{})

	resp, _ := doJSON(t, app, http.MethodPost, "/scrape", map[string]interface{}{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing campaignId: status = %d, want 400", resp.StatusCode)
	}

	resp, _ = doJSON(t, app, http.MethodPost, "/scrape", map[string]interface{}{"campaignId": 999})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown campaign: status = %d, want 404", resp.StatusCode)
	}
}

func TestScrapeEndpointUpstreamFailure(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")

	campaign := models.Campaign{UserID: user.ID, Name: "failing", Status: models.StatusDraft}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatal(err)
	}

	places := &stubPlaces{err: &utils.UpstreamError{Service: "places", Status: "REQUEST_DENIED", Message: "bad key"}}
	app := newPipelineApp(t, db, user, places, &stubWriter{})

	resp, body := doJSON(t, app, http.MethodPost, "/scrape", map[string]interface{}{
		"campaignId": campaign.ID,
	})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if body["error"] == nil || body["error"] == "" {
		t.Error("error message missing from 500 response")
	}
}

func TestScrapeEndpointBusyCampaign(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")

	campaign := models.Campaign{UserID: user.ID, Name: "busy", Status: models.StatusScraping}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatal(err)
	}

	app := newPipelineApp(t, db, user, &stubPlaces{}, &stubWriter{})
	resp, _ := doJSON(t, app, http.MethodPost, "/scrape", map[string]interface{}{
		"campaignId": campaign.ID,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("status = %d, want 409 for in-flight campaign", resp.StatusCode)
	}
}

func TestGenerateEmailsEndpoint(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")

	campaign := models.Campaign{UserID: user.ID, Name: "ready", Status: models.StatusReady}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatal(err)
	}
	email := "a@example.com"
	lead := models.Lead{CampaignID: campaign.ID, PlaceID: "p1", BusinessName: "Gym", Email: &email, EmailStatus: models.EmailPending}
	if err := db.Create(&lead).Error; err != nil {
		t.Fatal(err)
	}
	tmpl := models.Template{UserID: user.ID, Name: "default", HTMLContent: "<p>x</p>", IsDefault: true}
	if err := db.Create(&tmpl).Error; err != nil {
		t.Fatal(err)
	}

	app := newPipelineApp(t, db, user, &stubPlaces{}, &stubWriter{})
	resp, body := doJSON(t, app, http.MethodPost, "/generate-emails", map[string]interface{}{
		"campaignId": campaign.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%v)", resp.StatusCode, body)
	}
	if body["generated"].(float64) != 1 || body["failed"].(float64) != 0 || body["total"].(float64) != 1 {
		t.Errorf("counts = %v", body)
	}
}

func TestGenerateEmailsEndpointErrors(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")

	campaign := models.Campaign{UserID: user.ID, Name: "ready", Status: models.StatusReady}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatal(err)
	}
	tmpl := models.Template{UserID: user.ID, Name: "default", HTMLContent: "<p>x</p>", IsDefault: true}
	if err := db.Create(&tmpl).Error; err != nil {
		t.Fatal(err)
	}

	app := newPipelineApp(t, db, user, &stubPlaces{}, &stubWriter{})

	// Missing campaignId.
	resp, _ := doJSON(t, app, http.MethodPost, "/generate-emails", map[string]interface{}{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing campaignId: status = %d, want 400", resp.StatusCode)
	}

	// Unknown template.
	resp, _ = doJSON(t, app, http.MethodPost, "/generate-emails", map[string]interface{}{
		"campaignId": campaign.ID,
		"templateId": 999,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown template: status = %d, want 404", resp.StatusCode)
	}

	// No pending leads.
	resp, _ = doJSON(t, app, http.MethodPost, "/generate-emails", map[string]interface{}{
		"campaignId": campaign.ID,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("no pending leads: status = %d, want 400", resp.StatusCode)
	}
}

func TestGenerateEmailsNoDefaultTemplate(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")

	campaign := models.Campaign{UserID: user.ID, Name: "ready", Status: models.StatusReady}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatal(err)
	}

	app := newPipelineApp(t, db, user, &stubPlaces{}, &stubWriter{})
	resp, _ := doJSON(t, app, http.MethodPost, "/generate-emails", map[string]interface{}{
		"campaignId": campaign.ID,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("no default template: status = %d, want 404", resp.StatusCode)
	}
}

func TestGenerateEmailsPartialFailure(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")

	campaign := models.Campaign{UserID: user.ID, Name: "ready", Status: models.StatusReady}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatal(err)
	}
	email := "a@example.com"
	lead := models.Lead{CampaignID: campaign.ID, PlaceID: "p1", BusinessName: "Gym", Email: &email, EmailStatus: models.EmailPending}
	if err := db.Create(&lead).Error; err != nil {
		t.Fatal(err)
	}
	tmpl := models.Template{UserID: user.ID, Name: "default", HTMLContent: "<p>x</p>", IsDefault: true}
	if err := db.Create(&tmpl).Error; err != nil {
		t.Fatal(err)
	}

	writer := &stubWriter{personalizeErr: errors.New("completion api down")}
	app := newPipelineApp(t, db, user, &stubPlaces{}, writer)

	// Per-lead failures are reported in counts, not as a request failure.
	resp, body := doJSON(t, app, http.MethodPost, "/generate-emails", map[string]interface{}{
		"campaignId": campaign.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200 with failure counts", resp.StatusCode)
	}
	if body["generated"].(float64) != 0 || body["failed"].(float64) != 1 {
		t.Errorf("counts = %v, want 0 generated, 1 failed", body)
	}
}

func TestGenerateTemplateEndpoint(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")

	writer := &stubWriter{templateHTML: "<html><body>{{business_name}}</body></html>"}
	app := newPipelineApp(t, db, user, &stubPlaces{}, writer)

	resp, body := doJSON(t, app, http.MethodPost, "/generate-template", map[string]interface{}{
		"prompt": "a welcome email for gyms",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if body["html"] != "<html><body>{{business_name}}</body></html>" {
		t.Errorf("html = %v", body["html"])
	}

	resp, _ = doJSON(t, app, http.MethodPost, "/generate-template", map[string]interface{}{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing prompt: status = %d, want 400", resp.StatusCode)
	}
}
