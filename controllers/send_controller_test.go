package controller_test

import (
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	controller "leadforge/controllers"
	"leadforge/models"
	"leadforge/utils"
)

type stubSender struct {
	sent []string
}

func (s *stubSender) Send(to, subject, htmlBody string) (string, error) {
	s.sent = append(s.sent, to)
	return "msg-1", nil
}

func newSendApp(t *testing.T, db *gorm.DB, user *models.User, sender *stubSender) *fiber.App {
	t.Helper()

	sc := controller.NewSendController(db, utils.NewCampaignMailer(db, sender, testLogger()), testLogger())
	app := fiber.New()
	app.Use(fakeAuth(user))
	app.Post("/send-emails", sc.SendEmails)
	return app
}

func TestSendEmailsEndpoint(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")

	campaign := models.Campaign{UserID: user.ID, Name: "ready", Status: models.StatusReady}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatal(err)
	}
	email := "a@example.com"
	lead := models.Lead{
		CampaignID:       campaign.ID,
		PlaceID:          "p1",
		BusinessName:     "Gym",
		Email:            &email,
		EmailStatus:      models.EmailGenerated,
		GeneratedSubject: "Hi",
		GeneratedBody:    "<p>Hi</p>",
	}
	if err := db.Create(&lead).Error; err != nil {
		t.Fatal(err)
	}

	sender := &stubSender{}
	app := newSendApp(t, db, user, sender)

	resp, body := doJSON(t, app, http.MethodPost, "/send-emails", map[string]interface{}{
		"campaignId": campaign.ID,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d (%v)", resp.StatusCode, body)
	}
	if body["sent"].(float64) != 1 || body["total"].(float64) != 1 {
		t.Errorf("counts = %v", body)
	}
	if len(sender.sent) != 1 || sender.sent[0] != email {
		t.Errorf("sender.sent = %v", sender.sent)
	}

	var updated models.Campaign
	if err := db.First(&updated, campaign.ID).Error; err != nil {
		t.Fatal(err)
	}
	if updated.Status != models.StatusDone {
		t.Errorf("campaign status = %s, want done", updated.Status)
	}
}

func TestSendEmailsNothingGenerated(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")

	campaign := models.Campaign{UserID: user.ID, Name: "empty", Status: models.StatusReady}
	if err := db.Create(&campaign).Error; err != nil {
		t.Fatal(err)
	}

	app := newSendApp(t, db, user, &stubSender{})
	resp, _ := doJSON(t, app, http.MethodPost, "/send-emails", map[string]interface{}{
		"campaignId": campaign.ID,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 when nothing is generated", resp.StatusCode)
	}
}

func TestSendEmailsUnknownCampaign(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "owner@example.com")

	app := newSendApp(t, db, user, &stubSender{})
	resp, _ := doJSON(t, app, http.MethodPost, "/send-emails", map[string]interface{}{
		"campaignId": 42,
	})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
