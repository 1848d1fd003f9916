package utils

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
	"gorm.io/gorm"

	"leadforge/config"
	"leadforge/models"
)

// ErrNoGeneratedLeads means the campaign has nothing to send: no lead in
// status "generated".
var ErrNoGeneratedLeads = errors.New("no generated leads ready to send")

// SendResult reports a finished send batch.
type SendResult struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Total  int `json:"total"`
}

// MessageSender delivers one outbound email and returns a message id.
type MessageSender interface {
	Send(to, subject, htmlBody string) (string, error)
}

// SMTPSender delivers mail through the configured SMTP relay via gomail.
type SMTPSender struct {
	dialer    *gomail.Dialer
	fromEmail string
	fromName  string
}

func NewSMTPSender(cfg config.Config) *SMTPSender {
	return &SMTPSender{
		dialer:    gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
	}
}

func (s *SMTPSender) Send(to, subject, htmlBody string) (string, error) {
	messageID := uuid.New().String()

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.fromEmail, s.fromName)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", "<"+messageID+"@leadforge>")
	m.SetBody("text/html", htmlBody)

	if err := s.dialer.DialAndSend(m); err != nil {
		return "", err
	}
	return messageID, nil
}

// CampaignMailer runs the send stage: deliver every generated email of a
// campaign and drive the campaign to done.
type CampaignMailer struct {
	DB     *gorm.DB
	Sender MessageSender
	Logger *log.Logger
}

func NewCampaignMailer(db *gorm.DB, sender MessageSender, logger *log.Logger) *CampaignMailer {
	return &CampaignMailer{
		DB:     db,
		Sender: sender,
		Logger: logger,
	}
}

// SendForCampaign sends the generated emails of the campaign, optionally
// restricted to leadIDs. Per-lead failures are counted and recorded on the
// lead; the batch always runs to the end.
func (cm *CampaignMailer) SendForCampaign(ctx context.Context, campaignID uint, leadIDs []uint) (*SendResult, error) {
	var campaign models.Campaign
	if err := cm.DB.First(&campaign, campaignID).Error; err != nil {
		return nil, err
	}

	if err := models.ClaimStatus(cm.DB, campaign.ID, models.StatusSending, models.StatusReady); err != nil {
		return nil, err
	}

	query := cm.DB.
		Where("campaign_id = ?", campaign.ID).
		Where("email_status = ?", models.EmailGenerated).
		Where("email IS NOT NULL AND email <> ''")
	if len(leadIDs) > 0 {
		query = query.Where("id IN ?", leadIDs)
	}

	var leads []models.Lead
	if err := query.Order("id").Find(&leads).Error; err != nil {
		cm.DB.Model(&models.Campaign{}).
			Where("id = ? AND status = ?", campaign.ID, models.StatusSending).
			Update("status", models.StatusReady)
		return nil, err
	}
	if len(leads) == 0 {
		cm.DB.Model(&models.Campaign{}).
			Where("id = ? AND status = ?", campaign.ID, models.StatusSending).
			Update("status", models.StatusReady)
		return nil, ErrNoGeneratedLeads
	}

	result := &SendResult{Total: len(leads)}
	for i := range leads {
		lead := &leads[i]

		select {
		case <-ctx.Done():
			cm.finishSend(campaign.ID, result, ctx.Err().Error())
			return result, ctx.Err()
		default:
		}

		messageID, sendErr := cm.Sender.Send(*lead.Email, lead.GeneratedSubject, lead.GeneratedBody)
		if sendErr != nil {
			result.Failed++
			LogError("email_send_failed", sendErr, map[string]interface{}{
				"campaign_id": campaign.ID,
				"lead_id":     lead.ID,
			})
			if err := cm.DB.Model(lead).Updates(map[string]interface{}{
				"email_status": models.EmailFailed,
				"last_error":   sendErr.Error(),
			}).Error; err != nil {
				cm.Logger.Printf("failed to mark lead %d as failed: %v", lead.ID, err)
			}
			continue
		}

		cm.Logger.Printf("sent email to lead %d (message %s)", lead.ID, messageID)
		if err := cm.DB.Model(lead).Updates(map[string]interface{}{
			"email_status": models.EmailSent,
			"sent_at":      time.Now(),
			"last_error":   "",
		}).Error; err != nil {
			cm.Logger.Printf("failed to mark lead %d as sent: %v", lead.ID, err)
			continue
		}
		result.Sent++
	}

	lastError := ""
	if result.Sent == 0 && result.Failed > 0 {
		lastError = "sending failed for every selected lead"
	}
	cm.finishSend(campaign.ID, result, lastError)

	return result, nil
}

func (cm *CampaignMailer) finishSend(campaignID uint, result *SendResult, lastError string) {
	if err := cm.DB.Model(&models.Campaign{}).
		Where("id = ? AND status = ?", campaignID, models.StatusSending).
		Updates(map[string]interface{}{
			"status":       models.StatusDone,
			"emails_sent":  gorm.Expr("emails_sent + ?", result.Sent),
			"last_error":   lastError,
			"completed_at": time.Now(),
		}).Error; err != nil {
		cm.Logger.Printf("failed to complete campaign %d: %v", campaignID, err)
	}
}
