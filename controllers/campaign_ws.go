package controller

import (
	"log"
	"time"

	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"leadforge/models"
	"leadforge/utils"
)

type campaignProgress struct {
	Status     models.CampaignStatus `json:"status"`
	LeadsCount int                   `json:"leadsCount"`
	EmailsSent int                   `json:"emailsSent"`
	Generated  int64                 `json:"generated"`
	LastError  string                `json:"lastError,omitempty"`
	Done       bool                  `json:"done"`
}

// HandleCampaignProgressWS streams pipeline progress for the campaign in
// the route path by polling its row. The client receives a progress frame
// every couple of seconds until the campaign settles.
func HandleCampaignProgressWS(db *gorm.DB, c *websocket.Conn) {
	defer c.Close()

	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return
	}

	campaignID, err := utils.ParseUint(c.Params("id"))
	if err != nil {
		log.Printf("WS: invalid campaign id %q", c.Params("id"))
		return
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		var campaign models.Campaign
		if err := db.Where("id = ? AND user_id = ?", campaignID, userID).First(&campaign).Error; err != nil {
			log.Printf("WS: campaign %d lookup failed: %v", campaignID, err)
			return
		}

		var generated int64
		db.Model(&models.Lead{}).
			Where("campaign_id = ? AND email_status IN ?", campaign.ID, []string{
				string(models.EmailGenerated), string(models.EmailSent),
			}).
			Count(&generated)

		progress := campaignProgress{
			Status:     campaign.Status,
			LeadsCount: campaign.LeadsCount,
			EmailsSent: campaign.EmailsSent,
			Generated:  generated,
			LastError:  campaign.LastError,
			Done:       !campaign.Status.IsTransient(),
		}

		if err := c.WriteJSON(progress); err != nil {
			log.Printf("WS: error writing JSON: %v", err)
			return
		}

		if progress.Done {
			return
		}
		<-ticker.C
	}
}
