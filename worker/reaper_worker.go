package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"leadforge/models"
)

// ReaperWorker recovers campaigns stuck in a transient pipeline status.
// A scrape or generation batch that died mid-request (process restart,
// platform timeout) leaves its campaign parked at "scraping", "generating"
// or "sending" forever; the reaper resets such rows back to "ready" so the
// user can re-trigger the stage.
type ReaperWorker struct {
	DB       *gorm.DB
	Logger   *log.Logger
	MaxAge   time.Duration
	Interval time.Duration
}

func NewReaperWorker(db *gorm.DB, logger *log.Logger, maxAge time.Duration) *ReaperWorker {
	return &ReaperWorker{
		DB:       db,
		Logger:   logger,
		MaxAge:   maxAge,
		Interval: 5 * time.Minute,
	}
}

func (rw *ReaperWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	rw.Logger.Println("Reaper worker started")

	ticker := time.NewTicker(rw.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			rw.Logger.Println("Reaper worker shutting down...")
			return
		case <-ticker.C:
			rw.ReapStuckCampaigns()
		}
	}
}

// ReapStuckCampaigns resets transient campaigns older than MaxAge.
func (rw *ReaperWorker) ReapStuckCampaigns() {
	cutoff := time.Now().Add(-rw.MaxAge)

	transient := []models.CampaignStatus{
		models.StatusScraping,
		models.StatusGenerating,
		models.StatusSending,
	}

	var stuck []models.Campaign
	if err := rw.DB.Where("status IN ? AND updated_at < ?", transient, cutoff).Find(&stuck).Error; err != nil {
		rw.Logger.Printf("Error fetching stuck campaigns: %v", err)
		return
	}

	for _, campaign := range stuck {
		rw.Logger.Printf("Resetting stuck campaign %d (status %s, updated %s)",
			campaign.ID, campaign.Status, campaign.UpdatedAt.Format(time.RFC3339))

		if err := rw.DB.Model(&models.Campaign{}).
			Where("id = ? AND status = ?", campaign.ID, campaign.Status).
			Updates(map[string]interface{}{
				"status":     models.StatusReady,
				"last_error": "stage interrupted, reset by reaper",
			}).Error; err != nil {
			rw.Logger.Printf("Error resetting campaign %d: %v", campaign.ID, err)
		}
	}
}
