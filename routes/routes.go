package routes

import (
	"log"
	"os"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"leadforge/config"
	controller "leadforge/controllers"
	"leadforge/middleware"
	"leadforge/utils"
)

func SetupRoutes(app *fiber.App, db *gorm.DB) {
	// Request logging for the whole API surface
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Public auth endpoints (no authentication required)
	auth := app.Group("/auth")
	auth.Post("/register", controller.Register)
	auth.Post("/login", controller.Login)
	auth.Post("/refresh", controller.RefreshToken)

	protectedAuth := auth.Group("", middleware.Protected())
	protectedAuth.Get("/me", controller.GetCurrentUser)

	// Pipeline services share the process-wide DB handle
	scraperLogger := log.New(os.Stdout, "SCRAPER: ", log.LstdFlags)
	generatorLogger := log.New(os.Stdout, "GENERATOR: ", log.LstdFlags)
	mailerLogger := log.New(os.Stdout, "MAILER: ", log.LstdFlags)

	placesClient := utils.NewPlacesClient(config.AppConfig.Places, scraperLogger)
	enricher := utils.NewEmailEnricher(scraperLogger)
	emailWriter := utils.NewEmailWriter(config.AppConfig.Completion, generatorLogger)

	scraperService := utils.NewScraperService(db, placesClient, enricher, scraperLogger)
	templateService := utils.NewTemplateService(db, log.New(os.Stdout, "TEMPLATE: ", log.LstdFlags))
	emailGenerator := utils.NewEmailGenerator(db, emailWriter, generatorLogger)
	campaignMailer := utils.NewCampaignMailer(db, utils.NewSMTPSender(config.AppConfig), mailerLogger)

	campaignController := controller.NewCampaignController(db, log.New(os.Stdout, "CAMPAIGN: ", log.LstdFlags))
	scrapeController := controller.NewScrapeController(db, scraperService, scraperLogger)
	generateController := controller.NewGenerateController(db, emailGenerator, templateService, emailWriter, generatorLogger)
	templateController := controller.NewTemplateController(db, templateService, log.New(os.Stdout, "TEMPLATE: ", log.LstdFlags))
	sendController := controller.NewSendController(db, campaignMailer, mailerLogger)

	api := app.Group("", middleware.Protected())

	// Campaign CRUD
	campaign := api.Group("/campaigns")
	campaign.Post("/", campaignController.CreateCampaign)
	campaign.Get("/", campaignController.GetCampaigns)
	campaign.Get("/:id", campaignController.GetCampaign)
	campaign.Patch("/:id", campaignController.UpdateCampaign)
	campaign.Delete("/:id", campaignController.DeleteCampaign)
	campaign.Get("/:id/leads", campaignController.GetCampaignLeads)

	// Pipeline stages, rate limited per user
	api.Post("/scrape", middleware.PipelineRateLimiter(), scrapeController.Scrape)
	api.Post("/generate-emails", middleware.PipelineRateLimiter(), generateController.GenerateEmails)
	api.Post("/generate-template", middleware.PipelineRateLimiter(), generateController.GenerateTemplate)
	api.Post("/send-emails", sendController.SendEmails)

	// Template CRUD
	template := api.Group("/templates")
	template.Post("/", templateController.CreateTemplate)
	template.Get("/", templateController.GetTemplates)
	template.Get("/:id", templateController.GetTemplate)
	template.Delete("/:id", templateController.DeleteTemplate)

	// WebSocket route for campaign progress
	api.Get("/campaigns/:id/progress", websocket.New(func(c *websocket.Conn) {
		controller.HandleCampaignProgressWS(db, c)
	}))

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": "1.0.0",
		})
	})
}
