package api

import (
	"github.com/bilgisen/newswire/internal/middleware"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// SetupRoutes configures all the routes for the application
func SetupRoutes(app *fiber.App, h *Handlers, adminKey string) {
	app.Use(recover.New())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api/v1")

	api.Get("/health", h.HealthCheck)

	news := api.Group("/news")
	news.Get("", middleware.ValidateQuery[ListQuery](), h.GetNews)
	news.Get("/rss", h.GetRSS)
	news.Get("/:id", h.GetNewsByID)

	admin := api.Group("/admin", middleware.AdminOnly(adminKey))
	admin.Post("/ingest", h.TriggerIngest)
	admin.Get("/ingest/status", h.IngestStatus)
	admin.Patch("/news/:id", middleware.ValidateBody[SetActiveRequest](), h.SetNewsActive)
	admin.Delete("/news/inactive", h.DeleteInactiveNews)

	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Endpoint not found",
		})
	})
}
