package handler

import (
	"github.com/gofiber/fiber/v2"

	"refman/internal/service"
)

// RegisterRoutes attaches the HTTP surface to app. Handlers only translate
// between HTTP and the service; no storage logic lives here.
func RegisterRoutes(app *fiber.App, health Pinger, svc service.ReferenceService) {
	app.Get("/health", HealthCheck(health))
	app.Get("/healthz", LivenessProbe())

	refs := app.Group("/references")
	refs.Get("/", ListReferences(svc))
	refs.Post("/", CreateReference(svc))
	// Static segments go before /:id.
	refs.Get("/search", SearchReferences(svc))
	refs.Get("/export", ExportReferences(svc))
	refs.Post("/import", ImportReferences(svc))
	refs.Get("/:id", GetReference(svc))
	refs.Patch("/:id", UpdateReference(svc))
	refs.Delete("/:id", DeleteReference(svc))

	backups := app.Group("/backups")
	backups.Get("/", ListBackups(svc))
	backups.Post("/:key", CreateBackup(svc))
	backups.Post("/:key/restore", RestoreBackup(svc))
	backups.Delete("/:key", DeleteBackup(svc))
}
