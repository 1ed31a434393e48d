package portal

import "github.com/gofiber/fiber/v2"

// RegisterAPIRoutes mounts the authenticated JSON API.
func RegisterAPIRoutes(app *fiber.App, records *RecordsHandler, sim *SimulationHandler, authMW fiber.Handler) {
	api := app.Group("/api", authMW)

	api.Put("/simulation", sim.Set)
	api.Delete("/simulation", sim.Clear)

	apps := api.Group("/apps/:app")
	apps.Get("/tables/:table", records.List)
	apps.Post("/tables/:table", records.Create)
	apps.Put("/tables/:table", records.Update)
	apps.Delete("/tables/:table", records.Delete)
	apps.Post("/procs/:proc", records.Procedure)
}
