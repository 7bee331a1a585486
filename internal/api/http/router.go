package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/service-desk/internal/api/http/handlers"
	"github.com/spec-kit/service-desk/internal/auth"
	"github.com/spec-kit/service-desk/internal/domain"
	"github.com/spec-kit/service-desk/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Accounts       *handlers.AccountsHandler
	Tickets        *handlers.TicketsHandler
	Recruitments   *handlers.RecruitmentsHandler
	Notifications  *handlers.NotificationsHandler
	Inventory      *handlers.InventoryHandler
	Files          *handlers.FilesHandler
	Metrics        *observability.Metrics
	AuthMiddleware *auth.Middleware
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Accounts.DirectoryLogin)
	app.Post("/auth/local", cfg.Accounts.LocalLogin)

	api := app.Group("", cfg.AuthMiddleware.Handle, auth.RequireAuthenticated())

	api.Get("/users/me", cfg.Accounts.Me)
	admin := api.Group("/users", auth.RequireRole(domain.RoleAdmin))
	admin.Get("", cfg.Accounts.List)
	admin.Put("/:id", cfg.Accounts.Update)
	admin.Delete("/:id", cfg.Accounts.Delete)

	api.Get("/metrics", auth.RequireRole(domain.RoleAdmin), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"data": fiber.Map{
			"requests": cfg.Metrics.Snapshot(),
			"errors":   cfg.Metrics.ErrorSnapshot(),
		}})
	})

	tickets := api.Group("/tickets")
	tickets.Post("", cfg.Tickets.Create)
	tickets.Get("/mine", cfg.Tickets.ListMine)
	tickets.Get("/assigned", cfg.Tickets.ListAssigned)
	tickets.Get("/pool", cfg.Tickets.ListPool)
	tickets.Get("/validation", cfg.Tickets.ListValidation)
	tickets.Get("/:id", cfg.Tickets.Get)
	tickets.Post("/:id/action", cfg.Tickets.ManagerAction)
	tickets.Post("/:id/take", cfg.Tickets.Take)
	tickets.Post("/:id/assign", cfg.Tickets.Assign)
	tickets.Post("/:id/close", cfg.Tickets.Close)
	tickets.Post("/:id/transfer", cfg.Tickets.Transfer)
	tickets.Post("/:id/waiting", cfg.Tickets.RequestInput)
	tickets.Post("/:id/messages", cfg.Tickets.AddMessage)
	tickets.Post("/:id/finance/document", cfg.Tickets.SubmitDocument)
	tickets.Post("/:id/finance/validate", cfg.Tickets.ValidateFinance)
	tickets.Post("/:id/finance/sign", cfg.Tickets.Sign)

	api.Get("/stats", cfg.Tickets.Stats)

	recruitments := api.Group("/recruitments")
	recruitments.Post("", cfg.Recruitments.Create)
	recruitments.Get("", cfg.Recruitments.List)
	recruitments.Get("/:id", cfg.Recruitments.Get)
	recruitments.Post("/:id/action", cfg.Recruitments.Action)

	notifications := api.Group("/notifications")
	notifications.Get("", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.CountUnread)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)

	teams := api.Group("/teams")
	teams.Get("/:service/messages", cfg.Notifications.ListTeamMessages)
	teams.Post("/:service/messages", cfg.Notifications.PostTeamMessage)

	inventory := api.Group("/inventory")
	inventory.Get("/materials", cfg.Inventory.ListMaterials)
	inventory.Post("/materials", cfg.Inventory.CreateMaterial)
	inventory.Put("/materials/:id", cfg.Inventory.UpdateMaterial)
	inventory.Delete("/materials/:id", cfg.Inventory.DeleteMaterial)
	inventory.Get("/loans", cfg.Inventory.ListLoans)
	inventory.Post("/loans", cfg.Inventory.Checkout)
	inventory.Post("/loans/:id/return", cfg.Inventory.Return)

	api.Post("/files", cfg.Files.Upload)
	api.Get("/files/*", cfg.Files.Download)
}
