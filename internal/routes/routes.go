package routes

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/bloomstem/internal/catalog"
	"github.com/example/bloomstem/internal/config"
	"github.com/example/bloomstem/internal/handlers"
	"github.com/example/bloomstem/internal/middleware"
	"github.com/example/bloomstem/internal/services"
	"github.com/example/bloomstem/internal/store"
)

// Deps are the constructed components the HTTP layer serves.
type Deps struct {
	Store    store.Store
	Catalog  catalog.Catalog
	Orders   *services.OrderService
	Admin    *services.AdminService
	Ledger   *services.Ledger
	Reviews  *services.ReviewService
	Notifier *services.Notifier
	Log      *zap.Logger
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, cfg *config.Config, d Deps) {
	orderHandler := handlers.NewOrderHandler(d.Orders)
	profileHandler := handlers.NewProfileHandler(d.Ledger)
	productHandler := handlers.NewProductHandler(d.Catalog, d.Reviews)
	adminHandler := handlers.NewAdminHandler(d.Admin)
	healthHandler := handlers.NewHealthHandler(d.Store, d.Notifier, d.Log)

	api := app.Group("/api", middleware.StoreTimeout(cfg.StoreTimeout), middleware.Authenticate(cfg.JWTSecret))

	api.Get("/health", healthHandler.Health)

	// Catalog and reviews
	products := api.Group("/products")
	products.Get("/", productHandler.ListProducts)
	products.Get("/:id", productHandler.GetProduct)
	products.Get("/:id/reviews", productHandler.ListReviews)
	products.Post("/:id/reviews", productHandler.CreateReview)

	// Ordering
	api.Get("/delivery/slots", orderHandler.DeliverySlots)
	api.Get("/order-statuses", orderHandler.ListStatuses)
	api.Post("/orders", orderHandler.CreateOrder)
	api.Get("/orders/:id", orderHandler.GetOrder)
	api.Get("/history", orderHandler.ListHistory)
	api.Get("/points", profileHandler.GetPoints)

	// Admin routes; every handler checks the allow-list
	admin := api.Group("/admin")
	admin.Get("/dashboard", adminHandler.DashboardStats)
	admin.Get("/orders", adminHandler.ListAllOrders)
	admin.Post("/orders/:id/status", adminHandler.UpdateOrderStatus)
	admin.Get("/users", adminHandler.ListAllUsers)
	admin.Get("/users/:id/orders", adminHandler.UserOrders)
	admin.Get("/users/:id/points", adminHandler.UserPoints)
	admin.Post("/users/:id/points", adminHandler.SetUserPoints)
}
