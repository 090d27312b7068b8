package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/bloomstem/internal/services"
	"github.com/example/bloomstem/internal/store"
)

// HealthHandler reports store reachability and notification counters.
type HealthHandler struct {
	store    store.Store
	notifier *services.Notifier
	log      *zap.Logger
}

// NewHealthHandler constructs HealthHandler.
func NewHealthHandler(s store.Store, notifier *services.Notifier, log *zap.Logger) *HealthHandler {
	return &HealthHandler{store: s, notifier: notifier, log: log}
}

// Health pings the store.
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := fiber.StatusOK
	storeState := "ok"
	if err := h.store.Ping(c.UserContext()); err != nil {
		h.log.Warn("health check: store ping failed", zap.Error(err))
		status = fiber.StatusServiceUnavailable
		storeState = "unavailable"
	}

	return c.Status(status).JSON(fiber.Map{
		"success":       status == fiber.StatusOK,
		"store":         storeState,
		"notifications": h.notifier.Stats(),
	})
}
