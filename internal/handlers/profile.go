package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/bloomstem/internal/middleware"
	"github.com/example/bloomstem/internal/models"
	"github.com/example/bloomstem/internal/services"
	"github.com/example/bloomstem/internal/utils"
)

// ProfileHandler exposes the customer's loyalty balance.
type ProfileHandler struct {
	ledger *services.Ledger
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(ledger *services.Ledger) *ProfileHandler {
	return &ProfileHandler{ledger: ledger}
}

// GetPoints returns the balance, the redeemable quote and a page of ledger movements.
func (h *ProfileHandler) GetPoints(c *fiber.Ctx) error {
	customerID, _, err := middleware.ResolveCustomerID(c, queryAny(c, "customer_id", "customerId"))
	if err != nil {
		return err
	}
	if customerID == "" {
		return services.Invalid("customer id is required")
	}

	ctx := c.UserContext()
	balance, err := h.ledger.Balance(ctx, customerID)
	if err != nil {
		return err
	}
	redeemable, err := h.ledger.QuoteRedeemable(ctx, customerID)
	if err != nil {
		return err
	}
	entries, err := h.ledger.History(ctx, customerID)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	page := utils.Paginate(entries, pg)
	if page == nil {
		page = []models.LedgerEntry{}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"customer_id":  customerID,
			"balance":      balance,
			"redeemable":   redeemable,
			"transactions": page,
		},
		"pagination": pg.Meta(len(entries)),
	})
}
