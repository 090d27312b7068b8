package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/bloomstem/internal/middleware"
	"github.com/example/bloomstem/internal/models"
	"github.com/example/bloomstem/internal/services"
	"github.com/example/bloomstem/internal/utils"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	admin *services.AdminService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type setStatusRequest struct {
	Status   string `json:"status" validate:"required"`
	AdminID  bodyID `json:"adminId"`
	LegacyID bodyID `json:"admin_id"`
}

type setPointsRequest struct {
	Points   *int64 `json:"points" validate:"required,min=0"`
	AdminID  bodyID `json:"adminId"`
	LegacyID bodyID `json:"admin_id"`
}

// adminID resolves the caller id from the token or the adminId parameter.
func adminID(c *fiber.Ctx, claimed string) (string, error) {
	id, _, err := middleware.ResolveCustomerID(c, claimed)
	return id, err
}

func queryAdminID(c *fiber.Ctx) (string, error) {
	return adminID(c, queryAny(c, "admin_id", "adminId"))
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	id, err := queryAdminID(c)
	if err != nil {
		return err
	}

	stats, err := h.admin.Dashboard(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": stats})
}

// ListAllOrders returns all orders with pagination and an optional status filter.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	id, err := queryAdminID(c)
	if err != nil {
		return err
	}

	var status models.Status
	if raw := c.Query("status"); raw != "" {
		parsed, ok := models.ParseStatus(raw)
		if !ok {
			parsed = models.Status(raw)
		}
		status = parsed
	}

	orders, err := h.admin.ListOrders(c.UserContext(), id, status)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       toOrderResponses(utils.Paginate(orders, pg)),
		"pagination": pg.Meta(len(orders)),
	})
}

// UpdateOrderStatus moves an order to a new status.
func (h *AdminHandler) UpdateOrderStatus(c *fiber.Ctx) error {
	var req setStatusRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	id, err := adminID(c, firstID(req.AdminID, req.LegacyID))
	if err != nil {
		return err
	}

	status, ok := models.ParseStatus(req.Status)
	if !ok {
		status = models.Status(req.Status)
	}

	order, err := h.admin.SetStatus(c.UserContext(), id, c.Params("id"), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": toOrderResponse(order)})
}

// ListAllUsers returns the customers derived from orders with their totals and balances.
func (h *AdminHandler) ListAllUsers(c *fiber.Ctx) error {
	id, err := queryAdminID(c)
	if err != nil {
		return err
	}

	customers, err := h.admin.ListCustomers(c.UserContext(), id)
	if err != nil {
		return err
	}

	pg := utils.ParsePagination(c)
	return c.JSON(fiber.Map{
		"success":    true,
		"data":       utils.Paginate(customers, pg),
		"pagination": pg.Meta(len(customers)),
	})
}

// UserOrders returns one customer's orders.
func (h *AdminHandler) UserOrders(c *fiber.Ctx) error {
	id, err := queryAdminID(c)
	if err != nil {
		return err
	}

	orders, err := h.admin.CustomerOrders(c.UserContext(), id, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "orders": toOrderResponses(orders)})
}

// UserPoints returns one customer's ledger movements.
func (h *AdminHandler) UserPoints(c *fiber.Ctx) error {
	id, err := queryAdminID(c)
	if err != nil {
		return err
	}

	entries, err := h.admin.PointsHistory(c.UserContext(), id, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": entries})
}

// SetUserPoints overrides a customer's balance.
func (h *AdminHandler) SetUserPoints(c *fiber.Ctx) error {
	var req setPointsRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	id, err := adminID(c, firstID(req.AdminID, req.LegacyID))
	if err != nil {
		return err
	}

	balance, err := h.admin.SetPoints(c.UserContext(), id, c.Params("id"), *req.Points)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    fiber.Map{"customer_id": c.Params("id"), "balance": balance},
	})
}
