package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/bloomstem/internal/middleware"
	"github.com/example/bloomstem/internal/models"
	"github.com/example/bloomstem/internal/services"
)

// OrderHandler manages order endpoints.
type OrderHandler struct {
	orders *services.OrderService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(orders *services.OrderService) *OrderHandler {
	return &OrderHandler{orders: orders}
}

type cartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"min=1,max=99"`
}

type contactRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Phone string `json:"phone" validate:"required,max=32"`
	Email string `json:"email" validate:"omitempty,email"`
}

type deliveryRequest struct {
	City     string `json:"city" validate:"required"`
	Street   string `json:"street" validate:"required"`
	House    string `json:"house" validate:"required"`
	Unit     string `json:"unit"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	TimeSlot string `json:"time_slot" validate:"required"`
	Comment  string `json:"comment" validate:"max=500"`
}

type recipientRequest struct {
	SameAsOrderer bool   `json:"same_as_orderer"`
	Name          string `json:"name" validate:"max=100"`
	Phone         string `json:"phone" validate:"max=32"`
}

type createOrderRequest struct {
	CustomerID bodyID            `json:"customerId"`
	LegacyID   bodyID            `json:"customer_id"`
	Items      []cartItemRequest `json:"items" validate:"required,min=1,dive"`
	Contact    contactRequest    `json:"contact"`
	Delivery   deliveryRequest   `json:"delivery"`
	Recipient  recipientRequest  `json:"recipient"`
	UsePoints  bool              `json:"use_points"`
	Points     int64             `json:"points" validate:"min=0"`
}

type orderResponse struct {
	models.Order
	StatusLabel string `json:"status_label"`
}

func toOrderResponse(o models.Order) orderResponse {
	return orderResponse{Order: o, StatusLabel: o.StatusLabel()}
}

func toOrderResponses(orders []models.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	return out
}

// CreateOrder places an order. Point redemption needs a bearer token.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := decodeBody(c, &req); err != nil {
		return err
	}

	customerID, verified, err := middleware.ResolveCustomerID(c, firstID(req.CustomerID, req.LegacyID))
	if err != nil {
		return err
	}
	if (req.UsePoints || req.Points > 0) && !verified {
		return fiber.NewError(fiber.StatusUnauthorized, "sign in to redeem points")
	}

	in := services.CreateOrderInput{
		CustomerID: customerID,
		Contact: models.Contact{
			Name:  req.Contact.Name,
			Phone: req.Contact.Phone,
			Email: req.Contact.Email,
		},
		Delivery: models.Delivery{
			City:     req.Delivery.City,
			Street:   req.Delivery.Street,
			House:    req.Delivery.House,
			Unit:     req.Delivery.Unit,
			Date:     req.Delivery.Date,
			TimeSlot: req.Delivery.TimeSlot,
			Comment:  req.Delivery.Comment,
		},
		Recipient: models.Recipient{
			SameAsOrderer: req.Recipient.SameAsOrderer,
			Name:          req.Recipient.Name,
			Phone:         req.Recipient.Phone,
		},
		UsePoints: req.UsePoints,
		Points:    req.Points,
	}
	for _, item := range req.Items {
		in.Items = append(in.Items, services.CartItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.orders.CreateOrder(c.UserContext(), in)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":  true,
		"orderId":  order.ID,
		"order_id": order.ID,
		"data":     toOrderResponse(order),
	})
}

// GetOrder returns a single order. An order placed by a customer is only visible to that
// customer's token or to a request naming the same customer_id.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	order, err := h.orders.GetOrder(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	if order.CustomerID != "" {
		owner, _, err := middleware.ResolveCustomerID(c, queryAny(c, "customer_id", "customerId"))
		if err != nil || owner != order.CustomerID {
			return services.ErrNotFound
		}
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    toOrderResponse(order),
	})
}

// ListHistory returns the customer's orders, most recent first.
func (h *OrderHandler) ListHistory(c *fiber.Ctx) error {
	customerID, _, err := middleware.ResolveCustomerID(c, queryAny(c, "customer_id", "customerId"))
	if err != nil {
		return err
	}

	orders, err := h.orders.ListHistory(c.UserContext(), customerID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"orders":  toOrderResponses(orders),
	})
}

// DeliverySlots lists the windows for ?date=, or for the first day that still has one.
func (h *OrderHandler) DeliverySlots(c *fiber.Ctx) error {
	date := c.Query("date")
	if date == "" {
		day, windows := h.orders.NextDeliveryDay()
		return c.JSON(fiber.Map{
			"success": true,
			"date":    day,
			"slots":   windowsOrEmpty(windows),
		})
	}

	windows, err := h.orders.DeliveryWindows(date)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"date":    date,
		"slots":   windowsOrEmpty(windows),
	})
}

// ListStatuses returns the status codes with their display labels.
func (h *OrderHandler) ListStatuses(c *fiber.Ctx) error {
	out := make([]fiber.Map, 0, len(models.Statuses))
	for _, st := range models.Statuses {
		out = append(out, fiber.Map{"code": st, "label": st.Label()})
	}
	return c.JSON(fiber.Map{"success": true, "data": out})
}

func windowsOrEmpty(windows []services.TimeWindow) []services.TimeWindow {
	if windows == nil {
		return []services.TimeWindow{}
	}
	return windows
}
