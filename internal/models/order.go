package models

import (
	"strings"
	"time"
)

// Status is the fulfilment stage of an order.
type Status string

const (
	StatusReceived       Status = "received"
	StatusPacking        Status = "packing"
	StatusPacked         Status = "packed"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
)

// Statuses lists every status in fulfilment order.
var Statuses = []Status{
	StatusReceived,
	StatusPacking,
	StatusPacked,
	StatusOutForDelivery,
	StatusDelivered,
}

var statusLabels = map[Status]string{
	StatusReceived:       "Принят",
	StatusPacking:        "Собираем заказ",
	StatusPacked:         "Заказ собран",
	StatusOutForDelivery: "Доставляем заказ",
	StatusDelivered:      "Доставлено",
}

// Label returns the customer-facing name of the status.
func (s Status) Label() string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// Rank is the position of s in the fulfilment sequence, or -1 when unknown.
func (s Status) Rank() int {
	for i, st := range Statuses {
		if st == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// ParseStatus accepts either the API code or the display label.
func ParseStatus(raw string) (Status, bool) {
	raw = strings.TrimSpace(raw)
	for _, st := range Statuses {
		if strings.EqualFold(raw, string(st)) || raw == st.Label() {
			return st, true
		}
	}
	return "", false
}

// Contact is the person placing the order.
type Contact struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// Delivery holds the address and the requested delivery window.
type Delivery struct {
	City     string `json:"city"`
	Street   string `json:"street"`
	House    string `json:"house"`
	Unit     string `json:"unit,omitempty"`
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
	Comment  string `json:"comment,omitempty"`
}

// Recipient is who receives the bouquet. SameAsOrderer leaves Name and Phone empty.
type Recipient struct {
	SameAsOrderer bool   `json:"same_as_orderer"`
	Name          string `json:"name,omitempty"`
	Phone         string `json:"phone,omitempty"`
}

// OrderItem snapshots product name and price at order time.
type OrderItem struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice int64  `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// LineTotal is unit price times quantity.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Amounts are frozen at creation.
type Amounts struct {
	ItemsSubtotal          int64 `json:"items_subtotal"`
	ServiceCharge          int64 `json:"service_charge"`
	DeliveryFee            int64 `json:"delivery_fee"`
	LoyaltyDiscountApplied int64 `json:"loyalty_discount_applied"`
	Total                  int64 `json:"total"`
	PointsEarned           int64 `json:"points_earned"`
}

// Order is the persisted order record.
type Order struct {
	ID         string      `json:"id"`
	Number     string      `json:"number"`
	CustomerID string      `json:"customer_id,omitempty"`
	Contact    Contact     `json:"contact"`
	Delivery   Delivery    `json:"delivery"`
	Recipient  Recipient   `json:"recipient"`
	Items      []OrderItem `json:"items"`
	Amounts    Amounts     `json:"amounts"`
	Status     Status      `json:"status"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// StatusLabel is a convenience for templates and JSON consumers.
func (o Order) StatusLabel() string {
	return o.Status.Label()
}
