package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/example/bloomstem/internal/catalog"
	"github.com/example/bloomstem/internal/models"
	"github.com/example/bloomstem/internal/store"
)

const (
	orderKeyPrefix   = "order:"
	historyKeyPrefix = "history:"

	followUpTimeout   = 5 * time.Second
	deliveryDaysAhead = 7
)

// OrderNotifier receives order events after they are persisted.
type OrderNotifier interface {
	NotifyOrderCreated(order models.Order)
	NotifyStatusChanged(order models.Order, old models.Status)
}

// CartItem is one requested catalog product.
type CartItem struct {
	ProductID string
	Quantity  int
}

// CreateOrderInput is a validated order-creation request.
type CreateOrderInput struct {
	CustomerID string
	Contact    models.Contact
	Delivery   models.Delivery
	Recipient  models.Recipient
	Items      []CartItem
	// UsePoints redeems the full redeemable quote unless Points asks for a specific amount.
	UsePoints bool
	Points    int64
}

// OrderServiceDeps groups OrderService collaborators.
type OrderServiceDeps struct {
	Store    store.Store
	Catalog  catalog.Catalog
	Ledger   *Ledger
	Notifier OrderNotifier
	Schedule SlotSchedule
	Pricing  Pricing
	Gate     *AdminGate
	NodeID   int64
	Log      *zap.Logger
	Clock    func() time.Time
}

// OrderService creates orders, keeps per-customer history and moves orders through statuses.
type OrderService struct {
	store    store.Store
	catalog  catalog.Catalog
	ledger   *Ledger
	notifier OrderNotifier
	schedule SlotSchedule
	pricing  Pricing
	gate     *AdminGate
	ids      *snowflake.Node
	log      *zap.Logger
	now      func() time.Time
}

// NewOrderService constructs OrderService.
func NewOrderService(d OrderServiceDeps) (*OrderService, error) {
	node, err := snowflake.NewNode(d.NodeID)
	if err != nil {
		return nil, fmt.Errorf("order id generator: %w", err)
	}
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}

	return &OrderService{
		store:    d.Store,
		catalog:  d.Catalog,
		ledger:   d.Ledger,
		notifier: d.Notifier,
		schedule: d.Schedule,
		pricing:  d.Pricing,
		gate:     d.Gate,
		ids:      node,
		log:      d.Log.Named("orders"),
		now:      clock,
	}, nil
}

// CreateOrder validates and persists a new order, then updates history, the loyalty ledger and
// queues notifications. History and ledger accrual are follow-ons: if they fail the order stays
// valid and the failure is logged.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (models.Order, error) {
	now := s.now()

	items, delivery, err := s.validate(in, now)
	if err != nil {
		return models.Order{}, err
	}

	id := s.ids.Generate()
	orderID := id.String()

	var subtotal int64
	for _, item := range items {
		subtotal += item.LineTotal()
	}

	discount, err := s.redeem(ctx, in, subtotal, orderID)
	if err != nil {
		return models.Order{}, err
	}

	order := models.Order{
		ID:         orderID,
		Number:     "#" + strings.ToUpper(id.Base36()),
		CustomerID: in.CustomerID,
		Contact:    in.Contact,
		Delivery:   delivery,
		Recipient:  normalizeRecipient(in.Recipient),
		Items:      items,
		Amounts:    s.pricing.Amounts(items, discount),
		Status:     models.StatusReceived,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	created, err := store.CreateJSON(ctx, s.store, orderKeyPrefix+orderID, order)
	if err != nil || !created {
		s.refund(ctx, in.CustomerID, discount, orderID)
		if err != nil {
			s.log.Error("failed to persist order", zap.String("order_id", orderID), zap.Error(err))
			return models.Order{}, unavailable("persist order", err)
		}
		s.log.Error("order id already taken", zap.String("order_id", orderID))
		return models.Order{}, fmt.Errorf("%w: %s", ErrDuplicateOrderID, orderID)
	}

	s.log.Info("order created",
		zap.String("order_id", orderID),
		zap.String("customer_id", in.CustomerID),
		zap.Int64("total", order.Amounts.Total),
		zap.Int64("discount", order.Amounts.LoyaltyDiscountApplied),
	)

	if in.CustomerID != "" {
		followCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
		if err := s.store.Append(followCtx, historyKeyPrefix+in.CustomerID, orderID); err != nil {
			s.log.Error("failed to append order to history",
				zap.String("order_id", orderID), zap.String("customer_id", in.CustomerID), zap.Error(err))
		}
		if _, err := s.ledger.Accrue(followCtx, in.CustomerID, subtotal, orderID); err != nil {
			s.log.Error("failed to accrue points",
				zap.String("order_id", orderID), zap.String("customer_id", in.CustomerID), zap.Error(err))
		}
		cancel()
	}

	s.notifier.NotifyOrderCreated(order)
	return order, nil
}

// GetOrder loads a single order.
func (s *OrderService) GetOrder(ctx context.Context, id string) (models.Order, error) {
	var order models.Order
	if err := store.GetJSON(ctx, s.store, orderKeyPrefix+id, &order); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Order{}, fmt.Errorf("order %s: %w", id, ErrNotFound)
		}
		return models.Order{}, unavailable("read order", err)
	}
	return order, nil
}

// ListOrders scans every order, most recent first.
func (s *OrderService) ListOrders(ctx context.Context) ([]models.Order, error) {
	records, err := s.store.ScanPrefix(ctx, orderKeyPrefix)
	if err != nil {
		return nil, unavailable("scan orders", err)
	}

	orders := make([]models.Order, 0, len(records))
	for _, rec := range records {
		var order models.Order
		if err := json.Unmarshal(rec.Value, &order); err != nil {
			s.log.Warn("skipping malformed order record", zap.String("key", rec.Key), zap.Error(err))
			continue
		}
		orders = append(orders, order)
	}
	sortRecentFirst(orders)
	return orders, nil
}

// ListHistory returns the customer's orders from the history index, most recent first.
func (s *OrderService) ListHistory(ctx context.Context, customerID string) ([]models.Order, error) {
	if customerID == "" {
		return nil, Invalid("customer id is required")
	}

	ids, err := s.store.Members(ctx, historyKeyPrefix+customerID)
	if err != nil {
		return nil, unavailable("read history", err)
	}

	orders := make([]models.Order, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		order, err := s.GetOrder(ctx, ids[i])
		if errors.Is(err, ErrNotFound) {
			s.log.Warn("history references missing order", zap.String("customer_id", customerID), zap.String("order_id", ids[i]))
			continue
		}
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// SetStatus moves an order to newStatus on behalf of a privileged admin. Setting the current
// status again is a no-op and sends nothing.
func (s *OrderService) SetStatus(ctx context.Context, orderID string, newStatus models.Status, adminID string) (models.Order, error) {
	if err := s.gate.Check(adminID); err != nil {
		return models.Order{}, err
	}
	if !newStatus.Valid() {
		return models.Order{}, Invalid("unknown status %q", newStatus)
	}

	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return models.Order{}, err
	}

	old := order.Status
	if old == newStatus {
		return order, nil
	}

	if old == models.StatusDelivered {
		s.log.Warn("administrative override: delivered order moved back",
			zap.String("order_id", orderID),
			zap.String("admin_id", adminID),
			zap.String("to", string(newStatus)),
		)
	}

	order.Status = newStatus
	order.UpdatedAt = s.now()
	if err := store.SetJSON(ctx, s.store, orderKeyPrefix+orderID, order); err != nil {
		return models.Order{}, unavailable("update order status", err)
	}

	s.log.Info("order status changed",
		zap.String("order_id", orderID),
		zap.String("admin_id", adminID),
		zap.String("from", string(old)),
		zap.String("to", string(newStatus)),
	)
	s.notifier.NotifyStatusChanged(order, old)
	return order, nil
}

// DeliveryWindows returns the windows still available for date.
func (s *OrderService) DeliveryWindows(date string) ([]TimeWindow, error) {
	day, err := s.schedule.ParseDate(date)
	if err != nil {
		return nil, Invalid("delivery date must be YYYY-MM-DD")
	}
	return s.schedule.Available(s.now(), day), nil
}

// NextDeliveryDay walks forward from today to the first day with an available window.
func (s *OrderService) NextDeliveryDay() (string, []TimeWindow) {
	now := s.now()
	for i := 0; i <= deliveryDaysAhead; i++ {
		day := now.AddDate(0, 0, i)
		if windows := s.schedule.Available(now, day); len(windows) > 0 {
			return s.schedule.FormatDate(day), windows
		}
	}
	return "", nil
}

func (s *OrderService) validate(in CreateOrderInput, now time.Time) ([]models.OrderItem, models.Delivery, error) {
	if len(in.Items) == 0 {
		return nil, models.Delivery{}, Invalid("cart is empty")
	}

	fields := map[string]string{}
	if strings.TrimSpace(in.Contact.Name) == "" {
		fields["contact.name"] = "contact name is required"
	}
	if strings.TrimSpace(in.Contact.Phone) == "" {
		fields["contact.phone"] = "contact phone is required"
	}
	if strings.TrimSpace(in.Delivery.City) == "" {
		fields["delivery.city"] = "city is required"
	}
	if strings.TrimSpace(in.Delivery.Street) == "" {
		fields["delivery.street"] = "street is required"
	}
	if strings.TrimSpace(in.Delivery.House) == "" {
		fields["delivery.house"] = "house is required"
	}
	if !in.Recipient.SameAsOrderer {
		if strings.TrimSpace(in.Recipient.Name) == "" {
			fields["recipient.name"] = "recipient name is required"
		}
		if strings.TrimSpace(in.Recipient.Phone) == "" {
			fields["recipient.phone"] = "recipient phone is required"
		}
	}
	if (in.UsePoints || in.Points != 0) && in.CustomerID == "" {
		fields["points"] = "points can only be redeemed by an identified customer"
	}
	if in.Points < 0 {
		fields["points"] = "points must not be negative"
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	for i, it := range in.Items {
		if it.Quantity < 1 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "quantity must be at least 1"
			continue
		}
		product, ok := s.catalog.Lookup(it.ProductID)
		if !ok {
			fields[fmt.Sprintf("items[%d].product_id", i)] = fmt.Sprintf("unknown product %q", it.ProductID)
			continue
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  it.Quantity,
		})
	}

	delivery := in.Delivery
	day, err := s.schedule.ParseDate(delivery.Date)
	if err != nil {
		fields["delivery.date"] = "delivery date must be YYYY-MM-DD"
	} else {
		window, ok := s.schedule.Find(now, day, delivery.TimeSlot)
		if !ok {
			fields["delivery.time_slot"] = fmt.Sprintf("time slot %q is not available on %s", delivery.TimeSlot, delivery.Date)
		} else {
			delivery.Date = s.schedule.FormatDate(day)
			delivery.TimeSlot = window.Label
		}
	}

	if len(fields) > 0 {
		return nil, models.Delivery{}, &ValidationError{Reason: "invalid order", Fields: fields}
	}
	return items, delivery, nil
}

func (s *OrderService) redeem(ctx context.Context, in CreateOrderInput, subtotal int64, orderID string) (int64, error) {
	switch {
	case in.CustomerID == "":
		return 0, nil
	case in.Points > 0:
		if in.Points > subtotal {
			return 0, Invalid("cannot redeem %d points on a %d subtotal", in.Points, subtotal)
		}
		return s.ledger.Redeem(ctx, in.CustomerID, in.Points, orderID)
	case in.UsePoints:
		return s.ledger.RedeemMax(ctx, in.CustomerID, subtotal, orderID)
	}
	return 0, nil
}

func (s *OrderService) refund(ctx context.Context, customerID string, points int64, orderID string) {
	if points <= 0 {
		return
	}
	refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
	defer cancel()

	if err := s.ledger.Refund(refundCtx, customerID, points, orderID); err != nil {
		s.log.Error("failed to refund points for unsaved order",
			zap.String("order_id", orderID),
			zap.String("customer_id", customerID),
			zap.Int64("points", points),
			zap.Error(err),
		)
	}
}

func normalizeRecipient(r models.Recipient) models.Recipient {
	if r.SameAsOrderer {
		return models.Recipient{SameAsOrderer: true}
	}
	return r
}

func sortRecentFirst(orders []models.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if !orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].CreatedAt.After(orders[j].CreatedAt)
		}
		return orders[i].ID > orders[j].ID
	})
}
