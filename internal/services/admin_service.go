package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/bloomstem/internal/models"
)

// AdminGate is the allow-list of principals that may change order status and balances.
type AdminGate struct {
	ids map[string]struct{}
}

// NewAdminGate builds a gate from configured admin ids. Blank ids are ignored.
func NewAdminGate(ids []string) *AdminGate {
	g := &AdminGate{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			g.ids[id] = struct{}{}
		}
	}
	return g
}

// Check returns ErrUnauthorized unless id is on the allow-list.
func (g *AdminGate) Check(id string) error {
	if g == nil {
		return ErrUnauthorized
	}
	if _, ok := g.ids[strings.TrimSpace(id)]; !ok {
		return fmt.Errorf("%w: %q is not an admin", ErrUnauthorized, id)
	}
	return nil
}

// DashboardStats aggregates order counts and revenue.
type DashboardStats struct {
	TotalOrders    int64                   `json:"total_orders"`
	TotalCustomers int64                   `json:"total_customers"`
	TotalRevenue   int64                   `json:"total_revenue"`
	TodayRevenue   int64                   `json:"today_revenue"`
	OrdersByStatus map[models.Status]int64 `json:"orders_by_status"`
}

// CustomerSummary is one row of the admin customer list.
type CustomerSummary struct {
	CustomerID  string    `json:"customer_id"`
	Name        string    `json:"name"`
	Phone       string    `json:"phone"`
	OrderCount  int64     `json:"order_count"`
	TotalSpent  int64     `json:"total_spent"`
	Points      int64     `json:"points"`
	FirstSeenAt time.Time `json:"first_seen_at"`
}

// AdminService backs the admin panel. Every method checks the gate first.
type AdminService struct {
	orders *OrderService
	ledger *Ledger
	gate   *AdminGate
	log    *zap.Logger
}

// NewAdminService constructs AdminService.
func NewAdminService(orders *OrderService, ledger *Ledger, gate *AdminGate, log *zap.Logger) *AdminService {
	return &AdminService{orders: orders, ledger: ledger, gate: gate, log: log.Named("admin")}
}

// ListOrders returns all orders, most recent first, optionally filtered by status.
func (s *AdminService) ListOrders(ctx context.Context, adminID string, status models.Status) ([]models.Order, error) {
	if err := s.gate.Check(adminID); err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, Invalid("unknown status %q", status)
	}

	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	if status == "" {
		return orders, nil
	}

	filtered := orders[:0]
	for _, o := range orders {
		if o.Status == status {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

// SetStatus changes an order status.
func (s *AdminService) SetStatus(ctx context.Context, adminID, orderID string, status models.Status) (models.Order, error) {
	return s.orders.SetStatus(ctx, orderID, status, adminID)
}

// Dashboard summarizes all orders. Revenue is the sum of order totals; today is the current
// calendar day in the delivery location.
func (s *AdminService) Dashboard(ctx context.Context, adminID string) (DashboardStats, error) {
	if err := s.gate.Check(adminID); err != nil {
		return DashboardStats{}, err
	}

	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		return DashboardStats{}, err
	}

	stats := DashboardStats{OrdersByStatus: make(map[models.Status]int64, len(models.Statuses))}
	for _, st := range models.Statuses {
		stats.OrdersByStatus[st] = 0
	}

	today := s.orders.schedule.FormatDate(s.orders.now())
	customers := map[string]struct{}{}
	for _, o := range orders {
		stats.TotalOrders++
		stats.TotalRevenue += o.Amounts.Total
		stats.OrdersByStatus[o.Status]++
		if s.orders.schedule.FormatDate(o.CreatedAt) == today {
			stats.TodayRevenue += o.Amounts.Total
		}
		if o.CustomerID != "" {
			customers[o.CustomerID] = struct{}{}
		}
	}
	stats.TotalCustomers = int64(len(customers))
	return stats, nil
}

// ListCustomers derives the customer list from stored orders, oldest customer first.
func (s *AdminService) ListCustomers(ctx context.Context, adminID string) ([]CustomerSummary, error) {
	if err := s.gate.Check(adminID); err != nil {
		return nil, err
	}

	orders, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, err
	}

	byID := map[string]*CustomerSummary{}
	// orders are newest first, so walking backwards sees each customer's first order first
	for i := len(orders) - 1; i >= 0; i-- {
		o := orders[i]
		if o.CustomerID == "" {
			continue
		}
		c, ok := byID[o.CustomerID]
		if !ok {
			c = &CustomerSummary{CustomerID: o.CustomerID, FirstSeenAt: o.CreatedAt}
			byID[o.CustomerID] = c
		}
		c.Name = o.Contact.Name
		c.Phone = o.Contact.Phone
		c.OrderCount++
		c.TotalSpent += o.Amounts.Total
	}

	out := make([]CustomerSummary, 0, len(byID))
	for _, c := range byID {
		balance, err := s.ledger.Balance(ctx, c.CustomerID)
		if err != nil {
			return nil, err
		}
		c.Points = balance
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].FirstSeenAt.Equal(out[j].FirstSeenAt) {
			return out[i].FirstSeenAt.Before(out[j].FirstSeenAt)
		}
		return out[i].CustomerID < out[j].CustomerID
	})
	return out, nil
}

// CustomerOrders reads the customer's history index and falls back to a full scan when the
// index is empty, which covers orders whose history append failed.
func (s *AdminService) CustomerOrders(ctx context.Context, adminID, customerID string) ([]models.Order, error) {
	if err := s.gate.Check(adminID); err != nil {
		return nil, err
	}

	orders, err := s.orders.ListHistory(ctx, customerID)
	if err != nil || len(orders) > 0 {
		return orders, err
	}

	all, err := s.orders.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	for _, o := range all {
		if o.CustomerID == customerID {
			orders = append(orders, o)
		}
	}
	if len(orders) > 0 {
		s.log.Warn("history index missing orders, served from scan",
			zap.String("customer_id", customerID), zap.Int("orders", len(orders)))
	}
	return orders, nil
}

// SetPoints overrides a customer's balance.
func (s *AdminService) SetPoints(ctx context.Context, adminID, customerID string, points int64) (int64, error) {
	if err := s.gate.Check(adminID); err != nil {
		return 0, err
	}
	if customerID == "" {
		return 0, Invalid("customer id is required")
	}

	balance, err := s.ledger.Override(ctx, customerID, points, adminID)
	if err != nil {
		return 0, err
	}
	s.log.Info("points overridden",
		zap.String("admin_id", adminID), zap.String("customer_id", customerID), zap.Int64("balance", balance))
	return balance, nil
}

// PointsHistory returns the ledger movements for a customer.
func (s *AdminService) PointsHistory(ctx context.Context, adminID, customerID string) ([]models.LedgerEntry, error) {
	if err := s.gate.Check(adminID); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, customerID)
}
