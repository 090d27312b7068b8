package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/bloomstem/internal/models"
)

const (
	recipientCustomer = "customer"
	recipientStaff    = "staff"
)

// NotifierConfig configures the notification dispatcher.
type NotifierConfig struct {
	StaffChatID string
	Timeout     time.Duration
	Retry       RetryConfig
	QueueSize   int
	Workers     int
}

// NotifierStats are cumulative delivery counters.
type NotifierStats struct {
	Queued  int64 `json:"queued"`
	Sent    int64 `json:"sent"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

type notification struct {
	event     string
	orderID   string
	recipient string
	chatID    string
	text      string
}

// Notifier fans order events out to the customer and the staff chat. Each recipient is a
// separate queued message, so one failing never prevents the other. Nothing is returned to
// the caller: failures are logged and counted.
type Notifier struct {
	messenger Messenger
	cfg       NotifierConfig
	log       *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan notification
	group  errgroup.Group

	queued  atomic.Int64
	sent    atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

// NewNotifier constructs a Notifier. Call Start to launch the workers.
func NewNotifier(messenger Messenger, cfg NotifierConfig, log *zap.Logger) *Notifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &Notifier{
		messenger: messenger,
		cfg:       cfg,
		log:       log.Named("notifier"),
		queue:     make(chan notification, cfg.QueueSize),
	}
}

// Start launches the delivery workers.
func (n *Notifier) Start() {
	for i := 0; i < n.cfg.Workers; i++ {
		n.group.Go(func() error {
			for msg := range n.queue {
				n.deliver(msg)
			}
			return nil
		})
	}
}

// Close stops accepting messages and waits until the queue is drained.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	_ = n.group.Wait()
}

// Stats returns a snapshot of the delivery counters.
func (n *Notifier) Stats() NotifierStats {
	return NotifierStats{
		Queued:  n.queued.Load(),
		Sent:    n.sent.Load(),
		Failed:  n.failed.Load(),
		Dropped: n.dropped.Load(),
	}
}

// NotifyOrderCreated queues the new-order messages.
func (n *Notifier) NotifyOrderCreated(order models.Order) {
	n.fanOut("order_created", order, orderCreatedCustomerText(order), orderCreatedStaffText(order))
}

// NotifyStatusChanged queues the status-change messages.
func (n *Notifier) NotifyStatusChanged(order models.Order, old models.Status) {
	n.fanOut("status_changed", order, statusChangedCustomerText(order), statusChangedStaffText(order, old))
}

func (n *Notifier) fanOut(event string, order models.Order, customerText, staffText string) {
	if order.CustomerID != "" {
		n.enqueue(notification{
			event:     event,
			orderID:   order.ID,
			recipient: recipientCustomer,
			chatID:    order.CustomerID,
			text:      customerText,
		})
	}

	if n.cfg.StaffChatID == "" {
		n.log.Debug("staff chat not configured", zap.String("order_id", order.ID))
		return
	}
	n.enqueue(notification{
		event:     event,
		orderID:   order.ID,
		recipient: recipientStaff,
		chatID:    n.cfg.StaffChatID,
		text:      staffText,
	})
}

func (n *Notifier) enqueue(msg notification) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	if n.closed {
		n.dropped.Inc()
		n.log.Warn("notifier closed, dropping message", fields(msg)...)
		return
	}

	select {
	case n.queue <- msg:
		n.queued.Inc()
	default:
		n.dropped.Inc()
		n.log.Warn("notification queue full, dropping message", fields(msg)...)
	}
}

func (n *Notifier) deliver(msg notification) {
	disabled := false
	err := retryWithBackoff(context.Background(), n.cfg.Retry, func(attempt int) error {
		ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout)
		defer cancel()

		err := n.messenger.SendMessage(ctx, msg.chatID, msg.text)
		if errors.Is(err, ErrMessengerDisabled) {
			disabled = true
			return nil
		}
		if err != nil {
			n.log.Debug("notification attempt failed", append(fields(msg), zap.Int("attempt", attempt), zap.Error(err))...)
		}
		return err
	})

	if disabled {
		n.log.Debug("messenger disabled, skipping message", fields(msg)...)
		return
	}
	if err != nil {
		n.failed.Inc()
		n.log.Warn("notification failed", append(fields(msg), zap.Error(err))...)
		return
	}
	n.sent.Inc()
}

func fields(msg notification) []zap.Field {
	return []zap.Field{
		zap.String("event", msg.event),
		zap.String("order_id", msg.orderID),
		zap.String("recipient", msg.recipient),
	}
}
