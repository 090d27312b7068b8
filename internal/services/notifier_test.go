package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/bloomstem/internal/models"
)

func sampleOrder() models.Order {
	return models.Order{
		ID:         "1",
		Number:     "#ABC",
		CustomerID: testCustomer,
		Contact:    models.Contact{Name: "Анна <b>", Phone: "+7999"},
		Delivery:   models.Delivery{City: "Москва", Street: "Тверская", House: "7", Date: "2026-05-11", TimeSlot: "12:00-14:00"},
		Recipient:  models.Recipient{SameAsOrderer: true},
		Items:      []models.OrderItem{{ProductID: "1", Name: "Нежность роз", UnitPrice: 4500, Quantity: 2}},
		Amounts:    models.Amounts{ItemsSubtotal: 9000, Total: 10250, PointsEarned: 90},
		Status:     models.StatusReceived,
	}
}

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{MaxAttempts: attempts, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestNotifierIsolatesRecipients(t *testing.T) {
	m := newRecordingMessenger()
	m.failures[testCustomer] = -1

	n := NewNotifier(m, NotifierConfig{StaffChatID: testStaff, Retry: fastRetry(2)}, zap.NewNop())
	n.Start()
	n.NotifyOrderCreated(sampleOrder())
	n.Close()

	staff := m.sentTo(testStaff)
	require.Len(t, staff, 1)
	assert.Contains(t, staff[0].text, "НОВЫЙ ЗАКАЗ #ABC")
	assert.Contains(t, staff[0].text, "Анна &lt;b&gt;")
	assert.Empty(t, m.sentTo(testCustomer))

	stats := n.Stats()
	assert.Equal(t, int64(2), stats.Queued)
	assert.Equal(t, int64(1), stats.Sent)
	assert.Equal(t, int64(1), stats.Failed)
	assert.Equal(t, 2, m.calls[testCustomer])
}

func TestNotifierRetriesTransientFailure(t *testing.T) {
	m := newRecordingMessenger()
	m.failures[testStaff] = 2

	n := NewNotifier(m, NotifierConfig{StaffChatID: testStaff, Retry: fastRetry(3)}, zap.NewNop())
	n.Start()
	n.NotifyStatusChanged(sampleOrder(), models.StatusReceived)
	n.Close()

	staff := m.sentTo(testStaff)
	require.Len(t, staff, 1)
	assert.Contains(t, staff[0].text, "Принят → <b>Принят</b>")
	assert.Equal(t, 3, m.calls[testStaff])
	assert.Equal(t, int64(0), n.Stats().Failed)
}

func TestNotifierSkipsStaffWithoutChat(t *testing.T) {
	m := newRecordingMessenger()
	n := NewNotifier(m, NotifierConfig{Retry: fastRetry(1)}, zap.NewNop())
	n.Start()

	order := sampleOrder()
	order.Status = models.StatusPacked
	n.NotifyStatusChanged(order, models.StatusPacking)
	n.Close()

	msgs := m.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, testCustomer, msgs[0].chatID)
	assert.Contains(t, msgs[0].text, "Заказ собран")
}

func TestNotifierDropsWhenQueueFull(t *testing.T) {
	m := newRecordingMessenger()
	n := NewNotifier(m, NotifierConfig{StaffChatID: testStaff, QueueSize: 1, Retry: fastRetry(1)}, zap.NewNop())

	// workers not started, so the queue holds one message
	n.NotifyOrderCreated(sampleOrder())
	n.NotifyOrderCreated(sampleOrder())

	stats := n.Stats()
	assert.Equal(t, int64(1), stats.Queued)
	assert.Equal(t, int64(3), stats.Dropped)

	n.Start()
	n.Close()
	assert.Len(t, m.messages(), 1)
}

func TestNotifierDropsAfterClose(t *testing.T) {
	m := newRecordingMessenger()
	n := NewNotifier(m, NotifierConfig{StaffChatID: testStaff}, zap.NewNop())
	n.Start()
	n.Close()
	n.Close()

	n.NotifyOrderCreated(sampleOrder())
	assert.Equal(t, int64(2), n.Stats().Dropped)
	assert.Empty(t, m.messages())
}

func TestNotifierDisabledMessenger(t *testing.T) {
	n := NewNotifier(NewTelegramService("http://127.0.0.1:1", ""), NotifierConfig{StaffChatID: testStaff, Retry: fastRetry(3)}, zap.NewNop())
	n.Start()
	n.NotifyOrderCreated(sampleOrder())
	n.Close()

	stats := n.Stats()
	assert.Equal(t, int64(0), stats.Sent)
	assert.Equal(t, int64(0), stats.Failed)
}

func TestRetryWithBackoffStopsOnContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := retryWithBackoff(ctx, RetryConfig{MaxAttempts: 5, BaseDelay: time.Hour}, func(int) error {
		calls++
		cancel()
		return assert.AnError
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
