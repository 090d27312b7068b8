package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/bloomstem/internal/catalog"
	"github.com/example/bloomstem/internal/models"
	"github.com/example/bloomstem/internal/store"
)

const (
	testCustomer = "1001"
	testAdmin    = "42"
	testStaff    = "-100500"
)

type sentMessage struct {
	chatID string
	text   string
}

// recordingMessenger captures messages and can fail a chat a number of times.
type recordingMessenger struct {
	mu       sync.Mutex
	sent     []sentMessage
	failures map[string]int
	calls    map[string]int
}

func newRecordingMessenger() *recordingMessenger {
	return &recordingMessenger{failures: map[string]int{}, calls: map[string]int{}}
}

func (m *recordingMessenger) SendMessage(_ context.Context, chatID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls[chatID]++
	if m.failures[chatID] != 0 {
		if m.failures[chatID] > 0 {
			m.failures[chatID]--
		}
		return errors.New("chat unreachable")
	}
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (m *recordingMessenger) messages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]sentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *recordingMessenger) sentTo(chatID string) []sentMessage {
	var out []sentMessage
	for _, msg := range m.messages() {
		if msg.chatID == chatID {
			out = append(out, msg)
		}
	}
	return out
}

// failingStore rejects order creation.
type failingStore struct {
	*store.MemoryStore
}

func (s failingStore) SetNX(context.Context, string, []byte) (bool, error) {
	return false, errors.New("connection refused")
}

type fixture struct {
	store     store.Store
	ledger    *Ledger
	notifier  *Notifier
	messenger *recordingMessenger
	orders    *OrderService
	admin     *AdminService
	reviews   *ReviewService
	now       time.Time
}

func moscow(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	return loc
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, store.NewMemoryStore())
}

func newFixtureWithStore(t *testing.T, s store.Store) *fixture {
	t.Helper()

	loc := moscow(t)
	now := time.Date(2026, 5, 10, 9, 30, 0, 0, loc)
	clock := func() time.Time { return now }
	log := zap.NewNop()

	schedule, err := NewSlotSchedule("08:00", "22:00", 2*time.Hour, time.Hour, loc)
	require.NoError(t, err)

	ledger := NewLedger(s, DefaultPricing(), log)
	ledger.now = clock

	messenger := newRecordingMessenger()
	notifier := NewNotifier(messenger, NotifierConfig{
		StaffChatID: testStaff,
		Retry:       RetryConfig{MaxAttempts: 1},
		QueueSize:   1024,
		Workers:     2,
	}, log)
	notifier.Start()
	t.Cleanup(notifier.Close)

	gate := NewAdminGate([]string{testAdmin})
	orders, err := NewOrderService(OrderServiceDeps{
		Store:    s,
		Catalog:  catalog.Default(),
		Ledger:   ledger,
		Notifier: notifier,
		Schedule: schedule,
		Pricing:  DefaultPricing(),
		Gate:     gate,
		NodeID:   1,
		Log:      log,
		Clock:    clock,
	})
	require.NoError(t, err)

	reviews := NewReviewService(s, catalog.Default(), log)
	reviews.now = clock

	return &fixture{
		store:     s,
		ledger:    ledger,
		notifier:  notifier,
		messenger: messenger,
		orders:    orders,
		admin:     NewAdminService(orders, ledger, gate, log),
		reviews:   reviews,
		now:       now,
	}
}

// validInput is a one-bouquet order for tomorrow midday.
func validInput() CreateOrderInput {
	return CreateOrderInput{
		CustomerID: testCustomer,
		Contact:    models.Contact{Name: "Анна", Phone: "+79990001122"},
		Delivery: models.Delivery{
			City:     "Москва",
			Street:   "Тверская",
			House:    "7",
			Date:     "2026-05-11",
			TimeSlot: "12:00 - 14:00",
		},
		Recipient: models.Recipient{SameAsOrderer: true},
		Items:     []CartItem{{ProductID: "1", Quantity: 1}},
	}
}

func (f *fixture) seedBalance(t *testing.T, customerID string, points int64) {
	t.Helper()
	_, err := f.ledger.Override(context.Background(), customerID, points, "seed")
	require.NoError(t, err)
}
