package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/bloomstem/internal/models"
	"github.com/example/bloomstem/internal/store"
)

const (
	pointsKeyPrefix    = "points:"
	pointsLogKeyPrefix = "points_log:"
	maxSwapAttempts    = 64
)

var errContention = errors.New("balance update contention")

// Ledger owns customer point balances. Every mutation goes through a compare-and-swap on the
// balance counter so concurrent orders for one customer never lose an update.
type Ledger struct {
	store   store.Store
	pricing Pricing
	log     *zap.Logger
	now     func() time.Time
}

// NewLedger constructs Ledger.
func NewLedger(s store.Store, pricing Pricing, log *zap.Logger) *Ledger {
	return &Ledger{store: s, pricing: pricing, log: log.Named("ledger"), now: time.Now}
}

// Balance returns the current point balance; unknown customers have 0.
func (l *Ledger) Balance(ctx context.Context, customerID string) (int64, error) {
	balance, err := l.store.Counter(ctx, pointsKeyPrefix+customerID)
	if err != nil {
		return 0, unavailable("read balance", err)
	}
	return balance, nil
}

// QuoteRedeemable is the most points usable in one order.
func (l *Ledger) QuoteRedeemable(ctx context.Context, customerID string) (int64, error) {
	balance, err := l.Balance(ctx, customerID)
	if err != nil {
		return 0, err
	}
	return l.pricing.RedeemCap(balance), nil
}

// Accrue credits the points earned by subtotal and returns them.
func (l *Ledger) Accrue(ctx context.Context, customerID string, subtotal int64, orderID string) (int64, error) {
	points := l.pricing.Accrual(subtotal)
	if points <= 0 {
		return 0, nil
	}

	balance, err := l.update(ctx, customerID, func(current int64) (int64, error) {
		return current + points, nil
	})
	if err != nil {
		return 0, err
	}
	l.record(ctx, customerID, models.LedgerEntry{Type: models.LedgerAccrual, Amount: points, BalanceAfter: balance, OrderID: orderID})
	return points, nil
}

// Redeem debits points and returns the discount in currency units (1 point = 1 unit).
// It fails with ErrInsufficientBalance when points exceed the redeemable quote.
func (l *Ledger) Redeem(ctx context.Context, customerID string, points int64, orderID string) (int64, error) {
	if points < 0 {
		return 0, Invalid("points to redeem must not be negative")
	}
	if points == 0 {
		return 0, nil
	}

	balance, err := l.update(ctx, customerID, func(current int64) (int64, error) {
		if points > l.pricing.RedeemCap(current) {
			return 0, fmt.Errorf("%w: requested %d, redeemable %d", ErrInsufficientBalance, points, l.pricing.RedeemCap(current))
		}
		return current - points, nil
	})
	if err != nil {
		return 0, err
	}
	l.record(ctx, customerID, models.LedgerEntry{Type: models.LedgerRedeem, Amount: -points, BalanceAfter: balance, OrderID: orderID})
	return points, nil
}

// RedeemMax debits the full redeemable quote, capped at limit, and returns the discount.
func (l *Ledger) RedeemMax(ctx context.Context, customerID string, limit int64, orderID string) (int64, error) {
	var taken int64
	balance, err := l.update(ctx, customerID, func(current int64) (int64, error) {
		taken = min(l.pricing.RedeemCap(current), max(limit, 0))
		return current - taken, nil
	})
	if err != nil {
		return 0, err
	}
	if taken > 0 {
		l.record(ctx, customerID, models.LedgerEntry{Type: models.LedgerRedeem, Amount: -taken, BalanceAfter: balance, OrderID: orderID})
	}
	return taken, nil
}

// Refund returns previously redeemed points, used when the order they paid for was not stored.
func (l *Ledger) Refund(ctx context.Context, customerID string, points int64, orderID string) error {
	if points <= 0 {
		return nil
	}
	balance, err := l.update(ctx, customerID, func(current int64) (int64, error) {
		return current + points, nil
	})
	if err != nil {
		return err
	}
	l.record(ctx, customerID, models.LedgerEntry{Type: models.LedgerRefund, Amount: points, BalanceAfter: balance, OrderID: orderID})
	return nil
}

// Override sets the balance directly, bypassing the redemption cap. Balances stay non-negative.
func (l *Ledger) Override(ctx context.Context, customerID string, points int64, actorID string) (int64, error) {
	if points < 0 {
		return 0, Invalid("points balance must not be negative")
	}

	var previous int64
	balance, err := l.update(ctx, customerID, func(current int64) (int64, error) {
		previous = current
		return points, nil
	})
	if err != nil {
		return 0, err
	}
	l.record(ctx, customerID, models.LedgerEntry{Type: models.LedgerOverride, Amount: balance - previous, BalanceAfter: balance, ActorID: actorID})
	return balance, nil
}

// History returns the ledger movements for a customer, newest first.
func (l *Ledger) History(ctx context.Context, customerID string) ([]models.LedgerEntry, error) {
	raw, err := l.store.Members(ctx, pointsLogKeyPrefix+customerID)
	if err != nil {
		return nil, unavailable("read ledger log", err)
	}

	out := make([]models.LedgerEntry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var entry models.LedgerEntry
		if err := json.Unmarshal([]byte(raw[i]), &entry); err != nil {
			l.log.Warn("skipping malformed ledger entry", zap.String("customer_id", customerID), zap.Error(err))
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// update applies fn to the balance with compare-and-swap until it sticks.
func (l *Ledger) update(ctx context.Context, customerID string, fn func(current int64) (int64, error)) (int64, error) {
	key := pointsKeyPrefix + customerID

	for attempt := 0; attempt < maxSwapAttempts; attempt++ {
		current, err := l.store.Counter(ctx, key)
		if err != nil {
			return 0, unavailable("read balance", err)
		}

		next, err := fn(current)
		if err != nil {
			return 0, err
		}
		if next < 0 {
			return 0, fmt.Errorf("%w: balance would become %d", ErrInsufficientBalance, next)
		}
		if next == current {
			return current, nil
		}

		swapped, err := l.store.SwapCounter(ctx, key, current, next)
		if err != nil {
			return 0, unavailable("write balance", err)
		}
		if swapped {
			return next, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, unavailable("write balance", err)
		}
	}
	return 0, unavailable("write balance", errContention)
}

func (l *Ledger) record(ctx context.Context, customerID string, entry models.LedgerEntry) {
	entry.OccurredAt = l.now()
	raw, err := json.Marshal(entry)
	if err == nil {
		err = l.store.Append(ctx, pointsLogKeyPrefix+customerID, string(raw))
	}
	if err != nil {
		l.log.Warn("failed to append ledger entry",
			zap.String("customer_id", customerID),
			zap.String("type", entry.Type),
			zap.Error(err),
		)
	}
}
