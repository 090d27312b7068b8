package models

import "time"

// Review is an append-only product review.
type Review struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Rating    int       `json:"rating"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
}

// LedgerEntry is one loyalty balance movement.
type LedgerEntry struct {
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	BalanceAfter int64     `json:"balance_after"`
	OrderID      string    `json:"order_id,omitempty"`
	ActorID      string    `json:"actor_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Ledger entry types.
const (
	LedgerAccrual  = "accrual"
	LedgerRedeem   = "redeem"
	LedgerRefund   = "refund"
	LedgerOverride = "override"
)
