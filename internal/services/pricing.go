package services

import (
	"github.com/shopspring/decimal"

	"github.com/example/bloomstem/internal/models"
)

var hundred = decimal.NewFromInt(100)

// Pricing holds the charge and loyalty rates, in percent.
type Pricing struct {
	ServiceChargePct int64
	DeliveryFee      int64
	AccrualPct       int64
	RedeemCapPct     int64
}

// DefaultPricing is 10% service charge, 350 delivery, 1% accrual, 30% redemption cap.
func DefaultPricing() Pricing {
	return Pricing{ServiceChargePct: 10, DeliveryFee: 350, AccrualPct: 1, RedeemCapPct: 30}
}

// ServiceCharge is the subtotal share, rounded half away from zero to whole units.
func (p Pricing) ServiceCharge(subtotal int64) int64 {
	return percentOf(subtotal, p.ServiceChargePct).Round(0).IntPart()
}

// Accrual is the number of points an order subtotal earns, rounded down.
func (p Pricing) Accrual(subtotal int64) int64 {
	return percentOf(subtotal, p.AccrualPct).Floor().IntPart()
}

// RedeemCap is the most points a single order may use out of balance, rounded down.
func (p Pricing) RedeemCap(balance int64) int64 {
	if balance <= 0 {
		return 0
	}
	return percentOf(balance, p.RedeemCapPct).Floor().IntPart()
}

// Amounts computes the frozen order amounts. The discount never exceeds the items subtotal,
// so Total stays non-negative.
func (p Pricing) Amounts(items []models.OrderItem, discount int64) models.Amounts {
	var subtotal int64
	for _, item := range items {
		subtotal += item.LineTotal()
	}
	discount = max(0, min(discount, subtotal))

	a := models.Amounts{
		ItemsSubtotal:          subtotal,
		ServiceCharge:          p.ServiceCharge(subtotal),
		DeliveryFee:            p.DeliveryFee,
		LoyaltyDiscountApplied: discount,
		PointsEarned:           p.Accrual(subtotal),
	}
	a.Total = a.ItemsSubtotal + a.ServiceCharge + a.DeliveryFee - a.LoyaltyDiscountApplied
	return a
}

func percentOf(amount, pct int64) decimal.Decimal {
	return decimal.NewFromInt(amount).Mul(decimal.NewFromInt(pct)).Div(hundred)
}
