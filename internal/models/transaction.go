package models

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Transaction is a single buy or sell. Quantity is signed: positive for a
// buy, negative for a sell. TotalAmount, when set, overrides quantity*price
// as the recorded cash amount (it absorbs externally computed fees); the
// effective per-share price is then derived from it.
type Transaction struct {
	ID          string           `json:"id,omitempty"`
	Time        string           `json:"time"`
	Quantity    decimal.Decimal  `json:"quantity"`
	Price       decimal.Decimal  `json:"price"`
	TotalAmount *decimal.Decimal `json:"total_amount,omitempty"`
}

var (
	ErrZeroQuantity   = errors.New("transaction quantity must be non-zero")
	ErrNonPositive    = errors.New("transaction price must be positive")
	ErrBadTotalAmount = errors.New("transaction total_amount must be positive")
)

// Validate rejects entries the calculators would otherwise have to skip.
// It is the synchronous guard at the point of user entry.
func (t Transaction) Validate() error {
	if t.Quantity.IsZero() {
		return ErrZeroQuantity
	}
	if t.TotalAmount != nil {
		if t.TotalAmount.Sign() <= 0 {
			return ErrBadTotalAmount
		}
		return nil
	}
	if t.Price.Sign() <= 0 {
		return ErrNonPositive
	}
	return nil
}

// EffectivePrice is the per-share price used by the position fold:
// total_amount / |quantity| when a total amount was recorded, else Price.
func (t Transaction) EffectivePrice() decimal.Decimal {
	if t.TotalAmount != nil && !t.Quantity.IsZero() {
		return t.TotalAmount.Div(t.Quantity.Abs())
	}
	return t.Price
}

// CashAmount is the unsigned cash moved by the transaction.
func (t Transaction) CashAmount() decimal.Decimal {
	if t.TotalAmount != nil {
		return *t.TotalAmount
	}
	return t.Quantity.Abs().Mul(t.Price)
}

// IsBuy reports whether the transaction adds to the position.
func (t Transaction) IsBuy() bool {
	return t.Quantity.Sign() > 0
}
