// Package portfolio folds transaction histories into positions and applies
// the cash-side effect of trades to the fund balances.
package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

// CostMethod selects the cost-basis formula.
type CostMethod string

const (
	// MethodAverage removes sold shares from cost at the running average,
	// so sells leave the average cost untouched. This is the default.
	MethodAverage CostMethod = "average"
	// MethodNetFlow defines cost as the net signed cash flow divided by the
	// net quantity, so a sell priced away from the average shifts it.
	MethodNetFlow CostMethod = "netflow"
)

// ParseMethod maps a config string to a CostMethod, defaulting to average.
func ParseMethod(s string) CostMethod {
	if CostMethod(s) == MethodNetFlow {
		return MethodNetFlow
	}
	return MethodAverage
}

// Compute folds an ordered transaction list into the current position.
// Pure: the input is never mutated and malformed entries (zero quantity,
// non-positive effective price) are skipped rather than rejected. The
// resulting quantity never goes below zero even if the raw signed sum would;
// callers enforce the no-oversell policy before appending, not here.
func Compute(transactions []models.Transaction, method CostMethod) models.Position {
	qty := decimal.Zero
	cost := decimal.Zero

	for _, tx := range transactions {
		if tx.Quantity.IsZero() {
			continue
		}
		price := tx.EffectivePrice()
		if price.Sign() <= 0 {
			continue
		}

		switch {
		case method == MethodNetFlow:
			cost = cost.Add(tx.Quantity.Mul(price))
		case tx.Quantity.Sign() > 0:
			cost = cost.Add(tx.Quantity.Mul(price))
		default:
			avg := price
			if qty.Sign() > 0 {
				avg = cost.Div(qty)
			}
			cost = cost.Add(tx.Quantity.Mul(avg))
		}
		qty = qty.Add(tx.Quantity)
	}

	if qty.Sign() <= 0 {
		return models.Position{Quantity: decimal.Zero, AverageCost: decimal.Zero}
	}
	return models.Position{Quantity: qty, AverageCost: cost.Div(qty)}
}

// NetQuantity is the raw signed sum of valid transaction quantities, without
// the zero clamp. It backs the oversell pre-check.
func NetQuantity(transactions []models.Transaction) decimal.Decimal {
	qty := decimal.Zero
	for _, tx := range transactions {
		if tx.Quantity.IsZero() || tx.EffectivePrice().Sign() <= 0 {
			continue
		}
		qty = qty.Add(tx.Quantity)
	}
	return qty
}

// CheckAppend validates a transaction against the existing history: a sell
// may not drive the net quantity negative. This is the caller-side invariant
// guard; Compute itself never errors.
func CheckAppend(existing []models.Transaction, tx models.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if tx.Quantity.Sign() < 0 {
		after := NetQuantity(existing).Add(tx.Quantity)
		if after.Sign() < 0 {
			return fmt.Errorf("sell of %s exceeds held quantity %s",
				tx.Quantity.Abs(), NetQuantity(existing))
		}
	}
	return nil
}

// ApplyFunds moves the transaction's cash amount through the fund balances:
// buys decrease available funds (floored at zero), sells increase them.
// TotalOriginalFunds is untouched.
func ApplyFunds(funds models.Funds, tx models.Transaction) models.Funds {
	amount := tx.CashAmount()
	if tx.IsBuy() {
		funds.AvailableFunds = funds.AvailableFunds.Sub(amount)
		if funds.AvailableFunds.Sign() < 0 {
			funds.AvailableFunds = decimal.Zero
		}
	} else {
		funds.AvailableFunds = funds.AvailableFunds.Add(amount)
	}
	return funds
}
