package models

import (
	"github.com/shopspring/decimal"
)

// StockSnapshot is one symbol's row in a daily snapshot. Price is nil when
// no quote had arrived for the symbol yet.
type StockSnapshot struct {
	Code            string           `json:"code"`
	Name            string           `json:"name"`
	Price           *float64         `json:"price,omitempty"`
	ChangePct       float64          `json:"change_pct"`
	UpdateTime      string           `json:"update_time,omitempty"`
	YesterdayClose  *float64         `json:"yesterday_close,omitempty"`
	HoldingPrice    *decimal.Decimal `json:"holding_price,omitempty"`
	HoldingQuantity decimal.Decimal  `json:"holding_quantity"`
	HoldingValue    *decimal.Decimal `json:"holding_value,omitempty"`
	Profit          *decimal.Decimal `json:"profit,omitempty"`
}

// SnapshotFunds extends Funds with the derived portfolio totals recorded
// alongside them.
type SnapshotFunds struct {
	AvailableFunds     decimal.Decimal `json:"available_funds"`
	TotalOriginalFunds decimal.Decimal `json:"total_original_funds"`
	TotalAssets        decimal.Decimal `json:"total_assets"`
	TotalHoldingValue  decimal.Decimal `json:"total_holding_value"`
	TotalProfit        decimal.Decimal `json:"total_profit"`
}

// Snapshot is the daily persisted record of portfolio state, keyed by
// calendar date. The current day's row is rewritten on every applied merge.
// Stocks are ordered by code so the stored document is stable.
type Snapshot struct {
	Date      string          `json:"date"`
	Timestamp string          `json:"timestamp"`
	Funds     SnapshotFunds   `json:"funds"`
	Stocks    []StockSnapshot `json:"stocks"`
}
