package models

import (
	"github.com/shopspring/decimal"
)

// Funds tracks cash alongside the holdings. AvailableFunds moves with every
// buy and sell; TotalOriginalFunds only changes on an explicit capital
// adjustment.
type Funds struct {
	AvailableFunds     decimal.Decimal `json:"available_funds"`
	TotalOriginalFunds decimal.Decimal `json:"total_original_funds"`
}

// TimeWindow is an "HH:MM" .. "HH:MM" session. Start > End means the window
// wraps midnight.
type TimeWindow struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// MarketHours configures when a market bucket is open for polling.
// Weekdays use 1=Monday .. 7=Sunday. A disabled market is treated as always
// open, which keeps unconfigured markets polling.
type MarketHours struct {
	Enabled   bool        `json:"enabled"`
	Weekdays  []int       `json:"weekdays,omitempty"`
	Morning   *TimeWindow `json:"morning,omitempty"`
	Afternoon *TimeWindow `json:"afternoon,omitempty"`
}

// StockEntry is one watchlist row in the stored config: its transaction
// history plus alert thresholds. A watch-only entry simply has no
// transactions. AlertUp/AlertDown are the legacy single-threshold form and
// are folded into Alerts by Normalize.
type StockEntry struct {
	Name         string        `json:"name,omitempty"`
	Transactions []Transaction `json:"transactions"`
	Alerts       []AlertRule   `json:"alerts,omitempty"`
	AlertUp      *float64      `json:"alert_up,omitempty"`
	AlertDown    *float64      `json:"alert_down,omitempty"`
}

// HoldingsConfig is the root aggregate persisted in the durable store.
type HoldingsConfig struct {
	Funds               Funds                  `json:"funds"`
	Stocks              map[string]*StockEntry `json:"stocks"`
	MarketHours         map[string]MarketHours `json:"market_hours,omitempty"`
	PrivacyMode         bool                   `json:"privacy_mode,omitempty"`
	PollIntervalSeconds int                    `json:"poll_interval_seconds,omitempty"`
	CostMethod          string                 `json:"cost_method,omitempty"`

	// Revision is the store's version counter, used by the config refresh
	// loop to detect out-of-band edits. Not part of the document itself.
	Revision int64 `json:"-"`
}

// DefaultHoldingsConfig returns an empty but usable config.
func DefaultHoldingsConfig() *HoldingsConfig {
	return &HoldingsConfig{
		Stocks:      make(map[string]*StockEntry),
		MarketHours: make(map[string]MarketHours),
	}
}

// Normalize repairs a freshly loaded config so the rest of the system only
// ever sees one shape: maps and slices are non-nil, legacy scalar alert
// thresholds are rewritten as rules, and invalid rules are dropped.
func (c *HoldingsConfig) Normalize() {
	if c.Stocks == nil {
		c.Stocks = make(map[string]*StockEntry)
	}
	if c.MarketHours == nil {
		c.MarketHours = make(map[string]MarketHours)
	}
	for code, entry := range c.Stocks {
		if entry == nil {
			entry = &StockEntry{}
			c.Stocks[code] = entry
		}
		if entry.Transactions == nil {
			entry.Transactions = []Transaction{}
		}
		if entry.AlertUp != nil {
			entry.Alerts = append(entry.Alerts, AlertRule{Type: AlertUp, Price: *entry.AlertUp})
			entry.AlertUp = nil
		}
		if entry.AlertDown != nil {
			entry.Alerts = append(entry.Alerts, AlertRule{Type: AlertDown, Price: *entry.AlertDown})
			entry.AlertDown = nil
		}
		if len(entry.Alerts) > 0 {
			valid := entry.Alerts[:0]
			seen := make(map[string]bool, len(entry.Alerts))
			for _, rule := range entry.Alerts {
				if !rule.Valid() || seen[rule.Key()] {
					continue
				}
				seen[rule.Key()] = true
				valid = append(valid, rule)
			}
			entry.Alerts = valid
		}
	}
}

// Symbols returns the watchlist codes in no particular order.
func (c *HoldingsConfig) Symbols() []string {
	out := make([]string, 0, len(c.Stocks))
	for code := range c.Stocks {
		out = append(out, code)
	}
	return out
}
