package models

import "github.com/shopspring/decimal"

// Quote is one symbol's result from a batched provider fetch.
type Quote struct {
	Code          string  `json:"code"`
	Name          string  `json:"name,omitempty"`
	Price         float64 `json:"price"`
	PreviousClose float64 `json:"previous_close"`
	UpdateTime    string  `json:"update_time"`
}

// Position is the derived net quantity and average cost of a symbol.
// It is recomputed from the transaction list, never stored.
type Position struct {
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// Held reports whether there is a non-zero position.
func (p Position) Held() bool {
	return p.Quantity.Sign() > 0
}

// SymbolState is the per-symbol live view owned by the poll loop.
// Triggered is the edge-trigger memory: a present key means the rule is in
// its triggered zone and must not re-fire until the price re-arms it.
type SymbolState struct {
	Code           string              `json:"code"`
	Name           string              `json:"name"`
	LastPrice      *float64            `json:"last_price,omitempty"`
	PreviousClose  float64             `json:"previous_close,omitempty"`
	LastUpdateTime string              `json:"last_update_time"`
	LastChangePct  float64             `json:"last_change_pct"`
	Position       Position            `json:"position"`
	Alerts         []AlertRule         `json:"alerts,omitempty"`
	Triggered      map[string]struct{} `json:"-"`
}

// Clone returns a deep copy. The quote merger replaces entries instead of
// mutating them so readers can rely on reference identity.
func (s *SymbolState) Clone() *SymbolState {
	cp := *s
	if s.LastPrice != nil {
		price := *s.LastPrice
		cp.LastPrice = &price
	}
	if s.Alerts != nil {
		cp.Alerts = make([]AlertRule, len(s.Alerts))
		copy(cp.Alerts, s.Alerts)
	}
	cp.Triggered = make(map[string]struct{}, len(s.Triggered))
	for k := range s.Triggered {
		cp.Triggered[k] = struct{}{}
	}
	return &cp
}
