// Package quote turns provider fetches into per-symbol live state.
package quote

import (
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

// ChangePct computes the day change percentage against the previous close.
// A missing or zero close yields 0, not an error.
func ChangePct(price, previousClose float64) float64 {
	if previousClose <= 0 {
		return 0
	}
	return (price - previousClose) / previousClose * 100
}

// Merge folds a batch of fetched quotes into the state map and returns a new
// map. Entries are replaced, never mutated, so readers holding references to
// the old map (or its entries) see a consistent view. Symbols absent from
// the batch keep their previous entry: a fetch miss means a stale row, not
// an error.
func Merge(batch map[string]models.Quote, state map[string]*models.SymbolState) map[string]*models.SymbolState {
	next := make(map[string]*models.SymbolState, len(state))
	for code, st := range state {
		q, ok := batch[code]
		if !ok {
			next[code] = st
			continue
		}

		updated := st.Clone()
		price := q.Price
		updated.LastPrice = &price
		updated.LastUpdateTime = q.UpdateTime
		updated.LastChangePct = ChangePct(q.Price, q.PreviousClose)
		if q.PreviousClose > 0 {
			updated.PreviousClose = q.PreviousClose
		}
		if q.Name != "" {
			updated.Name = q.Name
		}
		next[code] = updated
	}
	return next
}
