package poller

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

// StockRow is one dashboard line.
type StockRow struct {
	Code            string             `json:"code"`
	Name            string             `json:"name"`
	Price           *float64           `json:"price"`
	ChangePct       float64            `json:"change_pct"`
	UpdateTime      string             `json:"update_time,omitempty"`
	HoldingQuantity decimal.Decimal    `json:"holding_quantity"`
	HoldingPrice    *decimal.Decimal   `json:"holding_price,omitempty"`
	HoldingValue    *decimal.Decimal   `json:"holding_value,omitempty"`
	Profit          *decimal.Decimal   `json:"profit,omitempty"`
	Alerts          []models.AlertRule `json:"alerts,omitempty"`
}

// DashboardView is the full board pushed to websocket clients and served by
// the API. In privacy mode every money field is omitted.
type DashboardView struct {
	Timestamp   string                `json:"timestamp"`
	PrivacyMode bool                  `json:"privacy_mode"`
	Funds       *models.SnapshotFunds `json:"funds,omitempty"`
	Stocks      []StockRow            `json:"stocks"`
}

// Dashboard returns the current board.
func (p *Poller) Dashboard() DashboardView {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.dashboardLocked(p.now())
}

func (p *Poller) dashboardLocked(now time.Time) DashboardView {
	view := DashboardView{
		Timestamp:   now.Format(time.RFC3339),
		PrivacyMode: p.cfg.PrivacyMode,
		Stocks:      make([]StockRow, 0, len(p.state)),
	}

	totalHolding := decimal.Zero
	for _, st := range p.state {
		row := StockRow{
			Code:            st.Code,
			Name:            st.Name,
			Price:           st.LastPrice,
			ChangePct:       st.LastChangePct,
			UpdateTime:      st.LastUpdateTime,
			HoldingQuantity: st.Position.Quantity,
			Alerts:          st.Alerts,
		}
		if st.Position.Held() {
			cost := st.Position.AverageCost
			row.HoldingPrice = &cost
			if st.LastPrice != nil {
				price := decimal.NewFromFloat(*st.LastPrice)
				value := price.Mul(st.Position.Quantity)
				profit := price.Sub(cost).Mul(st.Position.Quantity)
				row.HoldingValue = &value
				row.Profit = &profit
				totalHolding = totalHolding.Add(value)
			}
		}
		view.Stocks = append(view.Stocks, row)
	}
	sort.Slice(view.Stocks, func(i, j int) bool { return view.Stocks[i].Code < view.Stocks[j].Code })

	if !p.cfg.PrivacyMode {
		totalAssets := p.cfg.Funds.AvailableFunds.Add(totalHolding)
		view.Funds = &models.SnapshotFunds{
			AvailableFunds:     p.cfg.Funds.AvailableFunds,
			TotalOriginalFunds: p.cfg.Funds.TotalOriginalFunds,
			TotalHoldingValue:  totalHolding,
			TotalAssets:        totalAssets,
			TotalProfit:        totalAssets.Sub(p.cfg.Funds.TotalOriginalFunds),
		}
	} else {
		for i := range view.Stocks {
			view.Stocks[i].HoldingQuantity = decimal.Zero
			view.Stocks[i].HoldingPrice = nil
			view.Stocks[i].HoldingValue = nil
			view.Stocks[i].Profit = nil
		}
	}
	return view
}

// buildSnapshotLocked assembles the persisted end-of-tick snapshot. Unlike
// the dashboard it always carries the money fields; privacy mode only masks
// what clients see.
func (p *Poller) buildSnapshotLocked(now time.Time) *models.Snapshot {
	snapshot := &models.Snapshot{
		Date:      now.Format("2006-01-02"),
		Timestamp: now.Format(time.RFC3339),
		Stocks:    make([]models.StockSnapshot, 0, len(p.state)),
	}

	totalHolding := decimal.Zero
	for code, st := range p.state {
		entry := models.StockSnapshot{
			Code:            code,
			Name:            st.Name,
			Price:           st.LastPrice,
			ChangePct:       st.LastChangePct,
			UpdateTime:      st.LastUpdateTime,
			HoldingQuantity: st.Position.Quantity,
		}
		if st.PreviousClose > 0 {
			yc := st.PreviousClose
			entry.YesterdayClose = &yc
		}
		if st.Position.Held() {
			cost := st.Position.AverageCost
			entry.HoldingPrice = &cost
			if st.LastPrice != nil {
				price := decimal.NewFromFloat(*st.LastPrice)
				value := price.Mul(st.Position.Quantity)
				profit := price.Sub(cost).Mul(st.Position.Quantity)
				entry.HoldingValue = &value
				entry.Profit = &profit
				totalHolding = totalHolding.Add(value)
			}
		}
		snapshot.Stocks = append(snapshot.Stocks, entry)
	}
	sort.Slice(snapshot.Stocks, func(i, j int) bool {
		return snapshot.Stocks[i].Code < snapshot.Stocks[j].Code
	})

	totalAssets := p.cfg.Funds.AvailableFunds.Add(totalHolding)
	snapshot.Funds = models.SnapshotFunds{
		AvailableFunds:     p.cfg.Funds.AvailableFunds,
		TotalOriginalFunds: p.cfg.Funds.TotalOriginalFunds,
		TotalHoldingValue:  totalHolding,
		TotalAssets:        totalAssets,
		TotalProfit:        totalAssets.Sub(p.cfg.Funds.TotalOriginalFunds),
	}
	return snapshot
}
