// Package market decides whether a symbol's market is open for polling
// right now, based on the configured weekday and session windows.
package market

import (
	"time"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

// Market bucket names used as keys into the market-hours config.
const (
	BucketUS = "us"
	BucketCN = "cn"
)

// Hard-stop time: no polling at or after 15:01 local, regardless of any
// per-market configuration.
const (
	hardStopHour   = 15
	hardStopMinute = 1
)

// Classify places a ticker into a market bucket. Bare 1-5 letter tickers
// are treated as US listings, everything else (numeric A-share codes) as CN.
func Classify(symbol string) string {
	if len(symbol) < 1 || len(symbol) > 5 {
		return BucketCN
	}
	for _, r := range symbol {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return BucketCN
		}
	}
	return BucketUS
}

// AfterHardStop reports whether the global quiescence rule holds.
func AfterHardStop(now time.Time) bool {
	if now.Hour() > hardStopHour {
		return true
	}
	return now.Hour() == hardStopHour && now.Minute() >= hardStopMinute
}

// IsTradingNow reports whether the symbol's market is open at now.
// A market bucket with no config, or with Enabled=false, is always open;
// that keeps legacy configs polling. The morning window may wrap midnight
// (start > end), the afternoon window may not.
func IsTradingNow(symbol string, hours map[string]models.MarketHours, now time.Time) bool {
	cfg, ok := hours[Classify(symbol)]
	if !ok || !cfg.Enabled {
		return true
	}

	weekday := int(now.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	allowed := cfg.Weekdays
	if len(allowed) == 0 {
		allowed = []int{1, 2, 3, 4, 5}
	}
	dayOK := false
	for _, d := range allowed {
		if d == weekday {
			dayOK = true
			break
		}
	}
	if !dayOK {
		return false
	}

	clock := now.Format("15:04")
	if cfg.Morning != nil && inWindow(clock, *cfg.Morning, true) {
		return true
	}
	if cfg.Afternoon != nil && inWindow(clock, *cfg.Afternoon, false) {
		return true
	}
	return false
}

// inWindow tests "HH:MM" membership. Wrapping (start > end) is only honored
// for sessions that may span midnight.
func inWindow(clock string, w models.TimeWindow, allowWrap bool) bool {
	if w.Start == "" || w.End == "" {
		return false
	}
	if allowWrap && w.Start > w.End {
		return clock >= w.Start || clock <= w.End
	}
	return w.Start <= clock && clock <= w.End
}
