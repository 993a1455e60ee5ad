package models

import (
	"strconv"
	"time"
)

// AlertType says which side of the threshold a rule watches.
type AlertType string

const (
	AlertUp   AlertType = "up"
	AlertDown AlertType = "down"
)

// AlertRule is a single price threshold on a symbol.
type AlertRule struct {
	Type  AlertType `json:"type"`
	Price float64   `json:"price"`
}

// Key returns the trigger-memory key for the rule. The price is formatted
// with minimal digits so 10 and 10.0 map to the same key.
func (r AlertRule) Key() string {
	return string(r.Type) + "-" + strconv.FormatFloat(r.Price, 'f', -1, 64)
}

// Valid reports whether the rule has a known type and a positive price.
func (r AlertRule) Valid() bool {
	return (r.Type == AlertUp || r.Type == AlertDown) && r.Price > 0
}

// AlertEvent is the payload published when a rule fires.
type AlertEvent struct {
	EventType string    `json:"event_type"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name,omitempty"`
	Rule      AlertRule `json:"rule"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}
