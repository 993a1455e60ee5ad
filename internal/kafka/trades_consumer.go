package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/portfolio"
)

// HoldingsRepository defines the store operations the trades consumer needs.
type HoldingsRepository interface {
	LoadConfig(ctx context.Context) (*models.HoldingsConfig, error)
	SaveConfig(ctx context.Context, cfg *models.HoldingsConfig) error
	LoadTransactions(ctx context.Context, symbol string) ([]models.Transaction, error)
	AppendTransaction(ctx context.Context, symbol string, tx *models.Transaction) error
}

// TradeEvent represents an externally executed trade arriving from Kafka.
type TradeEvent struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Data      TradeEventData `json:"data"`
}

// TradeEventData holds the trade fields. Quantity is signed (negative for a
// sell) unless Side says otherwise; numeric fields arrive as strings.
type TradeEventData struct {
	Symbol      string `json:"symbol"`
	Side        string `json:"side,omitempty"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price"`
	TotalAmount string `json:"total_amount,omitempty"`
	ExecutedAt  string `json:"executed_at,omitempty"`
}

// TradesConsumer appends externally executed trades to the transaction
// history and moves the cash through the fund balances.
type TradesConsumer struct {
	reader *kafka.Reader
	repo   HoldingsRepository
}

// NewTradesConsumer creates a new Kafka consumer for trade events
func NewTradesConsumer(brokers []string, topic, groupID string, repo HoldingsRepository) *TradesConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID + "-trades",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &TradesConsumer{
		reader: reader,
		repo:   repo,
	}
}

// Start begins consuming messages from Kafka
func (c *TradesConsumer) Start(ctx context.Context) error {
	log.Printf("Starting trades consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Trades consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading trade message: %v", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				log.Printf("Error processing trade message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message
func (c *TradesConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	log.Printf("Received trade message from partition %d offset %d: key=%s",
		msg.Partition, msg.Offset, string(msg.Key))

	var event TradeEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal trade event: %w", err)
	}

	if event.EventType != "TRADE_EXECUTED" {
		log.Printf("Ignoring trade event type: %s", event.EventType)
		return nil
	}

	tx, err := convertTradeData(event.Data)
	if err != nil {
		return fmt.Errorf("invalid trade for %s: %w", event.Data.Symbol, err)
	}
	symbol := strings.ToUpper(strings.TrimSpace(event.Data.Symbol))
	if symbol == "" {
		return fmt.Errorf("trade event missing symbol")
	}

	existing, err := c.repo.LoadTransactions(ctx, symbol)
	if err != nil {
		return fmt.Errorf("failed to load history for %s: %w", symbol, err)
	}
	if err := portfolio.CheckAppend(existing, tx); err != nil {
		return fmt.Errorf("rejected trade for %s: %w", symbol, err)
	}
	if err := c.repo.AppendTransaction(ctx, symbol, &tx); err != nil {
		return fmt.Errorf("failed to append trade for %s: %w", symbol, err)
	}

	// Register unknown symbols on the watchlist and move the cash; saving
	// the config bumps its revision, which the poll loop picks up.
	cfg, err := c.repo.LoadConfig(ctx)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg == nil {
		cfg = models.DefaultHoldingsConfig()
	}
	if _, ok := cfg.Stocks[symbol]; !ok {
		cfg.Stocks[symbol] = &models.StockEntry{Transactions: []models.Transaction{}}
	}
	cfg.Funds = portfolio.ApplyFunds(cfg.Funds, tx)
	if err := c.repo.SaveConfig(ctx, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	log.Printf("Recorded trade: %s %s @ %s", symbol, tx.Quantity, tx.EffectivePrice())
	return nil
}

// convertTradeData converts Kafka trade data to a Transaction
func convertTradeData(data TradeEventData) (models.Transaction, error) {
	quantity, err := decimal.NewFromString(data.Quantity)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("invalid quantity %q: %w", data.Quantity, err)
	}
	if strings.EqualFold(data.Side, "sell") && quantity.Sign() > 0 {
		quantity = quantity.Neg()
	}

	price, err := decimal.NewFromString(data.Price)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("invalid price %q: %w", data.Price, err)
	}

	tx := models.Transaction{
		Time:     data.ExecutedAt,
		Quantity: quantity,
		Price:    price,
	}
	if tx.Time == "" {
		tx.Time = time.Now().Format("2006-01-02 15:04:05")
	}
	if data.TotalAmount != "" {
		amount, err := decimal.NewFromString(data.TotalAmount)
		if err != nil {
			return models.Transaction{}, fmt.Errorf("invalid total_amount %q: %w", data.TotalAmount, err)
		}
		tx.TotalAmount = &amount
	}
	if err := tx.Validate(); err != nil {
		return models.Transaction{}, err
	}
	return tx, nil
}

// Close closes the Kafka consumer
func (c *TradesConsumer) Close() error {
	return c.reader.Close()
}
