package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

// ---------------------------------------------------------------------------
// Mock HoldingsRepository
// ---------------------------------------------------------------------------

type mockHoldingsRepo struct {
	mu       sync.Mutex
	cfg      *models.HoldingsConfig
	history  map[string][]models.Transaction
	appended []models.Transaction
	saves    int
}

func newMockHoldingsRepo() *mockHoldingsRepo {
	return &mockHoldingsRepo{
		cfg: &models.HoldingsConfig{
			Funds:  models.Funds{AvailableFunds: decimal.NewFromInt(10000)},
			Stocks: map[string]*models.StockEntry{},
		},
		history: map[string][]models.Transaction{},
	}
}

func (m *mockHoldingsRepo) LoadConfig(ctx context.Context) (*models.HoldingsConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg, nil
}

func (m *mockHoldingsRepo) SaveConfig(ctx context.Context, cfg *models.HoldingsConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
	m.saves++
	return nil
}

func (m *mockHoldingsRepo) LoadTransactions(ctx context.Context, symbol string) ([]models.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history[symbol], nil
}

func (m *mockHoldingsRepo) AppendTransaction(ctx context.Context, symbol string, tx *models.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx.ID = "generated"
	m.history[symbol] = append(m.history[symbol], *tx)
	m.appended = append(m.appended, *tx)
	return nil
}

func tradeMessage(t *testing.T, event TradeEvent) kafkago.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafkago.Message{Value: payload}
}

// ---------------------------------------------------------------------------
// processMessage tests
// ---------------------------------------------------------------------------

func TestTradesConsumer_processMessage_RecordsBuy(t *testing.T) {
	repo := newMockHoldingsRepo()
	consumer := &TradesConsumer{repo: repo}

	msg := tradeMessage(t, TradeEvent{
		EventType: "TRADE_EXECUTED",
		Source:    "broker",
		Data: TradeEventData{
			Symbol:     "aapl",
			Quantity:   "10",
			Price:      "150",
			ExecutedAt: "2026-03-02 10:15:00",
		},
	})
	require.NoError(t, consumer.processMessage(context.Background(), msg))

	// Symbol upper-cased, trade appended, cash moved, watchlist grown.
	require.Len(t, repo.appended, 1)
	assert.Equal(t, "10", repo.appended[0].Quantity.String())
	require.Contains(t, repo.cfg.Stocks, "AAPL")
	assert.Equal(t, "8500", repo.cfg.Funds.AvailableFunds.String())
	assert.Equal(t, 1, repo.saves)
}

func TestTradesConsumer_processMessage_SellSideNegatesQuantity(t *testing.T) {
	repo := newMockHoldingsRepo()
	repo.history["AAPL"] = []models.Transaction{
		{Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(100)},
	}
	consumer := &TradesConsumer{repo: repo}

	msg := tradeMessage(t, TradeEvent{
		EventType: "TRADE_EXECUTED",
		Data: TradeEventData{
			Symbol:   "AAPL",
			Side:     "sell",
			Quantity: "4",
			Price:    "160",
		},
	})
	require.NoError(t, consumer.processMessage(context.Background(), msg))

	require.Len(t, repo.appended, 1)
	assert.Equal(t, "-4", repo.appended[0].Quantity.String())
	assert.Equal(t, "10640", repo.cfg.Funds.AvailableFunds.String())
}

func TestTradesConsumer_processMessage_RejectsOversell(t *testing.T) {
	repo := newMockHoldingsRepo()
	repo.history["AAPL"] = []models.Transaction{
		{Quantity: decimal.NewFromInt(5), Price: decimal.NewFromInt(100)},
	}
	consumer := &TradesConsumer{repo: repo}

	msg := tradeMessage(t, TradeEvent{
		EventType: "TRADE_EXECUTED",
		Data: TradeEventData{
			Symbol:   "AAPL",
			Side:     "sell",
			Quantity: "6",
			Price:    "100",
		},
	})
	err := consumer.processMessage(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected trade")
	assert.Empty(t, repo.appended)
	assert.Zero(t, repo.saves)
}

func TestTradesConsumer_processMessage_IgnoresOtherEventTypes(t *testing.T) {
	repo := newMockHoldingsRepo()
	consumer := &TradesConsumer{repo: repo}

	msg := tradeMessage(t, TradeEvent{
		EventType: "ORDER_PLACED",
		Data:      TradeEventData{Symbol: "AAPL", Quantity: "10", Price: "150"},
	})
	require.NoError(t, consumer.processMessage(context.Background(), msg))
	assert.Empty(t, repo.appended)
}

func TestTradesConsumer_processMessage_InvalidPayloads(t *testing.T) {
	repo := newMockHoldingsRepo()
	consumer := &TradesConsumer{repo: repo}

	err := consumer.processMessage(context.Background(), kafkago.Message{Value: []byte("not json")})
	assert.Error(t, err)

	msg := tradeMessage(t, TradeEvent{
		EventType: "TRADE_EXECUTED",
		Data:      TradeEventData{Symbol: "AAPL", Quantity: "ten", Price: "150"},
	})
	assert.Error(t, consumer.processMessage(context.Background(), msg))

	msg = tradeMessage(t, TradeEvent{
		EventType: "TRADE_EXECUTED",
		Data:      TradeEventData{Quantity: "10", Price: "150"},
	})
	err = consumer.processMessage(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing symbol")
}

func TestConvertTradeData_TotalAmountOverride(t *testing.T) {
	tx, err := convertTradeData(TradeEventData{
		Symbol:      "AAPL",
		Quantity:    "10",
		Price:       "150",
		TotalAmount: "1505.5",
	})
	require.NoError(t, err)
	require.NotNil(t, tx.TotalAmount)
	assert.Equal(t, "150.55", tx.EffectivePrice().String())
	assert.NotEmpty(t, tx.Time, "missing executed_at defaults to now")
}
