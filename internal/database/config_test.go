package database

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewFromConn(conn), mock
}

func TestLoadConfig_NoRowsMeansNoConfig(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload, revision FROM holdings_config WHERE id = 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"payload", "revision"}))

	cfg, err := db.LoadConfig(context.Background())
	require.NoError(t, err)
	assert.Nil(t, cfg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadConfig_DecodesAndNormalizes(t *testing.T) {
	db, mock := newMockDB(t)
	payload := `{"funds":{"available_funds":"500","total_original_funds":"1000"},"stocks":{"AAPL":{"alert_up":12.5}}}`
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload, revision FROM holdings_config WHERE id = 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"payload", "revision"}).AddRow([]byte(payload), int64(7)))

	cfg, err := db.LoadConfig(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, int64(7), cfg.Revision)
	assert.Equal(t, "500", cfg.Funds.AvailableFunds.String())
	entry := cfg.Stocks["AAPL"]
	require.NotNil(t, entry)
	require.Len(t, entry.Alerts, 1, "legacy scalar folded into rules on load")
	assert.Equal(t, models.AlertRule{Type: models.AlertUp, Price: 12.5}, entry.Alerts[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveConfig_WritesRevisionBack(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`INSERT INTO holdings_config`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"revision"}).AddRow(int64(8)))

	cfg := models.DefaultHoldingsConfig()
	require.NoError(t, db.SaveConfig(context.Background(), cfg))
	assert.Equal(t, int64(8), cfg.Revision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfigRevision_DefaultsToZero(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT revision FROM holdings_config WHERE id = 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"revision"}))

	revision, err := db.ConfigRevision(context.Background())
	require.NoError(t, err)
	assert.Zero(t, revision)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadHoldings_FillsTransactions(t *testing.T) {
	db, mock := newMockDB(t)
	payload := `{"stocks":{"AAPL":{"name":"Apple"}}}`
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT payload, revision FROM holdings_config WHERE id = 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"payload", "revision"}).AddRow([]byte(payload), int64(1)))
	mock.ExpectQuery(`SELECT id, executed_at, quantity, price, total_amount`).
		WithArgs("AAPL").
		WillReturnRows(sqlmock.NewRows([]string{"id", "executed_at", "quantity", "price", "total_amount"}).
			AddRow("tx-1", "2026-01-05 10:00:00", "10", "100", nil))

	cfg, err := db.LoadHoldings(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg)

	txs := cfg.Stocks["AAPL"].Transactions
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-1", txs[0].ID)
	assert.Equal(t, "10", txs[0].Quantity.String())
	assert.Nil(t, txs[0].TotalAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}
