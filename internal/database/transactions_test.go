package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

func TestLoadTransactions_OrderedWithOptionalTotal(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT id, executed_at, quantity, price, total_amount`).
		WithArgs("600519").
		WillReturnRows(sqlmock.NewRows([]string{"id", "executed_at", "quantity", "price", "total_amount"}).
			AddRow("tx-1", "2026-01-05 10:00:00", "100", "1500", nil).
			AddRow("tx-2", "2026-01-06 10:00:00", "-40", "1600", "63980.5"))

	txs, err := db.LoadTransactions(context.Background(), "600519")
	require.NoError(t, err)
	require.Len(t, txs, 2)

	assert.Nil(t, txs[0].TotalAmount)
	require.NotNil(t, txs[1].TotalAmount)
	assert.Equal(t, "63980.5", txs[1].TotalAmount.String())
	assert.Equal(t, "-40", txs[1].Quantity.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendTransaction_FillsGeneratedID(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs("AAPL", "2026-01-05 10:00:00", sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("generated-id"))

	tx := models.Transaction{
		Time:     "2026-01-05 10:00:00",
		Quantity: decimal.NewFromInt(10),
		Price:    decimal.NewFromInt(100),
	}
	require.NoError(t, db.AppendTransaction(context.Background(), "AAPL", &tx))
	assert.Equal(t, "generated-id", tx.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateTransaction_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`UPDATE transactions`).
		WithArgs("AAPL", "missing", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx := models.Transaction{
		ID:       "missing",
		Time:     "2026-01-05 10:00:00",
		Quantity: decimal.NewFromInt(10),
		Price:    decimal.NewFromInt(100),
	}
	err := db.UpdateTransaction(context.Background(), "AAPL", tx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteTransaction(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`DELETE FROM transactions`).
		WithArgs("AAPL", "tx-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.DeleteTransaction(context.Background(), "AAPL", "tx-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveTransactions_ReplacesInOneTx(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM transactions`).
		WithArgs("AAPL").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`INSERT INTO transactions`).
		WithArgs("AAPL", "2026-01-05 10:00:00", sqlmock.AnyArg(), sqlmock.AnyArg(), nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("tx-1"))
	mock.ExpectCommit()

	err := db.SaveTransactions(context.Background(), "AAPL", []models.Transaction{
		{Time: "2026-01-05 10:00:00", Quantity: decimal.NewFromInt(10), Price: decimal.NewFromInt(100)},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveSnapshot_Upserts(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectExec(`INSERT INTO daily_snapshots`).
		WithArgs("2026-03-02", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	snapshot := &models.Snapshot{Date: "2026-03-02"}
	require.NoError(t, db.SaveSnapshot(context.Background(), snapshot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadSnapshot_MissingDateIsNil(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT payload FROM daily_snapshots`).
		WithArgs("2026-03-02").
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	snapshot, err := db.LoadSnapshot(context.Background(), "2026-03-02")
	require.NoError(t, err)
	assert.Nil(t, snapshot)
	assert.NoError(t, mock.ExpectationsWereMet())
}
