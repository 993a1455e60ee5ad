package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

// LoadTransactions returns a symbol's transactions in insertion order.
func (db *DB) LoadTransactions(ctx context.Context, symbol string) ([]models.Transaction, error) {
	query := `
		SELECT id, executed_at, quantity, price, total_amount
		FROM transactions
		WHERE symbol = $1
		ORDER BY seq ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions for %s: %w", symbol, err)
	}
	defer rows.Close()

	txs := make([]models.Transaction, 0)
	for rows.Next() {
		var tx models.Transaction
		var totalAmount sql.NullString
		if err := rows.Scan(&tx.ID, &tx.Time, &tx.Quantity, &tx.Price, &totalAmount); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		if totalAmount.Valid {
			amount, err := decimal.NewFromString(totalAmount.String)
			if err != nil {
				return nil, fmt.Errorf("invalid total_amount %q: %w", totalAmount.String, err)
			}
			tx.TotalAmount = &amount
		}
		txs = append(txs, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txs, nil
}

// AppendTransaction inserts one transaction and fills in its generated id.
func (db *DB) AppendTransaction(ctx context.Context, symbol string, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (symbol, executed_at, quantity, price, total_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	var totalAmount interface{}
	if tx.TotalAmount != nil {
		totalAmount = tx.TotalAmount.String()
	}
	err := db.conn.QueryRowContext(ctx, query,
		symbol, tx.Time, tx.Quantity, tx.Price, totalAmount,
	).Scan(&tx.ID)
	if err != nil {
		return fmt.Errorf("failed to append transaction for %s: %w", symbol, err)
	}
	return nil
}

// UpdateTransaction replaces a transaction in place, preserving its id and
// ordering position. This is how edits are modeled.
func (db *DB) UpdateTransaction(ctx context.Context, symbol string, tx models.Transaction) error {
	query := `
		UPDATE transactions
		SET executed_at = $3, quantity = $4, price = $5, total_amount = $6
		WHERE symbol = $1 AND id = $2
	`
	var totalAmount interface{}
	if tx.TotalAmount != nil {
		totalAmount = tx.TotalAmount.String()
	}
	result, err := db.conn.ExecContext(ctx, query,
		symbol, tx.ID, tx.Time, tx.Quantity, tx.Price, totalAmount)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", tx.ID, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("transaction not found: %s", tx.ID)
	}
	return nil
}

// DeleteTransaction removes one transaction.
func (db *DB) DeleteTransaction(ctx context.Context, symbol, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM transactions WHERE symbol = $1 AND id = $2`, symbol, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("transaction not found: %s", id)
	}
	return nil
}

// SaveTransactions atomically replaces a symbol's whole history. Used when a
// watchlist entry is imported or rewritten wholesale.
func (db *DB) SaveTransactions(ctx context.Context, symbol string, txs []models.Transaction) error {
	dbTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.ExecContext(ctx,
		`DELETE FROM transactions WHERE symbol = $1`, symbol); err != nil {
		return fmt.Errorf("failed to clear transactions for %s: %w", symbol, err)
	}

	insert := `
		INSERT INTO transactions (symbol, executed_at, quantity, price, total_amount)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	for i := range txs {
		var totalAmount interface{}
		if txs[i].TotalAmount != nil {
			totalAmount = txs[i].TotalAmount.String()
		}
		err := dbTx.QueryRowContext(ctx, insert,
			symbol, txs[i].Time, txs[i].Quantity, txs[i].Price, totalAmount,
		).Scan(&txs[i].ID)
		if err != nil {
			return fmt.Errorf("failed to insert transaction for %s: %w", symbol, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transactions for %s: %w", symbol, err)
	}
	return nil
}

// DeleteSymbolTransactions removes a symbol's whole history, for watchlist
// removal.
func (db *DB) DeleteSymbolTransactions(ctx context.Context, symbol string) error {
	if _, err := db.conn.ExecContext(ctx,
		`DELETE FROM transactions WHERE symbol = $1`, symbol); err != nil {
		return fmt.Errorf("failed to delete transactions for %s: %w", symbol, err)
	}
	return nil
}
