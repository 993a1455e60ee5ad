package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

// The holdings config is stored as a single versioned JSON document. The
// revision bumps on every save so the refresh loop can detect out-of-band
// edits cheaply.

// LoadConfig returns the stored holdings config, or nil when none has been
// saved yet. The result is normalized (legacy alert scalars folded into the
// rule array) before it is returned.
func (db *DB) LoadConfig(ctx context.Context) (*models.HoldingsConfig, error) {
	query := `SELECT payload, revision FROM holdings_config WHERE id = 1`

	var payload []byte
	var revision int64
	err := db.conn.QueryRowContext(ctx, query).Scan(&payload, &revision)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings config: %w", err)
	}

	var cfg models.HoldingsConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode holdings config: %w", err)
	}
	cfg.Revision = revision
	cfg.Normalize()
	return &cfg, nil
}

// SaveConfig upserts the holdings config document and bumps its revision.
// The new revision is written back onto cfg.
func (db *DB) SaveConfig(ctx context.Context, cfg *models.HoldingsConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode holdings config: %w", err)
	}

	query := `
		INSERT INTO holdings_config (id, payload, revision, updated_at)
		VALUES (1, $1, 1, NOW())
		ON CONFLICT (id) DO UPDATE SET
			payload = EXCLUDED.payload,
			revision = holdings_config.revision + 1,
			updated_at = NOW()
		RETURNING revision
	`
	if err := db.conn.QueryRowContext(ctx, query, payload).Scan(&cfg.Revision); err != nil {
		return fmt.Errorf("failed to save holdings config: %w", err)
	}
	return nil
}

// ConfigRevision returns the stored revision, or 0 when no config exists.
func (db *DB) ConfigRevision(ctx context.Context) (int64, error) {
	var revision int64
	err := db.conn.QueryRowContext(ctx,
		`SELECT revision FROM holdings_config WHERE id = 1`).Scan(&revision)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read config revision: %w", err)
	}
	return revision, nil
}

// LoadHoldings loads the config and fills each watchlist entry's transaction
// history from the transactions table, yielding the full root aggregate.
func (db *DB) LoadHoldings(ctx context.Context) (*models.HoldingsConfig, error) {
	cfg, err := db.LoadConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, nil
	}
	for symbol, entry := range cfg.Stocks {
		txs, err := db.LoadTransactions(ctx, symbol)
		if err != nil {
			return nil, err
		}
		entry.Transactions = txs
	}
	return cfg, nil
}
