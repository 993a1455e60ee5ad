package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/respawnlife/respawn-stocks-listen-sub000/internal/models"
)

// SaveSnapshot upserts the daily snapshot row for its date. The poll loop
// calls this on every applied merge, so the current day's row always holds
// the latest state.
func (db *DB) SaveSnapshot(ctx context.Context, snapshot *models.Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	query := `
		INSERT INTO daily_snapshots (snapshot_date, payload, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (snapshot_date) DO UPDATE SET
			payload = EXCLUDED.payload,
			updated_at = NOW()
	`
	if _, err := db.conn.ExecContext(ctx, query, snapshot.Date, payload); err != nil {
		return fmt.Errorf("failed to save snapshot for %s: %w", snapshot.Date, err)
	}
	return nil
}

// LoadSnapshot returns the snapshot for a date, or nil when none exists.
func (db *DB) LoadSnapshot(ctx context.Context, date string) (*models.Snapshot, error) {
	var payload []byte
	err := db.conn.QueryRowContext(ctx,
		`SELECT payload FROM daily_snapshots WHERE snapshot_date = $1`, date).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot for %s: %w", date, err)
	}

	var snapshot models.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot for %s: %w", date, err)
	}
	return &snapshot, nil
}

// ListSnapshotDates returns stored snapshot dates, newest first.
func (db *DB) ListSnapshotDates(ctx context.Context, limit int) ([]string, error) {
	query := `SELECT snapshot_date::text FROM daily_snapshots ORDER BY snapshot_date DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot dates: %w", err)
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot date: %w", err)
		}
		dates = append(dates, date)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snapshot dates: %w", err)
	}
	return dates, nil
}
