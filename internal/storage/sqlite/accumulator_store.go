package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/goodtune/tvbudget/internal/storage"
)

type accumulatorStore struct {
	db *sql.DB
}

// Load returns every persisted accumulator ordered by theme
func (s *accumulatorStore) Load(ctx context.Context) ([]storage.Accumulator, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT theme, cumulative_seconds, limit_seconds, last_update, last_alert_at
		FROM accumulators
		ORDER BY theme
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query accumulators: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var accs []storage.Accumulator
	for rows.Next() {
		var (
			acc        storage.Accumulator
			limit      sql.NullFloat64
			lastUpdate string
			lastAlert  sql.NullString
		)
		if err := rows.Scan(&acc.Theme, &acc.CumulativeSeconds, &limit, &lastUpdate, &lastAlert); err != nil {
			return nil, fmt.Errorf("failed to scan accumulator: %w", err)
		}
		if limit.Valid {
			v := limit.Float64
			acc.LimitSeconds = &v
		}
		if acc.LastUpdate, err = parseTime(lastUpdate); err != nil {
			return nil, err
		}
		if acc.LastAlertAt, err = parseNullTime(lastAlert); err != nil {
			return nil, err
		}
		accs = append(accs, acc)
	}
	return accs, rows.Err()
}

// Replace swaps the whole table in a single transaction
func (s *accumulatorStore) Replace(ctx context.Context, accs []storage.Accumulator) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM accumulators"); err != nil {
		return fmt.Errorf("failed to clear accumulators: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO accumulators (theme, cumulative_seconds, limit_seconds, last_update, last_alert_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, acc := range accs {
		if _, err := stmt.ExecContext(ctx,
			acc.Theme,
			acc.CumulativeSeconds,
			nullFloat(acc.LimitSeconds),
			formatTime(acc.LastUpdate),
			nullTime(acc.LastAlertAt),
		); err != nil {
			return fmt.Errorf("failed to write accumulator %s: %w", acc.Theme, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit accumulators: %w", err)
	}
	return nil
}
