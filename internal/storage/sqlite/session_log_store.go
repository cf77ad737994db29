package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goodtune/tvbudget/internal/storage"
)

type sessionLogStore struct {
	db *sql.DB
}

// Append writes a completed session record
func (s *sessionLogStore) Append(ctx context.Context, rec storage.SessionRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_log (id, video_id, theme, title, channel, started_at, ended_at, duration_seconds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.VideoID,
		rec.Theme,
		rec.Title,
		rec.Channel,
		formatTime(rec.StartedAt),
		formatTime(rec.EndedAt),
		rec.DurationSeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to append session record: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first
func (s *sessionLogStore) Recent(ctx context.Context, limit int) ([]storage.SessionRecord, error) {
	if limit <= 0 {
		return []storage.SessionRecord{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, video_id, theme, COALESCE(title, ''), COALESCE(channel, ''), started_at, ended_at, duration_seconds
		FROM session_log
		ORDER BY ended_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query session log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	records := []storage.SessionRecord{}
	for rows.Next() {
		var (
			rec              storage.SessionRecord
			started, stopped string
		)
		if err := rows.Scan(&rec.ID, &rec.VideoID, &rec.Theme, &rec.Title, &rec.Channel, &started, &stopped, &rec.DurationSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan session record: %w", err)
		}
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if rec.EndedAt, err = parseTime(stopped); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// DeleteBefore removes records that ended before cutoff
func (s *sessionLogStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM session_log WHERE ended_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to prune session log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
