package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/goodtune/tvbudget/internal/storage"
	"github.com/redis/go-redis/v9"
)

type sessionLogStore struct {
	client *redis.Client
}

// Append writes a completed session record and indexes it by end time
func (s *sessionLogStore) Append(ctx context.Context, rec storage.SessionRecord) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode session record: %w", err)
	}

	keys := []string{sessionKey(rec.ID), sessionsIndexKey}
	args := []interface{}{rec.ID, string(payload), scoreOf(rec.EndedAt)}

	return appendSession.Run(ctx, s.client, keys, args...).Err()
}

// Recent returns up to limit records, newest first
func (s *sessionLogStore) Recent(ctx context.Context, limit int) ([]storage.SessionRecord, error) {
	if limit <= 0 {
		return []storage.SessionRecord{}, nil
	}

	ids, err := s.client.ZRevRange(ctx, sessionsIndexKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []storage.SessionRecord{}, nil
	}

	// Use pipeline for batch retrieval
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.Get(ctx, sessionKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	records := make([]storage.SessionRecord, 0, len(ids))
	for _, cmd := range cmds {
		data, err := cmd.Result()
		if err != nil {
			continue
		}
		rec, err := parseSessionRecord(data)
		if err == nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// DeleteBefore removes records that ended before cutoff
func (s *sessionLogStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	bound := fmt.Sprintf("(%d", cutoff.UnixMilli())
	n, err := pruneSessions.Run(ctx, s.client, []string{sessionsIndexKey}, bound, sessionKeyPrefix).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}
