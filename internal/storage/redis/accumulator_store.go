package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/goodtune/tvbudget/internal/storage"
	"github.com/redis/go-redis/v9"
)

type accumulatorStore struct {
	client *redis.Client
}

// Load returns every persisted accumulator ordered by theme
func (s *accumulatorStore) Load(ctx context.Context) ([]storage.Accumulator, error) {
	data, err := s.client.HGetAll(ctx, accumulatorsKey).Result()
	if err != nil {
		return nil, err
	}

	accs := make([]storage.Accumulator, 0, len(data))
	for theme, raw := range data {
		acc, err := parseAccumulator(theme, raw)
		if err != nil {
			return nil, err
		}
		accs = append(accs, acc)
	}

	sort.Slice(accs, func(i, j int) bool { return accs[i].Theme < accs[j].Theme })
	return accs, nil
}

// Replace atomically swaps the whole accumulator table
func (s *accumulatorStore) Replace(ctx context.Context, accs []storage.Accumulator) error {
	args := make([]interface{}, 0, len(accs)*2)
	for _, acc := range accs {
		payload, err := json.Marshal(acc)
		if err != nil {
			return fmt.Errorf("failed to encode accumulator %s: %w", acc.Theme, err)
		}
		args = append(args, acc.Theme, string(payload))
	}

	return replaceAccumulators.Run(ctx, s.client, []string{accumulatorsKey}, args...).Err()
}
