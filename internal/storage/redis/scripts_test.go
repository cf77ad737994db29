package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// setupTestRedis creates a miniredis instance for testing Lua scripts
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestReplaceAccumulatorsScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	mr.HSet("tvbudget:accumulators", "stale", "{}")

	n, err := replaceAccumulators.Run(ctx, client, []string{"tvbudget:accumulators"},
		"sports", `{"cumulative_seconds":1}`,
		"news", `{"cumulative_seconds":2}`,
	).Int()
	if err != nil {
		t.Fatalf("Script failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 fields written, got %d", n)
	}

	fields, err := mr.HKeys("tvbudget:accumulators")
	if err != nil {
		t.Fatalf("HKeys failed: %v", err)
	}
	if len(fields) != 2 {
		t.Errorf("Expected stale field to be removed, got %v", fields)
	}
	if got := mr.HGet("tvbudget:accumulators", "news"); got != `{"cumulative_seconds":2}` {
		t.Errorf("Unexpected news payload %q", got)
	}
}

func TestPruneSessionsScript(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	tests := []struct {
		id    string
		score float64
	}{
		{"old", 1000},
		{"edge", 2000},
		{"new", 3000},
	}
	for _, tt := range tests {
		if err := appendSession.Run(ctx, client, []string{"tvbudget:session:" + tt.id, "tvbudget:sessions"}, tt.id, "{}", tt.score).Err(); err != nil {
			t.Fatalf("appendSession failed: %v", err)
		}
	}

	// The cutoff is exclusive
	n, err := pruneSessions.Run(ctx, client, []string{"tvbudget:sessions"}, "(2000", "tvbudget:session:").Int()
	if err != nil {
		t.Fatalf("Script failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 session pruned, got %d", n)
	}
	if mr.Exists("tvbudget:session:old") {
		t.Error("Expected old record deleted")
	}
	if !mr.Exists("tvbudget:session:edge") {
		t.Error("Expected edge record kept")
	}
}
