package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goodtune/tvbudget/internal/config"
	"github.com/goodtune/tvbudget/internal/storage"
)

func setupTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	// miniredis.Addr() returns "host:port", so Port stays zero
	cfg := config.RedisConfig{
		Host:         mr.Addr(),
		Port:         0,
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  "5s",
		ReadTimeout:  "3s",
		WriteTimeout: "3s",
	}

	store, err := Open(cfg)
	if err != nil {
		t.Fatalf("Failed to open Redis store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestOpen_InvalidTimeout(t *testing.T) {
	_, err := Open(config.RedisConfig{Host: "localhost", DialTimeout: "soon", ReadTimeout: "1s", WriteTimeout: "1s"})
	if err == nil {
		t.Fatal("Expected error for invalid dial timeout")
	}
}

func TestAccumulatorStore_ReplaceAndLoad(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	now := time.Date(2024, 3, 9, 18, 30, 0, 0, time.UTC)
	limit := 1800.0
	alerted := now.Add(-time.Minute)

	accs := []storage.Accumulator{
		{Theme: "sports", CumulativeSeconds: 1900, LimitSeconds: &limit, LastUpdate: now, LastAlertAt: &alerted},
		{Theme: "gaming", CumulativeSeconds: 30, LastUpdate: now},
	}
	if err := store.Accumulators().Replace(ctx, accs); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	if !mr.Exists("tvbudget:accumulators") {
		t.Fatal("Expected accumulator hash to exist")
	}

	loaded, err := store.Accumulators().Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Expected 2 accumulators, got %d", len(loaded))
	}
	if loaded[0].Theme != "gaming" || loaded[1].Theme != "sports" {
		t.Errorf("Expected themes sorted, got %s, %s", loaded[0].Theme, loaded[1].Theme)
	}

	sports := loaded[1]
	if sports.CumulativeSeconds != 1900 {
		t.Errorf("Expected 1900 seconds, got %v", sports.CumulativeSeconds)
	}
	if sports.LimitSeconds == nil || *sports.LimitSeconds != 1800 {
		t.Errorf("Expected limit 1800, got %v", sports.LimitSeconds)
	}
	if sports.LastAlertAt == nil || !sports.LastAlertAt.Equal(alerted) {
		t.Errorf("Expected last alert %v, got %v", alerted, sports.LastAlertAt)
	}

	// A second replace drops themes that are no longer present
	if err := store.Accumulators().Replace(ctx, accs[:1]); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	loaded, err = store.Accumulators().Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].Theme != "sports" {
		t.Errorf("Expected only sports after replace, got %+v", loaded)
	}
}

func TestAccumulatorStore_ReplaceEmpty(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()

	accs := []storage.Accumulator{{Theme: "news", CumulativeSeconds: 5, LastUpdate: time.Now()}}
	if err := store.Accumulators().Replace(ctx, accs); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if err := store.Accumulators().Replace(ctx, nil); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	if mr.Exists("tvbudget:accumulators") {
		t.Error("Expected accumulator hash to be removed")
	}
	loaded, err := store.Accumulators().Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Errorf("Expected empty table, got %+v", loaded)
	}
}

func TestThemeCacheStore(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()
	cache := store.ThemeCache()

	if _, err := cache.Get(ctx, "abc"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	entry := storage.ThemeEntry{VideoID: "abc", Theme: "gaming", CreatedAt: created, ExpiresAt: created.Add(time.Hour)}
	if err := cache.Put(ctx, entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := cache.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Theme != "gaming" {
		t.Errorf("Expected gaming, got %s", got.Theme)
	}

	ttl := mr.TTL("tvbudget:theme:abc")
	if ttl != time.Hour {
		t.Errorf("Expected TTL 1h, got %v", ttl)
	}

	// Redis expiry removes the key
	mr.FastForward(2 * time.Hour)
	if _, err := cache.Get(ctx, "abc"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after expiry, got %v", err)
	}

	// Entries without expiry carry no TTL
	entry.ExpiresAt = time.Time{}
	if err := cache.Put(ctx, entry); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if ttl := mr.TTL("tvbudget:theme:abc"); ttl != 0 {
		t.Errorf("Expected no TTL, got %v", ttl)
	}

	if err := cache.Delete(ctx, "abc"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := cache.Get(ctx, "abc"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
}

func TestSessionLogStore(t *testing.T) {
	store, mr := setupTestStore(t)
	ctx := context.Background()
	log := store.Sessions()

	base := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		start := base.Add(time.Duration(i) * time.Hour)
		rec := storage.SessionRecord{
			ID:              id,
			VideoID:         "vid-" + id,
			Theme:           "sports",
			StartedAt:       start,
			EndedAt:         start.Add(10 * time.Minute),
			DurationSeconds: 600,
		}
		if err := log.Append(ctx, rec); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	recent, err := log.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(recent) != 2 || recent[0].ID != "c" || recent[1].ID != "b" {
		t.Fatalf("Expected newest first [c b], got %+v", recent)
	}
	if recent[0].DurationSeconds != 600 {
		t.Errorf("Expected 600 seconds, got %v", recent[0].DurationSeconds)
	}

	removed, err := log.DeleteBefore(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("DeleteBefore failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 records removed, got %d", removed)
	}
	if mr.Exists("tvbudget:session:a") {
		t.Error("Expected record a to be deleted")
	}

	remaining, err := log.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != "c" {
		t.Errorf("Expected only c to remain, got %+v", remaining)
	}
}
