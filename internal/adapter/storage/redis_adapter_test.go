package storage

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/redis/go-redis/v9"
)

func getRedisClient(t *testing.T) *redis.Client {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	return client
}

func TestSetIdempotency_Success(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	// Setup
	client.Del(ctx, "test-idem-key")

	// First call should succeed
	ok, err := adapter.SetIdempotency(ctx, "test-idem-key", "token-a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected first call to succeed")
	}

	// Second call should fail (key exists)
	ok, err = adapter.SetIdempotency(ctx, "test-idem-key", "token-b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("expected second call to fail")
	}

	client.Del(ctx, "test-idem-key")
}

func TestSetIdempotency_Concurrent(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	// Setup
	client.Del(ctx, "concurrent-idem-key")

	var successCount atomic.Int32
	var wg sync.WaitGroup
	concurrency := 100

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := adapter.SetIdempotency(ctx, "concurrent-idem-key", "token")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if ok {
				successCount.Add(1)
			}
		}()
	}

	wg.Wait()

	// Only one should succeed
	if successCount.Load() != 1 {
		t.Errorf("expected exactly 1 success, got %d", successCount.Load())
	}

	client.Del(ctx, "concurrent-idem-key")
}

func TestReleaseIdempotency_OwnToken(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "release-idem-key")
	if _, err := adapter.SetIdempotency(ctx, "release-idem-key", "owner"); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := adapter.ReleaseIdempotency(ctx, "release-idem-key", "owner"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Key is free again
	ok, err := adapter.SetIdempotency(ctx, "release-idem-key", "next")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Error("expected reservation after release to succeed")
	}

	client.Del(ctx, "release-idem-key")
}

func TestReleaseIdempotency_ForeignToken(t *testing.T) {
	client := getRedisClient(t)
	defer client.Close()

	ctx := context.Background()
	adapter := NewRedisAdapter(client)

	client.Del(ctx, "foreign-idem-key")
	if _, err := adapter.SetIdempotency(ctx, "foreign-idem-key", "owner"); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	if err := adapter.ReleaseIdempotency(ctx, "foreign-idem-key", "intruder"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Reservation must survive
	value, err := client.Get(ctx, "foreign-idem-key").Result()
	if err != nil {
		t.Fatalf("expected key to remain: %v", err)
	}
	if value != "owner" {
		t.Errorf("expected owner token, got %s", value)
	}

	client.Del(ctx, "foreign-idem-key")
}
