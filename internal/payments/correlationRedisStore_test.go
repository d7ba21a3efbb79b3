package payments

import (
	"context"
	"stk-relay/internal/payments/entities"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*CorrelationRedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCorrelationRedisStore(client, ttl), mr
}

func TestCorrelationRedisStore_PutGet(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	if err := store.Put(ctx, "ws_CO_1", entities.StatusPending); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "ws_CO_1", entities.StatusSuccess); err != nil {
		t.Fatalf("put: %v", err)
	}

	status, ok, err := store.Get(ctx, "ws_CO_1")
	if err != nil || !ok || status != entities.StatusSuccess {
		t.Errorf("Expected success, got %q ok=%v err=%v", status, ok, err)
	}
	if got := mr.TTL("correlation:ws_CO_1"); got != time.Hour {
		t.Errorf("Expected TTL 1h on the key, got %v", got)
	}
}

func TestCorrelationRedisStore_MissingIsNotFound(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)

	status, ok, err := store.Get(context.Background(), "never-seen")
	if err != nil {
		t.Fatalf("Expected a miss, got error %v", err)
	}
	if ok || status != "" {
		t.Errorf("Expected not found, got %q ok=%v", status, ok)
	}
}

func TestCorrelationRedisStore_Expiry(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	if err := store.Put(ctx, "ws_CO_2", entities.StatusPending); err != nil {
		t.Fatalf("put: %v", err)
	}
	mr.FastForward(2 * time.Minute)

	if _, ok, err := store.Get(ctx, "ws_CO_2"); ok || err != nil {
		t.Errorf("Expected expired entry to be gone, ok=%v err=%v", ok, err)
	}
}

func TestCorrelationRedisStore_ZeroTTLNeverExpires(t *testing.T) {
	store, mr := newRedisStore(t, 0)

	if err := store.Put(context.Background(), "ws_CO_3", entities.StatusFailed); err != nil {
		t.Fatalf("put: %v", err)
	}
	if got := mr.TTL("correlation:ws_CO_3"); got != 0 {
		t.Errorf("Expected no TTL, got %v", got)
	}
}

func TestCorrelationRedisStore_ServerDown(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	mr.Close()

	if err := store.Put(context.Background(), "ws_CO_4", entities.StatusPending); err == nil {
		t.Error("Expected put error with redis down")
	}
	if _, ok, err := store.Get(context.Background(), "ws_CO_4"); err == nil || ok {
		t.Errorf("Expected get error with redis down, ok=%v err=%v", ok, err)
	}
}
