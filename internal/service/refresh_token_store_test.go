package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type mockRedisKVClient struct {
	mu         sync.Mutex
	lastSetKey string
	lastSetVal interface{}
	lastSetTTL time.Duration
	lastDel    []string
	keys       map[string]bool

	setErr error
	delErr error
}

func newMockRedisKVClient() *mockRedisKVClient {
	return &mockRedisKVClient{keys: make(map[string]bool)}
}

func (m *mockRedisKVClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSetKey = key
	m.lastSetVal = value
	m.lastSetTTL = expiration
	cmd := redis.NewStatusCmd(ctx)
	if m.setErr != nil {
		cmd.SetErr(m.setErr)
		return cmd
	}
	m.keys[key] = true
	cmd.SetVal("OK")
	return cmd
}

func (m *mockRedisKVClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastDel = keys
	cmd := redis.NewIntCmd(ctx)
	if m.delErr != nil {
		cmd.SetErr(m.delErr)
		return cmd
	}
	var n int64
	for _, k := range keys {
		if m.keys[k] {
			delete(m.keys, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func TestMemoryRefreshTokenStore_ConsumeOnce(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRefreshTokenStore()

	ok, err := store.Consume(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("expected missing token false,nil; got %v,%v", ok, err)
	}

	if err := store.Store(ctx, "jti-1", "u1", time.Minute); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	ok, err = store.Consume(ctx, "jti-1")
	if err != nil || !ok {
		t.Fatalf("expected first consume true,nil; got %v,%v", ok, err)
	}
	ok, err = store.Consume(ctx, "jti-1")
	if err != nil || ok {
		t.Fatalf("expected second consume false,nil; got %v,%v", ok, err)
	}
}

func TestMemoryRefreshTokenStore_ExpiredNotConsumed(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRefreshTokenStore()
	if err := store.Store(ctx, "jti-1", "u1", 50*time.Millisecond); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	time.Sleep(70 * time.Millisecond)
	ok, err := store.Consume(ctx, "jti-1")
	if err != nil || ok {
		t.Fatalf("expected expired token false,nil; got %v,%v", ok, err)
	}
}

func TestMemoryRefreshTokenStore_RevokeAndEmptyJTI(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRefreshTokenStore()
	if err := store.Store(ctx, "", "u1", time.Minute); err != nil {
		t.Fatalf("empty jti store should be no-op, got %v", err)
	}
	if err := store.Store(ctx, "jti-2", "u1", time.Minute); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := store.Revoke(ctx, "jti-2"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	ok, err := store.Consume(ctx, "jti-2")
	if err != nil || ok {
		t.Fatalf("expected revoked token absent, got %v,%v", ok, err)
	}
}

func TestMemoryRefreshTokenStore_ConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryRefreshTokenStore()
	if err := store.Store(ctx, "jti-1", "u1", time.Minute); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	const workers = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if ok, _ := store.Consume(ctx, "jti-1"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one consumer, got %d", wins)
	}
}

func TestRedisRefreshTokenStore_Basics(t *testing.T) {
	ctx := context.Background()
	mock := newMockRedisKVClient()
	store := &redisRefreshTokenStore{client: mock, prefix: redisRefreshPrefix}

	if err := store.Store(ctx, " j1 ", "u1", 0); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if mock.lastSetKey != "postdeck:refresh:j1" {
		t.Fatalf("unexpected key, got %q", mock.lastSetKey)
	}
	if mock.lastSetTTL != redisRefreshFallbackTTL {
		t.Fatalf("expected fallback TTL, got %v", mock.lastSetTTL)
	}
	if mock.lastSetVal != "u1" {
		t.Fatalf("expected user id as value, got %v", mock.lastSetVal)
	}

	ok, err := store.Consume(ctx, " j1 ")
	if err != nil || !ok {
		t.Fatalf("expected consume true,nil; got %v,%v", ok, err)
	}
	if len(mock.lastDel) != 1 || mock.lastDel[0] != "postdeck:refresh:j1" {
		t.Fatalf("unexpected del key: %+v", mock.lastDel)
	}
	ok, err = store.Consume(ctx, "j1")
	if err != nil || ok {
		t.Fatalf("expected second consume false,nil; got %v,%v", ok, err)
	}

	if err := store.Store(ctx, "j2", "u1", time.Minute); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if err := store.Revoke(ctx, "j2"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if ok, _ := store.Consume(ctx, "j2"); ok {
		t.Fatalf("expected revoked token not consumable")
	}
}

func TestRedisRefreshTokenStore_ErrorPathsAndEmptyJTI(t *testing.T) {
	ctx := context.Background()
	mock := newMockRedisKVClient()
	mock.setErr = errors.New("set failed")
	mock.delErr = errors.New("del failed")
	store := &redisRefreshTokenStore{client: mock, prefix: redisRefreshPrefix}

	if err := store.Store(ctx, "", "u1", time.Minute); err != nil {
		t.Fatalf("empty jti store should be no-op, got %v", err)
	}
	ok, err := store.Consume(ctx, "")
	if err != nil || ok {
		t.Fatalf("empty jti consume should be false,nil; got %v,%v", ok, err)
	}
	if err := store.Revoke(ctx, ""); err != nil {
		t.Fatalf("empty jti revoke should be no-op, got %v", err)
	}

	if err := store.Store(ctx, "j2", "u1", time.Minute); err == nil {
		t.Fatalf("expected store error")
	}
	if _, err := store.Consume(ctx, "j2"); err == nil {
		t.Fatalf("expected consume error")
	}
	if err := store.Revoke(ctx, "j2"); err == nil {
		t.Fatalf("expected revoke error")
	}
}

func TestNewRedisRefreshTokenStore_NilClient(t *testing.T) {
	if store := NewRedisRefreshTokenStore(nil); store != nil {
		t.Fatalf("expected nil store for nil client")
	}
}
