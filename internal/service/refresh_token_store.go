package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RefreshTokenStore guarda el jti de cada refresh token vigente y permite revocarlo.
// Consume borra el jti y reporta si estaba vigente; solo un llamador puede obtener true.
type RefreshTokenStore interface {
	Store(ctx context.Context, jti, userID string, ttl time.Duration) error
	Consume(ctx context.Context, jti string) (bool, error)
	Revoke(ctx context.Context, jti string) error
}

type memoryRefreshTokenStore struct {
	mu    sync.Mutex
	items map[string]time.Time
}

func NewMemoryRefreshTokenStore() RefreshTokenStore {
	return &memoryRefreshTokenStore{
		items: make(map[string]time.Time),
	}
}

func (s *memoryRefreshTokenStore) Store(_ context.Context, jti, _ string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	s.items[jti] = time.Now().UTC().Add(ttl)
	return nil
}

func (s *memoryRefreshTokenStore) Consume(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.items[jti]
	if !ok {
		return false, nil
	}
	delete(s.items, jti)
	return !time.Now().UTC().After(exp), nil
}

func (s *memoryRefreshTokenStore) Revoke(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, jti)
	return nil
}

type redisKVClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

type redisRefreshTokenStore struct {
	client  redisKVClient
	prefix  string
	timeout time.Duration
}

const (
	redisRefreshPrefix      = "postdeck:refresh:"
	redisRefreshTimeout     = 500 * time.Millisecond
	redisRefreshFallbackTTL = 24 * time.Hour
)

func NewRedisRefreshTokenStore(client *redis.Client) RefreshTokenStore {
	if client == nil {
		return nil
	}
	return &redisRefreshTokenStore{
		client:  client,
		prefix:  redisRefreshPrefix,
		timeout: redisRefreshTimeout,
	}
}

func (s *redisRefreshTokenStore) key(jti string) string {
	return s.prefix + strings.TrimSpace(jti)
}

func (s *redisRefreshTokenStore) Store(ctx context.Context, jti, userID string, ttl time.Duration) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = redisRefreshFallbackTTL
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeoutOrDefault())
	defer cancel()
	return s.client.Set(ctx, s.key(jti), userID, ttl).Err()
}

// Consume usa el conteo de DEL: Redis serializa los comandos, asi que solo uno ve 1.
func (s *redisRefreshTokenStore) Consume(ctx context.Context, jti string) (bool, error) {
	if strings.TrimSpace(jti) == "" {
		return false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeoutOrDefault())
	defer cancel()
	n, err := s.client.Del(ctx, s.key(jti)).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *redisRefreshTokenStore) Revoke(ctx context.Context, jti string) error {
	if strings.TrimSpace(jti) == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeoutOrDefault())
	defer cancel()
	return s.client.Del(ctx, s.key(jti)).Err()
}

func (s *redisRefreshTokenStore) timeoutOrDefault() time.Duration {
	if s.timeout <= 0 {
		return redisRefreshTimeout
	}
	return s.timeout
}
