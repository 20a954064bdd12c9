package biz

import (
	"context"
	"sync"
	"time"

	"github.com/reefs-ai/reefs-backend/internal/pkg/redis"
)

const (
	// OAuthStateTTL OAuth state 的过期时间（10分钟）
	OAuthStateTTL = 10 * time.Minute

	// OAuthStateKeyPrefix Redis key 前缀
	OAuthStateKeyPrefix = "reefs:oauth_state:"
)

// StateStore 保存 OAuth state，state 只能被消费一次
type StateStore interface {
	Save(ctx context.Context, state string, ttl time.Duration) error
	// Consume 删除并返回 state 是否存在
	Consume(ctx context.Context, state string) (bool, error)
}

// RedisStateStore Redis 实现
type RedisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore 创建 Redis state store
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) Save(ctx context.Context, state string, ttl time.Duration) error {
	return s.client.Set(ctx, OAuthStateKeyPrefix+state, "1", ttl)
}

func (s *RedisStateStore) Consume(ctx context.Context, state string) (bool, error) {
	_, err := s.client.GetDel(ctx, OAuthStateKeyPrefix+state)
	if err != nil {
		if redis.IsNil(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MemoryStateStore 进程内实现，未启用 Redis 时使用
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

// NewMemoryStateStore 创建内存 state store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{entries: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStateStore) Save(_ context.Context, state string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = now.Add(ttl)
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[state]
	if !ok {
		return false, nil
	}
	delete(s.entries, state)
	return exp.After(s.now()), nil
}
