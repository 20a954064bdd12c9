package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
)

// Client Redis 客户端封装
type Client struct {
	config *Config
	logger *logger.Logger
	rdb    redis.UniversalClient
}

// New 创建 Redis 客户端并执行一次 PING
func New(cfg *Config, log *logger.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := &redis.UniversalOptions{
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	switch cfg.Mode {
	case ModeSingle:
		opts.Addrs = []string{cfg.Addr}
	case ModeSentinel:
		opts.Addrs = cfg.SentinelAddrs
		opts.MasterName = cfg.MasterName
	case ModeCluster:
		opts.Addrs = cfg.ClusterAddrs
		opts.IsClusterMode = true
	}

	c := NewWithClient(redis.NewUniversalClient(opts), log)
	c.config = cfg

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.Ping(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	log.Info("redis client initialized", zap.String("mode", string(cfg.Mode)))
	return c, nil
}

// NewWithClient 包装已有的 go-redis 客户端
func NewWithClient(rdb redis.UniversalClient, log *logger.Logger) *Client {
	return &Client{config: DefaultConfig(), logger: log, rdb: rdb}
}

// Raw 返回底层客户端
func (c *Client) Raw() redis.UniversalClient {
	return c.rdb
}

// Ping 健康检查
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close 关闭连接
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Set 设置键值(带过期时间)
func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// Get 获取字符串值,键不存在时返回 redis.Nil
func (c *Client) Get(ctx context.Context, key string) (string, error) {
	return c.rdb.Get(ctx, key).Result()
}

// GetDel 获取并删除(一次性令牌)
func (c *Client) GetDel(ctx context.Context, key string) (string, error) {
	return c.rdb.GetDel(ctx, key).Result()
}

// Publish 发布消息
func (c *Client) Publish(ctx context.Context, channel string, message any) error {
	return c.rdb.Publish(ctx, channel, message).Err()
}

// Subscribe 订阅频道,调用方负责 Close
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channels...)
}

// IsNil 判断是否为键不存在错误
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}
