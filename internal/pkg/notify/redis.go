package notify

import (
	"context"
	"fmt"
	"sync"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/redis"
)

// Redis 通过 redis pub/sub 分发信号, 多实例部署时互相可见
type Redis struct {
	client *redis.Client
	logger *logger.Logger
}

// NewRedis 创建基于 pub/sub 的 notifier
func NewRedis(client *redis.Client, log *logger.Logger) *Redis {
	return &Redis{client: client, logger: log.Named("notify")}
}

// Publish 发布信号
func (r *Redis) Publish(ctx context.Context, channel string) error {
	if err := r.client.Publish(ctx, channel, "changed"); err != nil {
		return fmt.Errorf("notify: publish %s: %w", channel, err)
	}
	return nil
}

// Watch 订阅通道并等待订阅确认
func (r *Redis) Watch(ctx context.Context, channel string, fn func()) (Subscription, error) {
	ps := r.client.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("notify: subscribe %s: %w", channel, err)
	}

	s := &redisSubscription{ps: ps, w: newWatcher(fn), pumped: make(chan struct{})}
	go s.pump(r.logger, channel)
	return s, nil
}

type redisSubscription struct {
	ps     *goredis.PubSub
	w      *watcher
	pumped chan struct{}
	once   sync.Once
}

func (s *redisSubscription) pump(log *logger.Logger, channel string) {
	defer close(s.pumped)
	for range s.ps.Channel() {
		s.w.notify()
	}
	log.Debug("pubsub channel closed", zap.String("channel", channel))
}

func (s *redisSubscription) Close() {
	s.once.Do(func() {
		_ = s.ps.Close()
		<-s.pumped
		s.w.close()
	})
}
