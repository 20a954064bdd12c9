package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
)

var ErrPoolClosed = errors.New("worker pool is closed")

// Config Worker Pool 配置
type Config struct {
	Size           int           `mapstructure:"size"`            // worker 数量上限
	ExpiryDuration time.Duration `mapstructure:"expiry_duration"` // 空闲 worker 回收时间
	ReleaseTimeout time.Duration `mapstructure:"release_timeout"` // 关闭时等待任务完成的时间
}

// DefaultConfig 默认配置
func DefaultConfig() *Config {
	return &Config{
		Size:           64,
		ExpiryDuration: time.Minute,
		ReleaseTimeout: 5 * time.Second,
	}
}

// Statistics 统计信息
type Statistics struct {
	Submitted int64
	Completed int64
	Panicked  int64
}

// Pool 基于 ants 的 goroutine 池
type Pool struct {
	pool   *ants.Pool
	config *Config
	logger *logger.Logger

	submitted atomic.Int64
	completed atomic.Int64
	panicked  atomic.Int64
}

// New 创建 Worker Pool
func New(cfg *Config, log *logger.Logger) (*Pool, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("worker pool size must be positive, got %d", cfg.Size)
	}

	p := &Pool{config: cfg, logger: log}
	antsPool, err := ants.NewPool(cfg.Size,
		ants.WithExpiryDuration(cfg.ExpiryDuration),
		// 池满时 Submit 立即返回 ErrPoolOverload, 由 ForEach 转为同步执行
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(r any) {
			p.panicked.Add(1)
			log.Error("worker panic", zap.Any("error", r), zap.Stack("stacktrace"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ants pool: %w", err)
	}
	p.pool = antsPool
	return p, nil
}

// Submit 提交任务
func (p *Pool) Submit(task func()) error {
	if p.pool.IsClosed() {
		return ErrPoolClosed
	}
	p.submitted.Add(1)
	err := p.pool.Submit(func() {
		defer p.completed.Add(1)
		task()
	})
	if err != nil {
		p.submitted.Add(-1)
		if errors.Is(err, ants.ErrPoolClosed) {
			return ErrPoolClosed
		}
		return err
	}
	return nil
}

// ForEach 并发执行 fn(0..n-1) 并等待全部完成。
// 池中没有空闲 worker 或池已关闭时在调用方 goroutine 中直接执行,保证每个下标恰好执行一次。
func (p *Pool) ForEach(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		i := i
		run := func() {
			defer wg.Done()
			fn(ctx, i)
		}
		if err := p.Submit(run); err != nil {
			p.logger.Debug("worker pool unavailable, running inline", zap.Error(err))
			run()
		}
	}
	wg.Wait()
}

// Stats 统计信息快照
func (p *Pool) Stats() Statistics {
	return Statistics{
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Panicked:  p.panicked.Load(),
	}
}

// Close 关闭池并等待运行中的任务与 ants 的后台 goroutine 退出
func (p *Pool) Close() error {
	return p.pool.ReleaseTimeout(p.config.ReleaseTimeout)
}

// Shutdown 是 Close 的 cleanup 形式, 超时只记录日志
func (p *Pool) Shutdown() {
	if err := p.Close(); err != nil {
		p.logger.Warn("worker pool release timed out", zap.Error(err))
	}
}
