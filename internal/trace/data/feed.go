package data

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/notify"
	"github.com/reefs-ai/reefs-backend/internal/trace/biz"
	"github.com/reefs-ai/reefs-backend/internal/trace/types"
)

const feedLoadTimeout = 10 * time.Second

// SnapshotFeed 在变更通知到达时重新加载集合的最新记录。
// 同一集合的并发加载共用一次查询
type SnapshotFeed struct {
	repo     biz.TraceRepo
	notifier notify.Notifier
	limit    int
	group    singleflight.Group
	logger   *logger.Logger
}

func NewSnapshotFeed(repo biz.TraceRepo, notifier notify.Notifier, limit int, log *logger.Logger) *SnapshotFeed {
	if limit <= 0 {
		limit = biz.DefaultSnapshotLimit
	}
	return &SnapshotFeed{repo: repo, notifier: notifier, limit: limit, logger: log.Named("trace.feed")}
}

func (f *SnapshotFeed) WatchTraces(ctx context.Context, userID string, fn func([]*types.Trace)) (notify.Subscription, error) {
	load := func() []*types.Trace {
		v, err := f.load("traces:"+userID, func(ctx context.Context) (any, error) {
			return f.repo.ListTraces(ctx, userID, f.limit)
		})
		if err != nil {
			f.logger.Warn("traces reload failed, delivering empty snapshot", zap.String("user_id", userID), zap.Error(err))
			return []*types.Trace{}
		}
		return v.([]*types.Trace)
	}
	return notify.WatchSnapshot(ctx, f.notifier, notify.TracesChannel(userID), load, fn)
}

func (f *SnapshotFeed) WatchSpans(ctx context.Context, userID string, fn func([]*types.Span)) (notify.Subscription, error) {
	load := func() []*types.Span {
		v, err := f.load("spans:"+userID, func(ctx context.Context) (any, error) {
			return f.repo.ListSpans(ctx, userID, f.limit)
		})
		if err != nil {
			f.logger.Warn("spans reload failed, delivering empty snapshot", zap.String("user_id", userID), zap.Error(err))
			return []*types.Span{}
		}
		return v.([]*types.Span)
	}
	return notify.WatchSnapshot(ctx, f.notifier, notify.SpansChannel(userID), load, fn)
}

// load 对并发调用按 key 合并执行 fn。查询不绑定单个调用方的 context,
// 一个订阅者离开不会取消其他人的查询
func (f *SnapshotFeed) load(key string, fn func(context.Context) (any, error)) (any, error) {
	v, err, _ := f.group.Do(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), feedLoadTimeout)
		defer cancel()
		return fn(ctx)
	})
	return v, err
}
