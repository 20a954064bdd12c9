package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

// WatchSnapshot 返回前先把 load() 交给 fn 一次, 之后每次信号再交一次。
// 早于已交付快照开始的加载结果被丢弃, 快照不会倒退, fn 调用不重叠
func WatchSnapshot[T any](ctx context.Context, n Notifier, channel string, load func() T, fn func(T)) (Subscription, error) {
	var (
		mu        sync.Mutex
		started   atomic.Uint64
		delivered uint64
	)
	deliver := func() {
		seq := started.Add(1)
		v := load()
		mu.Lock()
		defer mu.Unlock()
		if seq <= delivered {
			return
		}
		delivered = seq
		fn(v)
	}

	sub, err := n.Watch(ctx, channel, deliver)
	if err != nil {
		return nil, err
	}
	deliver()
	return sub, nil
}
