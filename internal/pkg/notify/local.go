package notify

import (
	"context"
	"sync"
)

// Local 进程内 Notifier, 未启用 redis 时及测试中使用
type Local struct {
	mu       sync.Mutex
	watchers map[string]map[*watcher]struct{}
}

// NewLocal 创建进程内 notifier
func NewLocal() *Local {
	return &Local{watchers: make(map[string]map[*watcher]struct{})}
}

// Publish 通知通道的所有订阅者
func (l *Local) Publish(_ context.Context, channel string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for w := range l.watchers[channel] {
		w.notify()
	}
	return nil
}

// Watch 注册回调
func (l *Local) Watch(_ context.Context, channel string, fn func()) (Subscription, error) {
	w := newWatcher(fn)

	l.mu.Lock()
	if l.watchers[channel] == nil {
		l.watchers[channel] = make(map[*watcher]struct{})
	}
	l.watchers[channel][w] = struct{}{}
	l.mu.Unlock()

	return &localSubscription{owner: l, channel: channel, w: w}, nil
}

// Watchers 通道上的订阅者数量
func (l *Local) Watchers(channel string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.watchers[channel])
}

type localSubscription struct {
	owner   *Local
	channel string
	w       *watcher
}

func (s *localSubscription) Close() {
	s.owner.mu.Lock()
	if ws, ok := s.owner.watchers[s.channel]; ok {
		delete(ws, s.w)
		if len(ws) == 0 {
			delete(s.owner.watchers, s.channel)
		}
	}
	s.owner.mu.Unlock()
	s.w.close()
}
