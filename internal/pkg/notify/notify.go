// Package notify 在命名通道上传递"有变更"信号。
// 信号不带数据, 订阅者收到后重新读取快照。回调执行期间到达的多个信号合并为一次后续调用
package notify

import (
	"context"
	"sync"
)

// Notifier 发布与订阅变更信号
type Notifier interface {
	Publish(ctx context.Context, channel string) error
	// Watch 每次收到信号调用 fn, 直到 Subscription 关闭。
	// fn 在独立 goroutine 上串行执行
	Watch(ctx context.Context, channel string, fn func()) (Subscription, error)
}

// Subscription 订阅句柄。Close 等待正在执行的回调返回, 之后不再调用回调。
// 不能在回调内部调用 Close
type Subscription interface {
	Close()
}

// ProjectChannel 项目文档变更通道
func ProjectChannel(projectID string) string {
	return "reefs:project:" + projectID
}

// TracesChannel 用户 trace 变更通道
func TracesChannel(userID string) string {
	return "reefs:traces:" + userID
}

// SpansChannel 用户 span 变更通道
func SpansChannel(userID string) string {
	return "reefs:spans:" + userID
}

// watcher 执行回调的 goroutine
type watcher struct {
	fn     func()
	signal chan struct{}
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newWatcher(fn func()) *watcher {
	w := &watcher{
		fn:     fn,
		signal: make(chan struct{}, 1),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *watcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case <-w.signal:
			// Close 可能与信号并发
			select {
			case <-w.stop:
				return
			default:
			}
			w.fn()
		}
	}
}

func (w *watcher) notify() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watcher) close() {
	w.once.Do(func() { close(w.stop) })
	<-w.done
}
