package biz

import (
	"context"
	"sync"

	"github.com/reefs-ai/reefs-backend/internal/pkg/notify"
	"github.com/reefs-ai/reefs-backend/internal/trace/types"
)

// Feed 推送用户 trace/span 的完整快照: 订阅时一次, 之后每次变更一次。
// 同一订阅的回调不会重叠
type Feed interface {
	WatchTraces(ctx context.Context, userID string, fn func([]*types.Trace)) (notify.Subscription, error)
	WatchSpans(ctx context.Context, userID string, fn func([]*types.Span)) (notify.Subscription, error)
}

// View 面板展示内容
type View struct {
	Entries []types.LogEntry `json:"entries"`
	Total   int              `json:"total"`
	Empty   bool             `json:"empty"`
	Paused  bool             `json:"paused"`
	Filter  string           `json:"filter"`
}

// Panel 持有某个用户最新的 trace/span 快照, 每次变更时重新计算过滤排序后的视图
type Panel struct {
	mu     sync.Mutex
	traces []*types.Trace
	spans  []*types.Span
	filter string
	paused bool
	closed bool

	pendingTraces    []*types.Trace
	pendingSpans     []*types.Span
	hasPendingTraces bool
	hasPendingSpans  bool

	subs    []notify.Subscription
	updates chan View
}

// OpenPanel 订阅用户的两个 feed。更新通过 Updates() 送出, 只保留最新一份未读视图
func OpenPanel(ctx context.Context, feed Feed, userID, filter string) (*Panel, error) {
	p := &Panel{filter: filter, updates: make(chan View, 1)}

	ts, err := feed.WatchTraces(ctx, userID, p.onTraces)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.subs = append(p.subs, ts)
	p.mu.Unlock()

	ss, err := feed.WatchSpans(ctx, userID, p.onSpans)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.mu.Lock()
	p.subs = append(p.subs, ss)
	p.mu.Unlock()
	return p, nil
}

// Updates 视图通道, Close 时关闭
func (p *Panel) Updates() <-chan View {
	return p.updates
}

func (p *Panel) onTraces(traces []*types.Trace) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.paused {
		p.pendingTraces, p.hasPendingTraces = traces, true
		return
	}
	p.traces = traces
	p.emitLocked()
}

func (p *Panel) onSpans(spans []*types.Span) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.paused {
		p.pendingSpans, p.hasPendingSpans = spans, true
		return
	}
	p.spans = spans
	p.emitLocked()
}

// Pause 暂停应用快照, 最新快照保留到 Resume, 未读视图被丢弃
func (p *Panel) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.paused {
		return
	}
	p.paused = true
	select {
	case <-p.updates:
	default:
	}
}

// Resume 应用保留的快照并推送一次
func (p *Panel) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || !p.paused {
		return
	}
	p.paused = false
	if p.hasPendingTraces {
		p.traces = p.pendingTraces
	}
	if p.hasPendingSpans {
		p.spans = p.pendingSpans
	}
	p.pendingTraces, p.pendingSpans = nil, nil
	p.hasPendingTraces, p.hasPendingSpans = false, false
	p.emitLocked()
}

// SetFilter 按新过滤条件重新计算视图
func (p *Panel) SetFilter(status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.filter = status
	p.emitLocked()
}

// View 计算当前视图但不推送
func (p *Panel) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewLocked()
}

// Close 释放订阅并关闭 Updates, 返回后不再推送。可重复调用
func (p *Panel) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	subs := p.subs
	p.subs = nil
	p.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}

	select {
	case <-p.updates:
	default:
	}
	close(p.updates)
}

func (p *Panel) viewLocked() View {
	entries := FilterAndSort(Project(p.traces, p.spans), p.filter)
	filter := p.filter
	if filter == "" {
		filter = StatusAll
	}
	return View{
		Entries: entries,
		Total:   len(entries),
		Empty:   len(entries) == 0,
		Paused:  p.paused,
		Filter:  filter,
	}
}

// emitLocked 用当前视图替换未读视图
func (p *Panel) emitLocked() {
	v := p.viewLocked()
	select {
	case <-p.updates:
	default:
	}
	p.updates <- v
}
