package biz

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/reefs-ai/reefs-backend/internal/pkg/notify"
	"github.com/reefs-ai/reefs-backend/internal/trace/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSub struct {
	mu     sync.Mutex
	closed bool
}

func (s *fakeSub) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

func (s *fakeSub) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeFeed delivers the initial snapshot synchronously and lets tests push more
type fakeFeed struct {
	traces   []*types.Trace
	spans    []*types.Span
	spansErr error

	onTraces func([]*types.Trace)
	onSpans  func([]*types.Span)
	subs     []*fakeSub
}

func (f *fakeFeed) WatchTraces(_ context.Context, _ string, fn func([]*types.Trace)) (notify.Subscription, error) {
	f.onTraces = fn
	sub := &fakeSub{}
	f.subs = append(f.subs, sub)
	fn(f.traces)
	return sub, nil
}

func (f *fakeFeed) WatchSpans(_ context.Context, _ string, fn func([]*types.Span)) (notify.Subscription, error) {
	if f.spansErr != nil {
		return nil, f.spansErr
	}
	f.onSpans = fn
	sub := &fakeSub{}
	f.subs = append(f.subs, sub)
	fn(f.spans)
	return sub, nil
}

func next(t *testing.T, p *Panel) View {
	t.Helper()
	select {
	case v, ok := <-p.Updates():
		require.True(t, ok, "updates closed")
		return v
	case <-time.After(time.Second):
		t.Fatal("no update")
		return View{}
	}
}

func noUpdate(t *testing.T, p *Panel) {
	t.Helper()
	select {
	case v := <-p.Updates():
		t.Fatalf("unexpected update: %+v", v)
	default:
	}
}

func TestPanel_Empty(t *testing.T) {
	p, err := OpenPanel(context.Background(), &fakeFeed{}, "u1", "")
	require.NoError(t, err)
	defer p.Close()

	v := next(t, p)
	assert.True(t, v.Empty)
	assert.Equal(t, 0, v.Total)
	assert.Equal(t, StatusAll, v.Filter)
	assert.False(t, v.Paused)
}

func TestPanel_LatestViewWins(t *testing.T) {
	feed := &fakeFeed{
		traces: []*types.Trace{{ID: "t1", Status: types.StatusCompleted, StartTime: at(0)}},
	}
	p, err := OpenPanel(context.Background(), feed, "u1", StatusAll)
	require.NoError(t, err)
	defer p.Close()

	feed.onSpans([]*types.Span{{ID: "s1", Status: types.StatusRunning, StartTime: at(5)}})

	// both initial snapshots and the push collapse into a single unread view
	v := next(t, p)
	assert.Equal(t, []string{"s1", "t1"}, ids(v.Entries))
	noUpdate(t, p)
}

func TestPanel_PauseResume(t *testing.T) {
	feed := &fakeFeed{
		traces: []*types.Trace{{ID: "t1", Status: types.StatusCompleted, StartTime: at(0)}},
	}
	p, err := OpenPanel(context.Background(), feed, "u1", StatusAll)
	require.NoError(t, err)
	defer p.Close()
	next(t, p)

	p.Pause()
	feed.onTraces([]*types.Trace{
		{ID: "t1", Status: types.StatusCompleted, StartTime: at(0)},
		{ID: "t2", Status: types.StatusRunning, StartTime: at(10)},
	})
	feed.onTraces([]*types.Trace{
		{ID: "t1", Status: types.StatusCompleted, StartTime: at(0)},
		{ID: "t2", Status: types.StatusCompleted, StartTime: at(10)},
		{ID: "t3", Status: types.StatusRunning, StartTime: at(20)},
	})
	noUpdate(t, p)

	v := p.View()
	assert.True(t, v.Paused)
	assert.Equal(t, []string{"t1"}, ids(v.Entries))

	p.Resume()
	v = next(t, p)
	assert.False(t, v.Paused)
	assert.Equal(t, []string{"t3", "t2", "t1"}, ids(v.Entries))
	noUpdate(t, p)
}

func TestPanel_PauseDiscardsUnread(t *testing.T) {
	feed := &fakeFeed{traces: []*types.Trace{{ID: "t1", Status: types.StatusCompleted, StartTime: at(0)}}}
	p, err := OpenPanel(context.Background(), feed, "u1", StatusAll)
	require.NoError(t, err)
	defer p.Close()

	p.Pause()
	noUpdate(t, p)

	// resume without new snapshots still emits the held view once
	p.Resume()
	assert.Equal(t, []string{"t1"}, ids(next(t, p).Entries))
}

func TestPanel_SetFilter(t *testing.T) {
	feed := &fakeFeed{
		traces: []*types.Trace{
			{ID: "ok", Status: types.StatusCompleted, StartTime: at(0)},
			{ID: "bad", Status: types.StatusFailed, StartTime: at(1)},
		},
	}
	p, err := OpenPanel(context.Background(), feed, "u1", StatusAll)
	require.NoError(t, err)
	defer p.Close()
	next(t, p)

	p.SetFilter(types.StatusFailed)
	v := next(t, p)
	assert.Equal(t, types.StatusFailed, v.Filter)
	assert.Equal(t, []string{"bad"}, ids(v.Entries))
	assert.Equal(t, 1, v.Total)

	p.SetFilter(types.StatusPending)
	v = next(t, p)
	assert.True(t, v.Empty)
}

func TestPanel_Close(t *testing.T) {
	feed := &fakeFeed{}
	p, err := OpenPanel(context.Background(), feed, "u1", "")
	require.NoError(t, err)

	p.Close()
	p.Close()
	for _, s := range feed.subs {
		assert.True(t, s.isClosed())
	}
	_, ok := <-p.Updates()
	assert.False(t, ok)

	// late callbacks and controls are ignored
	feed.onTraces([]*types.Trace{{ID: "late"}})
	p.Pause()
	p.Resume()
	p.SetFilter(types.StatusFailed)
}

func TestPanel_OpenError(t *testing.T) {
	feed := &fakeFeed{spansErr: errors.New("unavailable")}
	_, err := OpenPanel(context.Background(), feed, "u1", "")
	require.Error(t, err)
	require.Len(t, feed.subs, 1)
	assert.True(t, feed.subs[0].isClosed())
}
