package data

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/notify"
	"github.com/reefs-ai/reefs-backend/internal/trace/biz"
	"github.com/reefs-ai/reefs-backend/internal/trace/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("database/sql.(*DB).connectionOpener"))
}

// failingRepo fails every list call
type failingRepo struct {
	biz.TraceRepo
}

func (failingRepo) ListTraces(context.Context, string, int) ([]*types.Trace, error) {
	return nil, errors.New("store unavailable")
}

func TestSnapshotFeed_InitialAndReload(t *testing.T) {
	repo := newTestRepo(t)
	n := notify.NewLocal()
	feed := NewSnapshotFeed(repo, n, 10, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.CreateTrace(ctx, newTrace("t1", "tr_1", "u1", 0)))

	got := make(chan []*types.Trace, 4)
	sub, err := feed.WatchTraces(ctx, "u1", func(ts []*types.Trace) { got <- ts })
	require.NoError(t, err)

	// the initial snapshot is delivered before Watch returns
	require.Len(t, got, 1)
	assert.Len(t, <-got, 1)
	assert.Equal(t, 1, n.Watchers(notify.TracesChannel("u1")))

	require.NoError(t, repo.CreateTrace(ctx, newTrace("t2", "tr_2", "u1", 10)))
	require.NoError(t, n.Publish(ctx, notify.TracesChannel("u1")))

	select {
	case ts := <-got:
		require.Len(t, ts, 2)
		assert.Equal(t, "t2", ts[0].ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no reload after publish")
	}

	sub.Close()
	assert.Equal(t, 0, n.Watchers(notify.TracesChannel("u1")))
}

func TestSnapshotFeed_Spans(t *testing.T) {
	repo := newTestRepo(t)
	n := notify.NewLocal()
	feed := NewSnapshotFeed(repo, n, 10, logger.NewNop())
	ctx := context.Background()

	var initial []*types.Span
	sub, err := feed.WatchSpans(ctx, "u1", func(ss []*types.Span) { initial = ss })
	require.NoError(t, err)
	defer sub.Close()

	assert.NotNil(t, initial)
	assert.Empty(t, initial)
}

func TestSnapshotFeed_LoadErrorDeliversEmpty(t *testing.T) {
	feed := NewSnapshotFeed(failingRepo{}, notify.NewLocal(), 10, logger.NewNop())

	var got []*types.Trace
	called := false
	sub, err := feed.WatchTraces(context.Background(), "u1", func(ts []*types.Trace) {
		called = true
		got = ts
	})
	require.NoError(t, err)
	defer sub.Close()

	assert.True(t, called)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSnapshotFeed_DrivesPanel(t *testing.T) {
	repo := newTestRepo(t)
	n := notify.NewLocal()
	feed := NewSnapshotFeed(repo, n, 10, logger.NewNop())
	uc := biz.NewTraceUseCase(repo, feed, n, 10, logger.NewNop())
	ctx := context.Background()

	panel, err := uc.OpenPanel(ctx, "u1", biz.StatusAll)
	require.NoError(t, err)
	defer panel.Close()

	v := <-panel.Updates()
	assert.True(t, v.Empty)

	_, err = uc.StartTrace(ctx, &biz.StartTraceInput{UserID: "u1", TraceID: "tr_1", Name: "Builder"})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return panel.View().Total == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "Unknown: Builder", panel.View().Entries[0].Message)
}
