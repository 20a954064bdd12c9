package biz

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/notify"
	"github.com/reefs-ai/reefs-backend/internal/trace/types"
)

type memRepo struct {
	mu      sync.Mutex
	traces  []*types.Trace
	spans   []*types.Span
	listErr error
}

func (r *memRepo) ListTraces(_ context.Context, userID string, limit int) ([]*types.Trace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []*types.Trace
	for _, t := range r.traces {
		if t.UserID == userID && len(out) < limit {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memRepo) ListSpans(_ context.Context, userID string, limit int) ([]*types.Span, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Span
	for _, s := range r.spans {
		if s.UserID == userID && len(out) < limit {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memRepo) GetTrace(_ context.Context, userID, id string) (*types.Trace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.traces {
		if t.ID == id && t.UserID == userID {
			return t, nil
		}
	}
	return nil, ErrTraceNotFound
}

func (r *memRepo) FindTrace(_ context.Context, userID, traceID string) (*types.Trace, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.traces {
		if t.TraceID == traceID && t.UserID == userID {
			return t, nil
		}
	}
	return nil, ErrTraceNotFound
}

func (r *memRepo) SpansOfTrace(_ context.Context, userID, traceID string) ([]*types.Span, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Span
	for _, s := range r.spans {
		if s.TraceID == traceID && s.UserID == userID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *memRepo) CreateTrace(_ context.Context, t *types.Trace) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.traces = append(r.traces, t)
	return nil
}

func (r *memRepo) UpdateTrace(context.Context, *types.Trace) error { return nil }

func (r *memRepo) FindSpan(_ context.Context, userID, spanID string) (*types.Span, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.spans {
		if s.SpanID == spanID && s.UserID == userID {
			return s, nil
		}
	}
	return nil, ErrSpanNotFound
}

func (r *memRepo) CreateSpan(_ context.Context, s *types.Span) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, s)
	return nil
}

func (r *memRepo) UpdateSpan(context.Context, *types.Span) error { return nil }

type recordingNotifier struct {
	mu        sync.Mutex
	published []string
}

func (n *recordingNotifier) Publish(_ context.Context, channel string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, channel)
	return nil
}

func (n *recordingNotifier) Watch(context.Context, string, func()) (notify.Subscription, error) {
	return nil, errors.New("not supported")
}

func newUseCase(repo TraceRepo) (*TraceUseCase, *recordingNotifier) {
	n := &recordingNotifier{}
	uc := NewTraceUseCase(repo, nil, n, 0, logger.NewNop())
	uc.now = func() time.Time { return base }
	return uc, n
}

func TestStartTrace(t *testing.T) {
	repo := &memRepo{}
	uc, n := newUseCase(repo)
	ctx := context.Background()

	_, err := uc.StartTrace(ctx, &StartTraceInput{TraceID: "tr_1"})
	assert.ErrorIs(t, err, ErrUserIDRequired)
	_, err = uc.StartTrace(ctx, &StartTraceInput{UserID: "u1"})
	assert.ErrorIs(t, err, ErrTraceIDRequired)

	tr, err := uc.StartTrace(ctx, &StartTraceInput{UserID: "u1", TraceID: "tr_1", Metadata: types.Metadata{"agent_type": "builder"}})
	require.NoError(t, err)
	assert.Equal(t, types.StatusRunning, tr.Status)
	assert.Equal(t, types.Metadata{"agent_type": "builder", "name": "Agent workflow"}, tr.Metadata)
	start, ok := types.Normalize(tr.StartTime)
	require.True(t, ok)
	assert.True(t, base.Equal(start))
	assert.NotEmpty(t, tr.ID)
	assert.Equal(t, []string{notify.TracesChannel("u1")}, n.published)

	tr, err = uc.StartTrace(ctx, &StartTraceInput{UserID: "u1", TraceID: "tr_2", Name: "Planner", StartTime: types.ISO("2025-01-01T00:00:00Z")})
	require.NoError(t, err)
	assert.Equal(t, "Planner", tr.Metadata["name"])
	start, _ = types.Normalize(tr.StartTime)
	assert.Equal(t, 2025, start.Year())
	assert.Equal(t, time.January, start.Month())
}

func TestStartSpan(t *testing.T) {
	repo := &memRepo{}
	uc, n := newUseCase(repo)
	ctx := context.Background()

	_, err := uc.StartSpan(ctx, &StartSpanInput{UserID: "u1", SpanID: "sp_1", TraceID: "missing"})
	assert.ErrorIs(t, err, ErrTraceNotFound)
	assert.True(t, IsNotFound(err))

	_, err = uc.StartTrace(ctx, &StartTraceInput{UserID: "u1", TraceID: "tr_1"})
	require.NoError(t, err)

	sp, err := uc.StartSpan(ctx, &StartSpanInput{UserID: "u1", SpanID: "sp_1", TraceID: "tr_1", ParentID: "sp_0"})
	require.NoError(t, err)
	assert.Equal(t, "unknown", sp.Type)
	assert.Equal(t, types.StatusRunning, sp.Status)
	assert.Equal(t, types.Metadata{
		"name":             "Span_sp_1",
		"openai_span_id":   "sp_1",
		"openai_trace_id":  "tr_1",
		"openai_parent_id": "sp_0",
	}, sp.Metadata)
	assert.Equal(t, notify.SpansChannel("u1"), n.published[len(n.published)-1])

	_, err = uc.StartSpan(ctx, &StartSpanInput{UserID: "u1", TraceID: "tr_1"})
	assert.ErrorIs(t, err, ErrSpanIDRequired)
}

func TestEndSpan(t *testing.T) {
	repo := &memRepo{}
	uc, _ := newUseCase(repo)
	ctx := context.Background()

	_, err := uc.EndSpan(ctx, "sp_1", &EndSpanInput{UserID: "u1"})
	assert.ErrorIs(t, err, ErrSpanNotFound)

	_, err = uc.StartTrace(ctx, &StartTraceInput{UserID: "u1", TraceID: "tr_1"})
	require.NoError(t, err)
	_, err = uc.StartSpan(ctx, &StartSpanInput{UserID: "u1", SpanID: "sp_1", TraceID: "tr_1"})
	require.NoError(t, err)
	_, err = uc.StartSpan(ctx, &StartSpanInput{UserID: "u1", SpanID: "sp_2", TraceID: "tr_1"})
	require.NoError(t, err)

	sp, err := uc.EndSpan(ctx, "sp_1", &EndSpanInput{UserID: "u1", Outputs: json.RawMessage(`{"ok":true}`)})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, sp.Status)
	assert.Nil(t, sp.Error)
	assert.JSONEq(t, `{"ok":true}`, string(sp.Outputs))

	sp, err = uc.EndSpan(ctx, "sp_2", &EndSpanInput{UserID: "u1", Error: "tool crashed"})
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, sp.Status)
	require.NotNil(t, sp.Error)
	assert.Equal(t, "tool crashed", *sp.Error)
	assert.Equal(t, types.LevelWarning, Classify(sp.Status, sp.HasError()))
}

func TestEndTrace(t *testing.T) {
	repo := &memRepo{}
	uc, _ := newUseCase(repo)
	ctx := context.Background()

	_, err := uc.StartTrace(ctx, &StartTraceInput{UserID: "u1", TraceID: "tr_1"})
	require.NoError(t, err)
	repo.spans = []*types.Span{
		{SpanID: "a", TraceID: "tr_1", UserID: "u1", Type: types.SpanTypeResponse, Status: types.StatusCompleted, Inputs: json.RawMessage(`{}`), Outputs: json.RawMessage(`"a-out"`)},
		{SpanID: "b", TraceID: "tr_1", UserID: "u1", Type: types.SpanTypeResponse, Status: types.StatusCompleted, Inputs: json.RawMessage(`"first"`), Outputs: json.RawMessage(`"b-out"`)},
		{SpanID: "c", TraceID: "tr_1", UserID: "u1", Type: "function", Status: types.StatusCompleted, Outputs: json.RawMessage(`"tool"`)},
		{SpanID: "d", TraceID: "tr_1", UserID: "u1", Type: types.SpanTypeResponse, Status: types.StatusCompleted, Inputs: json.RawMessage(`"second"`), Outputs: json.RawMessage(`"last"`)},
		{SpanID: "e", TraceID: "tr_1", UserID: "u1", Type: types.SpanTypeResponse, Status: types.StatusRunning, Outputs: json.RawMessage(`"partial"`)},
	}

	_, err = uc.EndTrace(ctx, "tr_1", &EndTraceInput{UserID: "u1", Status: "cancelled"})
	assert.ErrorIs(t, err, ErrInvalidEndStatus)

	tr, err := uc.EndTrace(ctx, "tr_1", &EndTraceInput{UserID: "u1", Metadata: types.Metadata{"tokens": 12}})
	require.NoError(t, err)
	assert.Equal(t, types.StatusCompleted, tr.Status)
	assert.JSONEq(t, `"first"`, string(tr.Inputs))
	assert.JSONEq(t, `"last"`, string(tr.Outputs))
	assert.Equal(t, 12, tr.Metadata["tokens"])
	assert.Equal(t, "Agent workflow", tr.Metadata["name"])
	assert.False(t, tr.EndTime.IsAbsent())

	tr, err = uc.EndTrace(ctx, "tr_1", &EndTraceInput{UserID: "u1", Status: types.StatusFailed})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFailed, tr.Status)

	_, err = uc.EndTrace(ctx, "tr_9", &EndTraceInput{UserID: "u1"})
	assert.ErrorIs(t, err, ErrTraceNotFound)
}

func TestEntriesAndDetail(t *testing.T) {
	repo := &memRepo{
		traces: []*types.Trace{
			{ID: "t1", TraceID: "tr_1", UserID: "u1", Status: types.StatusCompleted, StartTime: at(0)},
			{ID: "t2", TraceID: "tr_2", UserID: "u2", Status: types.StatusFailed, StartTime: at(5)},
		},
		spans: []*types.Span{
			{ID: "s1", SpanID: "sp_1", TraceID: "tr_1", UserID: "u1", Status: types.StatusError, StartTime: at(3), Error: ptr("x")},
		},
	}
	uc, _ := newUseCase(repo)
	ctx := context.Background()

	got, err := uc.Entries(ctx, "u1", StatusAll)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, []string{"s1", "t1"}, ids(got.Entries))

	got, err = uc.Entries(ctx, "u1", types.StatusError)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids(got.Entries))

	detail, err := uc.Detail(ctx, "u1", "t1")
	require.NoError(t, err)
	assert.Equal(t, "tr_1", detail.Trace.TraceID)
	assert.Len(t, detail.Spans, 1)
	assert.Len(t, detail.Entries, 2)

	_, err = uc.Detail(ctx, "u1", "t2")
	assert.ErrorIs(t, err, ErrTraceNotFound)

	repo.listErr = errors.New("db down")
	_, err = uc.Entries(ctx, "u1", StatusAll)
	assert.Error(t, err)
}
