package biz

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/notify"
	"github.com/reefs-ai/reefs-backend/internal/trace/types"
)

// DefaultSnapshotLimit 每个集合加载的最新记录数
const DefaultSnapshotLimit = 100

// TraceRepo trace/span 存储接口
type TraceRepo interface {
	ListTraces(ctx context.Context, userID string, limit int) ([]*types.Trace, error)
	ListSpans(ctx context.Context, userID string, limit int) ([]*types.Span, error)
	GetTrace(ctx context.Context, userID, id string) (*types.Trace, error)
	FindTrace(ctx context.Context, userID, traceID string) (*types.Trace, error)
	// SpansOfTrace 按开始时间返回 trace 的 span
	SpansOfTrace(ctx context.Context, userID, traceID string) ([]*types.Span, error)
	CreateTrace(ctx context.Context, t *types.Trace) error
	UpdateTrace(ctx context.Context, t *types.Trace) error
	FindSpan(ctx context.Context, userID, spanID string) (*types.Span, error)
	CreateSpan(ctx context.Context, s *types.Span) error
	UpdateSpan(ctx context.Context, s *types.Span) error
}

// StartTraceInput agent 开始运行时采集器上报
type StartTraceInput struct {
	UserID    string         `json:"user_id"`
	TraceID   string         `json:"trace_id"`
	Name      string         `json:"name"`
	GroupID   string         `json:"group_id"`
	StartTime types.Instant  `json:"start_time"`
	Metadata  types.Metadata `json:"metadata"`
	Tags      []string       `json:"tags"`
}

// EndTraceInput agent 运行结束时采集器上报
type EndTraceInput struct {
	UserID   string         `json:"user_id"`
	Status   string         `json:"status"`
	EndTime  types.Instant  `json:"end_time"`
	Metadata types.Metadata `json:"metadata"`
}

// StartSpanInput 步骤开始
type StartSpanInput struct {
	UserID    string          `json:"user_id"`
	SpanID    string          `json:"span_id"`
	TraceID   string          `json:"trace_id"`
	ParentID  string          `json:"parent_id"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	StartTime types.Instant   `json:"start_time"`
	Inputs    json.RawMessage `json:"inputs"`
	Metadata  types.Metadata  `json:"metadata"`
	Tags      []string        `json:"tags"`
}

// EndSpanInput 步骤结束
type EndSpanInput struct {
	UserID  string          `json:"user_id"`
	EndTime types.Instant   `json:"end_time"`
	Inputs  json.RawMessage `json:"inputs"`
	Outputs json.RawMessage `json:"outputs"`
	Error   string          `json:"error"`
}

// Entries 投影并过滤后的用户 trace 视图
type Entries struct {
	Entries []types.LogEntry `json:"entries"`
	Total   int              `json:"total"`
}

// TraceDetail trace 及其 span
type TraceDetail struct {
	Trace   *types.Trace     `json:"trace"`
	Spans   []*types.Span    `json:"spans"`
	Entries []types.LogEntry `json:"entries"`
}

// TraceUseCase trace 查看与采集业务逻辑
type TraceUseCase struct {
	repo     TraceRepo
	feed     Feed
	notifier notify.Notifier
	limit    int
	logger   *logger.Logger
	now      func() time.Time
}

func NewTraceUseCase(repo TraceRepo, feed Feed, notifier notify.Notifier, limit int, log *logger.Logger) *TraceUseCase {
	if limit <= 0 {
		limit = DefaultSnapshotLimit
	}
	return &TraceUseCase{
		repo:     repo,
		feed:     feed,
		notifier: notifier,
		limit:    limit,
		logger:   log.Named("trace"),
		now:      time.Now,
	}
}

// Entries 并行加载最新的 trace 和 span 并投影
func (uc *TraceUseCase) Entries(ctx context.Context, userID, status string) (*Entries, error) {
	var (
		traces []*types.Trace
		spans  []*types.Span
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		traces, err = uc.repo.ListTraces(gctx, userID, uc.limit)
		return err
	})
	g.Go(func() error {
		var err error
		spans, err = uc.repo.ListSpans(gctx, userID, uc.limit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	entries := FilterAndSort(Project(traces, spans), status)
	return &Entries{Entries: entries, Total: len(entries)}, nil
}

// Detail 按记录 ID 获取 trace 及其 span
func (uc *TraceUseCase) Detail(ctx context.Context, userID, id string) (*TraceDetail, error) {
	t, err := uc.repo.GetTrace(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	spans, err := uc.repo.SpansOfTrace(ctx, userID, t.TraceID)
	if err != nil {
		return nil, err
	}
	return &TraceDetail{
		Trace:   t,
		Spans:   spans,
		Entries: FilterAndSort(Project([]*types.Trace{t}, spans), StatusAll),
	}, nil
}

// OpenPanel 打开实时面板
func (uc *TraceUseCase) OpenPanel(ctx context.Context, userID, status string) (*Panel, error) {
	return OpenPanel(ctx, uc.feed, userID, status)
}

// StartTrace 记录运行中的 trace
func (uc *TraceUseCase) StartTrace(ctx context.Context, in *StartTraceInput) (*types.Trace, error) {
	if in.UserID == "" {
		return nil, ErrUserIDRequired
	}
	if in.TraceID == "" {
		return nil, ErrTraceIDRequired
	}

	now := uc.now().UTC()
	start := in.StartTime
	if _, ok := Normalize(start); !ok {
		start = types.Native(now)
	}
	meta := types.Metadata{}
	for k, v := range in.Metadata {
		meta[k] = v
	}
	if _, ok := meta.String("name"); !ok {
		name := in.Name
		if name == "" {
			name = "Agent workflow"
		}
		meta["name"] = name
	}

	t := &types.Trace{
		ID:        uuid.Must(uuid.NewV7()).String(),
		TraceID:   in.TraceID,
		UserID:    in.UserID,
		GroupID:   in.GroupID,
		Status:    types.StatusRunning,
		StartTime: start,
		CreatedAt: types.Native(now),
		UpdatedAt: types.Native(now),
		Metadata:  meta,
		Tags:      in.Tags,
	}
	if err := uc.repo.CreateTrace(ctx, t); err != nil {
		return nil, err
	}
	uc.publish(ctx, notify.TracesChannel(in.UserID))
	return t, nil
}

// EndTrace 完成 trace, 输入取第一个响应 span, 输出取最后一个
func (uc *TraceUseCase) EndTrace(ctx context.Context, traceID string, in *EndTraceInput) (*types.Trace, error) {
	if in.UserID == "" {
		return nil, ErrUserIDRequired
	}
	status := in.Status
	switch status {
	case "":
		status = types.StatusCompleted
	case types.StatusCompleted, types.StatusFailed:
	default:
		return nil, ErrInvalidEndStatus
	}

	t, err := uc.repo.FindTrace(ctx, in.UserID, traceID)
	if err != nil {
		return nil, err
	}
	spans, err := uc.repo.SpansOfTrace(ctx, in.UserID, traceID)
	if err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	end := in.EndTime
	if _, ok := Normalize(end); !ok {
		end = types.Native(now)
	}
	t.Status = status
	t.EndTime = end
	t.UpdatedAt = types.Native(now)
	t.Inputs, t.Outputs = responseIO(spans)
	if len(in.Metadata) > 0 {
		if t.Metadata == nil {
			t.Metadata = types.Metadata{}
		}
		for k, v := range in.Metadata {
			t.Metadata[k] = v
		}
	}
	if err := uc.repo.UpdateTrace(ctx, t); err != nil {
		return nil, err
	}
	uc.publish(ctx, notify.TracesChannel(in.UserID))
	return t, nil
}

// StartSpan 记录运行中的 span
func (uc *TraceUseCase) StartSpan(ctx context.Context, in *StartSpanInput) (*types.Span, error) {
	if in.UserID == "" {
		return nil, ErrUserIDRequired
	}
	if in.SpanID == "" {
		return nil, ErrSpanIDRequired
	}
	if in.TraceID == "" {
		return nil, ErrTraceIDRequired
	}
	if _, err := uc.repo.FindTrace(ctx, in.UserID, in.TraceID); err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	start := in.StartTime
	if _, ok := Normalize(start); !ok {
		start = types.Native(now)
	}
	name := in.Name
	if name == "" {
		name = "Span_" + in.SpanID
	}
	spanType := in.Type
	if spanType == "" {
		spanType = "unknown"
	}
	meta := types.Metadata{
		"name":            name,
		"openai_span_id":  in.SpanID,
		"openai_trace_id": in.TraceID,
	}
	if in.ParentID != "" {
		meta["openai_parent_id"] = in.ParentID
	}
	for k, v := range in.Metadata {
		meta[k] = v
	}

	s := &types.Span{
		ID:        uuid.Must(uuid.NewV7()).String(),
		SpanID:    in.SpanID,
		TraceID:   in.TraceID,
		ParentID:  in.ParentID,
		UserID:    in.UserID,
		Type:      spanType,
		Status:    types.StatusRunning,
		StartTime: start,
		CreatedAt: types.Native(now),
		UpdatedAt: types.Native(now),
		Inputs:    in.Inputs,
		Metadata:  meta,
		Tags:      in.Tags,
	}
	if err := uc.repo.CreateSpan(ctx, s); err != nil {
		return nil, err
	}
	uc.publish(ctx, notify.SpansChannel(in.UserID))
	return s, nil
}

// EndSpan 完成 span, 上报了错误时标记为 error
func (uc *TraceUseCase) EndSpan(ctx context.Context, spanID string, in *EndSpanInput) (*types.Span, error) {
	if in.UserID == "" {
		return nil, ErrUserIDRequired
	}
	s, err := uc.repo.FindSpan(ctx, in.UserID, spanID)
	if err != nil {
		return nil, err
	}

	now := uc.now().UTC()
	end := in.EndTime
	if _, ok := Normalize(end); !ok {
		end = types.Native(now)
	}
	s.EndTime = end
	s.UpdatedAt = types.Native(now)
	if len(in.Inputs) > 0 {
		s.Inputs = in.Inputs
	}
	s.Outputs = in.Outputs
	s.Status = types.StatusCompleted
	s.Error = nil
	if in.Error != "" {
		msg := in.Error
		s.Status = types.StatusError
		s.Error = &msg
	}
	if err := uc.repo.UpdateSpan(ctx, s); err != nil {
		return nil, err
	}
	uc.publish(ctx, notify.SpansChannel(in.UserID))
	return s, nil
}

func (uc *TraceUseCase) publish(ctx context.Context, channel string) {
	if err := uc.notifier.Publish(ctx, channel); err != nil {
		uc.logger.Warn("failed to publish change", zap.String("channel", channel), zap.Error(err))
	}
}

// responseIO 取第一个已结束响应 span 的输入和最后一个的输出
func responseIO(spans []*types.Span) (json.RawMessage, json.RawMessage) {
	var inputs, outputs json.RawMessage
	for _, s := range spans {
		if s.Type != types.SpanTypeResponse || s.Status == types.StatusRunning {
			continue
		}
		if inputs == nil && !isEmptyJSON(s.Inputs) {
			inputs = s.Inputs
		}
		outputs = s.Outputs
	}
	return inputs, outputs
}

func isEmptyJSON(raw json.RawMessage) bool {
	switch string(raw) {
	case "", "null", "{}":
		return true
	}
	return false
}

// IsNotFound 判断是否为记录不存在
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTraceNotFound) || errors.Is(err, ErrSpanNotFound)
}
