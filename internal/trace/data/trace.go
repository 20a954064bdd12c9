package data

import (
	"context"
	"encoding/json"
	"time"

	"github.com/reefs-ai/reefs-backend/internal/pkg/database"
	"github.com/reefs-ai/reefs-backend/internal/trace/biz"
	"github.com/reefs-ai/reefs-backend/internal/trace/types"
)

// TracePO agent_traces 表
type TracePO struct {
	ID        string `gorm:"type:varchar(36);primarykey"`
	TraceID   string `gorm:"size:128;not null;uniqueIndex:idx_traces_user_trace"`
	UserID    string `gorm:"size:64;not null;uniqueIndex:idx_traces_user_trace;index:idx_traces_user_created"`
	GroupID   string `gorm:"size:128"`
	Status    string `gorm:"size:32;not null"`
	StartTime *time.Time
	EndTime   *time.Time
	Inputs    database.JSON[json.RawMessage]
	Outputs   database.JSON[json.RawMessage]
	Metadata  database.JSON[types.Metadata]
	Tags      database.JSON[[]string]
	CreatedAt time.Time `gorm:"index:idx_traces_user_created"`
	UpdatedAt time.Time
}

func (TracePO) TableName() string {
	return "agent_traces"
}

// SpanPO agent_spans 表
type SpanPO struct {
	ID        string `gorm:"type:varchar(36);primarykey"`
	SpanID    string `gorm:"size:128;not null;uniqueIndex:idx_spans_user_span"`
	TraceID   string `gorm:"size:128;not null;index:idx_spans_user_trace"`
	ParentID  string `gorm:"size:128"`
	UserID    string `gorm:"size:64;not null;uniqueIndex:idx_spans_user_span;index:idx_spans_user_trace;index:idx_spans_user_created"`
	Type      string `gorm:"size:64"`
	Status    string `gorm:"size:32;not null"`
	StartTime *time.Time
	EndTime   *time.Time
	Error     *string `gorm:"type:text"`
	Inputs    database.JSON[json.RawMessage]
	Outputs   database.JSON[json.RawMessage]
	Metadata  database.JSON[types.Metadata]
	Tags      database.JSON[[]string]
	CreatedAt time.Time `gorm:"index:idx_spans_user_created"`
	UpdatedAt time.Time
}

func (SpanPO) TableName() string {
	return "agent_spans"
}

// Models 本包管理的表
func Models() []any {
	return []any{&TracePO{}, &SpanPO{}}
}

type traceRepo struct {
	db *database.DB
}

func NewTraceRepo(db *database.DB) biz.TraceRepo {
	return &traceRepo{db: db}
}

func (r *traceRepo) ListTraces(ctx context.Context, userID string, limit int) ([]*types.Trace, error) {
	var pos []TracePO
	if err := r.db.Conn(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&pos).Error; err != nil {
		return nil, err
	}
	out := make([]*types.Trace, 0, len(pos))
	for i := range pos {
		out = append(out, toTrace(&pos[i]))
	}
	return out, nil
}

func (r *traceRepo) ListSpans(ctx context.Context, userID string, limit int) ([]*types.Span, error) {
	var pos []SpanPO
	if err := r.db.Conn(ctx).Where("user_id = ?", userID).
		Order("created_at DESC").Limit(limit).Find(&pos).Error; err != nil {
		return nil, err
	}
	return toSpans(pos), nil
}

func (r *traceRepo) GetTrace(ctx context.Context, userID, id string) (*types.Trace, error) {
	return r.firstTrace(ctx, "user_id = ? AND id = ?", userID, id)
}

func (r *traceRepo) FindTrace(ctx context.Context, userID, traceID string) (*types.Trace, error) {
	return r.firstTrace(ctx, "user_id = ? AND trace_id = ?", userID, traceID)
}

func (r *traceRepo) firstTrace(ctx context.Context, query string, args ...any) (*types.Trace, error) {
	var po TracePO
	if err := r.db.Conn(ctx).Where(query, args...).First(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrTraceNotFound
		}
		return nil, err
	}
	return toTrace(&po), nil
}

func (r *traceRepo) SpansOfTrace(ctx context.Context, userID, traceID string) ([]*types.Span, error) {
	var pos []SpanPO
	if err := r.db.Conn(ctx).Where("user_id = ? AND trace_id = ?", userID, traceID).
		Order("start_time ASC").Order("created_at ASC").Find(&pos).Error; err != nil {
		return nil, err
	}
	return toSpans(pos), nil
}

func (r *traceRepo) CreateTrace(ctx context.Context, t *types.Trace) error {
	return r.db.Conn(ctx).Create(toTracePO(t)).Error
}

func (r *traceRepo) UpdateTrace(ctx context.Context, t *types.Trace) error {
	res := r.db.Conn(ctx).Select("*").Omit("created_at").Where("id = ?", t.ID).Updates(toTracePO(t))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return biz.ErrTraceNotFound
	}
	return nil
}

func (r *traceRepo) FindSpan(ctx context.Context, userID, spanID string) (*types.Span, error) {
	var po SpanPO
	if err := r.db.Conn(ctx).Where("user_id = ? AND span_id = ?", userID, spanID).First(&po).Error; err != nil {
		if database.IsRecordNotFoundError(err) {
			return nil, biz.ErrSpanNotFound
		}
		return nil, err
	}
	return toSpan(&po), nil
}

func (r *traceRepo) CreateSpan(ctx context.Context, s *types.Span) error {
	return r.db.Conn(ctx).Create(toSpanPO(s)).Error
}

func (r *traceRepo) UpdateSpan(ctx context.Context, s *types.Span) error {
	res := r.db.Conn(ctx).Select("*").Omit("created_at").Where("id = ?", s.ID).Updates(toSpanPO(s))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return biz.ErrSpanNotFound
	}
	return nil
}

func timePtr(i types.Instant) *time.Time {
	t, ok := types.Normalize(i)
	if !ok {
		return nil
	}
	t = t.UTC()
	return &t
}

func timeOf(i types.Instant) time.Time {
	if t := timePtr(i); t != nil {
		return *t
	}
	return time.Time{}
}

func toTracePO(t *types.Trace) *TracePO {
	return &TracePO{
		ID:        t.ID,
		TraceID:   t.TraceID,
		UserID:    t.UserID,
		GroupID:   t.GroupID,
		Status:    t.Status,
		StartTime: timePtr(t.StartTime),
		EndTime:   timePtr(t.EndTime),
		Inputs:    database.NewJSON(t.Inputs),
		Outputs:   database.NewJSON(t.Outputs),
		Metadata:  database.NewJSON(t.Metadata),
		Tags:      database.NewJSON(t.Tags),
		CreatedAt: timeOf(t.CreatedAt),
		UpdatedAt: timeOf(t.UpdatedAt),
	}
}

func toTrace(po *TracePO) *types.Trace {
	return &types.Trace{
		ID:        po.ID,
		TraceID:   po.TraceID,
		UserID:    po.UserID,
		GroupID:   po.GroupID,
		Status:    po.Status,
		StartTime: types.NativePtr(po.StartTime),
		EndTime:   types.NativePtr(po.EndTime),
		CreatedAt: types.Native(po.CreatedAt),
		UpdatedAt: types.Native(po.UpdatedAt),
		Inputs:    po.Inputs.V,
		Outputs:   po.Outputs.V,
		Metadata:  po.Metadata.V,
		Tags:      po.Tags.V,
	}
}

func toSpanPO(s *types.Span) *SpanPO {
	return &SpanPO{
		ID:        s.ID,
		SpanID:    s.SpanID,
		TraceID:   s.TraceID,
		ParentID:  s.ParentID,
		UserID:    s.UserID,
		Type:      s.Type,
		Status:    s.Status,
		StartTime: timePtr(s.StartTime),
		EndTime:   timePtr(s.EndTime),
		Error:     s.Error,
		Inputs:    database.NewJSON(s.Inputs),
		Outputs:   database.NewJSON(s.Outputs),
		Metadata:  database.NewJSON(s.Metadata),
		Tags:      database.NewJSON(s.Tags),
		CreatedAt: timeOf(s.CreatedAt),
		UpdatedAt: timeOf(s.UpdatedAt),
	}
}

func toSpan(po *SpanPO) *types.Span {
	return &types.Span{
		ID:        po.ID,
		SpanID:    po.SpanID,
		TraceID:   po.TraceID,
		ParentID:  po.ParentID,
		UserID:    po.UserID,
		Type:      po.Type,
		Status:    po.Status,
		StartTime: types.NativePtr(po.StartTime),
		EndTime:   types.NativePtr(po.EndTime),
		CreatedAt: types.Native(po.CreatedAt),
		UpdatedAt: types.Native(po.UpdatedAt),
		Error:     po.Error,
		Inputs:    po.Inputs.V,
		Outputs:   po.Outputs.V,
		Metadata:  po.Metadata.V,
		Tags:      po.Tags.V,
	}
}

func toSpans(pos []SpanPO) []*types.Span {
	out := make([]*types.Span, 0, len(pos))
	for i := range pos {
		out = append(out, toSpan(&pos[i]))
	}
	return out
}
