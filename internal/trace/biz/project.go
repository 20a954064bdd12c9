package biz

import (
	"slices"

	"github.com/reefs-ai/reefs-backend/internal/trace/types"
)

// StatusAll 不按状态过滤
const StatusAll = "all"

// Classify 计算记录的级别: failed 为 error, 其余带错误信息的为 warning。
// 采集器写入的 "error" 状态总带有 error 字段, 因此显示为 warning
func Classify(status string, hasError bool) types.Level {
	switch {
	case status == types.StatusFailed:
		return types.LevelError
	case hasError:
		return types.LevelWarning
	default:
		return types.LevelInfo
	}
}

// Project 把 trace 和 span 映射为日志条目: 先 trace 后 span, 各自保持输入顺序。
// 父 trace 不在快照中的 span 也保留
func Project(traces []*types.Trace, spans []*types.Span) []types.LogEntry {
	entries := make([]types.LogEntry, 0, len(traces)+len(spans))
	for _, t := range traces {
		if t == nil {
			continue
		}
		agentType, ok := t.Metadata.String("agent_type")
		if !ok {
			agentType = "Unknown"
		}
		name, ok := t.Metadata.String("name")
		if !ok {
			name = "Unnamed Trace"
		}
		entries = append(entries, types.LogEntry{
			ID:        t.ID,
			Timestamp: entryTimestamp(t.StartTime, t.CreatedAt),
			Type:      types.EntryTrace,
			Level:     Classify(t.Status, false),
			Message:   agentType + ": " + name,
			Status:    t.Status,
			Data:      t,
			Duration:  duration(t.StartTime, t.EndTime),
		})
	}
	for _, s := range spans {
		if s == nil {
			continue
		}
		name, ok := s.Metadata.String("name")
		if !ok {
			name = "Unnamed Span"
		}
		entries = append(entries, types.LogEntry{
			ID:        s.ID,
			Timestamp: entryTimestamp(s.StartTime, s.CreatedAt),
			Type:      types.EntrySpan,
			Level:     Classify(s.Status, s.HasError()),
			Message:   name,
			Status:    s.Status,
			Data:      s,
			Duration:  duration(s.StartTime, s.EndTime),
		})
	}
	return entries
}

func entryTimestamp(start, created types.Instant) types.Instant {
	if t, ok := Normalize(start); ok {
		return types.Native(t)
	}
	if t, ok := Normalize(created); ok {
		return types.Native(t)
	}
	return types.Instant{}
}

func duration(start, end types.Instant) *int64 {
	s, ok := Normalize(start)
	if !ok {
		return nil
	}
	e, ok := Normalize(end)
	if !ok {
		return nil
	}
	ms := e.Sub(s).Milliseconds()
	return &ms
}

// FilterAndSort 保留状态等于 statusFilter 的条目 ("all" 或 "" 保留全部),
// 按时间倒序稳定排序, 没有时间戳的排在最后。不修改输入
func FilterAndSort(entries []types.LogEntry, statusFilter string) []types.LogEntry {
	out := make([]types.LogEntry, 0, len(entries))
	for _, e := range entries {
		if statusFilter == "" || statusFilter == StatusAll || e.Status == statusFilter {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b types.LogEntry) int {
		ta, okA := Normalize(a.Timestamp)
		tb, okB := Normalize(b.Timestamp)
		switch {
		case !okA && !okB:
			return 0
		case !okA:
			return 1
		case !okB:
			return -1
		}
		return tb.Compare(ta)
	})
	return out
}
