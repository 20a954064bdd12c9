package types

import "encoding/json"

// 采集器写入的状态值
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusPending   = "pending"
	StatusError     = "error"
)

// SpanTypeResponse 模型响应 span
const SpanTypeResponse = "response"

// Metadata trace/span 的自由格式元数据
type Metadata map[string]any

// String 读取字符串字段, 缺失或不是字符串时返回 false
func (m Metadata) String(key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok
}

// Trace 一次 agent 运行
type Trace struct {
	ID        string          `json:"id"`
	TraceID   string          `json:"trace_id"`
	UserID    string          `json:"user_id"`
	GroupID   string          `json:"group_id,omitempty"`
	Status    string          `json:"status"`
	StartTime Instant         `json:"start_time"`
	EndTime   Instant         `json:"end_time"`
	CreatedAt Instant         `json:"created_at"`
	UpdatedAt Instant         `json:"updated_at"`
	Inputs    json.RawMessage `json:"inputs,omitempty"`
	Outputs   json.RawMessage `json:"outputs,omitempty"`
	Metadata  Metadata        `json:"metadata"`
	Tags      []string        `json:"tags"`
}

// Span trace 中的一个步骤
type Span struct {
	ID        string          `json:"id"`
	SpanID    string          `json:"span_id"`
	TraceID   string          `json:"trace_id"`
	ParentID  string          `json:"parent_id,omitempty"`
	UserID    string          `json:"user_id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	StartTime Instant         `json:"start_time"`
	EndTime   Instant         `json:"end_time"`
	CreatedAt Instant         `json:"created_at"`
	UpdatedAt Instant         `json:"updated_at"`
	Error     *string         `json:"error,omitempty"`
	Inputs    json.RawMessage `json:"inputs,omitempty"`
	Outputs   json.RawMessage `json:"outputs,omitempty"`
	Metadata  Metadata        `json:"metadata"`
	Tags      []string        `json:"tags"`
}

// HasError 是否记录了错误
func (s *Span) HasError() bool {
	return s.Error != nil && *s.Error != ""
}
