package types

// Level 日志级别
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// EntryType 日志条目的来源记录类型
type EntryType string

const (
	EntryTrace EntryType = "trace"
	EntrySpan  EntryType = "span"
)

// LogEntry trace 或 span 的展示投影, Data 为 *Trace 或 *Span
type LogEntry struct {
	ID        string    `json:"id"`
	Timestamp Instant   `json:"timestamp"`
	Type      EntryType `json:"type"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Status    string    `json:"status"`
	Data      any       `json:"data"`
	Duration  *int64    `json:"duration,omitempty"`
}
