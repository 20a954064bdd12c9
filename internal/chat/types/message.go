package types

import (
	"encoding/json"
	"time"
)

// Role 消息角色
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage 项目对话中的消息
type ChatMessage struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Parts     Parts      `json:"parts"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// Clone 深拷贝
func (m *ChatMessage) Clone() *ChatMessage {
	if m == nil {
		return nil
	}
	out := *m
	if m.Parts != nil {
		out.Parts = make(Parts, len(m.Parts))
		for i, p := range m.Parts {
			out.Parts[i] = clonePart(p)
		}
	}
	if m.CreatedAt != nil {
		t := *m.CreatedAt
		out.CreatedAt = &t
	}
	return &out
}

// Text 拼接所有文本片段
func (m *ChatMessage) Text() string {
	if m == nil {
		return ""
	}
	var s string
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok {
			s += t.Text
		}
	}
	return s
}

// ChatRequest POST /chat 请求体
type ChatRequest struct {
	ProjectID string        `json:"projectId"`
	Messages  []ChatMessage `json:"messages"`
}

// PartEvent SSE "part" 事件
type PartEvent struct {
	MessageID string          `json:"messageId"`
	Part      json.RawMessage `json:"part"`
}

// ErrorEvent SSE "error" 事件
type ErrorEvent struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// FinishEvent SSE "finish" 事件
type FinishEvent struct {
	Message *ChatMessage `json:"message"`
}
