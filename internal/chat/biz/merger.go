package biz

import (
	"fmt"

	"github.com/reefs-ai/reefs-backend/internal/chat/types"
)

// Merger 把一次流式回复的片段合并成消息。非并发安全, 流由单个 goroutine 消费
type Merger struct {
	msg      *types.ChatMessage
	calls    map[string]struct{}
	finished bool
}

// NewMerger 创建空的 assistant 消息
func NewMerger(messageID string) *Merger {
	return &Merger{
		msg:   &types.ChatMessage{ID: messageID, Role: types.RoleAssistant, Parts: types.Parts{}},
		calls: make(map[string]struct{}),
	}
}

// Apply 合并片段, 出错时消息不变
func (m *Merger) Apply(p types.Part) error {
	if m.finished {
		return ErrStreamFinished
	}

	switch v := p.(type) {
	case types.TextPart:
		if _, ok := m.last().(types.TextPart); ok {
			m.replaceLast(v)
		} else {
			m.append(v)
		}
	case types.ReasoningPart:
		if r, ok := m.last().(types.ReasoningPart); ok && r.State == types.ReasoningStreaming {
			m.replaceLast(v)
		} else {
			m.append(v)
		}
	case types.ToolCallPart:
		if _, dup := m.calls[v.CallID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateToolCall, v.CallID)
		}
		m.calls[v.CallID] = struct{}{}
		m.append(v)
	case types.ToolResultPart:
		if _, ok := m.calls[v.CallID]; !ok {
			return fmt.Errorf("%w: %s", ErrOrphanToolResult, v.CallID)
		}
		m.append(v)
	default:
		return fmt.Errorf("chat: unsupported part %T", p)
	}
	return nil
}

// Finish 结束仍在流式输出的推理片段并冻结消息
func (m *Merger) Finish() {
	if m.finished {
		return
	}
	if r, ok := m.last().(types.ReasoningPart); ok && r.State == types.ReasoningStreaming {
		r.State = types.ReasoningDone
		m.replaceLast(r)
	}
	m.finished = true
}

func (m *Merger) Finished() bool {
	return m.finished
}

// Message 返回当前消息的副本
func (m *Merger) Message() *types.ChatMessage {
	return m.msg.Clone()
}

func (m *Merger) ID() string {
	return m.msg.ID
}

func (m *Merger) last() types.Part {
	if n := len(m.msg.Parts); n > 0 {
		return m.msg.Parts[n-1]
	}
	return nil
}

func (m *Merger) append(p types.Part) {
	m.msg.Parts = append(m.msg.Parts, p)
}

func (m *Merger) replaceLast(p types.Part) {
	m.msg.Parts[len(m.msg.Parts)-1] = p
}
