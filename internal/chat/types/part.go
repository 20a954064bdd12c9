package types

import (
	"encoding/json"
	"fmt"
)

// PartKind 消息片段类型
type PartKind string

const (
	KindText       PartKind = "text"
	KindReasoning  PartKind = "reasoning"
	KindToolCall   PartKind = "tool-call"
	KindToolResult PartKind = "tool-result"
)

// ReasoningState 推理片段状态
type ReasoningState string

const (
	ReasoningStreaming ReasoningState = "streaming"
	ReasoningDone      ReasoningState = "done"
)

// Part 消息片段。实现是封闭的: TextPart、ReasoningPart、ToolCallPart、ToolResultPart
type Part interface {
	Kind() PartKind
	part()
}

// TextPart 文本片段
type TextPart struct {
	Text string
}

// ReasoningPart 模型推理片段
type ReasoningPart struct {
	Text  string
	State ReasoningState
}

// ToolCallPart 工具调用
type ToolCallPart struct {
	CallID   string
	ToolName string
	Input    json.RawMessage
}

// ToolResultPart 工具返回结果
type ToolResultPart struct {
	CallID   string
	ToolName string
	Output   json.RawMessage
}

func (TextPart) Kind() PartKind       { return KindText }
func (ReasoningPart) Kind() PartKind  { return KindReasoning }
func (ToolCallPart) Kind() PartKind   { return KindToolCall }
func (ToolResultPart) Kind() PartKind { return KindToolResult }

func (TextPart) part()       {}
func (ReasoningPart) part()  {}
func (ToolCallPart) part()   {}
func (ToolResultPart) part() {}

// wirePart 前端约定的 JSON 结构
type wirePart struct {
	Type       PartKind        `json:"type"`
	Text       string          `json:"text,omitempty"`
	State      ReasoningState  `json:"state,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
}

// EncodePart 转换为 JSON 形式
func EncodePart(p Part) ([]byte, error) {
	var w wirePart
	switch v := p.(type) {
	case TextPart:
		w = wirePart{Type: KindText, Text: v.Text}
	case ReasoningPart:
		w = wirePart{Type: KindReasoning, Text: v.Text, State: v.State}
	case ToolCallPart:
		w = wirePart{Type: KindToolCall, ToolCallID: v.CallID, ToolName: v.ToolName, Input: v.Input}
	case ToolResultPart:
		w = wirePart{Type: KindToolResult, ToolCallID: v.CallID, ToolName: v.ToolName, Output: v.Output}
	default:
		return nil, fmt.Errorf("chat: unknown part %T", p)
	}
	return json.Marshal(w)
}

// DecodePart 解析片段。未建模的类型 (如浏览器发送的 step 标记) 返回 ok=false
func DecodePart(data []byte) (p Part, ok bool, err error) {
	var w wirePart
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, false, err
	}

	switch w.Type {
	case KindText:
		return TextPart{Text: w.Text}, true, nil
	case KindReasoning:
		state := w.State
		if state == "" {
			state = ReasoningDone
		}
		return ReasoningPart{Text: w.Text, State: state}, true, nil
	case KindToolCall:
		return ToolCallPart{CallID: w.ToolCallID, ToolName: w.ToolName, Input: w.Input}, true, nil
	case KindToolResult:
		return ToolResultPart{CallID: w.ToolCallID, ToolName: w.ToolName, Output: w.Output}, true, nil
	default:
		return nil, false, nil
	}
}

// Parts 有序片段列表
type Parts []Part

func (ps Parts) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, 0, len(ps))
	for _, p := range ps {
		b, err := EncodePart(p)
		if err != nil {
			return nil, err
		}
		raws = append(raws, b)
	}
	return json.Marshal(raws)
}

// UnmarshalJSON 跳过未建模的片段类型
func (ps *Parts) UnmarshalJSON(data []byte) error {
	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return err
	}
	if raws == nil {
		*ps = nil
		return nil
	}

	out := make(Parts, 0, len(raws))
	for i, raw := range raws {
		p, ok, err := DecodePart(raw)
		if err != nil {
			return fmt.Errorf("chat: part %d: %w", i, err)
		}
		if ok {
			out = append(out, p)
		}
	}
	*ps = out
	return nil
}

// clonePart 复制片段持有的字节切片
func clonePart(p Part) Part {
	switch v := p.(type) {
	case ToolCallPart:
		v.Input = cloneRaw(v.Input)
		return v
	case ToolResultPart:
		v.Output = cloneRaw(v.Output)
		return v
	default:
		return p
	}
}

func cloneRaw(r json.RawMessage) json.RawMessage {
	if r == nil {
		return nil
	}
	return append(json.RawMessage(nil), r...)
}
