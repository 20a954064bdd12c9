package biz

import "github.com/reefs-ai/reefs-backend/internal/chat/types"

// BlockKind 渲染块类型
type BlockKind string

const (
	BlockText       BlockKind = "text"
	BlockReasoning  BlockKind = "reasoning"
	BlockToolCall   BlockKind = "tool-call"
	BlockToolResult BlockKind = "tool-result"
)

const (
	thinkingLabel  = "Thinking..."
	reasoningLabel = "Reasoning"

	workingState  = "Working on your request..."
	thinkingState = "AI is thinking..."
)

// Block 片段的展示形式
type Block struct {
	Kind      BlockKind `json:"kind"`
	Label     string    `json:"label,omitempty"`
	Text      string    `json:"text,omitempty"`
	CallID    string    `json:"callId,omitempty"`
	ToolName  string    `json:"toolName,omitempty"`
	Streaming bool      `json:"streaming,omitempty"`
}

// Render 按到达顺序把片段转换为 Block
func Render(msg *types.ChatMessage) []Block {
	if msg == nil {
		return nil
	}

	blocks := make([]Block, 0, len(msg.Parts))
	for _, p := range msg.Parts {
		switch v := p.(type) {
		case types.TextPart:
			blocks = append(blocks, Block{Kind: BlockText, Text: v.Text})
		case types.ReasoningPart:
			b := Block{Kind: BlockReasoning, Label: reasoningLabel, Text: v.Text}
			if v.State == types.ReasoningStreaming {
				b.Label = thinkingLabel
				b.Streaming = true
			}
			blocks = append(blocks, b)
		case types.ToolCallPart:
			blocks = append(blocks, Block{Kind: BlockToolCall, CallID: v.CallID, ToolName: v.ToolName, Text: string(v.Input)})
		case types.ToolResultPart:
			blocks = append(blocks, Block{Kind: BlockToolResult, CallID: v.CallID, ToolName: v.ToolName, Text: string(v.Output)})
		}
	}
	return blocks
}

// Partitioned 按类型分组的片段
type Partitioned struct {
	Text        []types.TextPart
	Reasoning   []types.ReasoningPart
	ToolCalls   []types.ToolCallPart
	ToolResults []types.ToolResultPart
}

// Partition 按类型分组, 保持相对顺序
func Partition(msg *types.ChatMessage) Partitioned {
	var out Partitioned
	if msg == nil {
		return out
	}
	for _, p := range msg.Parts {
		switch v := p.(type) {
		case types.TextPart:
			out.Text = append(out.Text, v)
		case types.ReasoningPart:
			out.Reasoning = append(out.Reasoning, v)
		case types.ToolCallPart:
			out.ToolCalls = append(out.ToolCalls, v)
		case types.ToolResultPart:
			out.ToolResults = append(out.ToolResults, v)
		}
	}
	return out
}

// ThinkingState 回复生成中显示的状态
func ThinkingState(msg *types.ChatMessage) string {
	if HasActiveTool(msg) {
		return workingState
	}
	return thinkingState
}
