package llm

import (
	"github.com/sashabaranov/go-openai"

	"github.com/reefs-ai/reefs-backend/internal/chat/types"
)

// toOpenAIMessages 把存储的对话转换为 chat completion 消息。
// 跨多个工具步骤的 assistant 消息按步骤拆开, 每步后跟回答它的 tool 消息。
// 推理内容不回放
func toOpenAIMessages(system string, history []types.ChatMessage) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for i := range history {
		m := &history[i]
		switch m.Role {
		case types.RoleUser:
			if text := m.Text(); text != "" {
				out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
			}
		case types.RoleAssistant:
			out = append(out, assistantSteps(m)...)
		}
	}
	return out
}

func assistantSteps(m *types.ChatMessage) []openai.ChatCompletionMessage {
	var (
		out     []openai.ChatCompletionMessage
		current openai.ChatCompletionMessage
		results []openai.ChatCompletionMessage
	)
	current.Role = openai.ChatMessageRoleAssistant

	flush := func() {
		if current.Content != "" || len(current.ToolCalls) > 0 {
			out = append(out, current)
		}
		out = append(out, results...)
		current = openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant}
		results = nil
	}

	for _, p := range m.Parts {
		switch v := p.(type) {
		case types.TextPart:
			if len(results) > 0 {
				flush()
			}
			current.Content += v.Text
		case types.ToolCallPart:
			if len(results) > 0 {
				flush()
			}
			args := string(v.Input)
			if args == "" {
				args = "{}"
			}
			current.ToolCalls = append(current.ToolCalls, openai.ToolCall{
				ID:       v.CallID,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: v.ToolName, Arguments: args},
			})
		case types.ToolResultPart:
			results = append(results, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: v.CallID,
				Content:    string(v.Output),
			})
		}
	}
	flush()
	return out
}
