package biz

import "errors"

var (
	// ErrMessagesRequired 缺少消息数组
	ErrMessagesRequired = errors.New("Messages array is required")

	// ErrProjectIDRequired 缺少项目 ID
	ErrProjectIDRequired = errors.New("Project ID is required")

	// ErrNotConfigured 未配置 OpenAI Key
	ErrNotConfigured = errors.New("OpenAI API key not configured")

	// ErrUnknownTool 模型调用了不存在的工具
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidToolInput 工具参数无效
	ErrInvalidToolInput = errors.New("invalid tool input")

	// ErrDuplicateToolCall 同一消息中重复的工具调用 ID
	ErrDuplicateToolCall = errors.New("duplicate tool call id")

	// ErrOrphanToolResult 工具结果没有对应的调用
	ErrOrphanToolResult = errors.New("tool result without a matching call")

	// ErrStreamFinished 消息已结束，不能再追加片段
	ErrStreamFinished = errors.New("message stream already finished")
)

// Category 对调用方可见的错误分类
type Category string

const (
	CategoryUnknownTool      Category = "unknown_tool"
	CategoryInvalidToolInput Category = "invalid_tool_input"
	CategoryGeneric          Category = "generic"
)

// Message 展示给用户的文字
func (c Category) Message() string {
	switch c {
	case CategoryUnknownTool:
		return "The assistant tried to use a tool that does not exist."
	case CategoryInvalidToolInput:
		return "The assistant sent invalid input to a tool."
	default:
		return "An error occurred while processing your request."
	}
}

// Classify 把流错误归入三类之一
func Classify(err error) Category {
	switch {
	case errors.Is(err, ErrUnknownTool):
		return CategoryUnknownTool
	case errors.Is(err, ErrInvalidToolInput):
		return CategoryInvalidToolInput
	default:
		return CategoryGeneric
	}
}
