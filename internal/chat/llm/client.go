// Package llm 基于 OpenAI 兼容的 chat completion API 执行对话
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/sashabaranov/go-openai"
	"github.com/sashabaranov/go-openai/jsonschema"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/chat/biz"
	"github.com/reefs-ai/reefs-backend/internal/chat/types"
	"github.com/reefs-ai/reefs-backend/internal/conf"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/tools"
)

// Client 流式调用模型并执行工具循环
type Client struct {
	api       *openai.Client
	model     string
	maxTokens int
	maxSteps  int
	budget    int
	counter   TokenCounter
	tools     []openai.Tool
	logger    *logger.Logger
}

// Option 客户端选项
type Option func(*Client)

// WithTokenCounter 替换裁剪历史用的 token 计数器
func WithTokenCounter(c TokenCounter) Option {
	return func(cl *Client) { cl.counter = c }
}

// NewClient 根据 openai 配置创建客户端
func NewClient(cfg *conf.OpenAIConfig, log *logger.Logger, opts ...Option) *Client {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	c := &Client{
		api:       openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxOutputTokens,
		maxSteps:  cfg.MaxSteps,
		budget:    cfg.HistoryTokenBudget,
		tools:     []openai.Tool{upsertWorkflowTool()},
		logger:    log.Named("llm"),
	}
	if c.maxSteps <= 0 {
		c.maxSteps = 1
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.counter == nil {
		c.counter = NewTiktokenCounter(c.model, c.logger)
	}
	return c
}

func upsertWorkflowTool() openai.Tool {
	str := jsonschema.Definition{Type: jsonschema.String}
	agent := jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"name":            str,
			"description":     str,
			"task":            str,
			"expected_input":  str,
			"expected_output": str,
			"tools":           {Type: jsonschema.Array, Items: &str},
		},
		Required: []string{"name"},
	}

	return openai.Tool{
		Type: openai.ToolTypeFunction,
		Function: &openai.FunctionDefinition{
			Name:        tools.UpsertWorkflowTool,
			Description: "Create or replace the full workflow configuration of the current project.",
			Parameters: jsonschema.Definition{
				Type: jsonschema.Object,
				Properties: map[string]jsonschema.Definition{
					"workflowState": {
						Type: jsonschema.Object,
						Properties: map[string]jsonschema.Definition{
							"main_task": str,
							"relations": str,
							"agents":    {Type: jsonschema.Array, Items: &agent},
						},
						Required: []string{"main_task", "agents"},
					},
					"user_id": str,
				},
				Required: []string{"workflowState"},
			},
		},
	}
}

func (c *Client) knownTool(name string) bool {
	for _, t := range c.tools {
		if t.Function != nil && t.Function.Name == name {
			return true
		}
	}
	return false
}

// Stream 实现 biz.Streamer。每一步流式执行一次补全, 模型请求工具时执行并回填结果,
// 最多 maxSteps 次补全
func (c *Client) Stream(ctx context.Context, req *biz.StreamRequest, emit func(types.Part) error) error {
	history := TrimHistory(req.History, c.budget, c.counter)
	if dropped := len(req.History) - len(history); dropped > 0 {
		c.logger.Debug("trimmed chat history", zap.Int("dropped", dropped))
	}
	msgs := toOpenAIMessages(req.System, history)

	for step := 0; step < c.maxSteps; step++ {
		text, calls, err := c.step(ctx, msgs, emit)
		if err != nil {
			return err
		}
		if len(calls) == 0 {
			return nil
		}

		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:      openai.ChatMessageRoleAssistant,
			Content:   text,
			ToolCalls: calls,
		})

		for _, tc := range calls {
			name := tc.Function.Name
			if !c.knownTool(name) {
				return fmt.Errorf("%w: %s", biz.ErrUnknownTool, name)
			}
			args := json.RawMessage(tc.Function.Arguments)
			if len(args) == 0 {
				args = json.RawMessage("{}")
			}
			if !json.Valid(args) {
				return fmt.Errorf("%w: %s arguments are not JSON", biz.ErrInvalidToolInput, name)
			}

			if err := emit(types.ToolCallPart{CallID: tc.ID, ToolName: name, Input: args}); err != nil {
				return err
			}
			out, err := req.Execute(ctx, name, args)
			if err != nil {
				return err
			}
			if err := emit(types.ToolResultPart{CallID: tc.ID, ToolName: name, Output: out}); err != nil {
				return err
			}
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				ToolCallID: tc.ID,
				Content:    string(out),
			})
		}
	}

	c.logger.Warn("chat stopped at step limit", zap.Int("max_steps", c.maxSteps))
	return nil
}

// step 流式执行一次补全。文本与推理按段增长发送: 推理开始一个新段时
// 之前的文本段结束, 之后的内容进入新的文本 part。返回的 text 是全部文本,
// 工具调用在完整后一并返回
func (c *Client) step(ctx context.Context, msgs []openai.ChatCompletionMessage, emit func(types.Part) error) (string, []openai.ToolCall, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:               c.model,
		Messages:            msgs,
		MaxCompletionTokens: c.maxTokens,
		Tools:               c.tools,
		Stream:              true,
	})
	if err != nil {
		return "", nil, fmt.Errorf("create chat stream: %w", err)
	}
	defer stream.Close()

	var (
		text      string
		segment   string
		reasoning string
		thinking  bool
		calls     = make(map[int]*openai.ToolCall)
	)

	sealReasoning := func() error {
		if !thinking {
			return nil
		}
		thinking = false
		return emit(types.ReasoningPart{Text: reasoning, State: types.ReasoningDone})
	}

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", nil, fmt.Errorf("receive chat stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta

		if delta.ReasoningContent != "" {
			if !thinking {
				reasoning = ""
				segment = ""
			}
			reasoning += delta.ReasoningContent
			thinking = true
			if err := emit(types.ReasoningPart{Text: reasoning, State: types.ReasoningStreaming}); err != nil {
				return "", nil, err
			}
		}

		if delta.Content != "" {
			if err := sealReasoning(); err != nil {
				return "", nil, err
			}
			text += delta.Content
			segment += delta.Content
			if err := emit(types.TextPart{Text: segment}); err != nil {
				return "", nil, err
			}
		}

		for _, tc := range delta.ToolCalls {
			if err := sealReasoning(); err != nil {
				return "", nil, err
			}
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			acc, ok := calls[idx]
			if !ok {
				acc = &openai.ToolCall{Type: openai.ToolTypeFunction}
				calls[idx] = acc
			}
			if tc.ID != "" {
				acc.ID = tc.ID
			}
			acc.Function.Name += tc.Function.Name
			acc.Function.Arguments += tc.Function.Arguments
		}
	}

	if err := sealReasoning(); err != nil {
		return "", nil, err
	}

	indexes := make([]int, 0, len(calls))
	for i := range calls {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	out := make([]openai.ToolCall, 0, len(indexes))
	for _, i := range indexes {
		out = append(out, *calls[i])
	}
	return text, out, nil
}
