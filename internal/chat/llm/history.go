package llm

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/chat/types"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
)

// TokenCounter token 计数
type TokenCounter interface {
	Count(text string) int
}

// EstimateCounter 按每 4 个字符一个 token 估算
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	return (len(text) + 3) / 4
}

// tiktokenCounter 首次使用时加载编码, 加载失败退回估算
type tiktokenCounter struct {
	model  string
	logger *logger.Logger

	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTiktokenCounter 使用模型对应的编码, 未知模型用 o200k_base
func NewTiktokenCounter(model string, log *logger.Logger) TokenCounter {
	return &tiktokenCounter{model: model, logger: log}
}

func (c *tiktokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.EncodingForModel(c.model)
		if err != nil {
			enc, err = tiktoken.GetEncoding(tiktoken.MODEL_O200K_BASE)
		}
		if err != nil {
			c.logger.Warn("tiktoken unavailable, estimating tokens", zap.Error(err))
			return
		}
		c.enc = enc
	})
	if c.enc == nil {
		return EstimateCounter{}.Count(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// messageOverhead 每条消息的角色与分隔开销
const messageOverhead = 4

// TrimHistory 从最早的消息开始丢弃直到不超过 budget。
// 最新的用户消息总是保留, 即使它本身超出预算。budget <= 0 不裁剪
func TrimHistory(msgs []types.ChatMessage, budget int, counter TokenCounter) []types.ChatMessage {
	if budget <= 0 || len(msgs) == 0 {
		return msgs
	}

	costs := make([]int, len(msgs))
	total := 0
	for i := range msgs {
		costs[i] = messageTokens(&msgs[i], counter)
		total += costs[i]
	}

	keep := lastUserIndex(msgs)
	start := 0
	for total > budget && start < len(msgs)-1 && start != keep {
		total -= costs[start]
		start++
	}
	return msgs[start:]
}

func messageTokens(m *types.ChatMessage, counter TokenCounter) int {
	n := messageOverhead
	for _, p := range m.Parts {
		switch v := p.(type) {
		case types.TextPart:
			n += counter.Count(v.Text)
		case types.ToolCallPart:
			n += counter.Count(v.ToolName) + counter.Count(string(v.Input))
		case types.ToolResultPart:
			n += counter.Count(string(v.Output))
		}
	}
	return n
}

func lastUserIndex(msgs []types.ChatMessage) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleUser {
			return i
		}
	}
	return -1
}
