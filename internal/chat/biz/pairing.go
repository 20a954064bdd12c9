package biz

import "github.com/reefs-ai/reefs-backend/internal/chat/types"

// ToolPair 工具调用及其结果
type ToolPair struct {
	Call    types.ToolCallPart
	Result  *types.ToolResultPart // latest result, nil while the call is pending
	Results int                   // number of results seen for the call
}

// HasActiveTool 是否有工具调用仍在等待结果
func HasActiveTool(msg *types.ChatMessage) bool {
	if msg == nil {
		return false
	}
	answered := make(map[string]struct{})
	for _, p := range msg.Parts {
		if r, ok := p.(types.ToolResultPart); ok {
			answered[r.CallID] = struct{}{}
		}
	}
	for _, p := range msg.Parts {
		if c, ok := p.(types.ToolCallPart); ok {
			if _, done := answered[c.CallID]; !done {
				return true
			}
		}
	}
	return false
}

// ResultFor 返回 callID 最后一次记录的结果
func ResultFor(msg *types.ChatMessage, callID string) (types.ToolResultPart, bool) {
	var (
		found types.ToolResultPart
		ok    bool
	)
	if msg == nil {
		return found, false
	}
	for _, p := range msg.Parts {
		if r, is := p.(types.ToolResultPart); is && r.CallID == callID {
			found, ok = r, true
		}
	}
	return found, ok
}

// Pairs 按顺序列出工具调用及其最新结果
func Pairs(msg *types.ChatMessage) []ToolPair {
	if msg == nil {
		return nil
	}

	latest := make(map[string]types.ToolResultPart)
	counts := make(map[string]int)
	for _, p := range msg.Parts {
		if r, ok := p.(types.ToolResultPart); ok {
			latest[r.CallID] = r
			counts[r.CallID]++
		}
	}

	var pairs []ToolPair
	for _, p := range msg.Parts {
		c, ok := p.(types.ToolCallPart)
		if !ok {
			continue
		}
		pair := ToolPair{Call: c, Results: counts[c.CallID]}
		if r, ok := latest[c.CallID]; ok {
			pair.Result = &r
		}
		pairs = append(pairs, pair)
	}
	return pairs
}
