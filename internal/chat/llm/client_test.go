package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefs-ai/reefs-backend/internal/chat/biz"
	"github.com/reefs-ai/reefs-backend/internal/chat/types"
	"github.com/reefs-ai/reefs-backend/internal/conf"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
)

// fakeCompletions answers each chat completion request with the next script,
// a list of raw chunk JSON documents.
type fakeCompletions struct {
	mu       sync.Mutex
	scripts  [][]string
	requests []openai.ChatCompletionRequest
}

func (f *fakeCompletions) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var req openai.ChatCompletionRequest
	_ = json.Unmarshal(body, &req)

	f.mu.Lock()
	f.requests = append(f.requests, req)
	if len(f.scripts) == 0 {
		f.mu.Unlock()
		http.Error(w, `{"error":{"message":"no more scripts"}}`, http.StatusInternalServerError)
		return
	}
	chunks := f.scripts[0]
	f.scripts = f.scripts[1:]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/event-stream")
	for _, c := range chunks {
		fmt.Fprintf(w, "data: %s\n\n", c)
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func chunk(delta string) string {
	return `{"id":"x","object":"chat.completion.chunk","model":"gpt-5-nano","choices":[{"index":0,"delta":` + delta + `}]}`
}

func newTestClient(t *testing.T, fake *fakeCompletions, steps int) *Client {
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	return NewClient(&conf.OpenAIConfig{
		APIKey:          "test",
		BaseURL:         srv.URL + "/v1",
		Model:           "gpt-5-nano",
		MaxOutputTokens: 4000,
		MaxSteps:        steps,
	}, logger.NewNop(), WithTokenCounter(EstimateCounter{}))
}

func collect(parts *[]types.Part) func(types.Part) error {
	return func(p types.Part) error {
		*parts = append(*parts, p)
		return nil
	}
}

func history(text string) []types.ChatMessage {
	return []types.ChatMessage{{ID: "u", Role: types.RoleUser, Parts: types.Parts{types.TextPart{Text: text}}}}
}

func TestStreamTextAndReasoning(t *testing.T) {
	fake := &fakeCompletions{scripts: [][]string{{
		chunk(`{"role":"assistant","reasoning_content":"Let"}`),
		chunk(`{"reasoning_content":" me think"}`),
		chunk(`{"content":"Hel"}`),
		chunk(`{"content":"lo"}`),
	}}}
	client := newTestClient(t, fake, 5)

	var parts []types.Part
	err := client.Stream(context.Background(), &biz.StreamRequest{System: "sys", History: history("hi")}, collect(&parts))
	require.NoError(t, err)

	assert.Equal(t, []types.Part{
		types.ReasoningPart{Text: "Let", State: types.ReasoningStreaming},
		types.ReasoningPart{Text: "Let me think", State: types.ReasoningStreaming},
		types.ReasoningPart{Text: "Let me think", State: types.ReasoningDone},
		types.TextPart{Text: "Hel"},
		types.TextPart{Text: "Hello"},
	}, parts)

	require.Len(t, fake.requests, 1)
	req := fake.requests[0]
	assert.Equal(t, "gpt-5-nano", req.Model)
	assert.Equal(t, 4000, req.MaxCompletionTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, openai.ChatMessageRoleSystem, req.Messages[0].Role)
	assert.Equal(t, "hi", req.Messages[1].Content)
	require.Len(t, req.Tools, 1)
	assert.Equal(t, "upsert_workflow", req.Tools[0].Function.Name)
}

func TestStreamInterleavedSegments(t *testing.T) {
	fake := &fakeCompletions{scripts: [][]string{{
		chunk(`{"role":"assistant","content":"First"}`),
		chunk(`{"reasoning_content":"hmm"}`),
		chunk(`{"content":"Second"}`),
		chunk(`{"reasoning_content":"again"}`),
	}}}
	client := newTestClient(t, fake, 5)

	var parts []types.Part
	err := client.Stream(context.Background(), &biz.StreamRequest{System: "sys", History: history("hi")}, collect(&parts))
	require.NoError(t, err)

	assert.Equal(t, []types.Part{
		types.TextPart{Text: "First"},
		types.ReasoningPart{Text: "hmm", State: types.ReasoningStreaming},
		types.ReasoningPart{Text: "hmm", State: types.ReasoningDone},
		types.TextPart{Text: "Second"},
		types.ReasoningPart{Text: "again", State: types.ReasoningStreaming},
		types.ReasoningPart{Text: "again", State: types.ReasoningDone},
	}, parts)
}

func TestStreamToolLoop(t *testing.T) {
	fake := &fakeCompletions{scripts: [][]string{
		{
			chunk(`{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"upsert_workflow","arguments":"{\"workflowState\":"}}]}`),
			chunk(`{"tool_calls":[{"index":0,"function":{"arguments":"{\"main_task\":\"m\"}}"}}]}`),
		},
		{chunk(`{"content":"Which agents?"}`)},
	}}
	client := newTestClient(t, fake, 5)

	var executed []string
	exec := func(_ context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
		executed = append(executed, name+" "+string(input))
		return json.RawMessage(`{"success":true}`), nil
	}

	var parts []types.Part
	err := client.Stream(context.Background(), &biz.StreamRequest{History: history("build"), Execute: exec}, collect(&parts))
	require.NoError(t, err)

	assert.Equal(t, []string{`upsert_workflow {"workflowState":{"main_task":"m"}}`}, executed)
	require.Len(t, parts, 3)
	assert.Equal(t, types.ToolCallPart{CallID: "call_1", ToolName: "upsert_workflow", Input: json.RawMessage(`{"workflowState":{"main_task":"m"}}`)}, parts[0])
	assert.Equal(t, types.ToolResultPart{CallID: "call_1", ToolName: "upsert_workflow", Output: json.RawMessage(`{"success":true}`)}, parts[1])
	assert.Equal(t, types.TextPart{Text: "Which agents?"}, parts[2])

	require.Len(t, fake.requests, 2)
	second := fake.requests[1].Messages
	require.Len(t, second, 3)
	assert.Equal(t, openai.ChatMessageRoleAssistant, second[1].Role)
	assert.Equal(t, "call_1", second[1].ToolCalls[0].ID)
	assert.Equal(t, openai.ChatMessageRoleTool, second[2].Role)
	assert.Equal(t, "call_1", second[2].ToolCallID)
}

func TestStreamToolErrors(t *testing.T) {
	tests := []struct {
		name string
		call string
		want error
	}{
		{"unknown tool", `{"tool_calls":[{"index":0,"id":"c","type":"function","function":{"name":"rm_rf","arguments":"{}"}}]}`, biz.ErrUnknownTool},
		{"bad arguments", `{"tool_calls":[{"index":0,"id":"c","type":"function","function":{"name":"upsert_workflow","arguments":"{oops"}}]}`, biz.ErrInvalidToolInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeCompletions{scripts: [][]string{{chunk(tt.call)}}}
			client := newTestClient(t, fake, 5)

			var parts []types.Part
			err := client.Stream(context.Background(), &biz.StreamRequest{History: history("x")}, collect(&parts))
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, parts)
		})
	}
}

func TestStreamStepLimit(t *testing.T) {
	call := chunk(`{"tool_calls":[{"index":0,"id":"c","type":"function","function":{"name":"upsert_workflow","arguments":"{}"}}]}`)
	fake := &fakeCompletions{scripts: [][]string{{call}, {call}, {call}}}
	client := newTestClient(t, fake, 2)

	calls := 0
	exec := func(context.Context, string, json.RawMessage) (json.RawMessage, error) {
		calls++
		return json.RawMessage(`{}`), nil
	}
	err := client.Stream(context.Background(), &biz.StreamRequest{History: history("x"), Execute: exec}, func(types.Part) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Len(t, fake.requests, 2)
}

func TestStreamUpstreamFailure(t *testing.T) {
	fake := &fakeCompletions{}
	client := newTestClient(t, fake, 1)

	err := client.Stream(context.Background(), &biz.StreamRequest{History: history("x")}, func(types.Part) error { return nil })
	require.Error(t, err)
	assert.Equal(t, biz.CategoryGeneric, biz.Classify(err))
}

func TestToOpenAIMessagesSplitsSteps(t *testing.T) {
	msgs := toOpenAIMessages("", []types.ChatMessage{
		{Role: types.RoleUser, Parts: types.Parts{types.TextPart{Text: "go"}}},
		{Role: types.RoleAssistant, Parts: types.Parts{
			types.ReasoningPart{Text: "r", State: types.ReasoningDone},
			types.TextPart{Text: "ok"},
			types.ToolCallPart{CallID: "a", ToolName: "upsert_workflow"},
			types.ToolResultPart{CallID: "a", Output: json.RawMessage(`1`)},
			types.TextPart{Text: "next?"},
		}},
		{Role: types.RoleSystem, Parts: types.Parts{types.TextPart{Text: "ignored"}}},
	})

	require.Len(t, msgs, 4)
	assert.Equal(t, "go", msgs[0].Content)
	assert.Equal(t, "ok", msgs[1].Content)
	assert.Equal(t, "{}", msgs[1].ToolCalls[0].Function.Arguments)
	assert.Equal(t, openai.ChatMessageRoleTool, msgs[2].Role)
	assert.Equal(t, "next?", msgs[3].Content)
}

func TestTrimHistory(t *testing.T) {
	msg := func(role types.Role, text string) types.ChatMessage {
		return types.ChatMessage{Role: role, Parts: types.Parts{types.TextPart{Text: text}}}
	}
	long := strings.Repeat("x", 400) // 100 tokens + overhead

	msgs := []types.ChatMessage{
		msg(types.RoleUser, long),
		msg(types.RoleAssistant, long),
		msg(types.RoleUser, "short"),
	}

	assert.Len(t, TrimHistory(msgs, 0, EstimateCounter{}), 3)
	assert.Len(t, TrimHistory(msgs, 10_000, EstimateCounter{}), 3)

	trimmed := TrimHistory(msgs, 120, EstimateCounter{})
	require.Len(t, trimmed, 2)
	assert.Equal(t, types.RoleAssistant, trimmed[0].Role)

	// the newest user message survives even over budget
	trimmed = TrimHistory(msgs, 1, EstimateCounter{})
	require.Len(t, trimmed, 1)
	assert.Equal(t, "short", trimmed[0].Text())

	tail := []types.ChatMessage{msg(types.RoleUser, long), msg(types.RoleAssistant, long)}
	trimmed = TrimHistory(tail, 1, EstimateCounter{})
	require.Len(t, trimmed, 2)
}
