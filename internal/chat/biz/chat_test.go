package biz

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefs-ai/reefs-backend/internal/chat/types"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/tools"
)

type scriptedStreamer struct {
	// run drives emit and may call the tool function
	run func(ctx context.Context, req *StreamRequest, emit func(types.Part) error) error
}

func (s *scriptedStreamer) Stream(ctx context.Context, req *StreamRequest, emit func(types.Part) error) error {
	return s.run(ctx, req, emit)
}

type memoryProjects struct {
	mu       sync.Mutex
	states   []json.RawMessage
	messages []types.ChatMessage
	saveErr  error
}

func (m *memoryProjects) SaveWorkflowState(_ context.Context, _, _ string, state json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.states = append(m.states, state)
	return nil
}

func (m *memoryProjects) AppendMessages(_ context.Context, _, _ string, msgs ...types.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msgs...)
	return nil
}

func userRequest(text string) *types.ChatRequest {
	return &types.ChatRequest{
		ProjectID: "p1",
		Messages: []types.ChatMessage{
			{ID: "u1", Role: types.RoleUser, Parts: types.Parts{types.TextPart{Text: text}}},
		},
	}
}

func newUseCase(s Streamer, p ProjectStore) *ChatUseCase {
	return NewChatUseCase(true, s, p, tools.Default(), logger.NewNop())
}

func TestChatValidate(t *testing.T) {
	uc := newUseCase(nil, nil)

	assert.ErrorIs(t, uc.Validate(nil), ErrMessagesRequired)
	assert.ErrorIs(t, uc.Validate(&types.ChatRequest{ProjectID: "p"}), ErrMessagesRequired)
	assert.ErrorIs(t, uc.Validate(&types.ChatRequest{Messages: []types.ChatMessage{}}), ErrProjectIDRequired)
	assert.NoError(t, uc.Validate(&types.ChatRequest{ProjectID: "p", Messages: []types.ChatMessage{}}))

	unconfigured := NewChatUseCase(false, nil, nil, tools.Default(), logger.NewNop())
	assert.ErrorIs(t, unconfigured.Validate(userRequest("hi")), ErrNotConfigured)
}

func TestChatToolRoundTrip(t *testing.T) {
	projects := &memoryProjects{}
	input := json.RawMessage(`{"workflowState":{"main_task":"digest","agents":[{"name":"reader","tools":["Gmail.SendEmail","Fax.Send"]}]},"user_id":"someone"}`)

	streamer := &scriptedStreamer{run: func(ctx context.Context, req *StreamRequest, emit func(types.Part) error) error {
		assert.Contains(t, req.System, "You are Workflow Builder.")
		require.NoError(t, emit(types.ReasoningPart{Text: "plan", State: types.ReasoningStreaming}))
		require.NoError(t, emit(types.ToolCallPart{CallID: "c1", ToolName: tools.UpsertWorkflowTool, Input: input}))
		out, err := req.Execute(ctx, tools.UpsertWorkflowTool, input)
		require.NoError(t, err)
		require.NoError(t, emit(types.ToolResultPart{CallID: "c1", ToolName: tools.UpsertWorkflowTool, Output: out}))
		return emit(types.TextPart{Text: "Which inbox?"})
	}}

	var sunk []types.Part
	answer, err := newUseCase(streamer, projects).Chat(context.Background(), "u", userRequest("build"), func(id string, p types.Part) error {
		assert.NotEmpty(t, id)
		sunk = append(sunk, p)
		return nil
	})
	require.NoError(t, err)

	assert.Len(t, sunk, 4)
	require.Len(t, answer.Parts, 4)
	// Finish seals only a trailing reasoning part
	assert.Equal(t, types.ReasoningPart{Text: "plan", State: types.ReasoningStreaming}, answer.Parts[0])
	assert.False(t, HasActiveTool(answer))

	res, ok := ResultFor(answer, "c1")
	require.True(t, ok)
	var out UpsertOutput
	require.NoError(t, json.Unmarshal(res.Output, &out))
	assert.True(t, out.Success)
	assert.Equal(t, 1, out.AgentCount)
	assert.Len(t, out.Warnings, 1)

	require.Len(t, projects.states, 1)
	require.Len(t, projects.messages, 2)
	assert.Equal(t, types.RoleUser, projects.messages[0].Role)
	assert.Equal(t, answer.ID, projects.messages[1].ID)
	assert.NotNil(t, projects.messages[1].CreatedAt)
}

func TestChatToolErrors(t *testing.T) {
	tests := []struct {
		name  string
		tool  string
		input string
		want  Category
	}{
		{"unknown tool", "delete_everything", `{}`, CategoryUnknownTool},
		{"not json", tools.UpsertWorkflowTool, `nope`, CategoryInvalidToolInput},
		{"missing state", tools.UpsertWorkflowTool, `{"user_id":"u"}`, CategoryInvalidToolInput},
		{"invalid state", tools.UpsertWorkflowTool, `{"workflowState":{"main_task":"","agents":[]}}`, CategoryInvalidToolInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			projects := &memoryProjects{}
			streamer := &scriptedStreamer{run: func(ctx context.Context, req *StreamRequest, emit func(types.Part) error) error {
				_, err := req.Execute(ctx, tt.tool, json.RawMessage(tt.input))
				return err
			}}

			answer, err := newUseCase(streamer, projects).Chat(context.Background(), "u", userRequest("x"), nil)
			require.Error(t, err)
			assert.Equal(t, tt.want, Classify(err))
			assert.Empty(t, answer.Parts)
			assert.Empty(t, projects.states)
			// only the user message is kept
			assert.Len(t, projects.messages, 1)
		})
	}
}

func TestChatStoreFailureIsGeneric(t *testing.T) {
	projects := &memoryProjects{saveErr: errors.New("db down")}
	streamer := &scriptedStreamer{run: func(ctx context.Context, req *StreamRequest, emit func(types.Part) error) error {
		_, err := req.Execute(ctx, tools.UpsertWorkflowTool, json.RawMessage(`{"workflowState":{"main_task":"m","agents":[{"name":"a"}]}}`))
		return err
	}}

	_, err := newUseCase(streamer, projects).Chat(context.Background(), "u", userRequest("x"), nil)
	assert.Equal(t, CategoryGeneric, Classify(err))
}

func TestChatMergerErrorStopsStream(t *testing.T) {
	streamer := &scriptedStreamer{run: func(ctx context.Context, req *StreamRequest, emit func(types.Part) error) error {
		if err := emit(types.ToolResultPart{CallID: "ghost"}); err != nil {
			return err
		}
		t.Fatal("emit should have failed")
		return nil
	}}

	_, err := newUseCase(streamer, &memoryProjects{}).Chat(context.Background(), "u", userRequest("x"), nil)
	assert.ErrorIs(t, err, ErrOrphanToolResult)
}
