package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/chat/types"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/tools"
	"github.com/reefs-ai/reefs-backend/internal/workflow"
)

// ToolFunc 执行工具调用, 返回 JSON 输出
type ToolFunc func(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error)

// StreamRequest 一轮模型调用, 可能包含多个工具步骤
type StreamRequest struct {
	System  string
	History []types.ChatMessage
	Execute ToolFunc
}

// Streamer 运行模型, 按到达顺序对每个片段调用 emit。
// 文本和推理片段携带当前段的完整内容而非增量
type Streamer interface {
	Stream(ctx context.Context, req *StreamRequest, emit func(types.Part) error) error
}

// ProjectStore 对话需要的项目操作
type ProjectStore interface {
	SaveWorkflowState(ctx context.Context, userID, projectID string, state json.RawMessage) error
	AppendMessages(ctx context.Context, userID, projectID string, msgs ...types.ChatMessage) error
}

// PartSink 接收合并后的片段
type PartSink func(messageID string, p types.Part) error

// UpsertInput upsert_workflow 工具参数
type UpsertInput struct {
	WorkflowState json.RawMessage `json:"workflowState"`
	UserID        string          `json:"user_id"`
}

// UpsertOutput upsert_workflow 工具返回给模型的结果
type UpsertOutput struct {
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	AgentCount int      `json:"agentCount"`
	Warnings   []string `json:"warnings,omitempty"`
}

// ChatUseCase 项目对话业务逻辑
type ChatUseCase struct {
	configured bool
	streamer   Streamer
	projects   ProjectStore
	catalog    *tools.Catalog
	now        func() time.Time
	logger     *logger.Logger
}

// NewChatUseCase 创建对话用例。configured 为 false 表示没有模型凭据,
// 此时每轮都返回 ErrNotConfigured
func NewChatUseCase(configured bool, streamer Streamer, projects ProjectStore, catalog *tools.Catalog, log *logger.Logger) *ChatUseCase {
	return &ChatUseCase{
		configured: configured,
		streamer:   streamer,
		projects:   projects,
		catalog:    catalog,
		now:        time.Now,
		logger:     log.Named("chat"),
	}
}

// Validate 打开流之前校验请求
func (uc *ChatUseCase) Validate(req *types.ChatRequest) error {
	if req == nil || req.Messages == nil {
		return ErrMessagesRequired
	}
	if req.ProjectID == "" {
		return ErrProjectIDRequired
	}
	if !uc.configured {
		return ErrNotConfigured
	}
	return nil
}

// Chat 流式生成回复, 每个合并后的片段交给 sink。流中途失败时也返回已合并的消息,
// 它与用户的最后一条消息一起保存
func (uc *ChatUseCase) Chat(ctx context.Context, userID string, req *types.ChatRequest, sink PartSink) (*types.ChatMessage, error) {
	if err := uc.Validate(req); err != nil {
		return nil, err
	}

	log := uc.logger.WithContext(ctx).With(zap.String("project_id", req.ProjectID))
	merger := NewMerger(uuid.NewString())

	streamErr := uc.streamer.Stream(ctx, &StreamRequest{
		System:  uc.catalog.SystemPrompt(uc.now()),
		History: req.Messages,
		Execute: uc.toolFunc(userID, req.ProjectID),
	}, func(p types.Part) error {
		if err := merger.Apply(p); err != nil {
			return err
		}
		if sink == nil {
			return nil
		}
		return sink(merger.ID(), p)
	})

	merger.Finish()
	answer := merger.Message()
	if streamErr != nil {
		log.Warn("chat stream failed", zap.Error(streamErr), zap.String("category", string(Classify(streamErr))))
	}

	var toSave []types.ChatMessage
	if last := lastUserMessage(req.Messages); last != nil {
		toSave = append(toSave, *last)
	}
	if len(answer.Parts) > 0 {
		created := uc.now().UTC()
		answer.CreatedAt = &created
		toSave = append(toSave, *answer)
	}
	if len(toSave) > 0 {
		// 客户端可能已断开, 记录仍然保存
		saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := uc.projects.AppendMessages(saveCtx, userID, req.ProjectID, toSave...); err != nil {
			log.Error("failed to save chat messages", zap.Error(err))
		}
	}

	return answer, streamErr
}

func (uc *ChatUseCase) toolFunc(userID, projectID string) ToolFunc {
	return func(ctx context.Context, name string, input json.RawMessage) (json.RawMessage, error) {
		if name != tools.UpsertWorkflowTool {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
		}

		var in UpsertInput
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToolInput, err)
		}
		state, err := workflow.Decode(in.WorkflowState)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToolInput, err)
		}
		warnings, err := workflow.Validate(state, uc.catalog)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToolInput, err)
		}

		// 项目归属以会话用户为准, 不信任模型回传的 user_id
		if err := uc.projects.SaveWorkflowState(ctx, userID, projectID, in.WorkflowState); err != nil {
			return nil, fmt.Errorf("save workflow: %w", err)
		}

		return json.Marshal(UpsertOutput{
			Success:    true,
			Message:    "Workflow updated",
			AgentCount: len(state.Agents),
			Warnings:   warnings,
		})
	}
}

func lastUserMessage(msgs []types.ChatMessage) *types.ChatMessage {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleUser {
			return msgs[i].Clone()
		}
	}
	return nil
}
