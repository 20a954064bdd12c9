package biz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	chattypes "github.com/reefs-ai/reefs-backend/internal/chat/types"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/notify"
	"github.com/reefs-ai/reefs-backend/internal/project/types"
	"github.com/reefs-ai/reefs-backend/internal/workflow"
)

// Patch 要覆盖的字段, nil 表示不变
type Patch struct {
	Name          *string
	Messages      *[]chattypes.ChatMessage
	WorkflowState json.RawMessage
	BuiltWorkflow json.RawMessage
	UpdatedAt     time.Time
}

// ProjectRepo 项目存储接口
type ProjectRepo interface {
	// List 按更新时间倒序返回用户的项目
	List(ctx context.Context, userID string) ([]*types.Project, error)
	Get(ctx context.Context, id string) (*types.Project, error)
	Create(ctx context.Context, p *types.Project) error
	Update(ctx context.Context, id string, patch *Patch) error
	// AppendMessages 追加消息, 与其他追加操作互斥
	AppendMessages(ctx context.Context, id string, msgs []chattypes.ChatMessage, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// ImportResult 从 YAML 导入的工作流
type ImportResult struct {
	State    *workflow.State `json:"workflowState"`
	Warnings []string        `json:"warnings"`
}

// ProjectUseCase 项目业务逻辑
type ProjectUseCase struct {
	repo     ProjectRepo
	notifier notify.Notifier
	tools    workflow.ToolSet
	logger   *logger.Logger
	now      func() time.Time
}

// NewProjectUseCase 创建项目用例. tools 用于导入时的工具名检查,可以为 nil
func NewProjectUseCase(repo ProjectRepo, notifier notify.Notifier, tools workflow.ToolSet, log *logger.Logger) *ProjectUseCase {
	return &ProjectUseCase{
		repo:     repo,
		notifier: notifier,
		tools:    tools,
		logger:   log.Named("project"),
		now:      time.Now,
	}
}

// List 列出用户的项目
func (uc *ProjectUseCase) List(ctx context.Context, userID string) ([]types.Summary, error) {
	projects, err := uc.repo.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	out := make([]types.Summary, 0, len(projects))
	for _, p := range projects {
		out = append(out, p.Summarize())
	}
	return out, nil
}

// Create 创建项目,名称为空时按日期生成
func (uc *ProjectUseCase) Create(ctx context.Context, userID, name string) (*types.Project, error) {
	now := uc.now().UTC()
	name = strings.TrimSpace(name)
	if name == "" {
		name = "New Project " + now.Format("Jan 2, 2006")
	}

	p := &types.Project{
		ID:        uuid.Must(uuid.NewV7()).String(),
		UserID:    userID,
		Name:      name,
		Messages:  []chattypes.ChatMessage{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create project: %w", err)
	}
	return p, nil
}

// Get 获取项目,非所有者视为不存在
func (uc *ProjectUseCase) Get(ctx context.Context, userID, id string) (*types.Project, error) {
	p, err := uc.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

// Conversation 项目的对话视图
func (uc *ProjectUseCase) Conversation(ctx context.Context, userID, id string) (*types.Conversation, error) {
	p, err := uc.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	conv := p.Conversation()
	return &conv, nil
}

// Rename 重命名项目
func (uc *ProjectUseCase) Rename(ctx context.Context, userID, id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	return uc.update(ctx, userID, id, &Patch{Name: &name})
}

// ReplaceMessages 覆盖项目的全部消息
func (uc *ProjectUseCase) ReplaceMessages(ctx context.Context, userID, id string, msgs []chattypes.ChatMessage) error {
	if msgs == nil {
		return ErrMessagesRequired
	}
	return uc.update(ctx, userID, id, &Patch{Messages: &msgs})
}

// AppendMessages 追加消息
func (uc *ProjectUseCase) AppendMessages(ctx context.Context, userID, id string, msgs ...chattypes.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}
	if _, err := uc.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := uc.repo.AppendMessages(ctx, id, msgs, uc.now().UTC()); err != nil {
		return fmt.Errorf("failed to append messages: %w", err)
	}
	uc.publish(ctx, id)
	return nil
}

// SaveWorkflowState 保存工作流状态
func (uc *ProjectUseCase) SaveWorkflowState(ctx context.Context, userID, id string, state json.RawMessage) error {
	if !validDocument(state) {
		return ErrInvalidWorkflow
	}
	return uc.update(ctx, userID, id, &Patch{WorkflowState: state})
}

// SaveBuiltWorkflow 保存 Factory 校验通过的工作流
func (uc *ProjectUseCase) SaveBuiltWorkflow(ctx context.Context, userID, id string, built json.RawMessage) error {
	if !validDocument(built) {
		return ErrInvalidWorkflow
	}
	return uc.update(ctx, userID, id, &Patch{BuiltWorkflow: built})
}

// ImportWorkflowYAML 从 YAML 导入工作流并保存为当前状态
func (uc *ProjectUseCase) ImportWorkflowYAML(ctx context.Context, userID, id string, data []byte) (*ImportResult, error) {
	state, err := workflow.ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	warnings, err := workflow.Validate(state, uc.tools)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return nil, err
	}
	if err := uc.update(ctx, userID, id, &Patch{WorkflowState: raw}); err != nil {
		return nil, err
	}
	if warnings == nil {
		warnings = []string{}
	}
	return &ImportResult{State: state, Warnings: warnings}, nil
}

// Canvas 当前工作流的画布布局
func (uc *ProjectUseCase) Canvas(ctx context.Context, userID, id string) (workflow.Canvas, error) {
	p, err := uc.Get(ctx, userID, id)
	if err != nil {
		return workflow.Canvas{}, err
	}
	if len(p.WorkflowState) == 0 {
		return workflow.Layout(nil), nil
	}
	state, err := workflow.Decode(p.WorkflowState)
	if err != nil {
		return workflow.Canvas{}, fmt.Errorf("%w: %v", ErrInvalidWorkflow, err)
	}
	return workflow.Layout(state), nil
}

// Delete 删除项目
func (uc *ProjectUseCase) Delete(ctx context.Context, userID, id string) error {
	if _, err := uc.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := uc.repo.Delete(ctx, id); err != nil {
		return err
	}
	uc.publish(ctx, id)
	return nil
}

// Watch 订阅时及每次变更后把项目交给 fn。
// 项目不存在、读取失败或属于其他用户时传入 nil
func (uc *ProjectUseCase) Watch(ctx context.Context, userID, id string, fn func(*types.Project)) (notify.Subscription, error) {
	load := func() *types.Project {
		p, err := uc.Get(context.WithoutCancel(ctx), userID, id)
		if err != nil {
			if !errors.Is(err, ErrProjectNotFound) {
				uc.logger.Warn("project reload failed", zap.String("project_id", id), zap.Error(err))
			}
			return nil
		}
		return p
	}
	return notify.WatchSnapshot(ctx, uc.notifier, notify.ProjectChannel(id), load, fn)
}

func (uc *ProjectUseCase) update(ctx context.Context, userID, id string, patch *Patch) error {
	if _, err := uc.Get(ctx, userID, id); err != nil {
		return err
	}
	patch.UpdatedAt = uc.now().UTC()
	if err := uc.repo.Update(ctx, id, patch); err != nil {
		return err
	}
	uc.publish(ctx, id)
	return nil
}

func (uc *ProjectUseCase) publish(ctx context.Context, id string) {
	if err := uc.notifier.Publish(ctx, notify.ProjectChannel(id)); err != nil {
		uc.logger.Warn("failed to publish project change", zap.String("project_id", id), zap.Error(err))
	}
}

// validDocument 只接受 JSON 对象或 null
func validDocument(raw json.RawMessage) bool {
	if len(raw) == 0 || !json.Valid(raw) {
		return false
	}
	switch strings.TrimSpace(string(raw))[0] {
	case '{', 'n':
		return true
	}
	return false
}
