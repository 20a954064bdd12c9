package biz

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/workerpool"
	"github.com/reefs-ai/reefs-backend/internal/workflow"
)

// Reply 上游响应
type Reply struct {
	Status int
	Data   any
	Body   []byte
}

// OK 是否 2xx
func (r *Reply) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// DeployRequest Factory 部署请求
type DeployRequest struct {
	WorkflowName string `json:"workflow_name"`
	DeployType   string `json:"deploy_type"`
	UserID       string `json:"user_id"`
	Query        string `json:"query"`
}

// FactoryRepo Factory 服务接口
type FactoryRepo interface {
	Authorize(ctx context.Context, userID, toolName string) (*Reply, error)
	// Tools 列出用户的工具, 指定 toolkit 时只查该工具包
	Tools(ctx context.Context, userID, toolkit string) (*Reply, error)
	Deploy(ctx context.Context, userID, query string) (*Reply, error)
	Verify(ctx context.Context, cfg workflow.FactoryConfig) (*Reply, error)
}

// BuiltWorkflowStore 把校验通过的工作流保存到项目
type BuiltWorkflowStore interface {
	SaveBuiltWorkflow(ctx context.Context, userID, id string, built json.RawMessage) error
}

// AuthorizeResult 工具授权结果
type AuthorizeResult struct {
	Authenticated bool
	AuthURL       string
}

// ExportInput 导出工作流参数
type ExportInput struct {
	UserID        string
	WorkflowState json.RawMessage
	// ProjectID 和 Owner 指定保存构建结果的项目
	ProjectID string
	Owner     string
}

// ExportResult 导出结果
type ExportResult struct {
	Data          any
	BuiltWorkflow json.RawMessage
}

// FactoryUseCase Factory 代理用例
type FactoryUseCase struct {
	repo         FactoryRepo
	projects     BuiltWorkflowStore
	pool         *workerpool.Pool
	defaultModel string
	logger       *logger.Logger
}

// NewFactoryUseCase 创建 Factory 用例
func NewFactoryUseCase(repo FactoryRepo, projects BuiltWorkflowStore, pool *workerpool.Pool, defaultModel string, log *logger.Logger) *FactoryUseCase {
	return &FactoryUseCase{
		repo:         repo,
		projects:     projects,
		pool:         pool,
		defaultModel: defaultModel,
		logger:       log,
	}
}

// Authorize 询问 Factory 用户是否已授权 toolName, 未授权时获取 OAuth URL
func (uc *FactoryUseCase) Authorize(ctx context.Context, userID, toolName string) (*AuthorizeResult, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if toolName == "" {
		return nil, ErrToolNameRequired
	}

	reply, err := uc.repo.Authorize(ctx, userID, toolName)
	if err != nil {
		return nil, &UpstreamError{Message: MsgAuthorizeFailed, Err: err}
	}
	if !reply.OK() {
		return nil, &UpstreamError{Message: MsgAuthorizeFailed, Status: reply.Status, Data: reply.Data}
	}

	doc := parse(reply.Body)
	authenticated := doc.Get("authenticated")
	switch {
	case authenticated.Type == gjson.True:
		return &AuthorizeResult{Authenticated: true}, nil
	case authenticated.Type == gjson.False && doc.Get("url").String() != "":
		return &AuthorizeResult{AuthURL: doc.Get("url").String()}, nil
	default:
		return nil, &UpstreamError{Message: MsgUnexpectedResponse, Data: reply.Data}
	}
}

// Tools 获取用户可用工具
func (uc *FactoryUseCase) Tools(ctx context.Context, userID string) (any, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	reply, err := uc.repo.Tools(ctx, userID, "")
	if err != nil {
		return nil, &UpstreamError{Message: MsgToolsFailed, Err: err}
	}
	if !reply.OK() {
		return nil, &UpstreamError{Message: MsgToolsFailed, Status: reply.Status, Data: reply.Data}
	}
	return reply.Data, nil
}

// Deploy 部署工作流
func (uc *FactoryUseCase) Deploy(ctx context.Context, userID, query string) (any, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrQueryRequired
	}
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	reply, err := uc.repo.Deploy(ctx, userID, query)
	if err != nil {
		return nil, &UpstreamError{Message: MsgDeployFailed, Err: err}
	}
	if !reply.OK() {
		return nil, &UpstreamError{Message: MsgDeployFailed, Status: reply.Status, Data: reply.Data}
	}
	return reply.Data, nil
}

// Export 通过 Factory 校验工作流, 上游返回的即构建结果, 指定项目时保存到项目
func (uc *FactoryUseCase) Export(ctx context.Context, in ExportInput) (*ExportResult, error) {
	if !parse(in.WorkflowState).IsObject() {
		return nil, ErrWorkflowStateRequired
	}
	if in.UserID == "" {
		return nil, ErrUserIDRequired
	}

	cfg := workflow.ToFactoryConfig(in.WorkflowState, in.UserID, uc.defaultModel)
	reply, err := uc.repo.Verify(ctx, cfg)
	if err != nil {
		return nil, &UpstreamError{Message: MsgVerifyFailed, Err: err}
	}
	if !reply.OK() {
		return nil, &UpstreamError{Message: MsgVerifyFailed, Status: reply.Status, Data: reply.Data}
	}

	built := json.RawMessage(reply.Body)
	if !parse(reply.Body).IsObject() {
		// 上游确认但没有回传工作流, 保存发送的版本
		if built, err = json.Marshal(cfg); err != nil {
			return nil, err
		}
	}

	if in.ProjectID != "" && uc.projects != nil {
		if err := uc.projects.SaveBuiltWorkflow(ctx, in.Owner, in.ProjectID, built); err != nil {
			return nil, fmt.Errorf("save built workflow: %w", err)
		}
		uc.logger.Info("built workflow saved",
			zap.String("project_id", in.ProjectID),
			zap.String("user_id", in.UserID),
		)
	}
	return &ExportResult{Data: reply.Data, BuiltWorkflow: built}, nil
}

// Status 并发检查所有工具包。任一工具有已完成的 token 即视为已授权,
// 检查失败视为未授权
func (uc *FactoryUseCase) Status(ctx context.Context, userID string, toolIDs []string) (map[string]bool, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	ids := dedupe(toolIDs)
	if len(ids) == 0 {
		return nil, ErrToolIDRequired
	}

	authorized := make([]bool, len(ids))
	uc.pool.ForEach(ctx, len(ids), func(ctx context.Context, i int) {
		reply, err := uc.repo.Tools(ctx, userID, ids[i])
		if err != nil {
			uc.logger.Warn("toolkit status check failed",
				zap.String("toolkit", ids[i]),
				zap.Error(err),
			)
			return
		}
		if !reply.OK() {
			uc.logger.Warn("toolkit status check rejected",
				zap.String("toolkit", ids[i]),
				zap.Int("status", reply.Status),
			)
			return
		}
		authorized[i] = tokenCompleted(parse(reply.Body))
	})

	out := make(map[string]bool, len(ids))
	for i, id := range ids {
		out[id] = authorized[i]
	}
	return out, nil
}

// tokenCompleted 在工具列表中查找已完成的授权, 列表可能是裸数组或在 items/tools/data 下
func tokenCompleted(doc gjson.Result) bool {
	list := doc
	if !list.IsArray() {
		for _, key := range []string{"items", "tools", "data"} {
			if v := doc.Get(key); v.IsArray() {
				list = v
				break
			}
		}
	}
	if !list.IsArray() {
		return false
	}

	found := false
	list.ForEach(func(_, tool gjson.Result) bool {
		if tool.Get("requirements.authorization.token_status").String() == "completed" {
			found = true
			return false
		}
		return true
	})
	return found
}

func parse(body []byte) gjson.Result {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}
	}
	return gjson.ParseBytes(body)
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
