package service

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/auth/middleware"
	"github.com/reefs-ai/reefs-backend/internal/factory/biz"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/response"
	projectbiz "github.com/reefs-ai/reefs-backend/internal/project/biz"
)

// AuthorizeRequest 工具授权请求
type AuthorizeRequest struct {
	UserID   string `json:"userId"`
	ToolName string `json:"toolName"`
}

// DeployRequest 部署请求
type DeployRequest struct {
	UserID string `json:"userId"`
	Query  string `json:"query"`
}

// ExportRequest 导出请求
type ExportRequest struct {
	UserID        string          `json:"userId"`
	ProjectID     string          `json:"projectId"`
	WorkflowState json.RawMessage `json:"workflowState"`
}

// StatusRequest 授权状态请求，toolIds 与 toolId 二选一
type StatusRequest struct {
	UserID  string   `json:"userId"`
	ToolID  string   `json:"toolId"`
	ToolIDs []string `json:"toolIds"`
}

// FactoryService Factory 代理服务
type FactoryService struct {
	uc     *biz.FactoryUseCase
	logger *logger.Logger
}

// NewFactoryService 创建 Factory 代理服务
func NewFactoryService(uc *biz.FactoryUseCase, log *logger.Logger) *FactoryService {
	return &FactoryService{uc: uc, logger: log}
}

// RegisterRoutes 注册路由
func (s *FactoryService) RegisterRoutes(r *gin.RouterGroup) {
	factory := r.Group("/factory")
	{
		factory.POST("/authorize", s.Authorize)
		factory.GET("/tools", s.Tools)
		factory.POST("/deploy", s.Deploy)
		factory.POST("/export", s.Export)
		factory.POST("/status", s.Status)
	}
}

// Authorize 检查工具授权，未授权时返回 OAuth 地址
// @Summary Authorize a tool
// @Tags factory
// @Accept json
// @Produce json
// @Param request body AuthorizeRequest true "Authorize Request"
// @Router /api/v1/factory/authorize [post]
func (s *FactoryService) Authorize(c *gin.Context) {
	var req AuthorizeRequest
	if !s.bind(c, &req) || !s.sameUser(c, req.UserID) {
		return
	}
	res, err := s.uc.Authorize(c.Request.Context(), req.UserID, req.ToolName)
	if err != nil {
		s.handleError(c, err)
		return
	}
	if res.Authenticated {
		response.ProxySuccess(c, map[string]any{
			"authenticated": true,
			"message":       "Already authenticated",
		})
		return
	}
	response.ProxySuccess(c, map[string]any{
		"authenticated": false,
		"authUrl":       res.AuthURL,
		"message":       "Redirect to OAuth URL required",
	})
}

// Tools 列出用户工具
// @Summary List Factory tools
// @Tags factory
// @Param userId query string true "User ID"
// @Router /api/v1/factory/tools [get]
func (s *FactoryService) Tools(c *gin.Context) {
	userID := c.Query("userId")
	if !s.sameUser(c, userID) {
		return
	}
	data, err := s.uc.Tools(c.Request.Context(), userID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.ProxySuccess(c, map[string]any{"data": data})
}

// Deploy 部署工作流
// POST /api/v1/factory/deploy
func (s *FactoryService) Deploy(c *gin.Context) {
	var req DeployRequest
	if !s.bind(c, &req) || !s.sameUser(c, req.UserID) {
		return
	}
	data, err := s.uc.Deploy(c.Request.Context(), req.UserID, req.Query)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.ProxySuccess(c, map[string]any{"data": data})
}

// Export 校验并导出工作流
// POST /api/v1/factory/export
func (s *FactoryService) Export(c *gin.Context) {
	var req ExportRequest
	if !s.bind(c, &req) || !s.sameUser(c, req.UserID) {
		return
	}
	session, _ := middleware.SessionFrom(c)
	res, err := s.uc.Export(c.Request.Context(), biz.ExportInput{
		UserID:        req.UserID,
		WorkflowState: req.WorkflowState,
		ProjectID:     req.ProjectID,
		Owner:         session.UserID,
	})
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.ProxySuccess(c, map[string]any{
		"data":          res.Data,
		"builtWorkflow": res.BuiltWorkflow,
	})
}

// Status 批量查询工具包授权状态
// POST /api/v1/factory/status
func (s *FactoryService) Status(c *gin.Context) {
	var req StatusRequest
	if !s.bind(c, &req) || !s.sameUser(c, req.UserID) {
		return
	}
	ids := req.ToolIDs
	if req.ToolID != "" {
		ids = append([]string{req.ToolID}, ids...)
	}
	statuses, err := s.uc.Status(c.Request.Context(), req.UserID, ids)
	if err != nil {
		s.handleError(c, err)
		return
	}

	payload := map[string]any{"statuses": statuses}
	if req.ToolID != "" && len(req.ToolIDs) == 0 {
		payload["toolId"] = req.ToolID
		payload["authorized"] = statuses[req.ToolID]
	}
	response.ProxySuccess(c, payload)
}

func (s *FactoryService) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ProxyBadRequest(c, "Invalid JSON body")
		return false
	}
	return true
}

// sameUser 拒绝代替其他账号发起的请求。空 ID 交给用例处理, 返回缺少字段的消息
func (s *FactoryService) sameUser(c *gin.Context, userID string) bool {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		response.ProxyError(c, http.StatusUnauthorized, "Unauthorized", 0, nil)
		return false
	}
	if userID != "" && userID != session.UserID {
		response.ProxyError(c, http.StatusForbidden, "userId does not match the signed-in user", 0, nil)
		return false
	}
	return true
}

// handleError 统一错误处理
func (s *FactoryService) handleError(c *gin.Context, err error) {
	var upstream *biz.UpstreamError
	switch {
	case errors.Is(err, biz.ErrUserIDRequired),
		errors.Is(err, biz.ErrToolNameRequired),
		errors.Is(err, biz.ErrToolIDRequired),
		errors.Is(err, biz.ErrQueryRequired),
		errors.Is(err, biz.ErrWorkflowStateRequired):
		response.ProxyBadRequest(c, err.Error())
	case errors.As(err, &upstream):
		s.logger.Warn("factory request failed",
			zap.String("error", upstream.Message),
			zap.Int("status", upstream.Status),
			zap.Error(upstream.Err),
		)
		response.ProxyError(c, http.StatusBadGateway, upstream.Message, upstream.Status, upstream.Data)
	case errors.Is(err, projectbiz.ErrProjectNotFound):
		response.ProxyError(c, http.StatusNotFound, "Project not found", 0, nil)
	case errors.Is(err, projectbiz.ErrInvalidWorkflow):
		response.ProxyError(c, http.StatusBadGateway, biz.MsgUnexpectedResponse, 0, nil)
	default:
		s.logger.Error("internal error", zap.Error(err))
		response.ProxyError(c, http.StatusInternalServerError, "Internal error", 0, nil)
	}
}
