package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/auth/middleware"
	chattypes "github.com/reefs-ai/reefs-backend/internal/chat/types"
	apperrors "github.com/reefs-ai/reefs-backend/internal/pkg/errors"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/response"
	"github.com/reefs-ai/reefs-backend/internal/pkg/sse"
	"github.com/reefs-ai/reefs-backend/internal/project/biz"
	"github.com/reefs-ai/reefs-backend/internal/project/types"
)

// EventSnapshot 项目快照事件名
const EventSnapshot = "snapshot"

const maxImportSize = 1 << 20

// CreateProjectRequest 创建项目请求
type CreateProjectRequest struct {
	Name string `json:"name"`
}

// RenameProjectRequest 重命名请求
type RenameProjectRequest struct {
	Name string `json:"name"`
}

// MessagesRequest 覆盖消息请求
type MessagesRequest struct {
	Messages []chattypes.ChatMessage `json:"messages"`
}

// ProjectService 项目 HTTP 服务
type ProjectService struct {
	uc        *biz.ProjectUseCase
	hub       *sse.Hub
	heartbeat time.Duration
	logger    *logger.Logger
}

// NewProjectService 创建项目服务
func NewProjectService(uc *biz.ProjectUseCase, hub *sse.Hub, heartbeat time.Duration, log *logger.Logger) *ProjectService {
	return &ProjectService{uc: uc, hub: hub, heartbeat: heartbeat, logger: log}
}

// RegisterRoutes 注册项目路由
func (s *ProjectService) RegisterRoutes(r *gin.RouterGroup) {
	projects := r.Group("/projects")
	{
		projects.GET("", s.List)
		projects.POST("", s.Create)
		projects.GET("/:id", s.Get)
		projects.PATCH("/:id", s.Rename)
		projects.DELETE("/:id", s.Delete)
		projects.GET("/:id/conversation", s.Conversation)
		projects.PUT("/:id/messages", s.ReplaceMessages)
		projects.PUT("/:id/workflow", s.SaveWorkflow)
		projects.POST("/:id/workflow/import", s.ImportWorkflow)
		projects.PUT("/:id/built-workflow", s.SaveBuiltWorkflow)
		projects.GET("/:id/canvas", s.Canvas)
		projects.GET("/:id/stream", s.Stream)
		projects.GET("/:id/transcript", s.Transcript)
	}
}

// List 列出当前用户的项目
// @Summary List projects
// @Tags projects
// @Produce json
// @Success 200 {array} types.Summary
// @Router /api/v1/projects [get]
func (s *ProjectService) List(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	projects, err := s.uc.List(c.Request.Context(), session.UserID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, projects)
}

// Create 创建项目
// @Summary Create project
// @Tags projects
// @Accept json
// @Produce json
// @Param request body CreateProjectRequest false "Create Project Request"
// @Success 201 {object} types.Project
// @Router /api/v1/projects [post]
func (s *ProjectService) Create(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var req CreateProjectRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.ErrorWithCode(c, apperrors.ErrProjectInvalidInput, err.Error())
			return
		}
	}
	p, err := s.uc.Create(c.Request.Context(), session.UserID, req.Name)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Created(c, p)
}

// Get 获取项目
// @Summary Get project
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} types.Project
// @Router /api/v1/projects/{id} [get]
func (s *ProjectService) Get(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	p, err := s.uc.Get(c.Request.Context(), session.UserID, c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, p)
}

// Conversation 项目的对话视图
func (s *ProjectService) Conversation(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	conv, err := s.uc.Conversation(c.Request.Context(), session.UserID, c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, conv)
}

// Rename 重命名项目
// @Summary Rename project
// @Tags projects
// @Router /api/v1/projects/{id} [patch]
func (s *ProjectService) Rename(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var req RenameProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrProjectInvalidInput, err.Error())
		return
	}
	if err := s.uc.Rename(c.Request.Context(), session.UserID, c.Param("id"), req.Name); err != nil {
		s.handleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "Project renamed", nil)
}

// Delete 删除项目
// @Summary Delete project
// @Tags projects
// @Router /api/v1/projects/{id} [delete]
func (s *ProjectService) Delete(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	if err := s.uc.Delete(c.Request.Context(), session.UserID, c.Param("id")); err != nil {
		s.handleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "Project deleted", nil)
}

// ReplaceMessages 覆盖项目消息
// PUT /api/v1/projects/:id/messages
func (s *ProjectService) ReplaceMessages(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var req MessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrProjectInvalidInput, err.Error())
		return
	}
	if err := s.uc.ReplaceMessages(c.Request.Context(), session.UserID, c.Param("id"), req.Messages); err != nil {
		s.handleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "Messages saved", nil)
}

// SaveWorkflow 保存工作流状态
// PUT /api/v1/projects/:id/workflow  {"workflowState": {...}}
func (s *ProjectService) SaveWorkflow(c *gin.Context) {
	s.saveDocument(c, "workflowState", s.uc.SaveWorkflowState, "Workflow saved")
}

// SaveBuiltWorkflow 保存构建结果
// PUT /api/v1/projects/:id/built-workflow  {"builtWorkflow": {...}}
func (s *ProjectService) SaveBuiltWorkflow(c *gin.Context) {
	s.saveDocument(c, "builtWorkflow", s.uc.SaveBuiltWorkflow, "Built workflow saved")
}

// ImportWorkflow 从 YAML 导入工作流
// POST /api/v1/projects/:id/workflow/import  (body: YAML)
func (s *ProjectService) ImportWorkflow(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportSize))
	if err != nil || len(data) == 0 {
		response.ErrorWithCode(c, apperrors.ErrWorkflowInvalid, "empty body")
		return
	}
	res, err := s.uc.ImportWorkflowYAML(c.Request.Context(), session.UserID, c.Param("id"), data)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, res)
}

// Canvas 工作流画布布局
// GET /api/v1/projects/:id/canvas
func (s *ProjectService) Canvas(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	canvas, err := s.uc.Canvas(c.Request.Context(), session.UserID, c.Param("id"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, canvas)
}

// Stream 以 SSE 推送项目快照,项目不存在时推送 null
// GET /api/v1/projects/:id/stream
func (s *ProjectService) Stream(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	id := c.Param("id")
	log := s.logger.WithContext(ctx).With(zap.String("project_id", id))

	stream := sse.Open(c, s.hub, "project:"+id,
		sse.WithHeartbeat(s.heartbeat),
		sse.OnError(func(err error) {
			log.Debug("project stream write failed", zap.Error(err))
		}),
	)

	sub, err := s.uc.Watch(ctx, session.UserID, id, func(p *types.Project) {
		_ = stream.Send(EventSnapshot, p)
	})
	if err != nil {
		s.handleError(c, err)
		return
	}
	defer sub.Close()

	stream.Serve()
}

// Transcript 导出对话记录
// GET /api/v1/projects/:id/transcript?format=md|html
func (s *ProjectService) Transcript(c *gin.Context) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	t, err := s.uc.Transcript(c.Request.Context(), session.UserID, c.Param("id"), c.Query("format"))
	if err != nil {
		s.handleError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+t.Filename+`"`)
	c.Data(http.StatusOK, t.ContentType, t.Body)
}

func (s *ProjectService) saveDocument(c *gin.Context, field string, save func(ctx context.Context, userID, id string, doc json.RawMessage) error, message string) {
	session, ok := s.session(c)
	if !ok {
		return
	}
	var req map[string]json.RawMessage
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrProjectInvalidInput, err.Error())
		return
	}
	doc, ok := req[field]
	if !ok {
		response.ErrorWithCode(c, apperrors.ErrProjectInvalidInput, field+" is required")
		return
	}
	if err := save(c.Request.Context(), session.UserID, c.Param("id"), doc); err != nil {
		s.handleError(c, err)
		return
	}
	response.SuccessWithMessage(c, message, nil)
}

func (s *ProjectService) session(c *gin.Context) (middleware.Session, bool) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
	}
	return session, ok
}

// handleError 统一错误处理
func (s *ProjectService) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrProjectNotFound):
		response.ErrorWithCode(c, apperrors.ErrProjectNotFound)
	case errors.Is(err, biz.ErrInvalidWorkflow):
		response.ErrorWithCode(c, apperrors.ErrWorkflowInvalid, err.Error())
	case errors.Is(err, biz.ErrNameRequired),
		errors.Is(err, biz.ErrMessagesRequired),
		errors.Is(err, biz.ErrInvalidFormat):
		response.ErrorWithCode(c, apperrors.ErrProjectInvalidInput, err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		response.InternalError(c, "internal server error")
	}
}
