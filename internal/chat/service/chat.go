package service

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/auth/middleware"
	"github.com/reefs-ai/reefs-backend/internal/chat/biz"
	"github.com/reefs-ai/reefs-backend/internal/chat/types"
	apperrors "github.com/reefs-ai/reefs-backend/internal/pkg/errors"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/response"
	"github.com/reefs-ai/reefs-backend/internal/pkg/sse"
)

// SSE 事件名
const (
	EventPart   = "part"
	EventError  = "error"
	EventFinish = "finish"
)

// ChatService 聊天 HTTP 服务
type ChatService struct {
	uc     *biz.ChatUseCase
	logger *logger.Logger
}

// NewChatService 创建聊天服务
func NewChatService(uc *biz.ChatUseCase, log *logger.Logger) *ChatService {
	return &ChatService{uc: uc, logger: log}
}

// RegisterRoutes 注册聊天路由
func (s *ChatService) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/chat", s.Chat)
}

// Chat 流式对话
// POST /api/v1/chat
func (s *ChatService) Chat(c *gin.Context) {
	var req types.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, biz.ErrMessagesRequired.Error())
		return
	}
	if err := s.uc.Validate(&req); err != nil {
		s.handleError(c, err)
		return
	}

	session, ok := middleware.SessionFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	w := sse.NewWriter(c)
	ctx := c.Request.Context()

	answer, err := s.uc.Chat(ctx, session.UserID, &req, func(messageID string, p types.Part) error {
		raw, err := types.EncodePart(p)
		if err != nil {
			return err
		}
		return w.Write(EventPart, types.PartEvent{MessageID: messageID, Part: raw})
	})
	if err != nil {
		category := biz.Classify(err)
		s.logger.WithContext(ctx).Warn("chat turn failed",
			zap.String("project_id", req.ProjectID),
			zap.String("category", string(category)),
			zap.Error(err))
		_ = w.Write(EventError, types.ErrorEvent{Category: string(category), Message: category.Message()})
	}
	_ = w.Write(EventFinish, types.FinishEvent{Message: answer})
}

// handleError 统一错误处理
func (s *ChatService) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrMessagesRequired), errors.Is(err, biz.ErrProjectIDRequired):
		response.BadRequest(c, err.Error())
	case errors.Is(err, biz.ErrNotConfigured):
		response.ErrorWithCode(c, apperrors.ErrChatNotConfigured)
	default:
		s.logger.Error("internal error", zap.Error(err))
		response.InternalError(c, "internal server error")
	}
}
