package service

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/auth/middleware"
	apperrors "github.com/reefs-ai/reefs-backend/internal/pkg/errors"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/response"
	"github.com/reefs-ai/reefs-backend/internal/user/biz"
)

type UserService struct {
	uc     *biz.UserUseCase
	logger *logger.Logger
}

func NewUserService(uc *biz.UserUseCase, log *logger.Logger) *UserService {
	return &UserService{uc: uc, logger: log}
}

// FactorySuccessRequest Factory webhook 请求体
type FactorySuccessRequest struct {
	UID     string `json:"uid"`
	Message string `json:"message"`
}

// GetMe 获取当前用户资料
// GET /api/v1/users/me
func (s *UserService) GetMe(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	profile, err := s.uc.GetProfile(c.Request.Context(), session.UserID)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, profile)
}

// UpdateMe 更新当前用户资料
// PATCH /api/v1/users/me
func (s *UserService) UpdateMe(c *gin.Context) {
	session, ok := middleware.SessionFrom(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}
	var req biz.ProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithCode(c, apperrors.ErrUserInvalidInput, err.Error())
		return
	}
	profile, err := s.uc.UpdateProfile(c.Request.Context(), session.UserID, &req)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, profile)
}

// FactorySuccess Factory 构建完成回调
// POST /api/v1/factory/success
func (s *UserService) FactorySuccess(c *gin.Context) {
	var req FactorySuccessRequest
	_ = c.ShouldBindJSON(&req)

	if err := s.uc.RecordFactorySuccess(c.Request.Context(), req.UID, req.Message); err != nil {
		s.handleError(c, err)
		return
	}
	s.logger.Info("factory success recorded", zap.String("user_id", req.UID))
	response.SuccessWithMessage(c, "Success message saved", nil)
}

// RegisterRoutes 注册需要登录的路由
func (s *UserService) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	users.GET("/me", s.GetMe)
	users.PATCH("/me", s.UpdateMe)
}

// RegisterWebhookRoutes 注册 Factory 回调路由，调用方负责挂载 Factory token 校验
func (s *UserService) RegisterWebhookRoutes(r *gin.RouterGroup) {
	r.POST("/factory/success", s.FactorySuccess)
}

func (s *UserService) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrUIDRequired), errors.Is(err, biz.ErrMessageRequired):
		response.BadRequest(c, err.Error())
	case errors.Is(err, biz.ErrEmptyName):
		response.ErrorWithCode(c, apperrors.ErrUserInvalidInput, err.Error())
	case errors.Is(err, biz.ErrUserNotFound):
		response.ErrorWithCode(c, apperrors.ErrUserNotFound)
	default:
		s.logger.Error("user request failed", zap.Error(err))
		response.InternalError(c, "internal server error")
	}
}
