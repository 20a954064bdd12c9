package service

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/auth/biz"
	"github.com/reefs-ai/reefs-backend/internal/auth/middleware"
	apperrors "github.com/reefs-ai/reefs-backend/internal/pkg/errors"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/redis"
	"github.com/reefs-ai/reefs-backend/internal/pkg/response"
)

// AuthService 认证服务
type AuthService struct {
	authUC *biz.AuthUseCase
	redis  *redis.Client
	logger *logger.Logger
}

// NewAuthService 创建认证服务，redisClient 为 nil 时不限流
func NewAuthService(authUC *biz.AuthUseCase, redisClient *redis.Client, log *logger.Logger) *AuthService {
	return &AuthService{
		authUC: authUC,
		redis:  redisClient,
		logger: log,
	}
}

// RegisterRequest 注册请求
type RegisterRequest struct {
	FirstName         string `json:"firstName" binding:"required,max=100"`
	LastName          string `json:"lastName" binding:"required,max=100"`
	Email             string `json:"email" binding:"required,email"`
	Password          string `json:"password" binding:"required,min=8,max=72"`
	TermsAccepted     bool   `json:"termsAccepted"`
	MarketingAccepted bool   `json:"marketingAccepted"`
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest 刷新 token 请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// GoogleCallbackRequest Google 回调请求
type GoogleCallbackRequest struct {
	Code  string `json:"code" binding:"required"`
	State string `json:"state" binding:"required"`
}

// UserSummary 登录响应中的用户信息
type UserSummary struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// AuthResponse 登录/注册响应
type AuthResponse struct {
	User   UserSummary    `json:"user"`
	Tokens *biz.TokenPair `json:"tokens"`
	IsNew  bool           `json:"isNew"`
}

// Register 用户注册
// POST /api/v1/auth/register
func (s *AuthService) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := s.authUC.Register(c.Request.Context(), &biz.RegisterInput{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		Password:          req.Password,
		TermsAccepted:     req.TermsAccepted,
		MarketingAccepted: req.MarketingAccepted,
	}, GetClientIP(c))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Created(c, toAuthResponse(res))
}

// Login 用户登录
// POST /api/v1/auth/login
func (s *AuthService) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ip := GetClientIP(c)
	res, err := s.authUC.Login(c.Request.Context(), req.Email, req.Password, ip)
	if err != nil {
		if errors.Is(err, biz.ErrInvalidCredentials) || errors.Is(err, biz.ErrAccountLocked) {
			s.logger.Warn("login rejected", zap.String("ip", ip), zap.Error(err))
		}
		s.handleError(c, err)
		return
	}
	response.Success(c, toAuthResponse(res))
}

// RefreshToken 刷新 Access Token
// POST /api/v1/auth/refresh
func (s *AuthService) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	tokens, err := s.authUC.RefreshAccessToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, tokens)
}

// GoogleURL 获取 Google 授权地址
// GET /api/v1/auth/google/url
func (s *AuthService) GoogleURL(c *gin.Context) {
	res, err := s.authUC.GoogleAuthURL(c.Request.Context())
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, res)
}

// GoogleCallback Google 登录回调
// POST /api/v1/auth/google/callback
func (s *AuthService) GoogleCallback(c *gin.Context) {
	var req GoogleCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	res, err := s.authUC.GoogleCallback(c.Request.Context(), req.Code, req.State, GetClientIP(c))
	if err != nil {
		s.handleError(c, err)
		return
	}
	response.Success(c, toAuthResponse(res))
}

// RegisterRoutes 注册路由
func (s *AuthService) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", middleware.RegisterRateLimiter(s.redis, s.logger), s.Register)
		auth.POST("/login", middleware.LoginRateLimiter(s.redis, s.logger), s.Login)
		auth.POST("/refresh", s.RefreshToken)
		auth.GET("/google/url", s.GoogleURL)
		auth.POST("/google/callback", middleware.LoginRateLimiter(s.redis, s.logger), s.GoogleCallback)
	}
}

func (s *AuthService) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, biz.ErrInvalidCredentials):
		response.ErrorWithCode(c, apperrors.ErrAuthInvalidCredentials)
	case errors.Is(err, biz.ErrAccountLocked):
		response.ErrorWithCode(c, apperrors.ErrAuthAccountLocked)
	case errors.Is(err, biz.ErrEmailAlreadyExists):
		response.ErrorWithCode(c, apperrors.ErrAuthEmailExists)
	case errors.Is(err, biz.ErrInvalidToken):
		response.ErrorWithCode(c, apperrors.ErrAuthInvalidToken)
	case errors.Is(err, biz.ErrWeakPassword):
		response.ErrorWithCode(c, apperrors.ErrAuthWeakPassword)
	case errors.Is(err, biz.ErrInvalidEmail):
		response.ErrorWithCode(c, apperrors.ErrAuthInvalidEmail)
	case errors.Is(err, biz.ErrTermsNotAccepted):
		response.ErrorWithCode(c, apperrors.ErrAuthTermsNotAccepted)
	case errors.Is(err, biz.ErrNameRequired):
		response.BadRequest(c, err.Error())
	case errors.Is(err, biz.ErrStateNotFound):
		response.ErrorWithCode(c, apperrors.ErrAuthOAuthState)
	case errors.Is(err, biz.ErrOAuthExchange):
		response.ErrorWithCode(c, apperrors.ErrAuthOAuthExchange)
	case errors.Is(err, biz.ErrGoogleDisabled):
		response.ErrorWithCode(c, apperrors.ErrServiceUnavail, err.Error())
	default:
		s.logger.Error("auth request failed", zap.Error(err))
		response.InternalError(c, "internal server error")
	}
}

func toAuthResponse(res *biz.AuthResult) AuthResponse {
	return AuthResponse{
		User: UserSummary{
			ID:        res.User.ID,
			FirstName: res.User.FirstName,
			LastName:  res.User.LastName,
			Email:     res.User.Email,
		},
		Tokens: res.Tokens,
		IsNew:  res.Created,
	}
}

// GetClientIP 获取客户端真实 IP
func GetClientIP(c *gin.Context) string {
	// 优先从 X-Forwarded-For 获取
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}

	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return xri
	}

	return c.ClientIP()
}
