package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/auth"
	apperrors "github.com/reefs-ai/reefs-backend/internal/pkg/errors"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/response"
)

// accessToken 读取请求携带的 access token。
// EventSource 和 WebSocket 无法设置 header, 因此也接受 ?token=
func accessToken(c *gin.Context) (string, string) {
	if h := c.GetHeader("Authorization"); h != "" {
		token, err := auth.ExtractTokenFromHeader(h)
		if err != nil {
			return "", "invalid authorization header format"
		}
		return token, ""
	}
	if token := c.Query("token"); token != "" {
		return token, ""
	}
	return "", "missing authorization"
}

// JWTAuth 校验 access token, 把会话写入 gin 上下文并把用户记入日志 scope
func JWTAuth(jwtManager *auth.JWTManager, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, problem := accessToken(c)
		if problem != "" {
			response.Unauthorized(c, problem)
			c.Abort()
			return
		}

		claims, err := jwtManager.VerifyAccessToken(token)
		if err != nil {
			log.WithContext(c.Request.Context()).Warn("invalid access token",
				zap.Error(err),
				zap.String("ip", c.ClientIP()))
			response.ErrorWithCode(c, apperrors.ErrAuthInvalidToken)
			c.Abort()
			return
		}

		SetSession(c, Session{UserID: claims.UserID, Email: claims.Email})
		c.Request = c.Request.WithContext(logger.WithUserID(c.Request.Context(), claims.UserID))
		c.Next()
	}
}

// FactoryToken 校验 Factory 回调携带的 bearer token
func FactoryToken(token string, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			log.Error("factory token not configured, rejecting webhook")
			response.ErrorWithCode(c, apperrors.ErrFactoryNotConfigured)
			c.Abort()
			return
		}
		got, err := auth.ExtractTokenFromHeader(c.GetHeader("Authorization"))
		if err != nil || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			log.Warn("factory webhook rejected", zap.String("ip", c.ClientIP()))
			response.Unauthorized(c, "unauthorized")
			c.Abort()
			return
		}
		c.Next()
	}
}
