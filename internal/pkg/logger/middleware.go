package logger

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/reefs-ai/reefs-backend/internal/pkg/errors"
	"github.com/reefs-ai/reefs-backend/internal/pkg/response"
)

const requestIDHeader = "X-Request-ID"

// MiddlewareOptions configures GinLogger
type MiddlewareOptions struct {
	SkipPaths        []string
	SkipPathPrefixes []string
}

func (o MiddlewareOptions) skip(path string) bool {
	for _, p := range o.SkipPaths {
		if p == path {
			return true
		}
	}
	for _, prefix := range o.SkipPathPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// GinLogger 为每个请求分配 request id 并记录访问日志。
// 认证中间件通过 WithUserID 补充的用户会出现在日志里
func GinLogger(l *Logger, opts MiddlewareOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Request = c.Request.WithContext(WithScope(c.Request.Context(), Scope{RequestID: requestID}))
		c.Header(requestIDHeader, requestID)

		path := c.Request.URL.Path
		if opts.skip(path) {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("route", c.FullPath()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		}
		if q := c.Request.URL.RawQuery; q != "" && !strings.Contains(q, "token=") {
			fields = append(fields, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		log := l.WithContext(c.Request.Context())
		switch {
		case status >= 500:
			log.Error("HTTP Request", fields...)
		case status >= 400:
			log.Warn("HTTP Request", fields...)
		default:
			log.Info("HTTP Request", fields...)
		}
	}
}

// GinRecovery 捕获 panic 并返回统一的 500 响应。
// 已经开始写出的响应 (例如 SSE) 只能中断
func GinRecovery(l *Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			l.WithContext(c.Request.Context()).Error("panic recovered",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("panic", rec),
				zap.Stack("stacktrace"),
			)
			if c.Writer.Written() {
				c.Abort()
				return
			}
			response.ErrorWithCode(c, apperrors.ErrInternalServer)
			c.Abort()
		}()
		c.Next()
	}
}
