package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	"github.com/reefs-ai/reefs-backend/internal/pkg/redis"
	"github.com/reefs-ai/reefs-backend/internal/pkg/response"
)

const rateLimitPrefix = "reefs:rate_limit"

// KeyStrategy 决定请求按什么维度计数
type KeyStrategy string

const (
	ByIP       KeyStrategy = "ip"
	ByUser     KeyStrategy = "user"     // 未登录时回退到 IP
	ByEndpoint KeyStrategy = "endpoint" // 路径 + IP
)

// RateLimit 固定窗口限流规则
type RateLimit struct {
	Max    int
	Window time.Duration
	By     KeyStrategy
}

// fixedWindow increments the counter and starts the window on first hit.
// Returns {count, ttl_ms}.
var fixedWindow = goredis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return {n, redis.call('PTTL', KEYS[1])}
`)

// RateLimiter 基于 Redis 的固定窗口限流中间件。
// redisClient 为 nil 时直接放行; Redis 出错时同样放行并记录日志
func RateLimiter(redisClient *redis.Client, rule RateLimit, log *logger.Logger) gin.HandlerFunc {
	if redisClient == nil {
		return func(c *gin.Context) { c.Next() }
	}
	if rule.Max <= 0 {
		rule.Max = 100
	}
	if rule.Window <= 0 {
		rule.Window = time.Minute
	}
	if rule.By == "" {
		rule.By = ByIP
	}

	return func(c *gin.Context) {
		key := buildRateLimitKey(c, rule.By)

		count, ttl, err := hit(c.Request.Context(), redisClient.Raw(), key, rule.Window)
		if err != nil {
			log.Error("rate limiter error", zap.Error(err), zap.String("key", key))
			c.Next()
			return
		}

		remaining := rule.Max - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(rule.Max))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(ttl).Unix(), 10))

		if count > rule.Max {
			retry := int(ttl.Round(time.Second) / time.Second)
			if retry < 1 {
				retry = 1
			}
			c.Header("Retry-After", strconv.Itoa(retry))
			response.Error(c, http.StatusTooManyRequests,
				fmt.Sprintf("too many requests, please try again in %d seconds", retry))
			c.Abort()
			return
		}

		c.Next()
	}
}

func hit(ctx context.Context, rdb goredis.Scripter, key string, window time.Duration) (int, time.Duration, error) {
	res, err := fixedWindow.Run(ctx, rdb, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, err
	}
	return parseHit(res, window)
}

func parseHit(res []int64, window time.Duration) (int, time.Duration, error) {
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected rate limit reply: %v", res)
	}
	ttl := time.Duration(res[1]) * time.Millisecond
	if ttl <= 0 {
		// key without expiry (-1) or already gone (-2)
		ttl = window
	}
	return int(res[0]), ttl, nil
}

func buildRateLimitKey(c *gin.Context, by KeyStrategy) string {
	switch by {
	case ByUser:
		if session, ok := SessionFrom(c); ok {
			return fmt.Sprintf("%s:user:%s", rateLimitPrefix, session.UserID)
		}
	case ByEndpoint:
		return fmt.Sprintf("%s:endpoint:%s:%s", rateLimitPrefix, c.FullPath(), c.ClientIP())
	}
	return fmt.Sprintf("%s:ip:%s", rateLimitPrefix, c.ClientIP())
}

// LoginRateLimiter 登录与 Google 回调: 5 次 / 5 分钟 / IP
func LoginRateLimiter(redisClient *redis.Client, log *logger.Logger) gin.HandlerFunc {
	return RateLimiter(redisClient, RateLimit{Max: 5, Window: 5 * time.Minute, By: ByIP}, log)
}

// RegisterRateLimiter 注册: 3 次 / 小时 / IP
func RegisterRateLimiter(redisClient *redis.Client, log *logger.Logger) gin.HandlerFunc {
	return RateLimiter(redisClient, RateLimit{Max: 3, Window: time.Hour, By: ByIP}, log)
}
