package middleware

import "github.com/gin-gonic/gin"

const (
	sessionKey = "session"
	// UserIDKey 仅存放用户 ID, 供只需要 ID 的处理器读取
	UserIDKey = "user_id"
)

// Session is the authenticated caller of a request
type Session struct {
	UserID string
	Email  string
}

// SetSession 将会话写入请求上下文
func SetSession(c *gin.Context, s Session) {
	c.Set(sessionKey, s)
	c.Set(UserIDKey, s.UserID)
}

// SessionFrom 读取当前请求的会话
func SessionFrom(c *gin.Context) (Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	if !ok || s.UserID == "" {
		return Session{}, false
	}
	return s, true
}
