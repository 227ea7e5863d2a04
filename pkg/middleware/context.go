package middleware

import (
	"github.com/gin-gonic/gin"

	"panel/internal/session"
)

// GetSession 从上下文中获取浏览器会话
func GetSession(c *gin.Context) *session.Session {
	if v, exists := c.Get(ContextKeySession); exists {
		if sess, ok := v.(*session.Session); ok {
			return sess
		}
	}
	return session.FromContext(c.Request.Context())
}

// MustGetSession 从上下文中获取浏览器会话，如果不存在则panic
func MustGetSession(c *gin.Context) *session.Session {
	sess := GetSession(c)
	if sess == nil {
		panic("session not found in context")
	}
	return sess
}
