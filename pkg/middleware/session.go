package middleware

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"panel/internal/repository"
	"panel/internal/session"
	"panel/pkg/api"
	"panel/pkg/logger"
)

const (
	// ContextKeySession 上下文中浏览器会话的键
	ContextKeySession = "session"
	// DefaultCookieName 默认的会话Cookie名称
	DefaultCookieName = "panel_session"

	saveTimeout = 3 * time.Second
)

// SessionOptions 会话中间件选项
type SessionOptions struct {
	CookieName string
	MaxAge     time.Duration
	Secure     bool
	CacheTTL   time.Duration
	Clock      session.Clock
}

// SessionMiddleware 浏览器会话绑定中间件
type SessionMiddleware struct {
	repo   repository.SessionRepository
	signer *session.CookieSigner
	opts   SessionOptions
}

// NewSessionMiddleware 创建会话中间件实例
func NewSessionMiddleware(repo repository.SessionRepository, signer *session.CookieSigner, opts SessionOptions) *SessionMiddleware {
	if opts.CookieName == "" {
		opts.CookieName = DefaultCookieName
	}
	if opts.Clock == nil {
		opts.Clock = session.SystemClock{}
	}
	return &SessionMiddleware{repo: repo, signer: signer, opts: opts}
}

// Handle 加载或创建会话，请求结束后保存快照
func (m *SessionMiddleware) Handle() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := m.load(c)

		token, err := m.signer.Sign(sess.ID)
		if err != nil {
			logger.Error("Failed to sign session cookie: %v", err)
			api.Error(c, http.StatusInternalServerError, "internal error", nil)
			c.Abort()
			return
		}
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(m.opts.CookieName, token, int(m.opts.MaxAge/time.Second), "/", "", m.opts.Secure, true)

		c.Set(ContextKeySession, sess)
		c.Request = c.Request.WithContext(session.NewContext(c.Request.Context(), sess))

		c.Next()

		ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
		defer cancel()
		if err := m.repo.Save(ctx, sess.Snapshot()); err != nil {
			logger.Error("Failed to save session %s: %v", sess.ID, err)
		}
	}
}

// load 按Cookie恢复会话，Cookie无效或会话过期时新建
func (m *SessionMiddleware) load(c *gin.Context) *session.Session {
	raw, err := c.Cookie(m.opts.CookieName)
	if err != nil || raw == "" {
		return session.New(m.opts.CacheTTL, m.opts.Clock)
	}

	sid, err := m.signer.Parse(raw)
	if err != nil {
		logger.Debug("Discarding session cookie: %v", err)
		return session.New(m.opts.CacheTTL, m.opts.Clock)
	}

	snap, err := m.repo.Load(c.Request.Context(), sid)
	if err != nil {
		if !errors.Is(err, repository.ErrSessionNotFound) {
			logger.Warn("Failed to load session %s: %v", sid, err)
		}
		return session.New(m.opts.CacheTTL, m.opts.Clock)
	}
	return session.FromSnapshot(snap, m.opts.CacheTTL, m.opts.Clock)
}
