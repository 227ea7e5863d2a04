package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"panel/internal/service"
	"panel/pkg/logger"
)

// GuardMiddleware 页面路由守卫中间件
type GuardMiddleware struct {
	guardService service.GuardService
	defaultLang  string
}

// NewGuardMiddleware 创建路由守卫中间件实例
func NewGuardMiddleware(guardService service.GuardService, defaultLang string) *GuardMiddleware {
	return &GuardMiddleware{
		guardService: guardService,
		defaultLang:  service.NormalizeLang(defaultLang, service.LangFR),
	}
}

// Handle 按守卫类型处理页面请求
func (m *GuardMiddleware) Handle(kind service.GuardKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		// 不支持的语言前缀替换为默认语言
		raw := c.Param("lang")
		lang := service.NormalizeLang(raw, m.defaultLang)
		if raw != lang {
			target := "/" + lang + strings.TrimPrefix(path, "/"+raw)
			if q := c.Request.URL.RawQuery; q != "" {
				target += "?" + q
			}
			c.Redirect(http.StatusFound, target)
			c.Abort()
			return
		}

		sess := MustGetSession(c)
		redirect := m.guardService.Check(c.Request.Context(), sess, kind, path, lang)
		if redirect == nil {
			c.Next()
			return
		}

		logger.Debug("Guard %s redirecting %s to %s (%s)", kind, path, redirect.Location, redirect.Reason)
		c.Redirect(http.StatusFound, redirect.Location)
		c.Abort()
	}
}
