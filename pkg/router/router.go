package router

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	v1 "panel/api/v1"
	"panel/internal/gateway"
	"panel/internal/service"
	"panel/pkg/api"
	"panel/pkg/middleware"
)

// Router 路由管理器
type Router struct {
	engine            *gin.Engine
	sessionMiddleware *middleware.SessionMiddleware
	guardMiddleware   *middleware.GuardMiddleware
	authHandler       *v1.AuthHandler
	accountHandler    *v1.AccountHandler
	networkHandler    *v1.NetworkHandler
	healthHandler     *v1.HealthHandler
	metricsHandler    http.Handler
	proxies           []*gateway.Proxy
	staticDir         string
}

// NewRouter 创建路由管理器实例
func NewRouter(
	engine *gin.Engine,
	sessionMiddleware *middleware.SessionMiddleware,
	guardMiddleware *middleware.GuardMiddleware,
	authHandler *v1.AuthHandler,
	accountHandler *v1.AccountHandler,
	networkHandler *v1.NetworkHandler,
	healthHandler *v1.HealthHandler,
	metricsHandler http.Handler,
	proxies []*gateway.Proxy,
	staticDir string,
) *Router {
	return &Router{
		engine:            engine,
		sessionMiddleware: sessionMiddleware,
		guardMiddleware:   guardMiddleware,
		authHandler:       authHandler,
		accountHandler:    accountHandler,
		networkHandler:    networkHandler,
		healthHandler:     healthHandler,
		metricsHandler:    metricsHandler,
		proxies:           proxies,
		staticDir:         staticDir,
	}
}

// RegisterRoutes 注册所有路由
func (r *Router) RegisterRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthHandler.Health)
	if r.metricsHandler != nil {
		r.engine.GET("/metrics", gin.WrapH(r.metricsHandler))
	}

	// 上游微服务代理
	r.registerProxyRoutes(r.engine.Group("/api", r.sessionMiddleware.Handle()))

	// 面板会话API
	panel := r.engine.Group("/panel", r.sessionMiddleware.Handle())
	{
		r.authHandler.Register(panel)
		r.accountHandler.Register(panel)
		r.networkHandler.Register(panel)
	}

	// 受守卫保护的页面
	r.registerPageRoutes(r.engine.Group("/:lang", r.sessionMiddleware.Handle()))

	// 其余路径交给前端
	r.engine.NoRoute(r.serveStatic)
}

// registerProxyRoutes 注册代理路由，/api/{name}/* 转发到对应服务
func (r *Router) registerProxyRoutes(group *gin.RouterGroup) {
	for _, p := range r.proxies {
		group.Any("/"+p.Name()+"/*any", gin.WrapH(p))
	}
}

// registerPageRoutes 注册登录区与面板区页面
func (r *Router) registerPageRoutes(group *gin.RouterGroup) {
	auth := r.guardMiddleware.Handle(service.GuardAuth)
	for _, p := range []string{"/sign-in", "/sign-up", "/forget-password", "/reset-password", "/activate-account/:token", "/oauth"} {
		group.GET(p, auth, r.serveIndex)
	}

	panel := r.guardMiddleware.Handle(service.GuardPanel)
	group.GET("/customer/*path", panel, r.serveIndex)
	group.GET("/admin/*path", panel, r.serveIndex)
}

// serveIndex 返回单页应用入口
func (r *Router) serveIndex(c *gin.Context) {
	index := filepath.Join(r.staticDir, "index.html")
	if _, err := os.Stat(index); err != nil {
		c.String(http.StatusNotFound, "frontend bundle not found")
		return
	}
	c.File(index)
}

// serveStatic 存在的静态文件直接返回，其余页面回退到 index.html
func (r *Router) serveStatic(c *gin.Context) {
	p := c.Request.URL.Path
	if strings.HasPrefix(p, "/api/") || strings.HasPrefix(p, "/panel/") {
		api.Error(c, http.StatusNotFound, "not found", nil)
		return
	}
	if c.Request.Method != http.MethodGet && c.Request.Method != http.MethodHead {
		api.Error(c, http.StatusMethodNotAllowed, "method not allowed", nil)
		return
	}

	file := filepath.Join(r.staticDir, filepath.FromSlash(path.Clean("/"+p)))
	if info, err := os.Stat(file); err == nil && !info.IsDir() {
		c.File(file)
		return
	}
	r.serveIndex(c)
}
