package boot

import (
	"github.com/gin-gonic/gin"

	v1 "panel/api/v1"
	"panel/internal/session"
	"panel/pkg/config"
	"panel/pkg/middleware"
	"panel/pkg/router"
)

// Handlers 包含所有HTTP处理器
type Handlers struct {
	AuthHandler    *v1.AuthHandler
	AccountHandler *v1.AccountHandler
	NetworkHandler *v1.NetworkHandler
	HealthHandler  *v1.HealthHandler
}

// InitHandlers 初始化所有HTTP处理器
func InitHandlers(services *Services, cfg *config.Config) *Handlers {
	upstreams := make([]v1.Upstream, 0, len(services.Proxies))
	for _, p := range services.Proxies {
		upstreams = append(upstreams, p)
	}

	lang := cfg.Server.DefaultLang
	return &Handlers{
		AuthHandler:    v1.NewAuthHandler(services.LoginService, services.LogoutService, lang),
		AccountHandler: v1.NewAccountHandler(services.AccountService, lang),
		NetworkHandler: v1.NewNetworkHandler(services.GuardService),
		HealthHandler:  v1.NewHealthHandler(upstreams...),
	}
}

// InitRouter 初始化中间件与路由
func InitRouter(
	engine *gin.Engine,
	handlers *Handlers,
	services *Services,
	repos *Repositories,
	cfg *config.Config,
) *router.Router {
	// 会话Cookie与存储共用空闲过期时间
	signer := session.NewCookieSigner(cfg.Session.Secret, cfg.Session.IdleTTL, nil)
	sessionMiddleware := middleware.NewSessionMiddleware(repos.SessionRepo, signer, middleware.SessionOptions{
		CookieName: cfg.Session.CookieName,
		MaxAge:     cfg.Session.IdleTTL,
		Secure:     cfg.Session.SecureCookie,
		CacheTTL:   cfg.Identity.CacheTTL,
	})

	guardMiddleware := middleware.NewGuardMiddleware(services.GuardService, cfg.Server.DefaultLang)

	// 添加全局中间件
	engine.Use(middleware.RequestID())
	engine.Use(middleware.CORSMiddleware(cfg.Server.AllowedOrigins))
	engine.Use(middleware.SecureHeaders())

	r := router.NewRouter(
		engine,
		sessionMiddleware,
		guardMiddleware,
		handlers.AuthHandler,
		handlers.AccountHandler,
		handlers.NetworkHandler,
		handlers.HealthHandler,
		services.Metrics.Handler(),
		services.Proxies,
		cfg.Server.StaticDir,
	)

	// 注册所有路由
	r.RegisterRoutes()

	return r
}
