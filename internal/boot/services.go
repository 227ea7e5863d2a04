package boot

import (
	"fmt"

	"panel/internal/gateway"
	"panel/internal/service"
	"panel/pkg/config"
	"panel/pkg/metrics"
)

// Services 包含所有服务实例
type Services struct {
	Metrics         *metrics.Metrics
	AuthAPI         gateway.AuthAPI
	IdentityService service.IdentityService
	GuardService    service.GuardService
	LoginService    service.LoginService
	LogoutService   service.LogoutService
	AccountService  service.AccountService
	Proxies         []*gateway.Proxy
}

// InitServices 初始化所有服务实例
func InitServices(cfg *config.Config) (*Services, error) {
	m := metrics.New()

	// 身份服务客户端
	client := gateway.NewClient("auth", cfg.Upstream.AuthService,
		gateway.WithTimeout(cfg.Upstream.Timeout),
		gateway.WithRetry(cfg.Upstream.RetryLimit, 0),
		gateway.WithObserver(m),
	)
	authAPI := gateway.NewAuthClient(client)

	identityService := service.NewIdentityService(authAPI, m)
	guardService := service.NewGuardService(identityService, cfg.Identity.GuardTimeout, cfg.Identity.RetryTimeout, m)

	// 上游代理，空地址的服务不注册
	targets := []struct{ name, url string }{
		{"auth", cfg.Upstream.AuthService},
		{"payment", cfg.Upstream.PaymentService},
		{"server", cfg.Upstream.ServerService},
	}
	proxies := make([]*gateway.Proxy, 0, len(targets))
	for _, t := range targets {
		if t.url == "" {
			continue
		}
		p, err := gateway.NewProxy(t.name, t.url, m)
		if err != nil {
			return nil, fmt.Errorf("failed to init %s proxy: %w", t.name, err)
		}
		proxies = append(proxies, p)
	}

	return &Services{
		Metrics:         m,
		AuthAPI:         authAPI,
		IdentityService: identityService,
		GuardService:    guardService,
		LoginService:    service.NewLoginService(authAPI, cfg.Server.AppURL, m),
		LogoutService:   service.NewLogoutService(authAPI, m),
		AccountService:  service.NewAccountService(authAPI, identityService, cfg.Server.AppURL),
		Proxies:         proxies,
	}, nil
}
