package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"panel/internal/boot"
	"panel/pkg/copyright"
	"panel/pkg/logger"
	"panel/pkg/redis"
	"panel/pkg/version"
)

const shutdownTimeout = 10 * time.Second

// checkFatalErr 用于统一处理错误检查并中断流程。
func checkFatalErr(err error, message string) {
	if err != nil {
		logger.Fatal("%s: %v", message, err)
	}
}

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "panel",
		Short:         "Wayhost panel backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path")
	rootCmd.AddCommand(serveCmd(&configPath), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the panel server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), *configPath)
		},
	}
}

func versionCmd() *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			info := version.GetVersionInfo()
			if short {
				fmt.Println(info.Version)
				return
			}
			fmt.Printf("Version:    %s\n", info.Version)
			fmt.Printf("Commit:     %s\n", info.Short())
			fmt.Printf("Built:      %s\n", info.BuildTime)
			fmt.Printf("Go version: %s\n", info.GoVersion)
			fmt.Printf("OS/Arch:    %s/%s\n", info.OS, info.Arch)
		},
	}
	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only version number")
	return cmd
}

func serve(ctx context.Context, configPath string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 加载配置文件（Configuration）
	cfg, err := boot.InitConfig(configPath)
	checkFatalErr(err, "Failed to load config")

	// 根据配置设置 Gin 的运行模式（Gin Mode）
	gin.SetMode(cfg.Server.Mode)

	// 初始化 Redis 客户端（仅 redis 会话存储）
	var redisClient *redis.Client
	if cfg.Session.Store == "redis" {
		redisClient, err = redis.NewClient(ctx, redis.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		checkFatalErr(err, "Failed to connect to Redis")
		defer redisClient.Close()
	}

	// 初始化仓储层与服务层（Repositories / Services）
	repos := boot.InitRepositories(cfg, redisClient)
	services, err := boot.InitServices(cfg)
	checkFatalErr(err, "Failed to init services")

	// 初始化 HTTP 处理器与路由（Handlers / Router）
	handlers := boot.InitHandlers(services, cfg)
	r := gin.Default()
	_ = boot.InitRouter(r, handlers, services, repos, cfg)

	// 显示启动信息（Copyright）
	upstreams := make([]copyright.Upstream, 0, len(services.Proxies))
	for _, p := range services.Proxies {
		upstreams = append(upstreams, copyright.Upstream{Name: p.Name(), Target: p.Target()})
	}
	copyright.PrintCopyright(copyright.SystemStatus{
		Addr:         cfg.Server.Addr(),
		Mode:         cfg.Server.Mode,
		SessionStore: cfg.Session.Store,
		RedisStatus:  redisClient != nil,
		CacheTTL:     cfg.Identity.CacheTTL.String(),
		Upstreams:    upstreams,
	})

	// 启动服务器（Server）
	srv := &http.Server{Addr: cfg.Server.Addr(), Handler: r}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server on %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
