package boot

import (
	"time"

	"panel/internal/repository"
	"panel/pkg/config"
	"panel/pkg/redis"
)

// Repositories 包含所有仓储实例
type Repositories struct {
	SessionRepo repository.SessionRepository
}

// InitRepositories 按配置选择会话存储；redisClient 仅在 redis 模式下使用
func InitRepositories(cfg *config.Config, redisClient *redis.Client) *Repositories {
	var sessions repository.SessionRepository
	switch cfg.Session.Store {
	case "redis":
		sessions = repository.NewRedisSessionRepository(redisClient, cfg.Redis.KeyPrefix, cfg.Session.IdleTTL)
	default:
		sessions = repository.NewMemorySessionRepository(cfg.Session.IdleTTL, time.Now)
	}
	return &Repositories{SessionRepo: sessions}
}
