package boot

import (
	"panel/pkg/config"
	"panel/pkg/logger"
)

// InitConfig 初始化配置并应用日志级别
func InitConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	return cfg, nil
}
