package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Identity IdentityConfig `mapstructure:"identity"`
	Session  SessionConfig  `mapstructure:"session"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port           int      `mapstructure:"port"`
	Mode           string   `mapstructure:"mode"`
	AppURL         string   `mapstructure:"app_url"`      // 面板对外地址，用于邮件回跳链接
	DefaultLang    string   `mapstructure:"default_lang"` // fr 或 en
	StaticDir      string   `mapstructure:"static_dir"`   // 前端构建产物目录
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// UpstreamConfig 上游微服务配置
type UpstreamConfig struct {
	AuthService    string        `mapstructure:"auth_service"`
	PaymentService string        `mapstructure:"payment_service"`
	ServerService  string        `mapstructure:"server_service"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryLimit     uint64        `mapstructure:"retry_limit"`
}

// IdentityConfig 身份缓存与守卫超时
type IdentityConfig struct {
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	GuardTimeout time.Duration `mapstructure:"guard_timeout"`
	RetryTimeout time.Duration `mapstructure:"retry_timeout"`
}

// SessionConfig 浏览器会话配置
type SessionConfig struct {
	CookieName   string        `mapstructure:"cookie_name"`
	Secret       string        `mapstructure:"secret"`
	IdleTTL      time.Duration `mapstructure:"idle_ttl"`
	Store        string        `mapstructure:"store"` // memory 或 redis
	SecureCookie bool          `mapstructure:"secure_cookie"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `mapstructure:"level"`
}

const envPrefix = "PANEL"

// legacyEnv 兼容部署脚本中已有的环境变量
var legacyEnv = map[string][]string{
	"server.port":              {"PORT"},
	"upstream.auth_service":    {"AUTH_SERVICE_URL"},
	"upstream.payment_service": {"PAYMENT_SERVICE_URL"},
	"upstream.server_service":  {"SERVER_SERVICE_URL"},
}

func setDefaults(v *viper.Viper) {
	apiBase := strings.TrimRight(os.Getenv("VITE_API_URL"), "/")
	if apiBase == "" {
		apiBase = "http://wayhost.trustmycloud.com"
	}

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.app_url", "http://localhost:3000")
	v.SetDefault("server.default_lang", "fr")
	v.SetDefault("server.static_dir", "./dist")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("upstream.auth_service", apiBase+":8000")
	v.SetDefault("upstream.payment_service", apiBase+":8002")
	v.SetDefault("upstream.server_service", apiBase+":8001")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.retry_limit", 2)

	v.SetDefault("identity.cache_ttl", 5*time.Minute)
	v.SetDefault("identity.guard_timeout", 10*time.Second)
	v.SetDefault("identity.retry_timeout", 5*time.Second)

	v.SetDefault("session.cookie_name", "panel_session")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.idle_ttl", 24*time.Hour)
	v.SetDefault("session.store", "memory")
	v.SetDefault("session.secure_cookie", false)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "panel:session:")

	v.SetDefault("log.level", "info")
}

// LoadConfig 加载配置文件；configPath 为空或文件不存在时只使用默认值与环境变量
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		args := append([]string{key, envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		if err := v.BindEnv(args...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	switch c.Server.DefaultLang {
	case "fr", "en":
	default:
		return fmt.Errorf("server.default_lang must be fr or en, got %q", c.Server.DefaultLang)
	}
	if c.Upstream.AuthService == "" {
		return errors.New("upstream.auth_service is required")
	}
	if c.Identity.CacheTTL <= 0 {
		return errors.New("identity.cache_ttl must be positive")
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("session.store must be memory or redis, got %q", c.Session.Store)
	}
	if c.Session.Secret == "" && c.Server.Mode == "release" {
		return errors.New("session.secret is required in release mode")
	}
	return nil
}

// Addr 监听地址
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
