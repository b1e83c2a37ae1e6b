package config

import (
	"time"

	commoncfg "github.com/jpch89/the5fire-Django/internal/common/config"
)

// Config typeidea / student-sys（HTTP）配置
type Config struct {
	HTTP          HTTPConfig
	DBEnabled     bool
	DBAutoMigrate bool
	Database      commoncfg.DatabaseConfig
	RedisEnabled  bool
	Redis         commoncfg.RedisConfig
	Log           LogConfig
	PermService   PermServiceConfig
	Session       SessionConfig
	AdminLog      AdminLogConfig
	Seed          SeedConfig
}

type HTTPConfig struct {
	Addr string
}

type LogConfig struct {
	Level  string
	Format string
}

// PermServiceConfig 远程权限服务配置（has_perm 接口）
type PermServiceConfig struct {
	BaseURL string
	Timeout time.Duration // 0 表示不设超时
}

// SessionConfig 后台登录会话
type SessionConfig struct {
	TTL time.Duration
}

// AdminLogConfig 后台操作日志（Redis Stream）
type AdminLogConfig struct {
	Stream string
}

// SeedConfig 启动时写入的默认后台账号
type SeedConfig struct {
	Enabled  bool
	Username string
	Password string
}

// Load 从环境变量加载配置，addrDefault 为各服务的默认监听地址
func Load(addrDefault string) *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = commoncfg.Env("HTTP_ADDR", addrDefault)

	// DB 不可用时回退到内存 repo，本地 `go run` 也能直接打开页面
	cfg.DBEnabled = commoncfg.EnvBool("DB_ENABLED", true)
	cfg.DBAutoMigrate = commoncfg.EnvBool("DB_AUTO_MIGRATE", false)
	cfg.Database = commoncfg.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "typeidea",
		SSLMode:  "disable",
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.RedisEnabled = commoncfg.EnvBool("REDIS_ENABLED", true)
	cfg.Redis = commoncfg.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.Log.Level = commoncfg.Env("LOG_LEVEL", "info")
	cfg.Log.Format = commoncfg.Env("LOG_FORMAT", "json")

	cfg.PermService.BaseURL = commoncfg.Env("PERM_SERVICE_URL", "http://permission.sso.com")
	cfg.PermService.Timeout = commoncfg.EnvDuration("PERM_SERVICE_TIMEOUT", 5*time.Second)

	cfg.Session.TTL = commoncfg.EnvDuration("SESSION_TTL", 12*time.Hour)
	cfg.AdminLog.Stream = commoncfg.Env("ADMIN_LOG_STREAM", "typeidea:admin-log")

	cfg.Seed.Enabled = commoncfg.Env("SEED_ADMIN", "true") != "false"
	cfg.Seed.Username = commoncfg.Env("SEED_ADMIN_USERNAME", "admin")
	cfg.Seed.Password = commoncfg.Env("SEED_ADMIN_PASSWORD", "ChangeMe123!")

	return cfg
}
