package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/spf13/viper"
)

// Config 保存应用程序配置。
type Config struct {
	App       AppConfig       `json:"app"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Security  SecurityConfig  `json:"security"`
	RateLimit RateLimitConfig `json:"rate_limit"`
}

// AppConfig 应用程序基础配置。
type AppConfig struct {
	Env          string `json:"env"`           // 运行环境: local / prod
	LogLevel     string `json:"log_level"`     // 日志级别: debug / info / warn / error
	HTTPAddr     string `json:"http_addr"`     // API 服务监听地址
	DefaultLimit int    `json:"default_limit"` // 任务列表默认每页数量
	MaxLimit     int    `json:"max_limit"`     // 任务列表每页数量上限，0 表示不限
	SeedDemo     bool   `json:"seed_demo"`     // 启动时创建演示账号
}

// DatabaseConfig 数据库配置。
type DatabaseConfig struct {
	Driver string `json:"driver"` // mysql / sqlite
	DSN    string `json:"dsn"`    // 数据库连接字符串
}

// RedisConfig Redis 配置（限流与幂等键使用）。
type RedisConfig struct {
	Enabled        bool          `json:"enabled"`         // 关闭后不连接 Redis，限流与幂等键一并停用
	Addr           string        `json:"addr"`            // Redis 地址 (host:port)
	Password       string        `json:"password"`        // Redis 密码
	IdempotencyTTL time.Duration `json:"idempotency_ttl"` // Idempotency-Key 保留时间（支持 "1d"）
}

// SecurityConfig 安全相关配置。
type SecurityConfig struct {
	JWTSecret    string        `json:"jwt_secret"`     // JWT 签名密钥
	JWTExpiresIn time.Duration `json:"jwt_expires_in"` // Token 有效期（支持 "7d"）
	BcryptCost   int           `json:"bcrypt_cost"`    // bcrypt 计算成本
}

// RateLimitConfig 限流配置（令牌桶，速率单位 token/s）。
type RateLimitConfig struct {
	Enabled     bool    `json:"enabled"`
	GlobalRate  float64 `json:"global_rate"`
	GlobalBurst float64 `json:"global_burst"`
	AuthRate    float64 `json:"auth_rate"`
	AuthBurst   float64 `json:"auth_burst"`
}

// Load 从 JSON 文件加载配置。
//
// 它会尝试读取 configs/config.json 文件，如果不存在则使用默认值。
// 无论是否存在配置文件，环境变量都会覆盖最终结果。
func Load(configPath ...string) (*Config, error) {
	path := "configs/config.json"
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := getDefaultConfig()
		if err := applyEnvOverrides(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// 在默认值之上解析，文件中缺省的字段保留默认值
	cfg := getDefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(cfg)

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

const defaultSQLiteDSN = "tasktracker.db"

// getDefaultConfig 返回默认配置。
func getDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Env:          "local",
			LogLevel:     "info",
			HTTPAddr:     ":5000",
			DefaultLimit: 10,
			MaxLimit:     0,
		},
		Database: DatabaseConfig{
			Driver: "mysql",
			DSN:    "root:password@tcp(localhost:3306)/tasktracker?parseTime=true&loc=UTC&charset=utf8mb4",
		},
		Redis: RedisConfig{
			Enabled:        true,
			Addr:           "localhost:6379",
			IdempotencyTTL: 24 * time.Hour,
		},
		Security: SecurityConfig{
			JWTSecret:    "dev_secret_change_me",
			JWTExpiresIn: 7 * 24 * time.Hour,
			BcryptCost:   12,
		},
		RateLimit: RateLimitConfig{
			Enabled: true,
			// 500 次 / 5 分钟
			GlobalRate:  500.0 / 300.0,
			GlobalBurst: 500,
			// 15 次 / 15 分钟
			AuthRate:  15.0 / 900.0,
			AuthBurst: 15,
		},
	}
}

// applyDefaults 对未设置的字段应用默认值。
func applyDefaults(cfg *Config) {
	defaults := getDefaultConfig()

	if cfg.App.Env == "" {
		cfg.App.Env = defaults.App.Env
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = defaults.App.LogLevel
	}
	if cfg.App.HTTPAddr == "" {
		cfg.App.HTTPAddr = defaults.App.HTTPAddr
	}
	if cfg.App.DefaultLimit <= 0 {
		cfg.App.DefaultLimit = defaults.App.DefaultLimit
	}
	if cfg.App.MaxLimit < 0 {
		cfg.App.MaxLimit = 0
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = defaults.Database.Driver
	}
	if cfg.Database.DSN == "" && cfg.Database.Driver == defaults.Database.Driver {
		cfg.Database.DSN = defaults.Database.DSN
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = defaults.Redis.Addr
	}
	if cfg.Redis.IdempotencyTTL == 0 {
		cfg.Redis.IdempotencyTTL = defaults.Redis.IdempotencyTTL
	}
	if cfg.Security.JWTSecret == "" {
		cfg.Security.JWTSecret = defaults.Security.JWTSecret
	}
	if cfg.Security.JWTExpiresIn == 0 {
		cfg.Security.JWTExpiresIn = defaults.Security.JWTExpiresIn
	}
	if cfg.Security.BcryptCost == 0 {
		cfg.Security.BcryptCost = defaults.Security.BcryptCost
	}
	if cfg.RateLimit.GlobalRate == 0 {
		cfg.RateLimit.GlobalRate = defaults.RateLimit.GlobalRate
	}
	if cfg.RateLimit.GlobalBurst == 0 {
		cfg.RateLimit.GlobalBurst = defaults.RateLimit.GlobalBurst
	}
	if cfg.RateLimit.AuthRate == 0 {
		cfg.RateLimit.AuthRate = defaults.RateLimit.AuthRate
	}
	if cfg.RateLimit.AuthBurst == 0 {
		cfg.RateLimit.AuthBurst = defaults.RateLimit.AuthBurst
	}
}

func applyEnvOverrides(cfg *Config) error {
	v := viper.New()
	v.AutomaticEnv()

	_ = v.BindEnv("db_host", "DB_HOST")
	_ = v.BindEnv("db_password", "DB_PASSWORD")
	_ = v.BindEnv("redis_addr", "REDIS_ADDR")
	_ = v.BindEnv("redis_password", "REDIS_PASSWORD")
	_ = v.BindEnv("jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("jwt_expires_in", "JWT_EXPIRES_IN")

	if val := os.Getenv("APP_ENV"); val != "" {
		cfg.App.Env = val
	}
	if val := os.Getenv("APP_LOG_LEVEL"); val != "" {
		cfg.App.LogLevel = val
	}
	if val := os.Getenv("APP_HTTP_ADDR"); val != "" {
		cfg.App.HTTPAddr = val
	} else if val := os.Getenv("PORT"); val != "" {
		cfg.App.HTTPAddr = ":" + val
	}
	if val := os.Getenv("APP_DEFAULT_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i > 0 {
			cfg.App.DefaultLimit = i
		}
	}
	if val := os.Getenv("APP_MAX_LIMIT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil && i >= 0 {
			cfg.App.MaxLimit = i
		}
	}
	if val := os.Getenv("APP_SEED_DEMO"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.App.SeedDemo = b
		}
	}

	if val := v.GetString("jwt_secret"); val != "" {
		cfg.Security.JWTSecret = val
	}
	if val := v.GetString("jwt_expires_in"); val != "" {
		d, err := ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
		}
		cfg.Security.JWTExpiresIn = d
	}
	if val := os.Getenv("BCRYPT_COST"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Security.BcryptCost = i
		}
	}

	if val := os.Getenv("DB_DRIVER"); val != "" {
		cfg.Database.Driver = strings.ToLower(val)
	}
	if val := os.Getenv("DB_DSN"); val != "" {
		cfg.Database.DSN = val
	} else if cfg.Database.Driver == "mysql" && (hasAnyEnv("DB_PORT", "DB_USER", "DB_NAME") || v.GetString("db_host") != "" || v.GetString("db_password") != "") {
		parsed := parseMySQLDSN(cfg.Database.DSN)
		if val := v.GetString("db_host"); val != "" {
			port := getenvDefault("DB_PORT", parsed.Addr, "3306")
			parsed.Addr = val + ":" + port
		} else if val := os.Getenv("DB_PORT"); val != "" {
			host := parsed.Addr
			if strings.Contains(host, ":") {
				host = strings.Split(host, ":")[0]
			}
			parsed.Addr = host + ":" + val
		}
		if val := os.Getenv("DB_USER"); val != "" {
			parsed.User = val
		}
		if val := v.GetString("db_password"); val != "" {
			parsed.Passwd = val
		}
		if val := os.Getenv("DB_NAME"); val != "" {
			parsed.DBName = val
		}
		cfg.Database.DSN = parsed.FormatDSN()
	}

	if val := v.GetString("redis_addr"); val != "" {
		cfg.Redis.Addr = val
	}
	if val := v.GetString("redis_password"); val != "" {
		cfg.Redis.Password = val
	}
	if val := os.Getenv("REDIS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Redis.Enabled = b
		}
	}
	if val := os.Getenv("REDIS_IDEMPOTENCY_TTL"); val != "" {
		d, err := ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid REDIS_IDEMPOTENCY_TTL: %w", err)
		}
		cfg.Redis.IdempotencyTTL = d
	}

	if val := os.Getenv("RATE_LIMIT_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.RateLimit.Enabled = b
		}
	}

	// 切换到 sqlite 但没有给出 DSN 时，不沿用 MySQL 的默认 DSN
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN == getDefaultConfig().Database.DSN {
		cfg.Database.DSN = defaultSQLiteDSN
	}
	return nil
}

// ParseDuration 解析时长，除 time.ParseDuration 支持的格式外还接受 "7d" 这种按天计的写法。
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("parse duration %q: %w", s, err)
		}
		if days <= 0 {
			return 0, fmt.Errorf("duration %q must be positive", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return d, nil
}

func hasAnyEnv(keys ...string) bool {
	for _, key := range keys {
		if os.Getenv(key) != "" {
			return true
		}
	}
	return false
}

func getenvDefault(envKey, fallbackAddr, defaultValue string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if fallbackAddr == "" {
		return defaultValue
	}
	if strings.Contains(fallbackAddr, ":") {
		parts := strings.Split(fallbackAddr, ":")
		if len(parts) == 2 && parts[1] != "" {
			return parts[1]
		}
	}
	return defaultValue
}

func parseMySQLDSN(dsn string) *mysql.Config {
	fallback := func() *mysql.Config {
		c := mysql.NewConfig()
		c.User = "root"
		c.Net = "tcp"
		c.Addr = "localhost:3306"
		c.DBName = "tasktracker"
		c.ParseTime = true
		c.Loc = time.UTC
		return c
	}
	if dsn == "" {
		return fallback()
	}
	parsed, err := mysql.ParseDSN(dsn)
	if err != nil {
		return fallback()
	}
	return parsed
}

// UnmarshalJSON 自定义 JSON 解析，支持时长字符串。
func (s *SecurityConfig) UnmarshalJSON(data []byte) error {
	type Alias SecurityConfig
	aux := &struct {
		JWTExpiresIn string `json:"jwt_expires_in"`
		*Alias
	}{
		Alias: (*Alias)(s),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if aux.JWTExpiresIn != "" {
		d, err := ParseDuration(aux.JWTExpiresIn)
		if err != nil {
			return fmt.Errorf("invalid jwt_expires_in format: %w", err)
		}
		s.JWTExpiresIn = d
	}
	return nil
}

// UnmarshalJSON 自定义 JSON 解析，支持时长字符串；未出现 enabled 时默认启用。
func (r *RedisConfig) UnmarshalJSON(data []byte) error {
	type Alias RedisConfig
	aux := &struct {
		Enabled        *bool  `json:"enabled"`
		IdempotencyTTL string `json:"idempotency_ttl"`
		*Alias
	}{
		Alias: (*Alias)(r),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Enabled = aux.Enabled == nil || *aux.Enabled
	if aux.IdempotencyTTL != "" {
		d, err := ParseDuration(aux.IdempotencyTTL)
		if err != nil {
			return fmt.Errorf("invalid idempotency_ttl format: %w", err)
		}
		r.IdempotencyTTL = d
	}
	return nil
}
