// Package config 统一配置管理
//
// 配置加载优先级（高→低）：
//  1. 环境变量（通过 .env 文件或 shell/systemd 注入）
//  2. YAML 配置文件（common.yaml → {env}.yaml）
//  3. 代码硬编码默认值
//
// 凭据单一数据源：
//
//	密码/密钥只存在环境变量中（YAML 中不存储任何密码）。
//	JWT_SECRET、DB_PASSWORD、REDIS_PASSWORD、MINIO_ROOT_USER、MINIO_ROOT_PASSWORD、
//	ADMIN_USERNAME、ADMIN_PASSWORD 只从环境变量读取。
//
// 环境：
//   - 开发: APP_ENV=dev → configs/dev.yaml + .env.dev
//   - 测试: APP_ENV=test → configs/test.yaml + .env.test
//   - 生产: APP_ENV=prod → /etc/librigo/prod.yaml（不读取 .env）
package config

import "time"

// Environment 环境类型
type Environment string

const (
	EnvProduction  Environment = "prod"
	EnvTest        Environment = "test"
	EnvDevelopment Environment = "dev"
)

// YAMLConfig YAML 配置文件结构
// API Server 与 School Server 共用，通过章节区分
type YAMLConfig struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	MinIO    MinIOConfig    `yaml:"minio"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	School   SchoolConfig   `yaml:"school"`
}

// ServerConfig API Server 配置
type ServerConfig struct {
	Port           string        `yaml:"port"`
	CORSOrigin     string        `yaml:"cors_origin"`     // 允许的前端来源，"*" 表示全部
	RequestTimeout time.Duration `yaml:"request_timeout"` // 单请求超时
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlite", "postgres", or "mysql"（默认 sqlite）
	Path     string `yaml:"path"`   // SQLite 文件路径
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"-"` // 只从 DB_PASSWORD 环境变量读取
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig Redis 配置（可选；为空时登录限流与事件总线退化为进程内实现）
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"-"` // 只从 REDIS_PASSWORD 环境变量读取
}

// MinIOConfig MinIO 对象存储配置（可选；为空时不支持封面上传）
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`   // 例如 localhost:9000
	AccessKey string `yaml:"-"`          // 只从 MINIO_ROOT_USER 环境变量读取
	SecretKey string `yaml:"-"`          // 只从 MINIO_ROOT_PASSWORD 环境变量读取
	UseSSL    bool   `yaml:"use_ssl"`    // 是否使用 HTTPS
	Bucket    string `yaml:"bucket"`     // 封面 bucket
	PublicURL string `yaml:"public_url"` // 对外访问前缀，为空时由 endpoint/bucket 拼接
}

// Enabled 是否配置了对象存储
func (c MinIOConfig) Enabled() bool {
	return c.Endpoint != ""
}

// AuthConfig 认证配置
type AuthConfig struct {
	JWTSecret        string        `yaml:"-"` // 只从 JWT_SECRET 环境变量读取
	TokenTTL         time.Duration `yaml:"token_ttl"`
	LoginMaxAttempts int           `yaml:"login_max_attempts"`
	LoginWindow      time.Duration `yaml:"login_window"`
	AdminUsername    string        `yaml:"-"` // 只从 ADMIN_USERNAME 环境变量读取
	AdminPassword    string        `yaml:"-"` // 只从 ADMIN_PASSWORD 环境变量读取
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// SchoolConfig 学校后台配置
type SchoolConfig struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Config 应用配置（最终使用的配置）
type Config struct {
	Env            Environment
	DatabaseDriver string // "sqlite", "postgres", or "mysql"
	DatabaseURL    string
	RedisURL       string // 为空表示未启用 Redis
	Server         ServerConfig
	MinIO          MinIOConfig
	Auth           AuthConfig
	Log            LogConfig
	School         SchoolConfig
	ConfigFilePath string // 实际加载的配置文件路径
}
