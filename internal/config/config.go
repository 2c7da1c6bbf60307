package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// defaultYAMLConfig 代码默认值
func defaultYAMLConfig() *YAMLConfig {
	return &YAMLConfig{
		Server: ServerConfig{
			Port:           "5000",
			CORSOrigin:     "*",
			RequestTimeout: 5 * time.Second,
		},
		Database: DatabaseConfig{
			Path:    "librigo.db",
			Host:    "localhost",
			User:    "librigo",
			Name:    "librigo",
			SSLMode: "disable",
		},
		MinIO: MinIOConfig{Bucket: "librigo-covers"},
		Auth: AuthConfig{
			TokenTTL:         24 * time.Hour,
			LoginMaxAttempts: 5,
			LoginWindow:      15 * time.Minute,
		},
		Log:    LogConfig{Level: "info", Format: "text"},
		School: SchoolConfig{Port: "3000", CORSOrigin: "http://localhost:5173"},
	}
}

// Load 加载配置
// 1. 加载 .env（仅 dev/test）
// 2. 加载 configs/common.yaml → configs/{env}.yaml
// 3. 环境变量覆盖
func Load() (*Config, error) {
	env := parseEnv(getEnv("APP_ENV", "dev"))
	loadEnvFiles(env)

	yamlCfg, loadedFrom, err := loadYAMLConfig(env)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(yamlCfg)

	databaseURL := os.Getenv("DATABASE_URL")
	driver := detectDatabaseDriver(yamlCfg.Database.Driver, databaseURL)
	yamlCfg.Database.Driver = driver
	if databaseURL == "" {
		databaseURL = buildDatabaseURL(yamlCfg.Database)
	} else {
		databaseURL = normalizeDatabaseURL(driver, databaseURL)
	}

	cfg := &Config{
		Env:            env,
		DatabaseDriver: driver,
		DatabaseURL:    databaseURL,
		RedisURL:       buildRedisURL(yamlCfg.Redis),
		Server:         yamlCfg.Server,
		MinIO:          yamlCfg.MinIO,
		Auth:           yamlCfg.Auth,
		Log:            yamlCfg.Log,
		School:         yamlCfg.School,
		ConfigFilePath: loadedFrom,
	}
	return cfg, nil
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml，后者覆盖前者
func loadYAMLConfig(env Environment) (*YAMLConfig, string, error) {
	cfg := defaultYAMLConfig()
	var loadedFrom string

	for _, name := range []string{"common.yaml", fmt.Sprintf("%s.yaml", env)} {
		for _, base := range effectiveConfigPaths(env) {
			path := filepath.Join(base, name)
			data, err := os.ReadFile(path)
			if err != nil {
				continue
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, "", fmt.Errorf("parse %s: %w", path, err)
			}
			loadedFrom = path
			break
		}
	}
	return cfg, loadedFrom, nil
}

// applyEnvOverrides 环境变量覆盖 YAML 配置，并填充只允许来自环境变量的凭据
func applyEnvOverrides(cfg *YAMLConfig) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("CORS_ORIGIN"); v != "" {
		cfg.Server.CORSOrigin = v
	}
	if v := os.Getenv("DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = n
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinIO.Endpoint = v
	}
	if v := os.Getenv("TOKEN_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Auth.TokenTTL = d
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("SCHOOL_PORT"); v != "" {
		cfg.School.Port = v
	}

	cfg.Database.Password = os.Getenv("DB_PASSWORD")
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.MinIO.AccessKey = os.Getenv("MINIO_ROOT_USER")
	cfg.MinIO.SecretKey = os.Getenv("MINIO_ROOT_PASSWORD")
	cfg.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.Auth.AdminUsername = os.Getenv("ADMIN_USERNAME")
	cfg.Auth.AdminPassword = os.Getenv("ADMIN_PASSWORD")
}

// Validate 校验 API Server 启动所需配置
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth.token_ttl must be positive")
	}
	if c.MinIO.Enabled() && (c.MinIO.AccessKey == "" || c.MinIO.SecretKey == "") {
		return fmt.Errorf("MINIO_ROOT_USER and MINIO_ROOT_PASSWORD are required when minio.endpoint is set")
	}
	return nil
}

// IsDevelopment 是否为开发环境（错误响应包含内部细节）
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsTest 是否为测试环境
func (c *Config) IsTest() bool {
	return c.Env == EnvTest
}

// String 返回配置摘要（隐藏密码）
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Driver: %s, DB: %s, Redis: %s, MinIO: %s}",
		c.Env, c.DatabaseDriver, maskPassword(c.DatabaseURL), maskPassword(c.RedisURL), c.MinIO.Endpoint)
}
