package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"
)

// buildDatabaseURL 根据驱动类型构建数据库连接字符串
func buildDatabaseURL(db DatabaseConfig) string {
	switch strings.ToLower(db.Driver) {
	case "postgres":
		port := db.Port
		if port == 0 {
			port = 5432
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
			db.User, url.QueryEscape(db.Password), db.Host, port, db.Name, db.SSLMode)
	case "mysql":
		port := db.Port
		if port == 0 {
			port = 3306
		}
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
			db.User, db.Password, db.Host, port, db.Name)
	default: // sqlite
		dbPath := db.Path
		if dbPath == "" {
			dbPath = "librigo.db"
		}
		if dbPath == ":memory:" {
			return dbPath
		}
		return fmt.Sprintf("file:%s?mode=rwc", dbPath)
	}
}

// normalizeDatabaseURL 将 DATABASE_URL 转换为驱动可接受的 DSN
// mysql:// 前缀会被去掉（go-sql-driver/mysql 使用非 URL 格式的 DSN）
func normalizeDatabaseURL(driver, databaseURL string) string {
	if driver == "mysql" {
		return strings.TrimPrefix(databaseURL, "mysql://")
	}
	if driver == "sqlite" {
		return strings.TrimPrefix(databaseURL, "sqlite://")
	}
	return databaseURL
}

// detectDatabaseDriver 检测数据库驱动类型
// 优先级：显式 driver 字段 > DATABASE_URL 前缀自动检测 > 默认 sqlite
func detectDatabaseDriver(explicit, databaseURL string) string {
	// 1. 显式指定
	switch d := strings.ToLower(explicit); d {
	case "sqlite", "postgres", "mysql":
		return d
	case "postgresql":
		return "postgres"
	}
	// 2. 从 DATABASE_URL 前缀自动检测
	switch {
	case strings.HasPrefix(databaseURL, "file:"), strings.HasPrefix(databaseURL, "sqlite:"), databaseURL == ":memory:":
		return "sqlite"
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres"
	case strings.HasPrefix(databaseURL, "mysql://"), strings.Contains(databaseURL, "@tcp("):
		return "mysql"
	}
	// 3. 默认 sqlite
	return "sqlite"
}

// buildRedisURL 构建 Redis 连接字符串，未配置时返回空串
func buildRedisURL(redis RedisConfig) string {
	if redis.URL == "" {
		return ""
	}
	if redis.Password == "" {
		return redis.URL
	}
	u, err := url.Parse(redis.URL)
	if err != nil || u.User != nil {
		return redis.URL
	}
	u.User = url.UserPassword("", redis.Password)
	return u.String()
}

var passwordRe = regexp.MustCompile(`(://[^:/@]*:|^[^:/@]+:)([^@]+)(@)`)

// maskPassword 隐藏密码
func maskPassword(dsn string) string {
	return passwordRe.ReplaceAllString(dsn, "${1}***${3}")
}

// parseEnv 解析环境字符串
func parseEnv(env string) Environment {
	switch strings.ToLower(env) {
	case "test":
		return EnvTest
	case "prod", "production":
		return EnvProduction
	default:
		return EnvDevelopment
	}
}

// getEnv 获取环境变量，支持默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
