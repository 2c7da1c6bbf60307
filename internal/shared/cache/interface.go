// Package cache 缓存抽象接口
//
// 当前只有登录失败计数一项能力，由 Redis 实现；未配置 Redis 时使用 NoOp。
package cache

import (
	"context"
	"time"
)

// LoginLimiter 登录失败计数器
type LoginLimiter interface {
	// Failures 返回窗口内的失败次数
	Failures(ctx context.Context, username string) (int64, error)
	// RecordFailure 记录一次失败，返回记录后的次数；首次失败开启 window 计时
	RecordFailure(ctx context.Context, username string, window time.Duration) (int64, error)
	// Reset 登录成功后清零
	Reset(ctx context.Context, username string) error
}

// KeyLoginFailures 失败计数 key 前缀
const KeyLoginFailures = "librigo:login_failures:"
