// Package cache 缓存 mock 实现
package cache

import (
	"context"
	"time"
)

// NoOpLimiter 不计数的 LoginLimiter（未配置 Redis 时使用）
type NoOpLimiter struct{}

var _ LoginLimiter = (*NoOpLimiter)(nil)

// NewNoOpLimiter 创建 NoOpLimiter 实例
func NewNoOpLimiter() *NoOpLimiter {
	return &NoOpLimiter{}
}

func (l *NoOpLimiter) Failures(ctx context.Context, username string) (int64, error) {
	return 0, nil
}

func (l *NoOpLimiter) RecordFailure(ctx context.Context, username string, window time.Duration) (int64, error) {
	return 0, nil
}

func (l *NoOpLimiter) Reset(ctx context.Context, username string) error {
	return nil
}
