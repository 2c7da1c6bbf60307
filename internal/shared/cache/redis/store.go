// Package redis Redis 缓存实现
package redis

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"librigo/internal/shared/cache"
)

// Store Redis 缓存存储
type Store struct {
	client *redis.Client
}

var _ cache.LoginLimiter = (*Store)(nil)

// NewStoreFromURL 从 URL 创建 Redis 缓存实例
func NewStoreFromURL(redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Printf("[Redis/Cache] Connected to %s", opts.Addr)
	return &Store{client: client}, nil
}

// NewStoreFromClient 从现有 Redis 客户端创建缓存实例
func NewStoreFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Client 返回底层客户端（供事件总线复用连接）
func (s *Store) Client() *redis.Client {
	return s.client
}

// Close 关闭连接
func (s *Store) Close() error {
	return s.client.Close()
}

func failuresKey(username string) string {
	return cache.KeyLoginFailures + strings.ToLower(username)
}

// Failures 返回窗口内的失败次数
func (s *Store) Failures(ctx context.Context, username string) (int64, error) {
	n, err := s.client.Get(ctx, failuresKey(username)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// RecordFailure INCR + 首次设置过期
func (s *Store) RecordFailure(ctx context.Context, username string, window time.Duration) (int64, error) {
	key := failuresKey(username)
	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, window)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Reset 清零
func (s *Store) Reset(ctx context.Context, username string) error {
	return s.client.Del(ctx, failuresKey(username)).Err()
}
