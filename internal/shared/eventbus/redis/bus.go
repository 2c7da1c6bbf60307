// Package redis Redis Pub/Sub 事件总线实现
//
// 多个 API Server 实例共享同一频道，任一实例上的审批/归还都会推送到所有实例的管理端连接。
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"librigo/internal/shared/eventbus"
)

// Channel 生命周期事件频道
const Channel = "librigo:lifecycle"

// Bus Redis 事件总线
type Bus struct {
	client *redis.Client
	owned  bool
}

var _ eventbus.Bus = (*Bus)(nil)

// NewBusFromURL 从 URL 创建 Redis 事件总线
func NewBusFromURL(redisURL string) (*Bus, error) {
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

	log.Printf("[Redis/EventBus] Connected to %s", opts.Addr)
	return &Bus{client: client, owned: true}, nil
}

// NewBusFromClient 从现有 Redis 客户端创建事件总线
func NewBusFromClient(client *redis.Client) *Bus {
	return &Bus{client: client}
}

// Publish 发布事件
func (b *Bus) Publish(ctx context.Context, event *eventbus.LifecycleEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, Channel, data).Err()
}

// Subscribe 订阅事件
func (b *Bus) Subscribe(ctx context.Context) (<-chan *eventbus.LifecycleEvent, error) {
	pubsub := b.client.Subscribe(ctx, Channel)
	// 等待订阅确认，保证返回后发布的事件不会丢
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", Channel, err)
	}

	ch := make(chan *eventbus.LifecycleEvent, 64)
	go func() {
		defer close(ch)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev eventbus.LifecycleEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Printf("[Redis/EventBus] Drop malformed event: %v", err)
					continue
				}
				select {
				case ch <- &ev:
				default:
				}
			}
		}
	}()
	return ch, nil
}

// Close 关闭（仅关闭自己创建的客户端）
func (b *Bus) Close() error {
	if b.owned {
		return b.client.Close()
	}
	return nil
}
