// Package eventbus 事件总线 mock 实现
package eventbus

import (
	"context"
)

// NoOpBus 是一个不做任何操作的 Bus 实现
type NoOpBus struct{}

var _ Bus = (*NoOpBus)(nil)

// NewNoOpBus 创建 NoOpBus 实例
func NewNoOpBus() *NoOpBus {
	return &NoOpBus{}
}

func (b *NoOpBus) Publish(ctx context.Context, event *LifecycleEvent) error {
	return nil
}

func (b *NoOpBus) Subscribe(ctx context.Context) (<-chan *LifecycleEvent, error) {
	ch := make(chan *LifecycleEvent)
	close(ch)
	return ch, nil
}

func (b *NoOpBus) Close() error {
	return nil
}
