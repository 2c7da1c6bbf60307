package eventbus

import (
	"context"
	"sync"
)

// subscriberBuffer 每个订阅者的缓冲；满时丢弃事件，不阻塞发布方
const subscriberBuffer = 64

// LocalBus 进程内事件总线
type LocalBus struct {
	mu     sync.RWMutex
	subs   map[chan *LifecycleEvent]struct{}
	closed bool
}

var _ Bus = (*LocalBus)(nil)

// NewLocalBus 创建进程内事件总线
func NewLocalBus() *LocalBus {
	return &LocalBus{subs: make(map[chan *LifecycleEvent]struct{})}
}

// Publish 广播事件给所有订阅者
func (b *LocalBus) Publish(ctx context.Context, event *LifecycleEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

// Subscribe 订阅事件
func (b *LocalBus) Subscribe(ctx context.Context) (<-chan *LifecycleEvent, error) {
	ch := make(chan *LifecycleEvent, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, nil
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.remove(ch)
	}()
	return ch, nil
}

func (b *LocalBus) remove(ch chan *LifecycleEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; ok {
		delete(b.subs, ch)
		close(ch)
	}
}

// SubscriberCount 当前订阅者数量
func (b *LocalBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close 关闭所有订阅
func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	return nil
}
