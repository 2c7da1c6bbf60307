// Package eventbus 借阅生命周期事件总线
//
// 生命周期引擎在每次状态迁移成功后发布事件，管理端 WebSocket 订阅后实时推送。
// 单实例部署使用进程内 LocalBus；多实例部署使用 redis.Bus（Pub/Sub）。
package eventbus

import (
	"context"
	"time"
)

// EventType 事件类型
type EventType string

const (
	EventRequestSubmitted EventType = "request.submitted"
	EventRequestApproved  EventType = "request.approved"
	EventRequestRejected  EventType = "request.rejected"
	EventBookReturned     EventType = "book.returned"
)

// LifecycleEvent 生命周期事件
type LifecycleEvent struct {
	ID          string    `json:"id"`
	Type        EventType `json:"type"`
	RequestID   int64     `json:"request_id,omitempty"`
	BorrowingID int64     `json:"borrowing_id,omitempty"`
	BookID      int64     `json:"book_id"`
	UserID      int64     `json:"user_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher 事件发布
type Publisher interface {
	Publish(ctx context.Context, event *LifecycleEvent) error
}

// Subscriber 事件订阅
// 返回的 channel 在 ctx 结束后关闭
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan *LifecycleEvent, error)
}

// Bus 发布 + 订阅
type Bus interface {
	Publisher
	Subscriber
	Close() error
}
