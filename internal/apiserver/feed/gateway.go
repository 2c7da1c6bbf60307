// Package feed 管理端实时生命周期事件推送（WebSocket）
//
// 推送消息格式：
//
//	事件：{"type": "event", "data": {...LifecycleEvent}}
//	心跳：客户端 {"type": "ping"} -> 服务端 {"type": "pong"}
package feed

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"librigo/internal/apiserver/auth"
	"librigo/internal/shared/eventbus"
	"librigo/pkg/logging"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 30 * time.Second
	readLimit    = 512
)

// ConnGauge 在线连接数指标（prometheus.Gauge 满足该接口）
type ConnGauge interface {
	Inc()
	Dec()
}

type nopGauge struct{}

func (nopGauge) Inc() {}
func (nopGauge) Dec() {}

// Message 推送给客户端的消息
type Message struct {
	Type string                   `json:"type"`
	Data *eventbus.LifecycleEvent `json:"data,omitempty"`
}

// Gateway 生命周期事件网关
type Gateway struct {
	bus      eventbus.Subscriber
	gauge    ConnGauge
	upgrader websocket.Upgrader
	logger   *logging.Logger
}

// Option 网关选项
type Option func(*Gateway)

// WithGauge 设置连接数指标
func WithGauge(g ConnGauge) Option {
	return func(gw *Gateway) { gw.gauge = g }
}

// WithAllowedOrigin 限制握手来源；"*" 或空串表示不限制
func WithAllowedOrigin(origin string) Option {
	return func(gw *Gateway) {
		if origin == "" || origin == "*" {
			return
		}
		gw.upgrader.CheckOrigin = func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			return o == "" || o == origin
		}
	}
}

// NewGateway 创建事件网关
func NewGateway(bus eventbus.Subscriber, opts ...Option) *Gateway {
	g := &Gateway{
		bus:   bus,
		gauge: nopGauge{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logging.Default("feed"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RegisterRoutes 注册 WebSocket 路由（仅管理员）
//
// 该路由不能经过会包装 ResponseWriter 的中间件，否则无法 Hijack。
func (g *Gateway) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/admin/events", auth.AdminOnly(g.HandleWebSocket))
}

// HandleWebSocket 处理 WebSocket 连接
// GET /ws/admin/events?token=...
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.WithContext(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	g.gauge.Inc()
	defer g.gauge.Dec()

	// 连接断开后 r.Context() 不一定结束，由 readPump 负责取消
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := g.bus.Subscribe(ctx)
	if err != nil {
		g.logger.WithError(err).Error("subscribe lifecycle events failed")
		return
	}

	log := g.logger.WithContext(r.Context())
	log.Info("admin feed connected")
	defer log.Info("admin feed disconnected")

	pings := make(chan struct{}, 1)
	go g.readPump(conn, cancel, pings)
	g.writePump(ctx, conn, events, pings)
}

// readPump 读取客户端消息，连接关闭时取消上下文
func (g *Gateway) readPump(conn *websocket.Conn, cancel context.CancelFunc, pings chan<- struct{}) {
	defer cancel()
	conn.SetReadLimit(readLimit)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.WithError(err).Debug("websocket read error")
			}
			return
		}
		var req Message
		if json.Unmarshal(msg, &req) == nil && req.Type == "ping" {
			select {
			case pings <- struct{}{}:
			default:
			}
		}
	}
}

// writePump 推送事件与心跳；gorilla 连接只允许一个写goroutine
func (g *Gateway) writePump(ctx context.Context, conn *websocket.Conn, events <-chan *eventbus.LifecycleEvent, pings <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-pings:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(Message{Type: "pong"}); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(Message{Type: "event", Data: ev}); err != nil {
				g.logger.WithError(err).Debug("websocket write error")
				return
			}
		}
	}
}
