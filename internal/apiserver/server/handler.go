// Package server 路由配置与核心基础设施
//
// 本文件定义 HTTP API 路由，将请求分发到各领域独立包：
//   - auth: 注册 / 登录 / 当前用户
//   - book: 图书目录
//   - borrowing: 用户侧借阅
//   - admin: 审批与看板
//   - feed: 管理端 WebSocket 事件推送
//
// 仍保留在本包的模块：
//   - system.go: 根信息 / 健康检查 / OpenAPI 文档 / 404
//   - middleware.go: recover / request-id / 日志 / CORS / 超时
//   - metrics.go: Prometheus 指标
package server

import (
	"context"
	"net/http"
	"time"

	"librigo/internal/apiserver/admin"
	"librigo/internal/apiserver/auth"
	"librigo/internal/apiserver/book"
	"librigo/internal/apiserver/borrowing"
	"librigo/internal/apiserver/feed"
	"librigo/internal/catalog"
	"librigo/internal/lifecycle"
	"librigo/internal/shared/eventbus"
	"librigo/pkg/logging"
)

// Version API 版本
const Version = "1.0.0"

// Pinger 健康检查依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options 路由行为配置
type Options struct {
	CORSOrigin     string
	RequestTimeout time.Duration
}

// Deps Handler 依赖
type Deps struct {
	DB      Pinger
	Auth    *auth.Service
	Engine  *lifecycle.Engine
	Catalog *catalog.Service
	Events  eventbus.Subscriber
	Metrics *Metrics
	Logger  *logging.Logger
	Options Options
}

// Handler API 处理器
type Handler struct {
	db      Pinger
	auth    *auth.Service
	engine  *lifecycle.Engine
	catalog *catalog.Service
	gateway *feed.Gateway
	metrics *Metrics
	logger  *logging.Logger
	opts    Options
	now     func() time.Time
}

// NewHandler 创建 Handler 实例
func NewHandler(d Deps) *Handler {
	h := &Handler{
		db:      d.DB,
		auth:    d.Auth,
		engine:  d.Engine,
		catalog: d.Catalog,
		metrics: d.Metrics,
		logger:  d.Logger,
		opts:    d.Options,
		now:     time.Now,
	}
	if h.metrics == nil {
		h.metrics = NewMetrics("librigo")
	}
	if h.logger == nil {
		h.logger = logging.Default("http")
	}
	events := d.Events
	if events == nil {
		events = eventbus.NewNoOpBus()
	}
	h.gateway = feed.NewGateway(events,
		feed.WithGauge(h.metrics.WSConnectionsActive),
		feed.WithAllowedOrigin(h.opts.CORSOrigin),
	)
	return h
}

// GetMetrics 返回指标实例
func (h *Handler) GetMetrics() *Metrics {
	return h.metrics
}

// Router 返回配置好的 HTTP 路由
//
// 路由规则：
//
// 系统:
//   - GET /                  - API 信息
//   - GET /health            - 健康检查（数据库不可达时 503）
//   - GET /metrics           - Prometheus 指标
//   - GET /api/openapi.yaml  - OpenAPI 文档
//
// 认证 (Auth):
//   - POST /api/auth/register
//   - POST /api/auth/login
//   - GET  /api/auth/me
//
// 图书 (Book):
//   - GET    /api/books
//   - GET    /api/books/{id}
//   - POST   /api/books            (admin)
//   - PUT    /api/books/{id}       (admin)
//   - PUT    /api/books/{id}/cover (admin)
//   - DELETE /api/books/{id}       (admin)
//
// 借阅 (Borrowing):
//   - POST /api/borrowing/request
//   - GET  /api/borrowing/my-books
//   - GET  /api/borrowing/history
//   - GET  /api/borrowing/my-requests
//   - POST /api/borrowing/return/{id}
//
// 管理 (Admin):
//   - GET /api/admin/requests
//   - PUT /api/admin/requests/{id}/approve
//   - PUT /api/admin/requests/{id}/reject
//   - GET /api/admin/borrowings
//   - GET /api/admin/stats
//
// WebSocket:
//   - GET /ws/admin/events?token=  - 生命周期事件推送 (admin)
func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.Root)
	mux.HandleFunc("GET /health", h.Health)
	mux.Handle("GET /metrics", h.metrics.Handler())
	mux.HandleFunc("GET /api/openapi.yaml", h.OpenAPI)

	auth.NewHandler(h.auth).RegisterRoutes(mux)
	book.NewHandler(h.catalog, h.engine).RegisterRoutes(mux)
	borrowing.NewHandler(h.engine).RegisterRoutes(mux)
	admin.NewHandler(h.engine).RegisterRoutes(mux)

	mux.HandleFunc("/", h.NotFound)

	authCfg := h.auth.Config()

	// REST API：超时 → 认证 → 路由
	var apiHandler http.Handler = capturePattern(mux)
	apiHandler = auth.Middleware(authCfg)(apiHandler)
	apiHandler = timeoutMiddleware(h.opts.RequestTimeout)(apiHandler)
	apiHandler = corsMiddleware(h.opts.CORSOrigin)(apiHandler)
	apiHandler = h.metrics.MetricsMiddleware(apiHandler)

	// WebSocket 绕过超时与指标中间件（长连接）
	wsMux := http.NewServeMux()
	h.gateway.RegisterRoutes(wsMux)
	wsHandler := auth.Middleware(authCfg)(wsMux)

	topMux := http.NewServeMux()
	topMux.Handle("/ws/", wsHandler)
	topMux.Handle("/", apiHandler)

	return recoverMiddleware(h.logger)(requestIDMiddleware(loggingMiddleware(h.logger)(topMux)))
}
