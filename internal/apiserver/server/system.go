package server

import (
	"context"
	"net/http"
	"time"

	"librigo/api"
	"librigo/internal/apiserver/response"
)

// 对外消息
const (
	MsgNotFound       = "Endpoint not found"
	MsgServerRunning  = "Server is running"
	MsgDBUnavailable  = "Database unavailable"
	healthPingTimeout = 2 * time.Second
)

// Root API 信息
// GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	response.OK(w, http.StatusOK, "LibriGo API Server", map[string]any{
		"version": Version,
		"endpoints": map[string]string{
			"auth":      "/api/auth",
			"books":     "/api/books",
			"borrowing": "/api/borrowing",
			"admin":     "/api/admin",
			"events":    "/ws/admin/events",
			"openapi":   "/api/openapi.yaml",
		},
	})
}

// Health 健康检查
// GET /health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()

	data := map[string]any{
		"status":    "ok",
		"database":  "ok",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	}
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			h.logger.WithContext(ctx).WithError(err).Warn("health check: database ping failed")
			data["status"] = "degraded"
			data["database"] = "unreachable"
			response.JSON(w, http.StatusServiceUnavailable, response.Envelope{
				Success: false,
				Message: MsgDBUnavailable,
				Data:    data,
			})
			return
		}
	}
	response.OK(w, http.StatusOK, MsgServerRunning, data)
}

// OpenAPI 内嵌的 OpenAPI 文档
// GET /api/openapi.yaml
func (h *Handler) OpenAPI(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.WriteHeader(http.StatusOK)
	w.Write(api.OpenAPISpec)
}

// NotFound 未知路由
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	response.Error(w, http.StatusNotFound, MsgNotFound)
}
