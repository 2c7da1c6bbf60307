// Package admin 管理员审批与看板 - HTTP 处理
package admin

import (
	"net/http"

	"librigo/internal/apiserver/auth"
	"librigo/internal/apiserver/response"
	"librigo/internal/lifecycle"
)

// Handler 管理员 HTTP 处理器
type Handler struct {
	engine *lifecycle.Engine
}

// NewHandler 创建管理员处理器
func NewHandler(engine *lifecycle.Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes 注册管理员路由（全部 AdminOnly）
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/requests", auth.AdminOnly(h.ListRequests))
	mux.HandleFunc("PUT /api/admin/requests/{id}/approve", auth.AdminOnly(h.Approve))
	mux.HandleFunc("PUT /api/admin/requests/{id}/reject", auth.AdminOnly(h.Reject))
	mux.HandleFunc("GET /api/admin/borrowings", auth.AdminOnly(h.ListBorrowings))
	mux.HandleFunc("GET /api/admin/stats", auth.AdminOnly(h.Stats))
}

// ListRequests 全部申请
// GET /api/admin/requests
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListRequestsForAdmin(r.Context())
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "", list)
}

// Approve 批准申请
// PUT /api/admin/requests/{id}/approve
func (h *Handler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := response.PathID(r, "id")
	if !ok {
		response.Error(w, http.StatusNotFound, lifecycle.MsgRequestNotPending)
		return
	}
	if err := h.engine.ApproveRequest(r.Context(), id); err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Request approved successfully", nil)
}

// Reject 拒绝申请
// PUT /api/admin/requests/{id}/reject
func (h *Handler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := response.PathID(r, "id")
	if !ok {
		response.Error(w, http.StatusNotFound, lifecycle.MsgRequestNotPending)
		return
	}
	if err := h.engine.RejectRequest(r.Context(), id); err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Request rejected successfully", nil)
}

// ListBorrowings 全部借阅记录
// GET /api/admin/borrowings
func (h *Handler) ListBorrowings(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.ListBorrowingsForAdmin(r.Context())
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "", list)
}

// Stats 看板统计
// GET /api/admin/stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.engine.Stats(r.Context())
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "", stats)
}
