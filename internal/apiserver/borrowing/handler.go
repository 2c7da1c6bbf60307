// Package borrowing 借阅领域（用户侧）- HTTP 处理
package borrowing

import (
	"net/http"

	"librigo/internal/apiserver/auth"
	"librigo/internal/apiserver/response"
	"librigo/internal/lifecycle"
)

// Handler 借阅 HTTP 处理器
type Handler struct {
	engine *lifecycle.Engine
}

// NewHandler 创建借阅处理器
func NewHandler(engine *lifecycle.Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes 注册借阅相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/borrowing/request", auth.RequireAuth(h.Request))
	mux.HandleFunc("GET /api/borrowing/my-books", auth.RequireAuth(h.MyBooks))
	mux.HandleFunc("GET /api/borrowing/history", auth.RequireAuth(h.History))
	mux.HandleFunc("GET /api/borrowing/my-requests", auth.RequireAuth(h.MyRequests))
	mux.HandleFunc("POST /api/borrowing/return/{id}", auth.RequireAuth(h.Return))
}

type borrowRequest struct {
	BookID int64 `json:"book_id" validate:"required"`
}

// Request 提交借阅申请
// POST /api/borrowing/request
func (h *Handler) Request(w http.ResponseWriter, r *http.Request) {
	var req borrowRequest
	if err := response.Bind(r, &req, lifecycle.MsgBookIDRequired); err != nil {
		response.Fail(w, r, err)
		return
	}
	created, err := h.engine.SubmitRequest(r.Context(), auth.PrincipalFrom(r.Context()), req.BookID)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusCreated, "Borrow request submitted successfully", created)
}

// MyBooks 当前借出的图书
// GET /api/borrowing/my-books
func (h *Handler) MyBooks(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.MyBooks(r.Context(), auth.PrincipalFrom(r.Context()))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "", list)
}

// History 全部借阅历史
// GET /api/borrowing/history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.MyHistory(r.Context(), auth.PrincipalFrom(r.Context()))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "", list)
}

// MyRequests 自己的借阅申请
// GET /api/borrowing/my-requests
func (h *Handler) MyRequests(w http.ResponseWriter, r *http.Request) {
	list, err := h.engine.MyRequests(r.Context(), auth.PrincipalFrom(r.Context()))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "", list)
}

// Return 归还图书（只能归还自己的借阅）
// POST /api/borrowing/return/{id}
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := response.PathID(r, "id")
	if !ok {
		response.Error(w, http.StatusNotFound, lifecycle.MsgBorrowingNotActive)
		return
	}
	if err := h.engine.ReturnBook(r.Context(), auth.PrincipalFrom(r.Context()), id); err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Book returned successfully", nil)
}
