// Package book 图书领域 - HTTP 处理
package book

import (
	"errors"
	"net/http"

	"librigo/internal/apiserver/auth"
	"librigo/internal/apiserver/response"
	"librigo/internal/catalog"
	"librigo/internal/lifecycle"
	"librigo/internal/shared/domainerr"
)

// 封面上传上限
const maxCoverBytes = 5 << 20

// MsgCoverTooLarge 封面超过上限
const MsgCoverTooLarge = "Cover must be at most 5MB"

// Handler 图书领域 HTTP 处理器
type Handler struct {
	catalog *catalog.Service
	engine  *lifecycle.Engine
}

// NewHandler 创建图书处理器
//
// 列表走 lifecycle 引擎（带借阅人投影），写操作走目录服务。
func NewHandler(svc *catalog.Service, engine *lifecycle.Engine) *Handler {
	return &Handler{catalog: svc, engine: engine}
}

// RegisterRoutes 注册图书相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/books", auth.RequireAuth(h.List))
	mux.HandleFunc("GET /api/books/{id}", auth.RequireAuth(h.Get))
	mux.HandleFunc("POST /api/books", auth.AdminOnly(h.Create))
	mux.HandleFunc("PUT /api/books/{id}", auth.AdminOnly(h.Update))
	mux.HandleFunc("PUT /api/books/{id}/cover", auth.AdminOnly(h.UploadCover))
	mux.HandleFunc("DELETE /api/books/{id}", auth.AdminOnly(h.Delete))
}

// ============================================================================
// 请求类型
// ============================================================================

type createRequest struct {
	Title       string  `json:"title" validate:"required"`
	Author      string  `json:"author" validate:"required"`
	ISBN        *string `json:"isbn"`
	Description *string `json:"description"`
	CoverImage  *string `json:"cover_image"`
}

type updateRequest struct {
	Title       *string `json:"title"`
	Author      *string `json:"author"`
	ISBN        *string `json:"isbn"`
	Description *string `json:"description"`
	CoverImage  *string `json:"cover_image"`
}

// ============================================================================
// HTTP 处理函数
// ============================================================================

// List 图书列表
// GET /api/books
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	books, err := h.engine.ListCatalog(r.Context())
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "", books)
}

// Get 图书详情
// GET /api/books/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := response.PathID(r, "id")
	if !ok {
		response.Error(w, http.StatusNotFound, catalog.MsgBookNotFound)
		return
	}
	book, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "", book)
}

// Create 创建图书
// POST /api/books
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := response.Bind(r, &req, catalog.MsgTitleAuthorRequired); err != nil {
		response.Fail(w, r, err)
		return
	}
	book, err := h.catalog.Create(r.Context(), catalog.CreateBookInput{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Description: req.Description,
		CoverImage:  req.CoverImage,
	})
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusCreated, "Book created successfully", book)
}

// Update 部分更新图书元数据
// PUT /api/books/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := response.PathID(r, "id")
	if !ok {
		response.Error(w, http.StatusNotFound, catalog.MsgBookNotFound)
		return
	}
	var req updateRequest
	if err := response.Bind(r, &req, response.MsgInvalidBody); err != nil {
		response.Fail(w, r, err)
		return
	}
	book, err := h.catalog.Update(r.Context(), id, catalog.UpdateBookInput{
		Title:       req.Title,
		Author:      req.Author,
		ISBN:        req.ISBN,
		Description: req.Description,
		CoverImage:  req.CoverImage,
	})
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Book updated successfully", book)
}

// UploadCover 上传封面（multipart 字段 cover）
// PUT /api/books/{id}/cover
func (h *Handler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, ok := response.PathID(r, "id")
	if !ok {
		response.Error(w, http.StatusNotFound, catalog.MsgBookNotFound)
		return
	}
	if !h.catalog.CoversEnabled() {
		response.Fail(w, r, domainerr.Unavailable(catalog.MsgCoverUnavailable))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCoverBytes+(1<<20))
	if err := r.ParseMultipartForm(maxCoverBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusBadRequest, MsgCoverTooLarge)
			return
		}
		response.Error(w, http.StatusBadRequest, catalog.MsgCoverRequired)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("cover")
	if err != nil {
		response.Error(w, http.StatusBadRequest, catalog.MsgCoverRequired)
		return
	}
	defer file.Close()
	if header.Size > maxCoverBytes {
		response.Error(w, http.StatusBadRequest, MsgCoverTooLarge)
		return
	}

	book, err := h.catalog.SetCover(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Cover uploaded successfully", book)
}

// Delete 删除图书
// DELETE /api/books/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := response.PathID(r, "id")
	if !ok {
		response.Error(w, http.StatusNotFound, catalog.MsgBookNotFound)
		return
	}
	if err := h.catalog.Delete(r.Context(), id); err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Book deleted successfully", nil)
}
