// Package school 学校后台（用户与图书借出标记）- HTTP 处理
//
// 与借阅系统共享数据库但使用独立的表（school_users / buku）。
// 响应为不带信封的纯 JSON，错误体为 {"message": "..."}。
package school

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"librigo/internal/apiserver/auth"
	"librigo/internal/apiserver/response"
	"librigo/internal/shared/model"
	"librigo/internal/shared/storage"
	"librigo/pkg/logging"
)

// 对外消息
const (
	MsgOK               = "API Sekolah OK"
	MsgUserNotFound     = "User tidak ditemukan"
	MsgUserRequired     = "username dan password wajib diisi"
	MsgPasswordTooLong  = "Password maksimal 72 byte"
	MsgUsernameTaken    = "Username sudah digunakan"
	MsgUserDeleted      = "Berhasil menghapus user"
	MsgFetchFailed      = "Gagal mengambil data"
	MsgCreateFailed     = "Gagal menambah data"
	MsgUpdateFailed     = "Gagal memperbarui data"
	MsgDeleteFailed     = "Gagal menghapus data"
	MsgBukuRequired     = "Nama buku wajib diisi"
	MsgBukuCreated      = "Buku berhasil ditambahkan"
	MsgBukuNotFound     = "Buku tidak ditemukan"
	MsgBukuStatusBad    = "Status harus 'YA' atau 'TIDAK'"
	MsgBukuStatusUpdate = "Status buku berhasil diperbarui"
	MsgBukuDeleted      = "Buku berhasil dihapus"
	MsgServerError      = "Terjadi kesalahan server"
)

// Handler 学校后台 HTTP 处理器
type Handler struct {
	store        storage.SchoolStore
	logger       *logging.Logger
	now          func() time.Time
	exposeDetail bool
}

// Option 处理器选项
type Option func(*Handler)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(h *Handler) { h.now = now }
}

// WithLogger 设置日志器
func WithLogger(l *logging.Logger) Option {
	return func(h *Handler) { h.logger = l }
}

// WithExposeDetail 500 响应是否携带内部错误（仅开发环境）
func WithExposeDetail(on bool) Option {
	return func(h *Handler) { h.exposeDetail = on }
}

// NewHandler 创建学校后台处理器
func NewHandler(store storage.SchoolStore, opts ...Option) *Handler {
	h := &Handler{store: store, logger: logging.Default("school"), now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Root)

	mux.HandleFunc("GET /api/users", h.ListUsers)
	mux.HandleFunc("GET /api/users/{id}", h.GetUser)
	mux.HandleFunc("POST /api/users", h.CreateUser)
	mux.HandleFunc("PUT /api/users/{id}", h.UpdateUser)
	mux.HandleFunc("DELETE /api/users/{id}", h.DeleteUser)

	mux.HandleFunc("POST /buku/add", h.CreateBuku)
	mux.HandleFunc("GET /buku", h.ListBuku)
	mux.HandleFunc("GET /buku/{$}", h.ListBuku)
	mux.HandleFunc("GET /buku/{id}", h.GetBuku)
	mux.HandleFunc("PUT /buku/status/{id}", h.UpdateBukuStatus)
	mux.HandleFunc("DELETE /buku/{id}", h.DeleteBuku)
}

// Router 返回带 CORS 与请求日志的完整路由
func (h *Handler) Router(corsOrigin string) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return h.logRequests(cors(corsOrigin)(mux))
}

// ============================================================================
// 工具
// ============================================================================

func writeMessage(w http.ResponseWriter, status int, msg string) {
	response.JSON(w, status, map[string]string{"message": msg})
}

// serverError 500 响应；开发环境附带 error 字段
func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.WithContext(r.Context()).WithError(err).Error(msg, "method", r.Method, "path", r.URL.Path)
	body := map[string]string{"message": msg}
	if h.exposeDetail {
		body["error"] = err.Error()
	}
	response.JSON(w, http.StatusInternalServerError, body)
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil && id > 0
}

func decode(r *http.Request, dst any) error {
	err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20)).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Root 健康检查
// GET /
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(MsgOK))
}

// ============================================================================
// 用户
// ============================================================================

type userInput struct {
	Username *string `json:"username"`
	Password *string `json:"password"`
	Role     *string `json:"role"`
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// ListUsers 用户列表（id 倒序）
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListSchoolUsers(r.Context())
	if err != nil {
		h.serverError(w, r, MsgFetchFailed, err)
		return
	}
	response.JSON(w, http.StatusOK, users)
}

// GetUser 用户详情
// GET /api/users/{id}
func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, MsgUserNotFound)
		return
	}
	u, err := h.store.GetSchoolUser(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, MsgUserNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, MsgFetchFailed, err)
		return
	}
	response.JSON(w, http.StatusOK, u)
}

// CreateUser 新增用户
// POST /api/users
func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var in userInput
	if err := decode(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, MsgUserRequired)
		return
	}
	if deref(in.Username) == "" || deref(in.Password) == "" {
		writeMessage(w, http.StatusBadRequest, MsgUserRequired)
		return
	}
	if auth.PasswordTooLong(*in.Password) {
		writeMessage(w, http.StatusBadRequest, MsgPasswordTooLong)
		return
	}

	hash, err := auth.HashPassword(*in.Password)
	if err != nil {
		h.serverError(w, r, MsgCreateFailed, err)
		return
	}
	role := deref(in.Role)
	if role == "" {
		role = model.SchoolDefaultRole
	}
	u := &model.SchoolUser{Username: *in.Username, PasswordHash: hash, Role: role, CreatedAt: h.now().UTC()}
	if err := h.store.CreateSchoolUser(r.Context(), u); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			writeMessage(w, http.StatusConflict, MsgUsernameTaken)
			return
		}
		h.serverError(w, r, MsgCreateFailed, err)
		return
	}
	response.JSON(w, http.StatusCreated, u)
}

// UpdateUser 部分更新用户；提供新密码时重新哈希
// PUT /api/users/{id}
func (h *Handler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, MsgUserNotFound)
		return
	}
	var in userInput
	if err := decode(r, &in); err != nil {
		writeMessage(w, http.StatusBadRequest, MsgUpdateFailed)
		return
	}
	if auth.PasswordTooLong(deref(in.Password)) {
		writeMessage(w, http.StatusBadRequest, MsgPasswordTooLong)
		return
	}

	ctx := r.Context()
	u, err := h.store.GetSchoolUser(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, MsgUserNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, MsgUpdateFailed, err)
		return
	}

	if v := deref(in.Username); v != "" {
		u.Username = v
	}
	if v := deref(in.Role); v != "" {
		u.Role = v
	}
	if v := deref(in.Password); v != "" {
		hash, err := auth.HashPassword(v)
		if err != nil {
			h.serverError(w, r, MsgUpdateFailed, err)
			return
		}
		u.PasswordHash = hash
	}

	if err := h.store.UpdateSchoolUser(ctx, u); err != nil {
		switch {
		case errors.Is(err, storage.ErrDuplicate):
			writeMessage(w, http.StatusConflict, MsgUsernameTaken)
		case errors.Is(err, storage.ErrNotFound):
			writeMessage(w, http.StatusNotFound, MsgUserNotFound)
		default:
			h.serverError(w, r, MsgUpdateFailed, err)
		}
		return
	}
	response.JSON(w, http.StatusOK, u)
}

// DeleteUser 删除用户
// DELETE /api/users/{id}
func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, MsgUserNotFound)
		return
	}
	err := h.store.DeleteSchoolUser(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, MsgUserNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, MsgDeleteFailed, err)
		return
	}
	writeMessage(w, http.StatusOK, MsgUserDeleted)
}

// ============================================================================
// 图书
// ============================================================================

type bukuInput struct {
	NamaBuku string `json:"nama_buku"`
}

type statusInput struct {
	StatusPeminjaman model.LoanFlag `json:"status_peminjaman"`
}

// CreateBuku 新增图书（默认未借出）
// POST /buku/add
func (h *Handler) CreateBuku(w http.ResponseWriter, r *http.Request) {
	var in bukuInput
	if err := decode(r, &in); err != nil || in.NamaBuku == "" {
		writeMessage(w, http.StatusBadRequest, MsgBukuRequired)
		return
	}
	b := &model.Buku{NamaBuku: in.NamaBuku, StatusPeminjaman: model.LoanFlagNo, CreatedAt: h.now().UTC()}
	if err := h.store.CreateBuku(r.Context(), b); err != nil {
		h.serverError(w, r, MsgServerError, err)
		return
	}
	response.JSON(w, http.StatusCreated, map[string]any{"message": MsgBukuCreated, "id": b.ID})
}

// ListBuku 图书列表（id 倒序）
// GET /buku
func (h *Handler) ListBuku(w http.ResponseWriter, r *http.Request) {
	list, err := h.store.ListBuku(r.Context())
	if err != nil {
		h.serverError(w, r, MsgServerError, err)
		return
	}
	response.JSON(w, http.StatusOK, list)
}

// GetBuku 图书详情
// GET /buku/{id}
func (h *Handler) GetBuku(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, MsgBukuNotFound)
		return
	}
	b, err := h.store.GetBuku(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, MsgBukuNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, MsgServerError, err)
		return
	}
	response.JSON(w, http.StatusOK, b)
}

// UpdateBukuStatus 更新借出标记并写入 terakhir_diubah
// PUT /buku/status/{id}
func (h *Handler) UpdateBukuStatus(w http.ResponseWriter, r *http.Request) {
	var in statusInput
	if err := decode(r, &in); err != nil || !in.StatusPeminjaman.Valid() {
		writeMessage(w, http.StatusBadRequest, MsgBukuStatusBad)
		return
	}
	id, ok := pathID(r)
	if !ok {
		writeMessage(w, http.StatusNotFound, MsgBukuNotFound)
		return
	}
	err := h.store.UpdateBukuStatus(r.Context(), id, in.StatusPeminjaman, h.now().UTC())
	if errors.Is(err, storage.ErrNotFound) {
		writeMessage(w, http.StatusNotFound, MsgBukuNotFound)
		return
	}
	if err != nil {
		h.serverError(w, r, MsgServerError, err)
		return
	}
	writeMessage(w, http.StatusOK, MsgBukuStatusUpdate)
}

// DeleteBuku 删除图书；不存在也返回成功
// DELETE /buku/{id}
func (h *Handler) DeleteBuku(w http.ResponseWriter, r *http.Request) {
	if id, ok := pathID(r); ok {
		if err := h.store.DeleteBuku(r.Context(), id); err != nil && !errors.Is(err, storage.ErrNotFound) {
			h.serverError(w, r, MsgServerError, err)
			return
		}
	}
	writeMessage(w, http.StatusOK, MsgBukuDeleted)
}
