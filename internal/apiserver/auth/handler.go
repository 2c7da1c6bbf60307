package auth

import (
	"net/http"

	"librigo/internal/apiserver/response"
)

// Handler 认证 HTTP 处理器
type Handler struct {
	svc *Service
}

// NewHandler 创建认证处理器
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes 注册认证相关路由
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)
	mux.HandleFunc("GET /api/auth/me", RequireAuth(h.Me))
}

// ============================================================================
// 请求/响应类型
// ============================================================================

type registerRequest struct {
	Username         string `json:"username" validate:"required"`
	Password         string `json:"password" validate:"required"`
	RegistrationCode string `json:"registrationCode" validate:"required"`
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// ============================================================================
// Handlers
// ============================================================================

// Register 用户注册
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := response.Bind(r, &req, MsgAllFieldsRequired); err != nil {
		response.Fail(w, r, err)
		return
	}

	user, err := h.svc.Register(r.Context(), req.Username, req.Password, req.RegistrationCode)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusCreated, "Registration successful", &Principal{
		UserID:   user.UserID,
		Username: user.Username,
		Role:     user.Role,
	})
}

// Login 用户登录
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := response.Bind(r, &req, MsgCredentialsRequired); err != nil {
		response.Fail(w, r, err)
		return
	}

	result, err := h.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "Login successful", result)
}

// Me 获取当前用户信息
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.Me(r.Context(), PrincipalFrom(r.Context()))
	if err != nil {
		response.Fail(w, r, err)
		return
	}
	response.OK(w, http.StatusOK, "", user)
}
