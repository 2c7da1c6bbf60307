// Package response 统一 JSON 响应信封与错误映射
//
// 所有接口返回 {success, message?, data?, error?}。
// error 只在开发环境携带内部细节。
package response

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync/atomic"

	"github.com/containerd/errdefs"

	"librigo/internal/shared/domainerr"
	"librigo/pkg/logging"
)

// Envelope 响应信封
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// MsgServerError 未预期错误的对外消息
const MsgServerError = "Server error"

var exposeDetail atomic.Bool

// SetExposeDetail 是否在 error 字段返回内部细节（仅开发环境开启）
func SetExposeDetail(on bool) {
	exposeDetail.Store(on)
}

// JSON 写出任意 JSON
func JSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[response] encode error: %v", err)
	}
}

// OK 成功响应
func OK(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Error 失败响应
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Message: message})
}

// StatusOf 按错误类别映射 HTTP 状态码
//
// Conflict 映射为 400 以保持既有客户端行为。
func StatusOf(err error) int {
	switch {
	case errdefs.IsInvalidArgument(err), errdefs.IsConflict(err), errdefs.IsAlreadyExists(err):
		return http.StatusBadRequest
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsUnauthorized(err):
		return http.StatusUnauthorized
	case errdefs.IsPermissionDenied(err):
		return http.StatusForbidden
	case errdefs.IsResourceExhausted(err):
		return http.StatusTooManyRequests
	case errdefs.IsUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Fail 将业务错误写成响应
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	var de *domainerr.Error
	isDomain := errors.As(err, &de)

	status := http.StatusInternalServerError
	if isDomain {
		status = StatusOf(err)
	}
	env := Envelope{Success: false, Message: domainerr.Message(err)}
	if status == http.StatusInternalServerError || env.Message == "" {
		env.Message = MsgServerError
	}
	if status >= http.StatusInternalServerError {
		logger.WithContext(r.Context()).WithError(err).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "status", status)
	}
	if exposeDetail.Load() && (!isDomain || de.Cause != nil) {
		env.Error = err.Error()
	}
	JSON(w, status, env)
}

var logger = logging.Default("http")

// SetLogger 替换错误日志器
func SetLogger(l *logging.Logger) {
	logger = l
}
