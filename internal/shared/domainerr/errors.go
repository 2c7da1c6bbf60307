// Package domainerr 业务错误
//
// Error 携带一个 containerd/errdefs 错误类别（Kind）和一条面向调用方的消息。
// 业务层只构造错误，HTTP 层通过 errdefs.IsXxx 判断类别并映射状态码。
package domainerr

import (
	"errors"

	"github.com/containerd/errdefs"
)

// Error 业务错误
type Error struct {
	Kind    error  // errdefs.ErrNotFound 等
	Message string // 对外消息
	Cause   error  // 底层错误（可选，不对外暴露）
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap 同时暴露类别与底层错误，errors.Is 可匹配任一
func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// WithCause 附加底层错误
func (e *Error) WithCause(cause error) *Error {
	return &Error{Kind: e.Kind, Message: e.Message, Cause: cause}
}

func newError(kind error, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Invalid 参数错误
func Invalid(msg string) *Error { return newError(errdefs.ErrInvalidArgument, msg) }

// NotFound 资源不存在
func NotFound(msg string) *Error { return newError(errdefs.ErrNotFound, msg) }

// Conflict 状态冲突（不可借、重复申请、仍在借出等）
func Conflict(msg string) *Error { return newError(errdefs.ErrConflict, msg) }

// Unauthenticated 未认证
func Unauthenticated(msg string) *Error { return newError(errdefs.ErrUnauthenticated, msg) }

// Forbidden 无权限
func Forbidden(msg string) *Error { return newError(errdefs.ErrPermissionDenied, msg) }

// TooMany 请求过多
func TooMany(msg string) *Error { return newError(errdefs.ErrResourceExhausted, msg) }

// Unavailable 依赖服务不可用
func Unavailable(msg string) *Error { return newError(errdefs.ErrUnavailable, msg) }

// Internal 内部错误，消息固定为 "Server error"
func Internal(cause error) *Error {
	return &Error{Kind: errdefs.ErrInternal, Message: "Server error", Cause: cause}
}

// Message 返回对外消息；非业务错误返回空字符串
func Message(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}
