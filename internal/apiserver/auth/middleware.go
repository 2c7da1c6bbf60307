package auth

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"librigo/internal/apiserver/response"
	"librigo/pkg/logging"
)

// 对外消息
const (
	MsgTokenRequired = "Access token required"
	MsgTokenInvalid  = "Invalid or expired token"
	MsgAdminRequired = "Admin access required"
)

var logger = logging.Default("auth")

// Middleware 解析访问令牌并注入调用方
//
// 只识别身份，不拒绝请求；拒绝由 RequireAuth / AdminOnly 按路由决定。
// WebSocket 握手无法自定义请求头，允许通过 ?token= 传递令牌。
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" && websocket.IsWebSocketUpgrade(r) {
				token = r.URL.Query().Get("token")
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			p, err := ParseToken(cfg, token)
			if err != nil {
				logger.WithContext(ctx).Debug("token rejected", "error", err.Error())
				next.ServeHTTP(w, r.WithContext(withInvalidToken(ctx)))
				return
			}
			ctx = WithPrincipal(ctx, p)
			ctx = logging.ContextWithUserID(ctx, p.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RequireAuth 需要登录的路由
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if PrincipalFrom(r.Context()) == nil {
			msg := MsgTokenRequired
			if hadInvalidToken(r.Context()) {
				msg = MsgTokenInvalid
			}
			response.Error(w, http.StatusUnauthorized, msg)
			return
		}
		next(w, r)
	}
}

// AdminOnly 管理员专属路由（隐含 RequireAuth）
func AdminOnly(next http.HandlerFunc) http.HandlerFunc {
	return RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !PrincipalFrom(r.Context()).IsAdmin() {
			response.Error(w, http.StatusForbidden, MsgAdminRequired)
			return
		}
		next(w, r)
	})
}
