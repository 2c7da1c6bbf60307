// Package auth 用户认证：JWT 令牌、密码哈希、HTTP 中间件
package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"librigo/internal/shared/model"
)

// contextKey context 键类型
type contextKey string

const (
	ctxKeyPrincipal    contextKey = "principal"
	ctxKeyInvalidToken contextKey = "invalid_token"
)

// Principal 已认证的调用方
type Principal = model.Principal

// Config 认证配置
type Config struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// DefaultTokenTTL 访问令牌默认有效期
const DefaultTokenTTL = 24 * time.Hour

func (c Config) ttl() time.Duration {
	if c.TokenTTL <= 0 {
		return DefaultTokenTTL
	}
	return c.TokenTTL
}

// ============================================================================
// 密码哈希
// ============================================================================

// passwordCost bcrypt 代价
const passwordCost = 10

// MaxPasswordBytes bcrypt 可接受的最大密码长度
const MaxPasswordBytes = 72

// PasswordTooLong 密码是否超出 bcrypt 上限
func PasswordTooLong(password string) bool {
	return len(password) > MaxPasswordBytes
}

// HashPassword 使用 bcrypt 哈希密码
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), passwordCost)
	return string(bytes), err
}

// CheckPassword 验证密码
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ============================================================================
// JWT Token
// ============================================================================

// Claims JWT 声明
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Role     string `json:"role"`
	Type     string `json:"type"` // 固定为 "access"
}

// GenerateAccessToken 生成访问令牌
func GenerateAccessToken(cfg Config, p *Principal, now time.Time) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(p.UserID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(cfg.ttl())),
		},
		Username: p.Username,
		Role:     string(p.Role),
		Type:     "access",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}

// ParseToken 解析并验证访问令牌
func ParseToken(cfg Config, tokenString string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(cfg.JWTSecret), nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Type != "access" {
		return nil, fmt.Errorf("invalid token type %q", claims.Type)
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	return &Principal{UserID: id, Username: claims.Username, Role: model.UserRole(claims.Role)}, nil
}

// ============================================================================
// Context 辅助函数
// ============================================================================

// WithPrincipal 将调用方注入 context
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, ctxKeyPrincipal, p)
}

// PrincipalFrom 从 context 获取调用方，未认证返回 nil
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(ctxKeyPrincipal).(*Principal)
	return p
}

func withInvalidToken(ctx context.Context) context.Context {
	return context.WithValue(ctx, ctxKeyInvalidToken, true)
}

func hadInvalidToken(ctx context.Context) bool {
	v, _ := ctx.Value(ctxKeyInvalidToken).(bool)
	return v
}
