package model

import "time"

// UserRole 用户角色
type UserRole string

const (
	UserRoleAdmin UserRole = "admin"
	UserRoleUser  UserRole = "user"
)

// User 用户
type User struct {
	UserID       int64     `json:"user_id" db:"user_id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password"` // never expose in JSON
	Role         UserRole  `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// IsAdmin 是否管理员
func (u *User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// RegistrationCode 注册码（一次性）
// IsUsed 从 false 变为 true 后不可逆
type RegistrationCode struct {
	CodeID    int64      `json:"code_id" db:"code_id"`
	Code      string     `json:"code" db:"code"`
	IsUsed    bool       `json:"is_used" db:"is_used"`
	UsedBy    *int64     `json:"used_by" db:"used_by"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UsedAt    *time.Time `json:"used_at" db:"used_at"`
}

// Principal 已认证的调用方（来自访问令牌）
type Principal struct {
	UserID   int64    `json:"user_id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

// IsAdmin 是否管理员
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == UserRoleAdmin
}
