// Package storage 定义持久化存储层抽象接口
//
// 设计原则：依赖倒置 (DIP)
//   - 调用方只依赖接口，不知道具体实现
//   - 具体实现在 repository/，方言差异在 driver/
//   - 初始化时通过依赖注入传入实现
//
// 所有状态迁移类写操作都是条件更新（WHERE status = 旧状态），
// 未命中时返回 ErrNotFound，由业务层决定对外语义。
package storage

import (
	"context"
	"time"

	"librigo/internal/shared/model"
)

// ============================================================================
// 图书
// ============================================================================

// BookStore 图书存储接口
type BookStore interface {
	// CreateBook 创建图书，回填 BookID；ISBN 冲突返回 ErrDuplicate
	CreateBook(ctx context.Context, book *model.Book) error
	// GetBook 查询图书，不存在返回 ErrNotFound
	GetBook(ctx context.Context, id int64) (*model.Book, error)
	// GetBookView 查询图书及当前借阅人
	GetBookView(ctx context.Context, id int64) (*model.BookView, error)
	// ListBookViews 按 created_at DESC 列出所有图书及当前借阅人
	ListBookViews(ctx context.Context) ([]*model.BookView, error)
	// UpdateBookMetadata 更新元数据字段（不含 status）
	UpdateBookMetadata(ctx context.Context, book *model.Book) error
	// TransitionBookStatus 条件更新图书状态，当前状态不是 from 时返回 ErrNotFound
	TransitionBookStatus(ctx context.Context, id int64, from, to model.BookStatus, at time.Time) error
	// DeleteBook 删除图书，级联删除其申请与借阅历史
	DeleteBook(ctx context.Context, id int64) error
	// ISBNTaken 检查 ISBN 是否已被其他图书使用（excludeID 为 0 表示不排除）
	ISBNTaken(ctx context.Context, isbn string, excludeID int64) (bool, error)
}

// ============================================================================
// 借阅申请 / 借阅记录
// ============================================================================

// RequestFilter 申请列表过滤条件
type RequestFilter struct {
	UserID int64 // 0 表示全部用户
}

// RequestStore 借阅申请存储接口
type RequestStore interface {
	// CreateRequest 创建 pending 申请；同一 (user, book) 已有 pending 时返回 ErrDuplicate
	CreateRequest(ctx context.Context, req *model.BorrowRequest) error
	// GetRequest 查询申请
	GetRequest(ctx context.Context, id int64) (*model.BorrowRequest, error)
	// HasPendingRequest 是否存在 pending 申请
	HasPendingRequest(ctx context.Context, userID, bookID int64) (bool, error)
	// TransitionRequest 条件更新申请状态，返回更新后的申请；未命中返回 ErrNotFound
	TransitionRequest(ctx context.Context, id int64, from, to model.RequestStatus) (*model.BorrowRequest, error)
	// ListRequestViews 按 pending/approved/rejected、request_date DESC 排序
	ListRequestViews(ctx context.Context, filter RequestFilter) ([]*model.RequestView, error)
}

// BorrowingFilter 借阅列表过滤条件
type BorrowingFilter struct {
	UserID     int64 // 0 表示全部用户
	ActiveOnly bool  // 只返回 borrowed
}

// BorrowingStore 借阅记录存储接口
type BorrowingStore interface {
	// CreateBorrowing 创建借出记录；该书已有借出记录时返回 ErrDuplicate
	CreateBorrowing(ctx context.Context, b *model.Borrowing) error
	// ReturnBorrowing 条件更新 borrowed → returned（限定借阅人），未命中返回 ErrNotFound
	ReturnBorrowing(ctx context.Context, id, userID int64, at time.Time) (*model.Borrowing, error)
	// HasActiveBorrowing 该书是否存在借出记录
	HasActiveBorrowing(ctx context.Context, bookID int64) (bool, error)
	// ListBorrowingViews 列出借阅记录
	ListBorrowingViews(ctx context.Context, filter BorrowingFilter) ([]*model.BorrowingView, error)
}

// StatsStore 统计接口
type StatsStore interface {
	DashboardStats(ctx context.Context) (*model.DashboardStats, error)
}

// ============================================================================
// 用户 / 注册码
// ============================================================================

// UserStore 用户存储接口
type UserStore interface {
	// CreateUser 创建用户，回填 UserID；用户名冲突返回 ErrDuplicate
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	UpdateUserRole(ctx context.Context, id int64, role model.UserRole) error
}

// RegistrationCodeStore 注册码存储接口
type RegistrationCodeStore interface {
	CreateRegistrationCode(ctx context.Context, code *model.RegistrationCode) error
	// ConsumeRegistrationCode 条件更新 is_used false → true，未命中返回 ErrNotFound
	ConsumeRegistrationCode(ctx context.Context, code string, userID int64, at time.Time) error
	ListRegistrationCodes(ctx context.Context) ([]*model.RegistrationCode, error)
}

// ============================================================================
// 学校后台
// ============================================================================

// SchoolStore 学校后台存储接口
type SchoolStore interface {
	CreateSchoolUser(ctx context.Context, u *model.SchoolUser) error
	GetSchoolUser(ctx context.Context, id int64) (*model.SchoolUser, error)
	ListSchoolUsers(ctx context.Context) ([]*model.SchoolUser, error)
	UpdateSchoolUser(ctx context.Context, u *model.SchoolUser) error
	DeleteSchoolUser(ctx context.Context, id int64) error

	CreateBuku(ctx context.Context, b *model.Buku) error
	GetBuku(ctx context.Context, id int64) (*model.Buku, error)
	ListBuku(ctx context.Context) ([]*model.Buku, error)
	UpdateBukuStatus(ctx context.Context, id int64, status model.LoanFlag, at time.Time) error
	DeleteBuku(ctx context.Context, id int64) error
}

// ============================================================================
// 组合接口
// ============================================================================

// LendingStore 借阅生命周期所需的全部存储能力
type LendingStore interface {
	BookStore
	RequestStore
	BorrowingStore
	StatsStore
	UserStore
	RegistrationCodeStore
}

// Transactor 事务执行器
//
// fn 收到的 LendingStore 绑定在同一事务上；fn 返回 nil 时提交，否则回滚。
type Transactor interface {
	WithTx(ctx context.Context, fn func(tx LendingStore) error) error
}

// PersistentStore 持久化存储完整接口
type PersistentStore interface {
	LendingStore
	SchoolStore
	Transactor
	Ping(ctx context.Context) error
	Close() error
}
