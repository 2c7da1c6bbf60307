package model

import "time"

// ============================================================================
// BorrowRequest - 借阅申请
// ============================================================================

// RequestStatus 借阅申请状态
//
// 状态转换：
//
//	pending → approved
//	pending → rejected
//
// approved / rejected 为终态，不可再变更。
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusApproved RequestStatus = "approved"
	RequestStatusRejected RequestStatus = "rejected"
)

// IsTerminal 是否为终态
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusApproved || s == RequestStatusRejected
}

// Rank 管理端列表排序权重：pending 最前
func (s RequestStatus) Rank() int {
	switch s {
	case RequestStatusPending:
		return 1
	case RequestStatusApproved:
		return 2
	case RequestStatusRejected:
		return 3
	default:
		return 4
	}
}

// BorrowRequest 借阅申请
// 同一 (user, book) 同时最多一条 pending
type BorrowRequest struct {
	RequestID   int64         `json:"request_id" db:"request_id"`
	UserID      int64         `json:"user_id" db:"user_id"`
	BookID      int64         `json:"book_id" db:"book_id"`
	Status      RequestStatus `json:"status" db:"status"`
	RequestDate time.Time     `json:"request_date" db:"request_date"`
}

// RequestView 申请列表视图（关联用户与图书）
type RequestView struct {
	BorrowRequest
	Username   string  `json:"username"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	ISBN       *string `json:"isbn"`
	CoverImage *string `json:"cover_image"`
}

// ============================================================================
// Borrowing - 借阅记录
// ============================================================================

// BorrowingStatus 借阅状态
type BorrowingStatus string

const (
	BorrowingStatusBorrowed BorrowingStatus = "borrowed"
	BorrowingStatusReturned BorrowingStatus = "returned"
)

// Rank 管理端列表排序权重：借出中最前
func (s BorrowingStatus) Rank() int {
	switch s {
	case BorrowingStatusBorrowed:
		return 1
	case BorrowingStatusReturned:
		return 2
	default:
		return 3
	}
}

// Borrowing 借阅记录
//
// 每本书同时最多一条 borrowed 记录；
// ReturnDate 仅在 returned 时设置，设置后不再变化。
type Borrowing struct {
	BorrowingID int64           `json:"borrowing_id" db:"borrowing_id"`
	UserID      int64           `json:"user_id" db:"user_id"`
	BookID      int64           `json:"book_id" db:"book_id"`
	Status      BorrowingStatus `json:"status" db:"status"`
	BorrowDate  time.Time       `json:"borrow_date" db:"borrow_date"`
	ReturnDate  *time.Time      `json:"return_date" db:"return_date"`
}

// IsActive 是否借出中
func (b *Borrowing) IsActive() bool {
	return b.Status == BorrowingStatusBorrowed
}

// BorrowingView 借阅列表视图
type BorrowingView struct {
	Borrowing
	Username   string  `json:"username,omitempty"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	ISBN       *string `json:"isbn"`
	CoverImage *string `json:"cover_image"`
}

// DashboardStats 管理端统计
type DashboardStats struct {
	TotalBooks      int64 `json:"totalBooks"`
	AvailableBooks  int64 `json:"availableBooks"`
	BorrowedBooks   int64 `json:"borrowedBooks"`
	TotalUsers      int64 `json:"totalUsers"`
	PendingRequests int64 `json:"pendingRequests"`
}
