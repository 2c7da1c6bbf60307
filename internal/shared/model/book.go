// Package model 定义核心数据模型
//
// book.go 包含图书相关模型：
//   - Book：目录中的图书
//   - BookStatus：图书可借状态
//   - BookView：带当前借阅人的列表视图
package model

import "time"

// BookStatus 图书状态
type BookStatus string

const (
	BookStatusAvailable BookStatus = "available"
	BookStatusBorrowed  BookStatus = "borrowed"
)

// Valid 是否为合法状态
func (s BookStatus) Valid() bool {
	return s == BookStatusAvailable || s == BookStatusBorrowed
}

// Book 图书
//
// Status 只由借阅生命周期引擎修改，目录服务只负责元数据字段。
type Book struct {
	BookID      int64      `json:"book_id" db:"book_id"`
	Title       string     `json:"title" db:"title"`
	Author      string     `json:"author" db:"author"`
	ISBN        *string    `json:"isbn" db:"isbn"`
	Description *string    `json:"description" db:"description"`
	CoverImage  *string    `json:"cover_image" db:"cover_image"`
	Status      BookStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// IsAvailable 是否可借
func (b *Book) IsAvailable() bool {
	return b.Status == BookStatusAvailable
}

// BookView 图书列表视图
// BorrowedBy 在查询时通过 LEFT JOIN 计算，不落库
type BookView struct {
	Book
	BorrowedBy *string `json:"borrowed_by"`
}

// StringPtr 返回字符串指针，空串返回 nil
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
