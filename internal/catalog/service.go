// Package catalog 图书目录服务
//
// 只负责图书元数据（标题、作者、ISBN、简介、封面），不修改图书 status；
// status 由 lifecycle 引擎维护。
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"librigo/internal/shared/domainerr"
	"librigo/internal/shared/model"
	"librigo/internal/shared/storage"
	"librigo/pkg/logging"
)

// 对外消息
const (
	MsgTitleAuthorRequired = "Title and author are required"
	MsgISBNExists          = "ISBN already exists"
	MsgBookNotFound        = "Book not found"
	MsgBookBorrowed        = "Cannot delete book that is currently borrowed"
	MsgCoverUnavailable    = "Cover storage is not configured"
	MsgCoverNotImage       = "Cover must be an image"
	MsgCoverRequired       = "Cover file is required"
)

// Store 目录服务所需的存储能力
type Store interface {
	storage.BookStore
	storage.Transactor
}

// CoverStore 封面对象存储
type CoverStore interface {
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	KeyFromURL(rawURL string) (string, bool)
}

// CreateBookInput 创建图书参数；空串视为未提供
type CreateBookInput struct {
	Title       string
	Author      string
	ISBN        *string
	Description *string
	CoverImage  *string
}

// UpdateBookInput 部分更新参数
//
// nil 表示保持原值。Title/Author/ISBN 为空串时同样保持原值；
// Description/CoverImage 为空串时清空。
type UpdateBookInput struct {
	Title       *string
	Author      *string
	ISBN        *string
	Description *string
	CoverImage  *string
}

// Service 图书目录服务
type Service struct {
	store  Store
	covers CoverStore
	now    func() time.Time
	logger *logging.Logger
}

// Option 服务选项
type Option func(*Service)

// WithCoverStore 启用封面上传
func WithCoverStore(c CoverStore) Option {
	return func(s *Service) { s.covers = c }
}

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger 注入日志器
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// New 创建目录服务
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		now:    time.Now,
		logger: logging.Default("catalog"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CoversEnabled 是否配置了封面存储
func (s *Service) CoversEnabled() bool {
	return s.covers != nil
}

func nonEmpty(p *string) *string {
	if p == nil {
		return nil
	}
	return model.StringPtr(*p)
}

// Create 创建图书，初始状态为 available
func (s *Service) Create(ctx context.Context, in CreateBookInput) (*model.Book, error) {
	if in.Title == "" || in.Author == "" {
		return nil, domainerr.Invalid(MsgTitleAuthorRequired)
	}

	now := s.now().UTC()
	book := &model.Book{
		Title:       in.Title,
		Author:      in.Author,
		ISBN:        nonEmpty(in.ISBN),
		Description: nonEmpty(in.Description),
		CoverImage:  nonEmpty(in.CoverImage),
		Status:      model.BookStatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := s.store.WithTx(ctx, func(tx storage.LendingStore) error {
		if book.ISBN != nil {
			taken, err := tx.ISBNTaken(ctx, *book.ISBN, 0)
			if err != nil {
				return err
			}
			if taken {
				return domainerr.Conflict(MsgISBNExists)
			}
		}
		return isbnConflict(tx.CreateBook(ctx, book))
	})
	if err != nil {
		return nil, s.fail(ctx, "create", err)
	}
	return book, nil
}

// Update 部分更新图书元数据
func (s *Service) Update(ctx context.Context, bookID int64, in UpdateBookInput) (*model.Book, error) {
	var book *model.Book
	err := s.store.WithTx(ctx, func(tx storage.LendingStore) error {
		var err error
		book, err = tx.GetBook(ctx, bookID)
		if errors.Is(err, storage.ErrNotFound) {
			return domainerr.NotFound(MsgBookNotFound)
		}
		if err != nil {
			return err
		}

		if isbn := nonEmpty(in.ISBN); isbn != nil && (book.ISBN == nil || *book.ISBN != *isbn) {
			taken, err := tx.ISBNTaken(ctx, *isbn, bookID)
			if err != nil {
				return err
			}
			if taken {
				return domainerr.Conflict(MsgISBNExists)
			}
			book.ISBN = isbn
		}
		if in.Title != nil && *in.Title != "" {
			book.Title = *in.Title
		}
		if in.Author != nil && *in.Author != "" {
			book.Author = *in.Author
		}
		if in.Description != nil {
			book.Description = model.StringPtr(*in.Description)
		}
		if in.CoverImage != nil {
			book.CoverImage = model.StringPtr(*in.CoverImage)
		}
		book.UpdatedAt = s.now().UTC()

		return isbnConflict(tx.UpdateBookMetadata(ctx, book))
	})
	if err != nil {
		return nil, s.fail(ctx, "update", err)
	}
	return book, nil
}

// Delete 删除图书；借出中的图书不可删除，已归还的历史随图书级联删除
func (s *Service) Delete(ctx context.Context, bookID int64) error {
	var cover *string
	err := s.store.WithTx(ctx, func(tx storage.LendingStore) error {
		book, err := tx.GetBook(ctx, bookID)
		if errors.Is(err, storage.ErrNotFound) {
			return domainerr.NotFound(MsgBookNotFound)
		}
		if err != nil {
			return err
		}

		active, err := tx.HasActiveBorrowing(ctx, bookID)
		if err != nil {
			return err
		}
		if active {
			return domainerr.Conflict(MsgBookBorrowed)
		}
		cover = book.CoverImage
		return tx.DeleteBook(ctx, bookID)
	})
	if err != nil {
		return s.fail(ctx, "delete", err)
	}

	s.removeCover(ctx, cover)
	return nil
}

// Get 查询图书及当前借阅人
func (s *Service) Get(ctx context.Context, bookID int64) (*model.BookView, error) {
	v, err := s.store.GetBookView(ctx, bookID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domainerr.NotFound(MsgBookNotFound)
	}
	if err != nil {
		return nil, s.fail(ctx, "get", err)
	}
	return v, nil
}

// SetCover 上传封面并写入 cover_image
func (s *Service) SetCover(ctx context.Context, bookID int64, filename, contentType string, size int64, r io.Reader) (*model.Book, error) {
	if s.covers == nil {
		return nil, domainerr.Unavailable(MsgCoverUnavailable)
	}
	if r == nil || size <= 0 {
		return nil, domainerr.Invalid(MsgCoverRequired)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, domainerr.Invalid(MsgCoverNotImage)
	}
	if _, err := s.store.GetBook(ctx, bookID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domainerr.NotFound(MsgBookNotFound)
		}
		return nil, s.fail(ctx, "set_cover", err)
	}

	key := fmt.Sprintf("covers/%d/%s%s", bookID, uuid.NewString(), strings.ToLower(path.Ext(filename)))
	url, err := s.covers.Upload(ctx, key, r, size, contentType)
	if err != nil {
		return nil, s.fail(ctx, "set_cover", domainerr.Unavailable("Failed to upload cover").WithCause(err))
	}

	var (
		book *model.Book
		old  *string
	)
	err = s.store.WithTx(ctx, func(tx storage.LendingStore) error {
		var err error
		book, err = tx.GetBook(ctx, bookID)
		if errors.Is(err, storage.ErrNotFound) {
			return domainerr.NotFound(MsgBookNotFound)
		}
		if err != nil {
			return err
		}
		old = book.CoverImage
		book.CoverImage = &url
		book.UpdatedAt = s.now().UTC()
		return tx.UpdateBookMetadata(ctx, book)
	})
	if err != nil {
		s.removeCover(ctx, &url)
		return nil, s.fail(ctx, "set_cover", err)
	}

	s.removeCover(ctx, old)
	return book, nil
}

// removeCover 尽力删除本服务上传的封面对象；外部 URL 不处理
func (s *Service) removeCover(ctx context.Context, coverURL *string) {
	if s.covers == nil || coverURL == nil {
		return
	}
	key, ok := s.covers.KeyFromURL(*coverURL)
	if !ok {
		return
	}
	if err := s.covers.Delete(ctx, key); err != nil {
		s.logger.WithContext(ctx).WithError(err).Warn("delete cover object failed", "key", key)
	}
}

// isbnConflict ISBN 唯一约束冲突映射为业务冲突
func isbnConflict(err error) error {
	if errors.Is(err, storage.ErrDuplicate) {
		return domainerr.Conflict(MsgISBNExists).WithCause(err)
	}
	return err
}

func (s *Service) fail(ctx context.Context, op string, err error) error {
	var de *domainerr.Error
	if errors.As(err, &de) {
		if de.Cause != nil {
			s.logger.WithContext(ctx).WithError(de.Cause).Warn("catalog operation rejected", "op", op)
		}
		return de
	}
	s.logger.WithContext(ctx).WithError(err).Error("catalog operation failed", "op", op)
	return domainerr.Internal(err)
}
