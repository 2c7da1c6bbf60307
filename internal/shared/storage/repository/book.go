package repository

import (
	"context"
	"database/sql"
	"time"

	"librigo/internal/shared/model"
)

const bookColumns = `b.book_id, b.title, b.author, b.isbn, b.description, b.cover_image, b.status, b.created_at, b.updated_at`

// bookViewSelect 图书 + 当前借阅人（borrowed 记录至多一条，LEFT JOIN 不会放大行数）
const bookViewSelect = `SELECT ` + bookColumns + `, u.username
	FROM books b
	LEFT JOIN borrowings br ON br.book_id = b.book_id AND br.status = 'borrowed'
	LEFT JOIN users u ON u.user_id = br.user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBook(row rowScanner, dest ...any) (*model.Book, error) {
	b := &model.Book{}
	fields := []any{&b.BookID, &b.Title, &b.Author, &b.ISBN, &b.Description, &b.CoverImage,
		&b.Status, &b.CreatedAt, &b.UpdatedAt}
	if err := row.Scan(append(fields, dest...)...); err != nil {
		return nil, err
	}
	return b, nil
}

func scanBookView(row rowScanner) (*model.BookView, error) {
	var borrowedBy sql.NullString
	b, err := scanBook(row, &borrowedBy)
	if err != nil {
		return nil, err
	}
	v := &model.BookView{Book: *b}
	if borrowedBy.Valid {
		v.BorrowedBy = &borrowedBy.String
	}
	return v, nil
}

// CreateBook 创建图书
func (s *Store) CreateBook(ctx context.Context, book *model.Book) error {
	id, err := s.insert(ctx, "book_id",
		`INSERT INTO books (title, author, isbn, description, cover_image, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		book.Title, book.Author, book.ISBN, book.Description, book.CoverImage,
		book.Status, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return err
	}
	book.BookID = id
	return nil
}

// GetBook 通过 ID 查找图书
func (s *Store) GetBook(ctx context.Context, id int64) (*model.Book, error) {
	b, err := scanBook(s.queryRow(ctx,
		`SELECT `+bookColumns+` FROM books b WHERE b.book_id = $1`, id))
	if err != nil {
		return nil, s.translate(err)
	}
	return b, nil
}

// GetBookView 查询图书及当前借阅人
func (s *Store) GetBookView(ctx context.Context, id int64) (*model.BookView, error) {
	v, err := scanBookView(s.queryRow(ctx, bookViewSelect+` WHERE b.book_id = $1`, id))
	if err != nil {
		return nil, s.translate(err)
	}
	return v, nil
}

// ListBookViews 列出所有图书（最新入库在前）
func (s *Store) ListBookViews(ctx context.Context) ([]*model.BookView, error) {
	rows, err := s.query(ctx, bookViewSelect+` ORDER BY b.created_at DESC, b.book_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	books := []*model.BookView{}
	for rows.Next() {
		v, err := scanBookView(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, v)
	}
	return books, rows.Err()
}

// UpdateBookMetadata 更新图书元数据
func (s *Store) UpdateBookMetadata(ctx context.Context, book *model.Book) error {
	res, err := s.exec(ctx,
		`UPDATE books SET title = $1, author = $2, isbn = $3, description = $4, cover_image = $5, updated_at = $6
		 WHERE book_id = $7`,
		book.Title, book.Author, book.ISBN, book.Description, book.CoverImage, book.UpdatedAt, book.BookID,
	)
	if err != nil {
		return s.translate(err)
	}
	return expectOne(res)
}

// TransitionBookStatus 条件更新图书状态
func (s *Store) TransitionBookStatus(ctx context.Context, id int64, from, to model.BookStatus, at time.Time) error {
	res, err := s.exec(ctx,
		`UPDATE books SET status = $1, updated_at = $2 WHERE book_id = $3 AND status = $4`,
		to, at, id, from,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteBook 删除图书
func (s *Store) DeleteBook(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM books WHERE book_id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ISBNTaken 检查 ISBN 是否被其他图书占用
func (s *Store) ISBNTaken(ctx context.Context, isbn string, excludeID int64) (bool, error) {
	return s.exists(ctx,
		`SELECT COUNT(*) FROM books WHERE isbn = $1 AND book_id <> $2`, isbn, excludeID)
}
