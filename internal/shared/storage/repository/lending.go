package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"librigo/internal/shared/model"
	"librigo/internal/shared/storage"
)

// ============================================================================
// 借阅申请
// ============================================================================

// CreateRequest 创建借阅申请
func (s *Store) CreateRequest(ctx context.Context, req *model.BorrowRequest) error {
	id, err := s.insert(ctx, "request_id",
		`INSERT INTO borrowing_requests (user_id, book_id, status, request_date)
		 VALUES ($1, $2, $3, $4)`,
		req.UserID, req.BookID, req.Status, req.RequestDate,
	)
	if err != nil {
		return err
	}
	req.RequestID = id
	return nil
}

// GetRequest 通过 ID 查找申请
func (s *Store) GetRequest(ctx context.Context, id int64) (*model.BorrowRequest, error) {
	r := &model.BorrowRequest{}
	err := s.queryRow(ctx,
		`SELECT request_id, user_id, book_id, status, request_date
		 FROM borrowing_requests WHERE request_id = $1`, id,
	).Scan(&r.RequestID, &r.UserID, &r.BookID, &r.Status, &r.RequestDate)
	if err != nil {
		return nil, s.translate(err)
	}
	return r, nil
}

// HasPendingRequest 是否存在 pending 申请
func (s *Store) HasPendingRequest(ctx context.Context, userID, bookID int64) (bool, error) {
	return s.exists(ctx,
		`SELECT COUNT(*) FROM borrowing_requests WHERE user_id = $1 AND book_id = $2 AND status = 'pending'`,
		userID, bookID)
}

// TransitionRequest 条件更新申请状态
func (s *Store) TransitionRequest(ctx context.Context, id int64, from, to model.RequestStatus) (*model.BorrowRequest, error) {
	res, err := s.exec(ctx,
		`UPDATE borrowing_requests SET status = $1 WHERE request_id = $2 AND status = $3`,
		to, id, from,
	)
	if err != nil {
		return nil, err
	}
	if err := expectOne(res); err != nil {
		return nil, err
	}
	return s.GetRequest(ctx, id)
}

// requestOrder pending → approved → rejected，同组内最新在前
const requestOrder = ` ORDER BY CASE r.status
		WHEN 'pending' THEN 1
		WHEN 'approved' THEN 2
		WHEN 'rejected' THEN 3
		ELSE 4 END,
	r.request_date DESC, r.request_id DESC`

// ListRequestViews 列出借阅申请
func (s *Store) ListRequestViews(ctx context.Context, filter storage.RequestFilter) ([]*model.RequestView, error) {
	q := `SELECT r.request_id, r.user_id, r.book_id, r.status, r.request_date,
			u.username, b.title, b.author, b.isbn, b.cover_image
		FROM borrowing_requests r
		JOIN users u ON u.user_id = r.user_id
		JOIN books b ON b.book_id = r.book_id`
	var args []any
	if filter.UserID != 0 {
		q += ` WHERE r.user_id = $1`
		args = append(args, filter.UserID)
	}

	rows, err := s.query(ctx, q+requestOrder, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*model.RequestView{}
	for rows.Next() {
		v := &model.RequestView{}
		if err := rows.Scan(&v.RequestID, &v.UserID, &v.BookID, &v.Status, &v.RequestDate,
			&v.Username, &v.Title, &v.Author, &v.ISBN, &v.CoverImage); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// ============================================================================
// 借阅记录
// ============================================================================

// CreateBorrowing 创建借出记录
func (s *Store) CreateBorrowing(ctx context.Context, b *model.Borrowing) error {
	id, err := s.insert(ctx, "borrowing_id",
		`INSERT INTO borrowings (user_id, book_id, status, borrow_date)
		 VALUES ($1, $2, $3, $4)`,
		b.UserID, b.BookID, b.Status, b.BorrowDate,
	)
	if err != nil {
		return err
	}
	b.BorrowingID = id
	return nil
}

// ReturnBorrowing 归还：仅借阅人本人、且仍处于 borrowed 时命中
func (s *Store) ReturnBorrowing(ctx context.Context, id, userID int64, at time.Time) (*model.Borrowing, error) {
	res, err := s.exec(ctx,
		`UPDATE borrowings SET status = 'returned', return_date = $1
		 WHERE borrowing_id = $2 AND user_id = $3 AND status = 'borrowed'`,
		at, id, userID,
	)
	if err != nil {
		return nil, err
	}
	if err := expectOne(res); err != nil {
		return nil, err
	}

	b := &model.Borrowing{}
	err = s.queryRow(ctx,
		`SELECT borrowing_id, user_id, book_id, status, borrow_date, return_date
		 FROM borrowings WHERE borrowing_id = $1`, id,
	).Scan(&b.BorrowingID, &b.UserID, &b.BookID, &b.Status, &b.BorrowDate, &b.ReturnDate)
	if err != nil {
		return nil, s.translate(err)
	}
	return b, nil
}

// HasActiveBorrowing 该书是否借出中
func (s *Store) HasActiveBorrowing(ctx context.Context, bookID int64) (bool, error) {
	return s.exists(ctx,
		`SELECT COUNT(*) FROM borrowings WHERE book_id = $1 AND status = 'borrowed'`, bookID)
}

// ListBorrowingViews 列出借阅记录
//
// 管理端（不限用户）：borrowed 在前，再按 borrow_date DESC；
// 用户端：按 borrow_date DESC。
func (s *Store) ListBorrowingViews(ctx context.Context, filter storage.BorrowingFilter) ([]*model.BorrowingView, error) {
	q := `SELECT br.borrowing_id, br.user_id, br.book_id, br.status, br.borrow_date, br.return_date,
			u.username, b.title, b.author, b.isbn, b.cover_image
		FROM borrowings br
		JOIN users u ON u.user_id = br.user_id
		JOIN books b ON b.book_id = br.book_id`

	var (
		conds []string
		args  []any
	)
	if filter.UserID != 0 {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("br.user_id = $%d", len(args)))
	}
	if filter.ActiveOnly {
		conds = append(conds, "br.status = 'borrowed'")
	}
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	if filter.UserID == 0 {
		q += ` ORDER BY CASE br.status WHEN 'borrowed' THEN 1 WHEN 'returned' THEN 2 ELSE 3 END,`
	} else {
		q += ` ORDER BY`
	}
	q += ` br.borrow_date DESC, br.borrowing_id DESC`

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*model.BorrowingView{}
	for rows.Next() {
		v := &model.BorrowingView{}
		if err := rows.Scan(&v.BorrowingID, &v.UserID, &v.BookID, &v.Status, &v.BorrowDate, &v.ReturnDate,
			&v.Username, &v.Title, &v.Author, &v.ISBN, &v.CoverImage); err != nil {
			return nil, err
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

// ============================================================================
// 统计
// ============================================================================

// DashboardStats 管理端统计
func (s *Store) DashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	st := &model.DashboardStats{}
	err := s.queryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM books),
			(SELECT COUNT(*) FROM books WHERE status = 'available'),
			(SELECT COUNT(*) FROM books WHERE status = 'borrowed'),
			(SELECT COUNT(*) FROM users WHERE role = 'user'),
			(SELECT COUNT(*) FROM borrowing_requests WHERE status = 'pending')`,
	).Scan(&st.TotalBooks, &st.AvailableBooks, &st.BorrowedBooks, &st.TotalUsers, &st.PendingRequests)
	if err != nil {
		return nil, err
	}
	return st, nil
}
