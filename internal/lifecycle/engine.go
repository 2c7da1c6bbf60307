// Package lifecycle 借阅生命周期引擎
//
// 状态机：
//
//	申请  pending → approved | rejected（终态不可变）
//	借阅  borrowed → returned（return_date 只写一次）
//	图书  available ⇄ borrowed
//
// 所有迁移都是存储层的条件更新，并在同一事务内完成；
// 图书 status、申请 status、借阅 status/return_date 只由本包写入。
package lifecycle

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"librigo/internal/shared/domainerr"
	"librigo/internal/shared/eventbus"
	"librigo/internal/shared/model"
	"librigo/internal/shared/storage"
	"librigo/pkg/logging"
)

// 对外消息
const (
	MsgBookIDRequired     = "Book ID is required"
	MsgBookNotFound       = "Book not found"
	MsgBookNotAvailable   = "Book is not available"
	MsgDuplicatePending   = "You already have a pending request for this book"
	MsgRequestNotPending  = "Request not found or already processed"
	MsgBookNoLongerAvail  = "Book is no longer available"
	MsgBorrowingNotActive = "Borrowing record not found or already returned"
	MsgAccessRequired     = "Access token required"
)

// Transition 迁移名称（指标与日志标签）
type Transition string

const (
	TransitionSubmit  Transition = "submit"
	TransitionApprove Transition = "approve"
	TransitionReject  Transition = "reject"
	TransitionReturn  Transition = "return"
)

// Store 引擎所需的存储能力
type Store interface {
	storage.LendingStore
	storage.Transactor
}

// Engine 借阅生命周期引擎
type Engine struct {
	store     Store
	now       func() time.Time
	publisher eventbus.Publisher
	metrics   Recorder
	logger    *logging.Logger
}

// Option 引擎选项
type Option func(*Engine)

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithPublisher 注入事件发布器
func WithPublisher(p eventbus.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithMetrics 注入指标记录器
func WithMetrics(r Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

// WithLogger 注入日志器
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New 创建引擎
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		now:       time.Now,
		publisher: eventbus.NewNoOpBus(),
		metrics:   noopRecorder{},
		logger:    logging.Default("lifecycle"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) clock() time.Time {
	return e.now().UTC()
}

// ============================================================================
// 状态迁移
// ============================================================================

// SubmitRequest 提交借阅申请
func (e *Engine) SubmitRequest(ctx context.Context, p *model.Principal, bookID int64) (*model.BorrowRequest, error) {
	if p == nil {
		return nil, domainerr.Unauthenticated(MsgAccessRequired)
	}
	if bookID == 0 {
		return nil, domainerr.Invalid(MsgBookIDRequired)
	}

	var req *model.BorrowRequest
	err := e.store.WithTx(ctx, func(tx storage.LendingStore) error {
		book, err := tx.GetBook(ctx, bookID)
		if errors.Is(err, storage.ErrNotFound) {
			return domainerr.NotFound(MsgBookNotFound)
		}
		if err != nil {
			return err
		}
		if !book.IsAvailable() {
			return domainerr.Conflict(MsgBookNotAvailable)
		}

		pending, err := tx.HasPendingRequest(ctx, p.UserID, bookID)
		if err != nil {
			return err
		}
		if pending {
			return domainerr.Conflict(MsgDuplicatePending)
		}

		req = &model.BorrowRequest{
			UserID:      p.UserID,
			BookID:      bookID,
			Status:      model.RequestStatusPending,
			RequestDate: e.clock(),
		}
		if err := tx.CreateRequest(ctx, req); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return domainerr.Conflict(MsgDuplicatePending).WithCause(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, e.fail(ctx, TransitionSubmit, err)
	}

	e.succeed(ctx, TransitionSubmit, &eventbus.LifecycleEvent{
		Type:      eventbus.EventRequestSubmitted,
		RequestID: req.RequestID,
		BookID:    req.BookID,
		UserID:    req.UserID,
	})
	return req, nil
}

// ApproveRequest 批准申请：申请 → approved，图书 → borrowed，新增借阅记录
//
// 三步在同一事务内完成，任一步失败整体回滚。
// 图书已不可借时申请保持 pending，不会被自动拒绝。
func (e *Engine) ApproveRequest(ctx context.Context, requestID int64) error {
	var borrowing *model.Borrowing
	err := e.store.WithTx(ctx, func(tx storage.LendingStore) error {
		req, err := tx.TransitionRequest(ctx, requestID, model.RequestStatusPending, model.RequestStatusApproved)
		if errors.Is(err, storage.ErrNotFound) {
			return domainerr.NotFound(MsgRequestNotPending)
		}
		if err != nil {
			return err
		}

		now := e.clock()
		err = tx.TransitionBookStatus(ctx, req.BookID, model.BookStatusAvailable, model.BookStatusBorrowed, now)
		if errors.Is(err, storage.ErrNotFound) {
			return domainerr.Conflict(MsgBookNoLongerAvail)
		}
		if err != nil {
			return err
		}

		borrowing = &model.Borrowing{
			UserID:     req.UserID,
			BookID:     req.BookID,
			Status:     model.BorrowingStatusBorrowed,
			BorrowDate: now,
		}
		if err := tx.CreateBorrowing(ctx, borrowing); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return domainerr.Conflict(MsgBookNoLongerAvail).WithCause(err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		return e.fail(ctx, TransitionApprove, err)
	}

	e.succeed(ctx, TransitionApprove, &eventbus.LifecycleEvent{
		Type:        eventbus.EventRequestApproved,
		RequestID:   requestID,
		BorrowingID: borrowing.BorrowingID,
		BookID:      borrowing.BookID,
		UserID:      borrowing.UserID,
	})
	return nil
}

// RejectRequest 拒绝申请
func (e *Engine) RejectRequest(ctx context.Context, requestID int64) error {
	req, err := e.store.TransitionRequest(ctx, requestID, model.RequestStatusPending, model.RequestStatusRejected)
	if errors.Is(err, storage.ErrNotFound) {
		err = domainerr.NotFound(MsgRequestNotPending)
	}
	if err != nil {
		return e.fail(ctx, TransitionReject, err)
	}

	e.succeed(ctx, TransitionReject, &eventbus.LifecycleEvent{
		Type:      eventbus.EventRequestRejected,
		RequestID: req.RequestID,
		BookID:    req.BookID,
		UserID:    req.UserID,
	})
	return nil
}

// ReturnBook 归还图书
//
// 借阅记录不存在、已归还或不属于调用方，统一返回同一个 NotFound。
func (e *Engine) ReturnBook(ctx context.Context, p *model.Principal, borrowingID int64) error {
	if p == nil {
		return domainerr.Unauthenticated(MsgAccessRequired)
	}

	var returned *model.Borrowing
	err := e.store.WithTx(ctx, func(tx storage.LendingStore) error {
		now := e.clock()
		b, err := tx.ReturnBorrowing(ctx, borrowingID, p.UserID, now)
		if errors.Is(err, storage.ErrNotFound) {
			return domainerr.NotFound(MsgBorrowingNotActive)
		}
		if err != nil {
			return err
		}

		// 借出中的记录对应的图书必然是 borrowed，否则数据已不一致
		if err := tx.TransitionBookStatus(ctx, b.BookID, model.BookStatusBorrowed, model.BookStatusAvailable, now); err != nil {
			return err
		}
		returned = b
		return nil
	})
	if err != nil {
		return e.fail(ctx, TransitionReturn, err)
	}

	e.succeed(ctx, TransitionReturn, &eventbus.LifecycleEvent{
		Type:        eventbus.EventBookReturned,
		BorrowingID: returned.BorrowingID,
		BookID:      returned.BookID,
		UserID:      returned.UserID,
	})
	return nil
}

// ============================================================================
// 查询
// ============================================================================

// ListCatalog 图书列表（带当前借阅人）
func (e *Engine) ListCatalog(ctx context.Context) ([]*model.BookView, error) {
	list, err := e.store.ListBookViews(ctx)
	if err != nil {
		return nil, e.failQuery(ctx, "list_catalog", err)
	}
	return list, nil
}

// ListRequestsForAdmin 全部申请，pending 在前
func (e *Engine) ListRequestsForAdmin(ctx context.Context) ([]*model.RequestView, error) {
	list, err := e.store.ListRequestViews(ctx, storage.RequestFilter{})
	if err != nil {
		return nil, e.failQuery(ctx, "list_requests", err)
	}
	return list, nil
}

// ListBorrowingsForAdmin 全部借阅记录，借出中在前
func (e *Engine) ListBorrowingsForAdmin(ctx context.Context) ([]*model.BorrowingView, error) {
	list, err := e.store.ListBorrowingViews(ctx, storage.BorrowingFilter{})
	if err != nil {
		return nil, e.failQuery(ctx, "list_borrowings", err)
	}
	return list, nil
}

// MyBooks 调用方当前借出中的图书
func (e *Engine) MyBooks(ctx context.Context, p *model.Principal) ([]*model.BorrowingView, error) {
	if p == nil {
		return nil, domainerr.Unauthenticated(MsgAccessRequired)
	}
	list, err := e.store.ListBorrowingViews(ctx, storage.BorrowingFilter{UserID: p.UserID, ActiveOnly: true})
	if err != nil {
		return nil, e.failQuery(ctx, "my_books", err)
	}
	return list, nil
}

// MyHistory 调用方全部借阅记录
func (e *Engine) MyHistory(ctx context.Context, p *model.Principal) ([]*model.BorrowingView, error) {
	if p == nil {
		return nil, domainerr.Unauthenticated(MsgAccessRequired)
	}
	list, err := e.store.ListBorrowingViews(ctx, storage.BorrowingFilter{UserID: p.UserID})
	if err != nil {
		return nil, e.failQuery(ctx, "my_history", err)
	}
	return list, nil
}

// MyRequests 调用方的申请
func (e *Engine) MyRequests(ctx context.Context, p *model.Principal) ([]*model.RequestView, error) {
	if p == nil {
		return nil, domainerr.Unauthenticated(MsgAccessRequired)
	}
	list, err := e.store.ListRequestViews(ctx, storage.RequestFilter{UserID: p.UserID})
	if err != nil {
		return nil, e.failQuery(ctx, "my_requests", err)
	}
	return list, nil
}

// Stats 管理端统计
func (e *Engine) Stats(ctx context.Context) (*model.DashboardStats, error) {
	stats, err := e.store.DashboardStats(ctx)
	if err != nil {
		return nil, e.failQuery(ctx, "stats", err)
	}
	e.metrics.ObserveStats(stats)
	return stats, nil
}

// ============================================================================
// 内部
// ============================================================================

// succeed 记录指标并尽力发布事件；发布失败只记日志
func (e *Engine) succeed(ctx context.Context, t Transition, ev *eventbus.LifecycleEvent) {
	e.metrics.RecordTransition(t, OutcomeOK)

	ev.ID = uuid.NewString()
	ev.Timestamp = e.clock()
	e.logger.WithContext(ctx).TransitionLog(string(t),
		"borrow_request_id", ev.RequestID, "borrowing_id", ev.BorrowingID, "book_id", ev.BookID)

	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.WithContext(ctx).WithError(err).Warn("publish lifecycle event failed", "type", string(ev.Type))
	}
}

// fail 业务错误原样返回，其余包装为 Internal
func (e *Engine) fail(ctx context.Context, t Transition, err error) error {
	e.metrics.RecordTransition(t, outcomeOf(err))

	var de *domainerr.Error
	if errors.As(err, &de) {
		return de
	}
	e.logger.WithContext(ctx).WithError(err).Error("lifecycle transition failed", "transition", string(t))
	return domainerr.Internal(err)
}

func (e *Engine) failQuery(ctx context.Context, op string, err error) error {
	e.logger.WithContext(ctx).WithError(err).Error("lifecycle query failed", "op", op)
	return domainerr.Internal(err)
}
