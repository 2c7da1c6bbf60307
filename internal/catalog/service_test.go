package catalog

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/containerd/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librigo/internal/shared/domainerr"
	"librigo/internal/shared/model"
	"librigo/internal/shared/storage/dbutil"
	"librigo/internal/shared/storage/repository"
	"librigo/pkg/logging"
)

const coverPrefix = "http://covers.test/librigo/"

// fakeCovers 内存封面存储
type fakeCovers struct {
	objects   map[string][]byte
	deleted   []string
	uploadErr error
}

func newFakeCovers() *fakeCovers {
	return &fakeCovers{objects: map[string][]byte{}}
}

func (c *fakeCovers) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if c.uploadErr != nil {
		return "", c.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	c.objects[key] = data
	return coverPrefix + key, nil
}

func (c *fakeCovers) Delete(ctx context.Context, key string) error {
	delete(c.objects, key)
	c.deleted = append(c.deleted, key)
	return nil
}

func (c *fakeCovers) KeyFromURL(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, coverPrefix) {
		return "", false
	}
	return strings.TrimPrefix(rawURL, coverPrefix), true
}

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestService(t *testing.T, opts ...Option) (*Service, *repository.Store) {
	t.Helper()
	store, err := repository.Open(dbutil.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	opts = append([]Option{WithClock(func() time.Time { return t0 }), WithLogger(logging.Discard())}, opts...)
	return New(store, opts...), store
}

func strp(s string) *string { return &s }

// lend 直接通过存储层制造一条借出记录
func lend(t *testing.T, store *repository.Store, bookID int64) *model.Borrowing {
	t.Helper()
	ctx := context.Background()
	u := &model.User{Username: "reader", PasswordHash: "x", Role: model.UserRoleUser, CreatedAt: t0}
	if existing, err := store.GetUserByUsername(ctx, "reader"); err == nil {
		u = existing
	} else {
		require.NoError(t, store.CreateUser(ctx, u))
	}
	require.NoError(t, store.TransitionBookStatus(ctx, bookID, model.BookStatusAvailable, model.BookStatusBorrowed, t0))
	b := &model.Borrowing{UserID: u.UserID, BookID: bookID, Status: model.BorrowingStatusBorrowed, BorrowDate: t0}
	require.NoError(t, store.CreateBorrowing(ctx, b))
	return b
}

// ============================================================================
// Create
// ============================================================================

func TestCreate(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	book, err := svc.Create(ctx, CreateBookInput{Title: "A", Author: "B"})
	require.NoError(t, err)
	assert.NotZero(t, book.BookID)
	assert.Equal(t, model.BookStatusAvailable, book.Status)
	assert.Nil(t, book.ISBN)
	assert.Equal(t, t0, book.CreatedAt)

	// 空串 ISBN 视为未提供，不参与唯一性检查
	_, err = svc.Create(ctx, CreateBookInput{Title: "C", Author: "D", ISBN: strp(""), Description: strp("")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateBookInput{Title: "E", Author: "F", ISBN: strp("")})
	require.NoError(t, err)
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	tests := []struct {
		name string
		in   CreateBookInput
	}{
		{"missing title", CreateBookInput{Author: "B"}},
		{"missing author", CreateBookInput{Title: "A"}},
		{"both missing", CreateBookInput{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.in)
			assert.True(t, errdefs.IsInvalidArgument(err))
			assert.Equal(t, MsgTitleAuthorRequired, domainerr.Message(err))
		})
	}
}

func TestCreate_DuplicateISBN(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	_, err := svc.Create(ctx, CreateBookInput{Title: "A", Author: "B", ISBN: strp("978-1")})
	require.NoError(t, err)
	_, err = svc.Create(ctx, CreateBookInput{Title: "C", Author: "D", ISBN: strp("978-1")})
	assert.True(t, errdefs.IsConflict(err))
	assert.Equal(t, MsgISBNExists, domainerr.Message(err))
}

// ============================================================================
// Update
// ============================================================================

func TestUpdate_Partial(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	book, err := svc.Create(ctx, CreateBookInput{Title: "A", Author: "B", ISBN: strp("978-1"), Description: strp("old")})
	require.NoError(t, err)

	// 空串的 title/author/isbn 保持原值
	updated, err := svc.Update(ctx, book.BookID, UpdateBookInput{Title: strp(""), Author: strp("New Author"), ISBN: strp("")})
	require.NoError(t, err)
	assert.Equal(t, "A", updated.Title)
	assert.Equal(t, "New Author", updated.Author)
	require.NotNil(t, updated.ISBN)
	assert.Equal(t, "978-1", *updated.ISBN)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "old", *updated.Description)

	// description 空串表示清空
	updated, err = svc.Update(ctx, book.BookID, UpdateBookInput{Description: strp("")})
	require.NoError(t, err)
	assert.Nil(t, updated.Description)

	got, err := svc.Get(ctx, book.BookID)
	require.NoError(t, err)
	assert.Equal(t, "New Author", got.Author)
	assert.Nil(t, got.Description)
	assert.Equal(t, model.BookStatusAvailable, got.Status)
}

func TestUpdate_ISBN(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	a, err := svc.Create(ctx, CreateBookInput{Title: "A", Author: "B", ISBN: strp("111")})
	require.NoError(t, err)
	b, err := svc.Create(ctx, CreateBookInput{Title: "C", Author: "D", ISBN: strp("222")})
	require.NoError(t, err)

	// 改成自己当前的 ISBN 不算冲突
	_, err = svc.Update(ctx, a.BookID, UpdateBookInput{ISBN: strp("111")})
	require.NoError(t, err)

	_, err = svc.Update(ctx, b.BookID, UpdateBookInput{ISBN: strp("111")})
	assert.True(t, errdefs.IsConflict(err))
	assert.Equal(t, MsgISBNExists, domainerr.Message(err))

	updated, err := svc.Update(ctx, b.BookID, UpdateBookInput{ISBN: strp("333")})
	require.NoError(t, err)
	assert.Equal(t, "333", *updated.ISBN)
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Update(context.Background(), 404, UpdateBookInput{Title: strp("x")})
	assert.True(t, errdefs.IsNotFound(err))
	assert.Equal(t, MsgBookNotFound, domainerr.Message(err))
}

func TestUpdate_DoesNotTouchStatus(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)
	book, err := svc.Create(ctx, CreateBookInput{Title: "A", Author: "B"})
	require.NoError(t, err)
	lend(t, store, book.BookID)

	updated, err := svc.Update(ctx, book.BookID, UpdateBookInput{Title: strp("A2")})
	require.NoError(t, err)
	assert.Equal(t, model.BookStatusBorrowed, updated.Status)

	got, err := svc.Get(ctx, book.BookID)
	require.NoError(t, err)
	assert.Equal(t, model.BookStatusBorrowed, got.Status)
	require.NotNil(t, got.BorrowedBy)
	assert.Equal(t, "reader", *got.BorrowedBy)
}

// ============================================================================
// Delete
// ============================================================================

func TestDelete(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t)

	t.Run("not found", func(t *testing.T) {
		err := svc.Delete(ctx, 404)
		assert.True(t, errdefs.IsNotFound(err))
	})

	t.Run("active loan blocks delete", func(t *testing.T) {
		book, err := svc.Create(ctx, CreateBookInput{Title: "A", Author: "B"})
		require.NoError(t, err)
		lend(t, store, book.BookID)

		err = svc.Delete(ctx, book.BookID)
		assert.True(t, errdefs.IsConflict(err))
		assert.Equal(t, MsgBookBorrowed, domainerr.Message(err))
		_, err = svc.Get(ctx, book.BookID)
		assert.NoError(t, err)
	})

	t.Run("returned history only", func(t *testing.T) {
		book, err := svc.Create(ctx, CreateBookInput{Title: "C", Author: "D"})
		require.NoError(t, err)
		b := lend(t, store, book.BookID)
		_, err = store.ReturnBorrowing(ctx, b.BorrowingID, b.UserID, t0.Add(time.Hour))
		require.NoError(t, err)
		require.NoError(t, store.TransitionBookStatus(ctx, book.BookID, model.BookStatusBorrowed, model.BookStatusAvailable, t0))

		require.NoError(t, svc.Delete(ctx, book.BookID))
		_, err = svc.Get(ctx, book.BookID)
		assert.True(t, errdefs.IsNotFound(err))
	})
}

// ============================================================================
// SetCover
// ============================================================================

func TestSetCover_Unconfigured(t *testing.T) {
	svc, _ := newTestService(t)
	assert.False(t, svc.CoversEnabled())
	_, err := svc.SetCover(context.Background(), 1, "a.png", "image/png", 3, bytes.NewReader([]byte("png")))
	assert.True(t, errdefs.IsUnavailable(err))
}

func TestSetCover(t *testing.T) {
	ctx := context.Background()
	covers := newFakeCovers()
	svc, _ := newTestService(t, WithCoverStore(covers))
	book, err := svc.Create(ctx, CreateBookInput{Title: "A", Author: "B", CoverImage: strp("https://elsewhere.example/a.jpg")})
	require.NoError(t, err)

	updated, err := svc.SetCover(ctx, book.BookID, "Front.PNG", "image/png", 3, bytes.NewReader([]byte("png")))
	require.NoError(t, err)
	require.NotNil(t, updated.CoverImage)
	assert.True(t, strings.HasPrefix(*updated.CoverImage, coverPrefix+"covers/"))
	assert.True(t, strings.HasSuffix(*updated.CoverImage, ".png"))
	assert.Len(t, covers.objects, 1)
	assert.Empty(t, covers.deleted, "foreign cover URL is left alone")

	// 替换封面时删除旧对象
	first := *updated.CoverImage
	updated, err = svc.SetCover(ctx, book.BookID, "back.jpg", "image/jpeg", 3, bytes.NewReader([]byte("jpg")))
	require.NoError(t, err)
	assert.NotEqual(t, first, *updated.CoverImage)
	require.Len(t, covers.deleted, 1)
	assert.Equal(t, strings.TrimPrefix(first, coverPrefix), covers.deleted[0])

	// 删除图书时一并删除封面
	require.NoError(t, svc.Delete(ctx, book.BookID))
	assert.Empty(t, covers.objects)
}

func TestSetCover_Errors(t *testing.T) {
	ctx := context.Background()
	covers := newFakeCovers()
	svc, _ := newTestService(t, WithCoverStore(covers))
	book, err := svc.Create(ctx, CreateBookInput{Title: "A", Author: "B"})
	require.NoError(t, err)

	_, err = svc.SetCover(ctx, book.BookID, "a.txt", "text/plain", 3, bytes.NewReader([]byte("txt")))
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Equal(t, MsgCoverNotImage, domainerr.Message(err))

	_, err = svc.SetCover(ctx, book.BookID, "a.png", "image/png", 0, bytes.NewReader(nil))
	assert.True(t, errdefs.IsInvalidArgument(err))

	_, err = svc.SetCover(ctx, 404, "a.png", "image/png", 3, bytes.NewReader([]byte("png")))
	assert.True(t, errdefs.IsNotFound(err))

	covers.uploadErr = errors.New("connection refused")
	_, err = svc.SetCover(ctx, book.BookID, "a.png", "image/png", 3, bytes.NewReader([]byte("png")))
	assert.True(t, errdefs.IsUnavailable(err))

	got, err := svc.Get(ctx, book.BookID)
	require.NoError(t, err)
	assert.Nil(t, got.CoverImage)
}
