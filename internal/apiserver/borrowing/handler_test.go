package borrowing

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librigo/internal/apiserver/apitest"
	"librigo/internal/apiserver/auth"
	"librigo/internal/lifecycle"
	"librigo/internal/shared/model"
)

func setup(t *testing.T) (*apitest.Env, http.Handler) {
	t.Helper()
	env := apitest.New(t, false)
	return env, env.Handler(NewHandler(env.Engine).RegisterRoutes)
}

func TestBorrowing_RequestFlow(t *testing.T) {
	env, h := setup(t)
	book := env.AddBook(t, "Dune")

	rec, resp := apitest.Do(t, h, http.MethodPost, "/api/borrowing/request", env.UserToken, map[string]any{"book_id": book.BookID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Borrow request submitted successfully", resp.Message)
	created := apitest.DecodeData[model.BorrowRequest](t, resp)
	assert.Equal(t, model.RequestStatusPending, created.Status)
	assert.Equal(t, env.User.UserID, created.UserID)

	rec, resp = apitest.Do(t, h, http.MethodPost, "/api/borrowing/request", env.UserToken, map[string]any{"book_id": book.BookID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, lifecycle.MsgDuplicatePending, resp.Message)

	rec, resp = apitest.Do(t, h, http.MethodGet, "/api/borrowing/my-requests", env.UserToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	mine := apitest.DecodeData[[]model.RequestView](t, resp)
	require.Len(t, mine, 1)
	assert.Equal(t, "Dune", mine[0].Title)

	rec, resp = apitest.Do(t, h, http.MethodGet, "/api/borrowing/my-books", env.UserToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, string(resp.Data))
}

func TestBorrowing_RequestErrors(t *testing.T) {
	env, h := setup(t)
	taken := env.AddBook(t, "Taken")
	other, _ := env.AddUser(t, "bob", model.UserRoleUser)
	env.Lend(t, other, taken)

	tests := []struct {
		name       string
		token      string
		body       any
		wantStatus int
		wantMsg    string
	}{
		{"anonymous", "", map[string]any{"book_id": 1}, http.StatusUnauthorized, auth.MsgTokenRequired},
		{"missing book id", env.UserToken, map[string]any{}, http.StatusBadRequest, lifecycle.MsgBookIDRequired},
		{"negative book id", env.UserToken, map[string]any{"book_id": -3}, http.StatusNotFound, lifecycle.MsgBookNotFound},
		{"unknown book", env.UserToken, map[string]any{"book_id": 999}, http.StatusNotFound, lifecycle.MsgBookNotFound},
		{"book borrowed", env.UserToken, map[string]any{"book_id": taken.BookID}, http.StatusBadRequest, lifecycle.MsgBookNotAvailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := apitest.Do(t, h, http.MethodPost, "/api/borrowing/request", tt.token, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, resp.Message)
		})
	}
}

func TestBorrowing_Return(t *testing.T) {
	env, h := setup(t)
	book := env.AddBook(t, "Dune")
	loan := env.Lend(t, env.User, book)
	path := "/api/borrowing/return/" + strconv.FormatInt(loan.BorrowingID, 10)

	// 非借阅人（包括管理员）不能归还
	rec, resp := apitest.Do(t, h, http.MethodPost, path, env.AdminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, lifecycle.MsgBorrowingNotActive, resp.Message)

	rec, resp = apitest.Do(t, h, http.MethodPost, path, env.UserToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Book returned successfully", resp.Message)

	rec, _ = apitest.Do(t, h, http.MethodPost, path, env.UserToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = apitest.Do(t, h, http.MethodPost, "/api/borrowing/return/zero", env.UserToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, resp = apitest.Do(t, h, http.MethodGet, "/api/borrowing/history", env.UserToken, nil)
	history := apitest.DecodeData[[]model.BorrowingView](t, resp)
	require.Len(t, history, 1)
	assert.Equal(t, model.BorrowingStatusReturned, history[0].Status)
	assert.NotNil(t, history[0].ReturnDate)

	stored, err := env.Store.GetBook(t.Context(), book.BookID)
	require.NoError(t, err)
	assert.Equal(t, model.BookStatusAvailable, stored.Status)
}
