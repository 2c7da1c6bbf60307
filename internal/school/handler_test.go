package school

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librigo/internal/apiserver/auth"
	"librigo/internal/shared/model"
	"librigo/internal/shared/storage/dbutil"
	"librigo/internal/shared/storage/repository"
	"librigo/pkg/logging"
)

var t0 = time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)

func newTestHandler(t *testing.T) (http.Handler, *repository.Store) {
	t.Helper()
	store, err := repository.Open(dbutil.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, WithClock(func() time.Time { return t0 }), WithLogger(logging.Discard()))
	return h.Router("http://localhost:5173"), store
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch v := body.(type) {
		case string:
			buf.WriteString(v)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(v))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	msg, _ := body["message"].(string)
	return msg
}

func TestRoot(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := do(t, h, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgOK, rec.Body.String())
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = do(t, h, http.MethodOptions, "/api/users", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

// ============================================================================
// 用户
// ============================================================================

func TestUsers_CRUD(t *testing.T) {
	h, store := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/api/users", map[string]string{"username": "siti", "password": "rahasia"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "siti", created["username"])
	assert.Equal(t, model.SchoolDefaultRole, created["role"])
	assert.NotContains(t, created, "password_hash")
	assert.NotContains(t, created, "password")
	id := int64(created["id"].(float64))

	stored, err := store.GetSchoolUser(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, auth.CheckPassword("rahasia", stored.PasswordHash))

	rec = do(t, h, http.MethodPost, "/api/users", map[string]string{"username": "budi", "password": "pw", "role": "guru"})
	require.Equal(t, http.StatusCreated, rec.Code)

	// 列表按 id 倒序且不含密码哈希
	rec = do(t, h, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "budi", list[0]["username"])
	assert.Equal(t, "guru", list[0]["role"])
	for _, u := range list {
		assert.NotContains(t, u, "password_hash")
	}

	// 部分更新：只改密码时用户名和角色保持不变
	rec = do(t, h, http.MethodPut, "/api/users/1", map[string]string{"password": "baru"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored, err = store.GetSchoolUser(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "siti", stored.Username)
	assert.Equal(t, model.SchoolDefaultRole, stored.Role)
	assert.True(t, auth.CheckPassword("baru", stored.PasswordHash))
	assert.False(t, auth.CheckPassword("rahasia", stored.PasswordHash))

	rec = do(t, h, http.MethodPut, "/api/users/1", map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/users/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "admin", got["role"])

	rec = do(t, h, http.MethodDelete, "/api/users/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgUserDeleted, message(t, rec))

	rec = do(t, h, http.MethodGet, "/api/users/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUsers_Errors(t *testing.T) {
	h, _ := newTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/users", map[string]string{"username": "siti", "password": "pw"}).Code)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/api/users", map[string]string{"username": "budi", "password": "pw"}).Code)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		status  int
		message string
	}{
		{"missing password", http.MethodPost, "/api/users", map[string]string{"username": "x"}, http.StatusBadRequest, MsgUserRequired},
		{"missing username", http.MethodPost, "/api/users", map[string]string{"password": "x"}, http.StatusBadRequest, MsgUserRequired},
		{"empty body", http.MethodPost, "/api/users", nil, http.StatusBadRequest, MsgUserRequired},
		{"password too long", http.MethodPost, "/api/users", map[string]string{"username": "x", "password": strings.Repeat("p", 73)}, http.StatusBadRequest, MsgPasswordTooLong},
		{"update password too long", http.MethodPut, "/api/users/1", map[string]string{"password": strings.Repeat("p", 80)}, http.StatusBadRequest, MsgPasswordTooLong},
		{"duplicate username", http.MethodPost, "/api/users", map[string]string{"username": "siti", "password": "pw"}, http.StatusConflict, MsgUsernameTaken},
		{"get missing", http.MethodGet, "/api/users/99", nil, http.StatusNotFound, MsgUserNotFound},
		{"get bad id", http.MethodGet, "/api/users/abc", nil, http.StatusNotFound, MsgUserNotFound},
		{"update missing", http.MethodPut, "/api/users/99", map[string]string{"role": "x"}, http.StatusNotFound, MsgUserNotFound},
		{"update to taken name", http.MethodPut, "/api/users/2", map[string]string{"username": "siti"}, http.StatusConflict, MsgUsernameTaken},
		{"delete missing", http.MethodDelete, "/api/users/99", nil, http.StatusNotFound, MsgUserNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, message(t, rec))
		})
	}
}

// ============================================================================
// 图书
// ============================================================================

func TestBuku_Lifecycle(t *testing.T) {
	h, _ := newTestHandler(t)

	rec := do(t, h, http.MethodPost, "/buku/add", map[string]string{"nama_buku": "Laskar Pelangi"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, MsgBukuCreated, created["message"])
	assert.EqualValues(t, 1, created["id"])

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/buku/add", map[string]string{"nama_buku": "Bumi Manusia"}).Code)

	rec = do(t, h, http.MethodGet, "/buku/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var b model.Buku
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, "Laskar Pelangi", b.NamaBuku)
	assert.Equal(t, model.LoanFlagNo, b.StatusPeminjaman)
	assert.Nil(t, b.TerakhirDiubah)

	rec = do(t, h, http.MethodPut, "/buku/status/1", map[string]string{"status_peminjaman": "YA"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgBukuStatusUpdate, message(t, rec))

	rec = do(t, h, http.MethodGet, "/buku/1", nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &b))
	assert.Equal(t, model.LoanFlagYes, b.StatusPeminjaman)
	require.NotNil(t, b.TerakhirDiubah)
	assert.True(t, t0.Equal(*b.TerakhirDiubah))

	for _, path := range []string{"/buku", "/buku/"} {
		rec = do(t, h, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, path)
		var list []model.Buku
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
		require.Len(t, list, 2)
		assert.Equal(t, "Bumi Manusia", list[0].NamaBuku)
	}

	rec = do(t, h, http.MethodDelete, "/buku/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgBukuDeleted, message(t, rec))

	// 重复删除仍然成功
	rec = do(t, h, http.MethodDelete, "/buku/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/buku/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBuku_Errors(t *testing.T) {
	h, _ := newTestHandler(t)
	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/buku/add", map[string]string{"nama_buku": "Ronggeng"}).Code)

	tests := []struct {
		name    string
		method  string
		path    string
		body    any
		status  int
		message string
	}{
		{"missing name", http.MethodPost, "/buku/add", map[string]string{}, http.StatusBadRequest, MsgBukuRequired},
		{"malformed body", http.MethodPost, "/buku/add", "{", http.StatusBadRequest, MsgBukuRequired},
		{"bad status", http.MethodPut, "/buku/status/1", map[string]string{"status_peminjaman": "MUNGKIN"}, http.StatusBadRequest, MsgBukuStatusBad},
		{"lowercase status", http.MethodPut, "/buku/status/1", map[string]string{"status_peminjaman": "ya"}, http.StatusBadRequest, MsgBukuStatusBad},
		{"status for missing book", http.MethodPut, "/buku/status/99", map[string]string{"status_peminjaman": "YA"}, http.StatusNotFound, MsgBukuNotFound},
		{"get missing", http.MethodGet, "/buku/99", nil, http.StatusNotFound, MsgBukuNotFound},
		{"get bad id", http.MethodGet, "/buku/xyz", nil, http.StatusNotFound, MsgBukuNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.message, message(t, rec))
		})
	}
}

func TestServerError_ExposeDetail(t *testing.T) {
	store, err := repository.Open(dbutil.DriverSQLite, ":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())

	for _, expose := range []bool{false, true} {
		h := NewHandler(store, WithLogger(logging.Discard()), WithExposeDetail(expose)).Router("")
		rec := do(t, h, http.MethodGet, "/buku", nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, MsgServerError, body["message"])
		_, hasDetail := body["error"]
		assert.Equal(t, expose, hasDetail)
	}
}
