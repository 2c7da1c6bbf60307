package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"librigo/api"
	"librigo/internal/apiserver/auth"
	"librigo/internal/catalog"
	"librigo/internal/lifecycle"
	"librigo/internal/shared/eventbus"
	"librigo/internal/shared/model"
	"librigo/internal/shared/storage/dbutil"
	"librigo/internal/shared/storage/repository"
	"librigo/pkg/logging"
)

const baseURL = "http://localhost:5000"

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	t       *testing.T
	store   *repository.Store
	auth    *auth.Service
	handler http.Handler
	metrics *Metrics
	router  routers.Router
}

type failingPinger struct{}

func (failingPinger) Ping(ctx context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, db Pinger) *testServer {
	t.Helper()
	store, err := repository.Open(dbutil.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	if db == nil {
		db = store
	}

	bus := eventbus.NewLocalBus()
	t.Cleanup(func() { bus.Close() })
	metrics := NewMetrics("librigo")
	authSvc := auth.NewService(store, auth.Config{JWTSecret: "server-secret", TokenTTL: time.Hour})
	require.NoError(t, auth.EnsureAdminUser(context.Background(), store, "admin", "adminpw"))

	h := NewHandler(Deps{
		DB:      db,
		Auth:    authSvc,
		Engine:  lifecycle.New(store, lifecycle.WithMetrics(metrics), lifecycle.WithPublisher(bus)),
		Catalog: catalog.New(store),
		Events:  bus,
		Metrics: metrics,
		Logger:  logging.Discard(),
		Options: Options{CORSOrigin: "http://localhost:5173", RequestTimeout: 5 * time.Second},
	})

	doc, err := openapi3.NewLoader().LoadFromData(api.OpenAPISpec)
	require.NoError(t, err)
	router, err := legacy.NewRouter(doc)
	require.NoError(t, err)

	return &testServer{t: t, store: store, auth: authSvc, handler: h.Router(), metrics: metrics, router: router}
}

// do 发送请求；命中 OpenAPI 中声明的路由时校验响应契约
func (s *testServer) do(method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, baseURL+path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)

	s.checkContract(req, rec)

	var env envelope
	require.NoError(s.t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

func (s *testServer) checkContract(req *http.Request, rec *httptest.ResponseRecorder) {
	s.t.Helper()
	route, params, err := s.router.FindRoute(req)
	if err != nil {
		return
	}
	err = openapi3filter.ValidateResponse(context.Background(), &openapi3filter.ResponseValidationInput{
		RequestValidationInput: &openapi3filter.RequestValidationInput{
			Request:    req,
			PathParams: params,
			Route:      route,
			Options:    &openapi3filter.Options{AuthenticationFunc: openapi3filter.NoopAuthenticationFunc},
		},
		Status: rec.Code,
		Header: rec.Header(),
		Body:   io.NopCloser(bytes.NewReader(rec.Body.Bytes())),
	})
	assert.NoError(s.t, err, "%s %s -> %d %s", req.Method, req.URL.Path, rec.Code, rec.Body.String())
}

func (s *testServer) login(username, password string) string {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"username": username, "password": password})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var res auth.LoginResult
	require.NoError(s.t, json.Unmarshal(env.Data, &res))
	return res.Token
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

// ============================================================================
// 系统接口
// ============================================================================

func TestSystemEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	rec, env := s.do(http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "LibriGo API Server", env.Message)
	assert.Contains(t, string(env.Data), Version)

	rec, env = s.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MsgServerRunning, env.Message)

	rec, env = s.do(http.MethodGet, "/no/such/thing", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgNotFound, env.Message)

	rec, env = s.do(http.MethodPatch, "/api/books", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, MsgNotFound, env.Message)

	req := httptest.NewRequest(http.MethodGet, "/api/openapi.yaml", nil)
	out := httptest.NewRecorder()
	s.handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, "application/yaml", out.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(out.Body.String(), "openapi: 3.0"))
}

func TestHealth_DatabaseDown(t *testing.T) {
	s := newTestServer(t, failingPinger{})

	rec, env := s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.False(t, env.Success)
	assert.Contains(t, string(env.Data), `"unreachable"`)
}

func TestMiddleware_RequestIDAndCORS(t *testing.T) {
	s := newTestServer(t, nil)

	rec, _ := s.do(http.MethodGet, "/health", "", nil)
	assert.NotEmpty(t, rec.Header().Get(HeaderRequestID))
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	out := httptest.NewRecorder()
	s.handler.ServeHTTP(out, req)
	assert.Equal(t, "req-123", out.Header().Get(HeaderRequestID))

	req = httptest.NewRequest(http.MethodOptions, "/api/books", nil)
	out = httptest.NewRecorder()
	s.handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusNoContent, out.Code)
	assert.Contains(t, out.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestRecoverMiddleware(t *testing.T) {
	h := recoverMiddleware(logging.Discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "Server error", env.Message)
}

func TestNormalizePath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"GET /api/books/{id}", "/api/books/{id}"},
		{"PUT /api/admin/requests/{id}/approve", "/api/admin/requests/{id}/approve"},
		{"/", "unmatched"},
		{"", "unmatched"},
		{"GET /{$}", "/{$}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizePath(tt.in), tt.in)
	}
}

// ============================================================================
// 端到端流程
// ============================================================================

func TestEndToEnd_BorrowLifecycle(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()

	adminToken := s.login("admin", "adminpw")

	// 管理员建书
	rec, env := s.do(http.MethodPost, "/api/books", adminToken, map[string]any{"title": "Dune", "author": "Herbert"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var book model.Book
	require.NoError(t, json.Unmarshal(env.Data, &book))

	// 签发注册码并注册普通用户
	codes, err := s.auth.IssueCodes(ctx, 1)
	require.NoError(t, err)
	rec, _ = s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice", "password": "pw", "registrationCode": codes[0].Code,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	userToken := s.login("alice", "pw")

	rec, _ = s.do(http.MethodPost, "/api/books", userToken, map[string]any{"title": "x", "author": "y"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 申请 → 批准
	rec, env = s.do(http.MethodPost, "/api/borrowing/request", userToken, map[string]any{"book_id": book.BookID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var req model.BorrowRequest
	require.NoError(t, json.Unmarshal(env.Data, &req))

	rec, _ = s.do(http.MethodGet, "/api/admin/requests", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodPut, "/api/admin/requests/"+id(req.RequestID)+"/approve", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, env = s.do(http.MethodGet, "/api/books/"+id(book.BookID), userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view model.BookView
	require.NoError(t, json.Unmarshal(env.Data, &view))
	assert.Equal(t, model.BookStatusBorrowed, view.Status)
	require.NotNil(t, view.BorrowedBy)
	assert.Equal(t, "alice", *view.BorrowedBy)

	rec, _ = s.do(http.MethodDelete, "/api/books/"+id(book.BookID), adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = s.do(http.MethodGet, "/api/borrowing/my-books", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var loans []model.BorrowingView
	require.NoError(t, json.Unmarshal(env.Data, &loans))
	require.Len(t, loans, 1)

	rec, _ = s.do(http.MethodGet, "/api/admin/stats", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// 归还
	rec, _ = s.do(http.MethodPost, "/api/borrowing/return/"+id(loans[0].BorrowingID), userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodPost, "/api/borrowing/return/"+id(loans[0].BorrowingID), userToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = s.do(http.MethodGet, "/api/borrowing/history", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/admin/borrowings", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/borrowing/my-requests", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = s.do(http.MethodGet, "/api/auth/me", userToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = s.do(http.MethodDelete, "/api/books/"+id(book.BookID), adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// 指标
	out := httptest.NewRecorder()
	s.handler.ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, out.Code)
	metrics := out.Body.String()
	assert.Contains(t, metrics, `librigo_lifecycle_transitions_total{outcome="ok",transition="approve"} 1`)
	assert.Contains(t, metrics, `librigo_lifecycle_transitions_total{outcome="ok",transition="return"} 1`)
	assert.Contains(t, metrics, `librigo_lifecycle_transitions_total{outcome="not_found",transition="return"} 1`)
	assert.Contains(t, metrics, `librigo_books_total{status="borrowed"} 1`)
	assert.Contains(t, metrics, `path="/api/books/{id}"`)
}
