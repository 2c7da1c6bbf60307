// Package apitest HTTP 处理器测试夹具
//
// 使用真实 SQLite :memory: 存储，预置一个管理员和一个普通用户。
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"librigo/internal/apiserver/auth"
	"librigo/internal/catalog"
	"librigo/internal/lifecycle"
	"librigo/internal/shared/eventbus"
	"librigo/internal/shared/model"
	"librigo/internal/shared/storage/dbutil"
	"librigo/internal/shared/storage/repository"
)

// AuthConfig 测试签名配置
var AuthConfig = auth.Config{JWTSecret: "apitest-secret", TokenTTL: time.Hour}

// Envelope 解码后的响应信封
type Envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// Env 测试环境
type Env struct {
	Store   *repository.Store
	Bus     *eventbus.LocalBus
	Engine  *lifecycle.Engine
	Catalog *catalog.Service
	Covers  *FakeCovers

	Admin      *model.User
	AdminToken string
	User       *model.User
	UserToken  string
}

// New 创建测试环境；withCovers 为 true 时启用内存封面存储
func New(t *testing.T, withCovers bool) *Env {
	t.Helper()
	store, err := repository.Open(dbutil.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	env := &Env{Store: store, Bus: eventbus.NewLocalBus()}
	t.Cleanup(func() { env.Bus.Close() })

	env.Engine = lifecycle.New(store, lifecycle.WithPublisher(env.Bus))
	var opts []catalog.Option
	if withCovers {
		env.Covers = &FakeCovers{Objects: map[string][]byte{}}
		opts = append(opts, catalog.WithCoverStore(env.Covers))
	}
	env.Catalog = catalog.New(store, opts...)

	env.Admin, env.AdminToken = env.AddUser(t, "admin", model.UserRoleAdmin)
	env.User, env.UserToken = env.AddUser(t, "alice", model.UserRoleUser)
	return env
}

// AddUser 创建用户并签发令牌
func (e *Env) AddUser(t *testing.T, username string, role model.UserRole) (*model.User, string) {
	t.Helper()
	u := &model.User{Username: username, PasswordHash: "x", Role: role, CreatedAt: time.Now().UTC()}
	require.NoError(t, e.Store.CreateUser(context.Background(), u))
	token, err := auth.GenerateAccessToken(AuthConfig, &auth.Principal{UserID: u.UserID, Username: u.Username, Role: u.Role}, time.Now())
	require.NoError(t, err)
	return u, token
}

// AddBook 通过目录服务创建图书
func (e *Env) AddBook(t *testing.T, title string) *model.Book {
	t.Helper()
	b, err := e.Catalog.Create(context.Background(), catalog.CreateBookInput{Title: title, Author: "Author of " + title})
	require.NoError(t, err)
	return b
}

// Lend 让 user 借出 book（提交并批准），返回借阅记录
func (e *Env) Lend(t *testing.T, user *model.User, book *model.Book) *model.BorrowingView {
	t.Helper()
	ctx := context.Background()
	p := &model.Principal{UserID: user.UserID, Username: user.Username, Role: user.Role}
	req, err := e.Engine.SubmitRequest(ctx, p, book.BookID)
	require.NoError(t, err)
	require.NoError(t, e.Engine.ApproveRequest(ctx, req.RequestID))
	list, err := e.Engine.MyBooks(ctx, p)
	require.NoError(t, err)
	for _, b := range list {
		if b.BookID == book.BookID {
			return b
		}
	}
	t.Fatalf("borrowing for book %d not found", book.BookID)
	return nil
}

// Handler 注册路由并套上认证中间件
func (e *Env) Handler(register ...func(*http.ServeMux)) http.Handler {
	mux := http.NewServeMux()
	for _, fn := range register {
		fn(mux)
	}
	return auth.Middleware(AuthConfig)(mux)
}

// Do 发送 JSON 请求并解码信封
func Do(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return Send(t, h, req, token)
}

// Send 发送任意请求并解码信封
func Send(t *testing.T, h http.Handler, req *http.Request, token string) (*httptest.ResponseRecorder, Envelope) {
	t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec, env
}

// DecodeData 解码 data 字段
func DecodeData[T any](t *testing.T, env Envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v), string(env.Data))
	return v
}

// CoverURLPrefix 内存封面存储的 URL 前缀
const CoverURLPrefix = "http://covers.test/librigo/"

// FakeCovers 内存封面存储
type FakeCovers struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Deleted []string
}

var _ catalog.CoverStore = (*FakeCovers)(nil)

func (f *FakeCovers) Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Objects[key] = data
	return CoverURLPrefix + key, nil
}

func (f *FakeCovers) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.Objects, key)
	f.Deleted = append(f.Deleted, key)
	return nil
}

func (f *FakeCovers) KeyFromURL(rawURL string) (string, bool) {
	if !strings.HasPrefix(rawURL, CoverURLPrefix) {
		return "", false
	}
	return strings.TrimPrefix(rawURL, CoverURLPrefix), true
}

// Count 当前对象数
func (f *FakeCovers) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Objects)
}
