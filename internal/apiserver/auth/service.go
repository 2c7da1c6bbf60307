package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"librigo/internal/shared/cache"
	"librigo/internal/shared/domainerr"
	"librigo/internal/shared/model"
	"librigo/internal/shared/storage"
)

// 对外消息
const (
	MsgAllFieldsRequired   = "All fields are required"
	MsgCredentialsRequired = "Username and password are required"
	MsgUsernameExists      = "Username already exists"
	MsgInvalidCode         = "Invalid or already used registration code"
	MsgInvalidCredentials  = "Invalid username or password"
	MsgTooManyAttempts     = "Too many login attempts, please try again later"
	MsgUserNotFound        = "User not found"
	MsgPasswordTooLong     = "Password must be at most 72 bytes"
)

// Store 认证服务所需的存储能力
type Store interface {
	storage.UserStore
	storage.RegistrationCodeStore
	storage.Transactor
}

// LimitConfig 登录限流配置，MaxAttempts <= 0 表示不限流
type LimitConfig struct {
	MaxAttempts int
	Window      time.Duration
}

// Service 认证服务
type Service struct {
	store   Store
	cfg     Config
	limiter cache.LoginLimiter
	limit   LimitConfig
	now     func() time.Time
}

// ServiceOption 服务选项
type ServiceOption func(*Service)

// WithLoginLimiter 启用登录失败限流
func WithLoginLimiter(l cache.LoginLimiter, limit LimitConfig) ServiceOption {
	return func(s *Service) {
		s.limiter = l
		s.limit = limit
	}
}

// WithClock 注入时钟（测试用）
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// NewService 创建认证服务
func NewService(store Store, cfg Config, opts ...ServiceOption) *Service {
	s := &Service{
		store:   store,
		cfg:     cfg,
		limiter: cache.NewNoOpLimiter(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config 返回令牌配置
func (s *Service) Config() Config {
	return s.cfg
}

// Authenticate 校验用户名密码
func (s *Service) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.store.GetUserByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domainerr.Unauthenticated(MsgInvalidCredentials)
	}
	if err != nil {
		return nil, domainerr.Internal(err)
	}
	if !CheckPassword(password, user.PasswordHash) {
		return nil, domainerr.Unauthenticated(MsgInvalidCredentials)
	}
	return user, nil
}

// LoginResult 登录结果
type LoginResult struct {
	Token string     `json:"token"`
	User  *Principal `json:"user"`
}

// Login 认证并签发访问令牌
//
// 窗口内失败次数达到上限时直接拒绝；限流存储故障时放行。
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, domainerr.Invalid(MsgCredentialsRequired)
	}

	limited := s.limit.MaxAttempts > 0
	if limited {
		n, err := s.limiter.Failures(ctx, username)
		if err != nil {
			logger.WithContext(ctx).WithError(err).Warn("login limiter unavailable")
		} else if n >= int64(s.limit.MaxAttempts) {
			return nil, domainerr.TooMany(MsgTooManyAttempts)
		}
	}

	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		if limited && domainerr.Message(err) == MsgInvalidCredentials {
			if _, lerr := s.limiter.RecordFailure(ctx, username, s.limit.Window); lerr != nil {
				logger.WithContext(ctx).WithError(lerr).Warn("record login failure failed")
			}
		}
		return nil, err
	}
	if limited {
		if err := s.limiter.Reset(ctx, username); err != nil {
			logger.WithContext(ctx).WithError(err).Warn("reset login failures failed")
		}
	}

	p := &Principal{UserID: user.UserID, Username: user.Username, Role: user.Role}
	token, err := GenerateAccessToken(s.cfg, p, s.now())
	if err != nil {
		return nil, domainerr.Internal(err)
	}
	return &LoginResult{Token: token, User: p}, nil
}

// Register 使用一次性注册码注册普通用户
//
// 创建用户与消费注册码在同一事务内；注册码无效时用户插入一并回滚。
func (s *Service) Register(ctx context.Context, username, password, code string) (*model.User, error) {
	if username == "" || password == "" || code == "" {
		return nil, domainerr.Invalid(MsgAllFieldsRequired)
	}
	if PasswordTooLong(password) {
		return nil, domainerr.Invalid(MsgPasswordTooLong)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, domainerr.Internal(err)
	}

	now := s.now().UTC()
	user := &model.User{Username: username, PasswordHash: hash, Role: model.UserRoleUser, CreatedAt: now}
	err = s.store.WithTx(ctx, func(tx storage.LendingStore) error {
		_, err := tx.GetUserByUsername(ctx, username)
		if err == nil {
			return domainerr.Invalid(MsgUsernameExists)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, storage.ErrDuplicate) {
				return domainerr.Invalid(MsgUsernameExists)
			}
			return err
		}
		if err := tx.ConsumeRegistrationCode(ctx, code, user.UserID, now); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return domainerr.Invalid(MsgInvalidCode)
			}
			return err
		}
		return nil
	})
	if err != nil {
		var de *domainerr.Error
		if errors.As(err, &de) {
			return nil, de
		}
		return nil, domainerr.Internal(err)
	}

	log.Printf("[auth] User registered: %s (%d)", user.Username, user.UserID)
	return user, nil
}

// Me 当前用户信息
func (s *Service) Me(ctx context.Context, p *Principal) (*model.User, error) {
	if p == nil {
		return nil, domainerr.Unauthenticated(MsgTokenRequired)
	}
	user, err := s.store.GetUserByID(ctx, p.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, domainerr.NotFound(MsgUserNotFound)
	}
	if err != nil {
		return nil, domainerr.Internal(err)
	}
	return user, nil
}

// ============================================================================
// 注册码 / 管理员引导
// ============================================================================

// NewRegistrationCode 生成随机注册码，形如 LIB-3F9A6C1D2E
func NewRegistrationCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "LIB-" + strings.ToUpper(raw[:10])
}

// IssueCodes 批量签发注册码
func (s *Service) IssueCodes(ctx context.Context, count int) ([]*model.RegistrationCode, error) {
	if count <= 0 {
		return nil, domainerr.Invalid("count must be positive")
	}
	codes := make([]*model.RegistrationCode, 0, count)
	err := s.store.WithTx(ctx, func(tx storage.LendingStore) error {
		for i := 0; i < count; i++ {
			c := &model.RegistrationCode{Code: NewRegistrationCode(), CreatedAt: s.now().UTC()}
			if err := tx.CreateRegistrationCode(ctx, c); err != nil {
				return err
			}
			codes = append(codes, c)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("issue codes: %w", err)
	}
	return codes, nil
}

// EnsureAdminUser 确保管理员用户存在（启动时调用）
//
// 用户已存在但不是管理员时升级角色；不修改已有密码。
func EnsureAdminUser(ctx context.Context, store storage.UserStore, username, password string) error {
	if username == "" || password == "" {
		return nil
	}

	existing, err := store.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		if !existing.IsAdmin() {
			log.Printf("[auth] Upgrading user %s to admin role", username)
			if err := store.UpdateUserRole(ctx, existing.UserID, model.UserRoleAdmin); err != nil {
				return fmt.Errorf("upgrade admin user: %w", err)
			}
		}
		return nil
	case !errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("check admin user: %w", err)
	}

	hash, err := HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	user := &model.User{Username: username, PasswordHash: hash, Role: model.UserRoleAdmin, CreatedAt: time.Now().UTC()}
	if err := store.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create admin user: %w", err)
	}
	log.Printf("[auth] Created admin user: %s (%d)", username, user.UserID)
	return nil
}
