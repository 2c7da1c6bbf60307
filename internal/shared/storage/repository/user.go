package repository

import (
	"context"
	"time"

	"librigo/internal/shared/model"
)

// CreateUser 创建用户
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	id, err := s.insert(ctx, "user_id",
		`INSERT INTO users (username, password, role, created_at) VALUES ($1, $2, $3, $4)`,
		user.Username, user.PasswordHash, user.Role, user.CreatedAt,
	)
	if err != nil {
		return err
	}
	user.UserID = id
	return nil
}

// GetUserByID 通过 ID 查找用户
func (s *Store) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	u := &model.User{}
	err := s.queryRow(ctx,
		`SELECT user_id, username, password, role, created_at FROM users WHERE user_id = $1`, id,
	).Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, s.translate(err)
	}
	return u, nil
}

// GetUserByUsername 通过用户名查找用户
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u := &model.User{}
	err := s.queryRow(ctx,
		`SELECT user_id, username, password, role, created_at FROM users WHERE username = $1`, username,
	).Scan(&u.UserID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, s.translate(err)
	}
	return u, nil
}

// UpdateUserRole 更新用户角色
func (s *Store) UpdateUserRole(ctx context.Context, id int64, role model.UserRole) error {
	res, err := s.exec(ctx, `UPDATE users SET role = $1 WHERE user_id = $2`, role, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ============================================================================
// 注册码
// ============================================================================

// CreateRegistrationCode 创建注册码
func (s *Store) CreateRegistrationCode(ctx context.Context, code *model.RegistrationCode) error {
	id, err := s.insert(ctx, "code_id",
		`INSERT INTO registration_codes (code, is_used, created_at) VALUES ($1, $2, $3)`,
		code.Code, false, code.CreatedAt,
	)
	if err != nil {
		return err
	}
	code.CodeID = id
	return nil
}

// ConsumeRegistrationCode 核销注册码，只有未使用的码会命中
func (s *Store) ConsumeRegistrationCode(ctx context.Context, code string, userID int64, at time.Time) error {
	res, err := s.exec(ctx,
		`UPDATE registration_codes SET is_used = $1, used_by = $2, used_at = $3
		 WHERE code = $4 AND is_used = $5`,
		true, userID, at, code, false,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ListRegistrationCodes 列出注册码（最新在前）
func (s *Store) ListRegistrationCodes(ctx context.Context) ([]*model.RegistrationCode, error) {
	rows, err := s.query(ctx,
		`SELECT code_id, code, is_used, used_by, created_at, used_at
		 FROM registration_codes ORDER BY created_at DESC, code_id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	codes := []*model.RegistrationCode{}
	for rows.Next() {
		c := &model.RegistrationCode{}
		if err := rows.Scan(&c.CodeID, &c.Code, &c.IsUsed, &c.UsedBy, &c.CreatedAt, &c.UsedAt); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}
