package repository

import (
	"context"
	"time"

	"librigo/internal/shared/model"
)

// ============================================================================
// 学校后台：用户
// ============================================================================

// CreateSchoolUser 创建学校用户
func (s *Store) CreateSchoolUser(ctx context.Context, u *model.SchoolUser) error {
	id, err := s.insert(ctx, "id",
		`INSERT INTO school_users (username, password_hash, role, created_at) VALUES ($1, $2, $3, $4)`,
		u.Username, u.PasswordHash, u.Role, u.CreatedAt,
	)
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// GetSchoolUser 查询学校用户
func (s *Store) GetSchoolUser(ctx context.Context, id int64) (*model.SchoolUser, error) {
	u := &model.SchoolUser{}
	err := s.queryRow(ctx,
		`SELECT id, username, password_hash, role, created_at FROM school_users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)
	if err != nil {
		return nil, s.translate(err)
	}
	return u, nil
}

// ListSchoolUsers 列出学校用户
func (s *Store) ListSchoolUsers(ctx context.Context) ([]*model.SchoolUser, error) {
	rows, err := s.query(ctx,
		`SELECT id, username, password_hash, role, created_at FROM school_users ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []*model.SchoolUser{}
	for rows.Next() {
		u := &model.SchoolUser{}
		if err := rows.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// UpdateSchoolUser 更新学校用户
func (s *Store) UpdateSchoolUser(ctx context.Context, u *model.SchoolUser) error {
	res, err := s.exec(ctx,
		`UPDATE school_users SET username = $1, password_hash = $2, role = $3 WHERE id = $4`,
		u.Username, u.PasswordHash, u.Role, u.ID,
	)
	if err != nil {
		return s.translate(err)
	}
	return expectOne(res)
}

// DeleteSchoolUser 删除学校用户
func (s *Store) DeleteSchoolUser(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM school_users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// ============================================================================
// 学校后台：图书
// ============================================================================

const bukuColumns = `id, nama_buku, status_peminjaman, terakhir_diubah, created_at`

func scanBuku(row rowScanner) (*model.Buku, error) {
	b := &model.Buku{}
	if err := row.Scan(&b.ID, &b.NamaBuku, &b.StatusPeminjaman, &b.TerakhirDiubah, &b.CreatedAt); err != nil {
		return nil, err
	}
	return b, nil
}

// CreateBuku 创建图书
func (s *Store) CreateBuku(ctx context.Context, b *model.Buku) error {
	if b.StatusPeminjaman == "" {
		b.StatusPeminjaman = model.LoanFlagNo
	}
	id, err := s.insert(ctx, "id",
		`INSERT INTO buku (nama_buku, status_peminjaman, created_at) VALUES ($1, $2, $3)`,
		b.NamaBuku, b.StatusPeminjaman, b.CreatedAt,
	)
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

// GetBuku 查询图书
func (s *Store) GetBuku(ctx context.Context, id int64) (*model.Buku, error) {
	b, err := scanBuku(s.queryRow(ctx, `SELECT `+bukuColumns+` FROM buku WHERE id = $1`, id))
	if err != nil {
		return nil, s.translate(err)
	}
	return b, nil
}

// ListBuku 列出图书
func (s *Store) ListBuku(ctx context.Context) ([]*model.Buku, error) {
	rows, err := s.query(ctx, `SELECT `+bukuColumns+` FROM buku ORDER BY id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []*model.Buku{}
	for rows.Next() {
		b, err := scanBuku(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// UpdateBukuStatus 更新借出标记
func (s *Store) UpdateBukuStatus(ctx context.Context, id int64, status model.LoanFlag, at time.Time) error {
	res, err := s.exec(ctx,
		`UPDATE buku SET status_peminjaman = $1, terakhir_diubah = $2 WHERE id = $3`,
		status, at, id,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteBuku 删除图书
func (s *Store) DeleteBuku(ctx context.Context, id int64) error {
	res, err := s.exec(ctx, `DELETE FROM buku WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
