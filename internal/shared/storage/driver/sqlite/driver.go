// Package sqlite SQLite 数据库驱动
//
// 提供 SQLite 连接管理、方言实现和自动 Schema 迁移。
// 适用于开发、测试和轻量级部署场景。
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"librigo/internal/shared/storage/dbutil"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Dialect SQLite 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverSQLite
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.StripPgCasts(dbutil.RebindToQuestion(query))
}

// SupportsReturning SQLite 3.35+ 支持 RETURNING
func (d *Dialect) SupportsReturning() bool {
	return true
}

func (d *Dialect) IsUniqueViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	}
	return false
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// Open 创建 SQLite 数据库连接
// dsn 示例: "file:librigo.db?mode=rwc" 或 ":memory:"
//
// 连接池固定为 1 个连接：SQLite 只允许单写者，同时保证 :memory: 库在所有查询间共享。
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	// SQLite 优化设置
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
		}
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	return db, nil
}

// NewDialect 创建 SQLite 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

// schema SQLite 完整建表语句（与 PostgreSQL/MySQL 版本保持同构）
const schema = `
-- users
CREATE TABLE IF NOT EXISTS users (
    user_id INTEGER PRIMARY KEY AUTOINCREMENT,
    username VARCHAR(50) NOT NULL UNIQUE,
    password VARCHAR(255) NOT NULL,
    role VARCHAR(10) NOT NULL DEFAULT 'user' CHECK (role IN ('user', 'admin')),
    created_at DATETIME NOT NULL
);

-- registration_codes
CREATE TABLE IF NOT EXISTS registration_codes (
    code_id INTEGER PRIMARY KEY AUTOINCREMENT,
    code VARCHAR(64) NOT NULL UNIQUE,
    is_used BOOLEAN NOT NULL DEFAULT 0,
    used_by INTEGER REFERENCES users(user_id) ON DELETE SET NULL,
    created_at DATETIME NOT NULL,
    used_at DATETIME
);

-- books
CREATE TABLE IF NOT EXISTS books (
    book_id INTEGER PRIMARY KEY AUTOINCREMENT,
    title VARCHAR(255) NOT NULL,
    author VARCHAR(255) NOT NULL,
    isbn VARCHAR(32) UNIQUE,
    description TEXT,
    cover_image VARCHAR(512),
    status VARCHAR(16) NOT NULL DEFAULT 'available' CHECK (status IN ('available', 'borrowed')),
    created_at DATETIME NOT NULL,
    updated_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_books_created ON books(created_at);

-- borrowing_requests
CREATE TABLE IF NOT EXISTS borrowing_requests (
    request_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    book_id INTEGER NOT NULL REFERENCES books(book_id) ON DELETE CASCADE,
    status VARCHAR(16) NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'approved', 'rejected')),
    request_date DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_user ON borrowing_requests(user_id);
CREATE UNIQUE INDEX IF NOT EXISTS uq_requests_pending ON borrowing_requests(user_id, book_id) WHERE status = 'pending';

-- borrowings
CREATE TABLE IF NOT EXISTS borrowings (
    borrowing_id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL REFERENCES users(user_id) ON DELETE CASCADE,
    book_id INTEGER NOT NULL REFERENCES books(book_id) ON DELETE CASCADE,
    status VARCHAR(16) NOT NULL DEFAULT 'borrowed' CHECK (status IN ('borrowed', 'returned')),
    borrow_date DATETIME NOT NULL,
    return_date DATETIME
);
CREATE INDEX IF NOT EXISTS idx_borrowings_user ON borrowings(user_id);
CREATE UNIQUE INDEX IF NOT EXISTS uq_borrowings_active_book ON borrowings(book_id) WHERE status = 'borrowed';

-- school_users
CREATE TABLE IF NOT EXISTS school_users (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    username VARCHAR(100) NOT NULL UNIQUE,
    password_hash VARCHAR(255) NOT NULL,
    role VARCHAR(32) NOT NULL DEFAULT 'normal',
    created_at DATETIME NOT NULL
);

-- buku
CREATE TABLE IF NOT EXISTS buku (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    nama_buku VARCHAR(255) NOT NULL,
    status_peminjaman VARCHAR(8) NOT NULL DEFAULT 'TIDAK' CHECK (status_peminjaman IN ('YA', 'TIDAK')),
    terakhir_diubah DATETIME,
    created_at DATETIME NOT NULL
);
`
