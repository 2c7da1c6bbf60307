// Package mysql MySQL 数据库驱动
//
// 提供 MySQL 连接管理、方言实现和 Schema 迁移。
// MySQL 不支持部分索引，"每本书最多一条借出记录" 等约束通过
// STORED 生成列 + UNIQUE 实现（NULL 不参与唯一性比较）。
package mysql

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"librigo/internal/shared/storage/dbutil"

	"github.com/go-sql-driver/mysql"
)

// erDupEntry ER_DUP_ENTRY
const erDupEntry = 1062

// Dialect MySQL 方言实现
type Dialect struct{}

var _ dbutil.Dialect = (*Dialect)(nil)

func (d *Dialect) DriverType() dbutil.DriverType {
	return dbutil.DriverMySQL
}

func (d *Dialect) Rebind(query string) string {
	return dbutil.StripPgCasts(dbutil.RebindToQuestion(query))
}

func (d *Dialect) SupportsReturning() bool {
	return false
}

func (d *Dialect) IsUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == erDupEntry
}

func (d *Dialect) AutoMigrate(db *sql.DB) error {
	return dbutil.ExecScript(db, schema)
}

// Open 创建 MySQL 数据库连接
// dsn 示例: "librigo:secret@tcp(localhost:3306)/librigo?parseTime=true&loc=UTC"
func Open(dsn string) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
	}
	// 时间列扫描为 time.Time 依赖以下两项
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	// RowsAffected 返回匹配行数而非变更行数，与 PostgreSQL/SQLite 一致
	cfg.ClientFoundRows = true

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}
	db := sql.OpenDB(connector)

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	return db, nil
}

// NewDialect 创建 MySQL 方言
func NewDialect() *Dialect {
	return &Dialect{}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id BIGINT AUTO_INCREMENT PRIMARY KEY,
    username VARCHAR(50) NOT NULL UNIQUE,
    password VARCHAR(255) NOT NULL,
    role ENUM('user', 'admin') NOT NULL DEFAULT 'user',
    created_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS registration_codes (
    code_id BIGINT AUTO_INCREMENT PRIMARY KEY,
    code VARCHAR(64) NOT NULL UNIQUE,
    is_used BOOLEAN NOT NULL DEFAULT FALSE,
    used_by BIGINT NULL,
    created_at DATETIME(6) NOT NULL,
    used_at DATETIME(6) NULL,
    CONSTRAINT fk_codes_user FOREIGN KEY (used_by) REFERENCES users(user_id) ON DELETE SET NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS books (
    book_id BIGINT AUTO_INCREMENT PRIMARY KEY,
    title VARCHAR(255) NOT NULL,
    author VARCHAR(255) NOT NULL,
    isbn VARCHAR(32) NULL UNIQUE,
    description TEXT NULL,
    cover_image VARCHAR(512) NULL,
    status ENUM('available', 'borrowed') NOT NULL DEFAULT 'available',
    created_at DATETIME(6) NOT NULL,
    updated_at DATETIME(6) NOT NULL,
    INDEX idx_books_created (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS borrowing_requests (
    request_id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    book_id BIGINT NOT NULL,
    status ENUM('pending', 'approved', 'rejected') NOT NULL DEFAULT 'pending',
    request_date DATETIME(6) NOT NULL,
    pending_key VARCHAR(48) AS (CASE WHEN status = 'pending' THEN CONCAT(user_id, ':', book_id) END) STORED,
    UNIQUE KEY uq_requests_pending (pending_key),
    INDEX idx_requests_user (user_id),
    CONSTRAINT fk_requests_user FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE,
    CONSTRAINT fk_requests_book FOREIGN KEY (book_id) REFERENCES books(book_id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS borrowings (
    borrowing_id BIGINT AUTO_INCREMENT PRIMARY KEY,
    user_id BIGINT NOT NULL,
    book_id BIGINT NOT NULL,
    status ENUM('borrowed', 'returned') NOT NULL DEFAULT 'borrowed',
    borrow_date DATETIME(6) NOT NULL,
    return_date DATETIME(6) NULL,
    active_book_id BIGINT AS (CASE WHEN status = 'borrowed' THEN book_id END) STORED,
    UNIQUE KEY uq_borrowings_active_book (active_book_id),
    INDEX idx_borrowings_user (user_id),
    CONSTRAINT fk_borrowings_user FOREIGN KEY (user_id) REFERENCES users(user_id) ON DELETE CASCADE,
    CONSTRAINT fk_borrowings_book FOREIGN KEY (book_id) REFERENCES books(book_id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS school_users (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    username VARCHAR(100) NOT NULL UNIQUE,
    password_hash VARCHAR(255) NOT NULL,
    role VARCHAR(32) NOT NULL DEFAULT 'normal',
    created_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

CREATE TABLE IF NOT EXISTS buku (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    nama_buku VARCHAR(255) NOT NULL,
    status_peminjaman ENUM('YA', 'TIDAK') NOT NULL DEFAULT 'TIDAK',
    terakhir_diubah DATETIME(6) NULL,
    created_at DATETIME(6) NOT NULL
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`
