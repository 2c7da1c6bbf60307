package model

import "time"

// SchoolUser 学校后台用户（独立于借阅系统的 users 表）
type SchoolUser struct {
	ID           int64     `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// SchoolDefaultRole 学校用户默认角色
const SchoolDefaultRole = "normal"

// LoanFlag 学校图书借出标记
type LoanFlag string

const (
	LoanFlagYes LoanFlag = "YA"
	LoanFlagNo  LoanFlag = "TIDAK"
)

// Valid 是否为合法标记
func (f LoanFlag) Valid() bool {
	return f == LoanFlagYes || f == LoanFlagNo
}

// Buku 学校图书
type Buku struct {
	ID               int64      `json:"id" db:"id"`
	NamaBuku         string     `json:"nama_buku" db:"nama_buku"`
	StatusPeminjaman LoanFlag   `json:"status_peminjaman" db:"status_peminjaman"`
	TerakhirDiubah   *time.Time `json:"terakhir_diubah" db:"terakhir_diubah"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}
