package repository

import (
	"database/sql"
	"fmt"

	"librigo/internal/shared/storage/dbutil"
	mysqldriver "librigo/internal/shared/storage/driver/mysql"
	pgdriver "librigo/internal/shared/storage/driver/postgres"
	sqlitedriver "librigo/internal/shared/storage/driver/sqlite"
)

// Open 按驱动类型打开数据库并执行 Schema 迁移
func Open(driver dbutil.DriverType, dsn string) (*Store, error) {
	var (
		db      *sql.DB
		dialect dbutil.Dialect
		err     error
	)
	switch driver {
	case dbutil.DriverSQLite:
		db, err = sqlitedriver.Open(dsn)
		dialect = sqlitedriver.NewDialect()
	case dbutil.DriverPostgres:
		db, err = pgdriver.Open(dsn)
		dialect = pgdriver.NewDialect()
	case dbutil.DriverMySQL:
		db, err = mysqldriver.Open(dsn)
		dialect = mysqldriver.NewDialect()
	default:
		return nil, fmt.Errorf("unsupported database driver: %q", driver)
	}
	if err != nil {
		return nil, err
	}

	if err := dialect.AutoMigrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("auto migrate (%s): %w", driver, err)
	}
	return NewStore(db, dialect), nil
}
