// Package main librigoctl 运维命令行：注册码签发、管理员创建、数据库迁移
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"librigo/internal/config"
	"librigo/internal/shared/storage/dbutil"
	"librigo/internal/shared/storage/repository"
)

// globalFlags 所有子命令共用的连接参数；为空时使用配置文件
type globalFlags struct {
	configDir string
	driver    string
	dsn       string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "librigoctl",
		Short:         "LibriGo administration tool",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&g.configDir, "config", "", "config directory (default: by APP_ENV)")
	root.PersistentFlags().StringVar(&g.driver, "driver", "", "database driver: sqlite, postgres, mysql")
	root.PersistentFlags().StringVar(&g.dsn, "dsn", "", "database DSN (overrides config)")

	root.AddCommand(newCodesCmd(g), newAdminCmd(g), newMigrateCmd(g))
	return root
}

// openStore 按参数或配置打开数据库（Open 会执行迁移）
func (g *globalFlags) openStore() (*repository.Store, error) {
	driverName, dsn := g.driver, g.dsn
	if dsn == "" {
		if g.configDir != "" {
			config.SetConfigDir(g.configDir)
		}
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		dsn = cfg.DatabaseURL
		if driverName == "" {
			driverName = cfg.DatabaseDriver
		}
	}
	if driverName == "" {
		driverName = string(dbutil.DriverSQLite)
	}

	driver, err := dbutil.ParseDriverType(driverName)
	if err != nil {
		return nil, err
	}
	return repository.Open(driver, dsn)
}
