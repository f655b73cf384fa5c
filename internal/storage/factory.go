// Package storage 按配置选择方言并创建运行历史Repository
package storage

import (
	"fmt"

	"github.com/LENAX/agentflow/pkg/config"
	"github.com/LENAX/agentflow/pkg/storage"
	"github.com/LENAX/agentflow/pkg/storage/mysql"
	"github.com/LENAX/agentflow/pkg/storage/postgres"
	"github.com/LENAX/agentflow/pkg/storage/sqlite"
	"github.com/LENAX/agentflow/pkg/storage/sqlstore"
)

// DialectFor 按数据库类型返回方言（sqlite/mysql/postgres）
func DialectFor(dbType string) (storage.Dialect, error) {
	switch dbType {
	case "sqlite", "sqlite3":
		return sqlite.NewSQLiteDialect(), nil
	case "mysql":
		return mysql.NewMySQLDialect(), nil
	case "postgres", "postgresql":
		return postgres.NewPostgresDialect(), nil
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
}

// NewRunRepository 创建运行历史Repository
// dbType: 数据库类型（sqlite/mysql/postgres）
// dsn: 数据库连接字符串
func NewRunRepository(dbType, dsn string) (*sqlstore.Repo, error) {
	dialect, err := DialectFor(dbType)
	if err != nil {
		return nil, err
	}
	repo, err := sqlstore.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("create %s repository failed: %w", dialect.Name(), err)
	}
	return repo, nil
}

// NewRunRepositoryFromConfig 按数据库配置创建Repository并设置连接池
func NewRunRepositoryFromConfig(cfg config.DatabaseConfig) (*sqlstore.Repo, error) {
	repo, err := NewRunRepository(cfg.Type, cfg.DSN)
	if err != nil {
		return nil, err
	}
	db := repo.DB()
	if cfg.MaxOpenConns > 0 && cfg.Type != "sqlite" {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	return repo, nil
}
