package sqlite

import (
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/LENAX/agentflow/pkg/storage"
)

// SQLiteDialect SQLite方言实现（对外导出）
type SQLiteDialect struct{}

// NewSQLiteDialect 创建SQLite方言实例
func NewSQLiteDialect() *SQLiteDialect {
	return &SQLiteDialect{}
}

// Name 返回方言名称
func (d *SQLiteDialect) Name() string {
	return "sqlite"
}

// DriverName 返回驱动名
func (d *SQLiteDialect) DriverName() string {
	return "sqlite3"
}

// PrepareDSN SQLite无需补全参数
func (d *SQLiteDialect) PrepareDSN(dsn string) string {
	return dsn
}

// UpsertSQL 返回SQLite的UPSERT语句
// 为了兼容性，使用 INSERT OR REPLACE
func (d *SQLiteDialect) UpsertSQL(tableName string, columns []string, conflictColumn string, updateColumns []string) string {
	namedPlaceholders := make([]string, len(columns))
	for i, col := range columns {
		namedPlaceholders[i] = ":" + col
	}

	return fmt.Sprintf(
		"INSERT OR REPLACE INTO %s (%s) VALUES (%s)",
		tableName,
		strings.Join(columns, ", "),
		strings.Join(namedPlaceholders, ", "),
	)
}

// CreateTableSQL 返回创建表的DDL（SQLite原样返回）
func (d *SQLiteDialect) CreateTableSQL(schema string) string {
	return schema
}

// ConfigureDB 返回SQLite配置SQL
func (d *SQLiteDialect) ConfigureDB() []string {
	return []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=30000;",
		"PRAGMA synchronous=NORMAL;",
	}
}

// 确保实现接口
var _ storage.Dialect = (*SQLiteDialect)(nil)
