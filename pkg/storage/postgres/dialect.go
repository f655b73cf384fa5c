package postgres

import (
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"github.com/LENAX/agentflow/pkg/storage"
)

// PostgresDialect PostgreSQL方言实现（对外导出）
type PostgresDialect struct{}

// NewPostgresDialect 创建PostgreSQL方言实例
func NewPostgresDialect() *PostgresDialect {
	return &PostgresDialect{}
}

// Name 返回方言名称
func (d *PostgresDialect) Name() string {
	return "postgres"
}

// DriverName 返回驱动名
// sqlx 据此把 :name / ? 改写为 $1, $2, ...
func (d *PostgresDialect) DriverName() string {
	return "postgres"
}

// PrepareDSN PostgreSQL无需补全参数
func (d *PostgresDialect) PrepareDSN(dsn string) string {
	return dsn
}

// UpsertSQL 返回PostgreSQL的UPSERT语句（使用ON CONFLICT DO UPDATE）
func (d *PostgresDialect) UpsertSQL(tableName string, columns []string, conflictColumn string, updateColumns []string) string {
	namedPlaceholders := make([]string, len(columns))
	for i, col := range columns {
		namedPlaceholders[i] = ":" + col
	}

	updateParts := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		updateParts[i] = fmt.Sprintf("%s = EXCLUDED.%s", col, col)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		tableName,
		strings.Join(columns, ", "),
		strings.Join(namedPlaceholders, ", "),
		conflictColumn,
		strings.Join(updateParts, ", "),
	)
}

// CreateTableSQL 转换DDL为PostgreSQL兼容格式
func (d *PostgresDialect) CreateTableSQL(schema string) string {
	result := strings.ReplaceAll(schema, "DATETIME", "TIMESTAMP")
	result = strings.ReplaceAll(result, "REAL NOT NULL", "DOUBLE PRECISION NOT NULL")
	result = strings.ReplaceAll(result, "INTEGER NOT NULL", "BIGINT NOT NULL")
	return result
}

// ConfigureDB 返回PostgreSQL配置SQL
func (d *PostgresDialect) ConfigureDB() []string {
	return []string{
		"SET timezone = 'UTC';",
	}
}

// 确保实现接口
var _ storage.Dialect = (*PostgresDialect)(nil)
