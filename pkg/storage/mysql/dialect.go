package mysql

import (
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"

	"github.com/LENAX/agentflow/pkg/storage"
)

// MySQLDialect MySQL方言实现（对外导出）
type MySQLDialect struct{}

// NewMySQLDialect 创建MySQL方言实例
func NewMySQLDialect() *MySQLDialect {
	return &MySQLDialect{}
}

// Name 返回方言名称
func (d *MySQLDialect) Name() string {
	return "mysql"
}

// DriverName 返回驱动名
func (d *MySQLDialect) DriverName() string {
	return "mysql"
}

// PrepareDSN 确保DSN包含parseTime=true
func (d *MySQLDialect) PrepareDSN(dsn string) string {
	if strings.Contains(dsn, "parseTime=true") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}

// UpsertSQL 返回MySQL的UPSERT语句（使用ON DUPLICATE KEY UPDATE）
func (d *MySQLDialect) UpsertSQL(tableName string, columns []string, conflictColumn string, updateColumns []string) string {
	namedPlaceholders := make([]string, len(columns))
	for i, col := range columns {
		namedPlaceholders[i] = ":" + col
	}

	updateParts := make([]string, len(updateColumns))
	for i, col := range updateColumns {
		updateParts[i] = fmt.Sprintf("%s = VALUES(%s)", col, col)
	}

	return fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) ON DUPLICATE KEY UPDATE %s",
		tableName,
		strings.Join(columns, ", "),
		strings.Join(namedPlaceholders, ", "),
		strings.Join(updateParts, ", "),
	)
}

// CreateTableSQL 转换DDL为MySQL兼容格式
func (d *MySQLDialect) CreateTableSQL(schema string) string {
	result := strings.ReplaceAll(schema, "REAL NOT NULL", "DOUBLE NOT NULL")
	result = strings.ReplaceAll(result, " TEXT,", " LONGTEXT,")

	// 添加引擎声明
	if !strings.Contains(result, "ENGINE=") && strings.Contains(result, "CREATE TABLE") {
		result = strings.TrimRight(strings.TrimSpace(result), ";") + " ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;"
	}
	return result
}

// ConfigureDB 返回MySQL配置SQL
func (d *MySQLDialect) ConfigureDB() []string {
	return []string{
		"SET SESSION sql_mode='STRICT_TRANS_TABLES,NO_ZERO_IN_DATE,NO_ZERO_DATE,ERROR_FOR_DIVISION_BY_ZERO,NO_ENGINE_SUBSTITUTION';",
	}
}

// 确保实现接口
var _ storage.Dialect = (*MySQLDialect)(nil)
