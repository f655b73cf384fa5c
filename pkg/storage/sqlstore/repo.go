// Package sqlstore 基于 sqlx 的运行历史Repository，方言由调用方注入
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/LENAX/agentflow/pkg/storage"
	"github.com/LENAX/agentflow/pkg/storage/dao"
)

const (
	runTable   = "agentflow_run"
	eventTable = "agentflow_event"

	defaultListLimit = 100
)

// 基准DDL（SQLite语法），由方言转换；每条语句单独执行
var schema = []string{
	`CREATE TABLE IF NOT EXISTS agentflow_run (
		id VARCHAR(64) PRIMARY KEY,
		workflow_id VARCHAR(128) NOT NULL,
		status VARCHAR(32) NOT NULL,
		output TEXT,
		error_msg TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		updated_at DATETIME NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS agentflow_event (
		run_id VARCHAR(64) NOT NULL,
		seq INTEGER NOT NULL,
		event_id VARCHAR(64) NOT NULL,
		event_type VARCHAR(32) NOT NULL,
		node_id VARCHAR(128),
		payload TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, seq)
	);`,
}

var runColumns = []string{"id", "workflow_id", "status", "output", "error_msg", "started_at", "finished_at", "updated_at"}

// Repo 运行历史Repository的SQL实现（对外导出）
type Repo struct {
	db      *sqlx.DB
	dialect storage.Dialect
}

// New 基于已有连接创建Repository并初始化表结构（对外导出）
func New(db *sqlx.DB, dialect storage.Dialect) (*Repo, error) {
	repo := &Repo{db: db, dialect: dialect}
	if err := repo.initSchema(); err != nil {
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}
	return repo, nil
}

// Open 通过DSN创建Repository（对外导出）
func Open(dialect storage.Dialect, dsn string) (*Repo, error) {
	db, err := sqlx.Open(dialect.DriverName(), dialect.PrepareDSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// 内存库的每个连接都是独立数据库
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("数据库连接失败: %w", err)
	}
	for _, stmt := range dialect.ConfigureDB() {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("配置数据库失败(%s): %w", dialect.Name(), err)
		}
	}

	repo, err := New(db, dialect)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// DB 获取底层数据库连接（对外导出）
func (r *Repo) DB() *sqlx.DB {
	return r.db
}

// Close 关闭数据库连接（对外导出）
func (r *Repo) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repo) initSchema() error {
	for _, ddl := range schema {
		if _, err := r.db.Exec(r.dialect.CreateTableSQL(ddl)); err != nil {
			return err
		}
	}
	return nil
}

// SaveRun 保存运行记录（存在则覆盖）
func (r *Repo) SaveRun(ctx context.Context, run *dao.RunRecord) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("运行记录ID不能为空")
	}
	if run.UpdatedAt.IsZero() {
		run.UpdatedAt = time.Now()
	}
	query := r.dialect.UpsertSQL(runTable, runColumns, "id", runColumns[1:])
	if _, err := r.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("保存运行记录失败: %w", err)
	}
	return nil
}

// UpdateRunStatus 更新运行状态
func (r *Repo) UpdateRunStatus(ctx context.Context, runID, status, errMsg string, finishedAt *time.Time) error {
	finished := sql.NullTime{}
	if finishedAt != nil {
		finished = sql.NullTime{Time: *finishedAt, Valid: true}
	}
	query := r.db.Rebind(`UPDATE agentflow_run SET status = ?, error_msg = ?, finished_at = ?, updated_at = ? WHERE id = ?`)
	res, err := r.db.ExecContext(ctx, query,
		status, sql.NullString{String: errMsg, Valid: errMsg != ""}, finished, time.Now(), runID)
	if err != nil {
		return fmt.Errorf("更新运行状态失败: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: run %s", storage.ErrNotFound, runID)
	}
	return nil
}

// AppendEvent 追加运行事件
func (r *Repo) AppendEvent(ctx context.Context, ev *dao.EventRecord) error {
	query := `INSERT INTO agentflow_event (run_id, seq, event_id, event_type, node_id, payload, created_at)
		VALUES (:run_id, :seq, :event_id, :event_type, :node_id, :payload, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, ev); err != nil {
		return fmt.Errorf("追加运行事件失败: %w", err)
	}
	return nil
}

// GetRun 获取运行记录
func (r *Repo) GetRun(ctx context.Context, runID string) (*dao.RunRecord, error) {
	var run dao.RunRecord
	query := r.db.Rebind(`SELECT ` + strings.Join(runColumns, ", ") + ` FROM agentflow_run WHERE id = ?`)
	if err := r.db.GetContext(ctx, &run, query, runID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: run %s", storage.ErrNotFound, runID)
		}
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	return &run, nil
}

// ListRuns 按开始时间倒序列出运行记录
func (r *Repo) ListRuns(ctx context.Context, filter storage.RunFilter) ([]*dao.RunRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.WorkflowID != "" {
		where = append(where, "workflow_id = ?")
		args = append(args, filter.WorkflowID)
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := `SELECT ` + strings.Join(runColumns, ", ") + ` FROM agentflow_run`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT %d", limit)

	var runs []*dao.RunRecord
	if err := r.db.SelectContext(ctx, &runs, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("查询运行列表失败: %w", err)
	}
	return runs, nil
}

// ListEvents 按序号列出运行事件
func (r *Repo) ListEvents(ctx context.Context, runID string) ([]*dao.EventRecord, error) {
	var events []*dao.EventRecord
	query := r.db.Rebind(`SELECT run_id, seq, event_id, event_type, node_id, payload, created_at
		FROM agentflow_event WHERE run_id = ? ORDER BY seq`)
	if err := r.db.SelectContext(ctx, &events, query, runID); err != nil {
		return nil, fmt.Errorf("查询运行事件失败: %w", err)
	}
	return events, nil
}

// 确保实现接口
var _ storage.RunRepository = (*Repo)(nil)
