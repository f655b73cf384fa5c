// Package storage 运行历史的持久化接口与事件记录器
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/LENAX/agentflow/pkg/storage/dao"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("record not found")

// RunFilter 运行列表过滤条件
type RunFilter struct {
	WorkflowID string
	Status     string
	Limit      int // 0 表示默认 100
}

// RunRepository 运行历史Repository（对外导出）
type RunRepository interface {
	// SaveRun 保存运行记录（存在则覆盖）
	SaveRun(ctx context.Context, run *dao.RunRecord) error

	// UpdateRunStatus 更新运行状态
	// finishedAt 为 nil 表示运行尚未结束
	UpdateRunStatus(ctx context.Context, runID, status, errMsg string, finishedAt *time.Time) error

	// AppendEvent 追加运行事件
	AppendEvent(ctx context.Context, ev *dao.EventRecord) error

	// GetRun 获取运行记录，不存在返回 ErrNotFound
	GetRun(ctx context.Context, runID string) (*dao.RunRecord, error)

	// ListRuns 按开始时间倒序列出运行记录
	ListRuns(ctx context.Context, filter RunFilter) ([]*dao.RunRecord, error)

	// ListEvents 按序号列出运行事件
	ListEvents(ctx context.Context, runID string) ([]*dao.EventRecord, error)

	// Close 关闭数据库连接
	Close() error
}
