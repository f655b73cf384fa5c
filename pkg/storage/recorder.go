package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/LENAX/agentflow/pkg/core/realtime"
	"github.com/LENAX/agentflow/pkg/core/types"
	"github.com/LENAX/agentflow/pkg/logging"
	"github.com/LENAX/agentflow/pkg/storage/dao"
)

// Recorder 把运行事件持久化为运行历史（对外导出）
// 挂接在事件总线上，与调度互不阻塞；记录失败只影响历史，不影响运行
type Recorder struct {
	repo   RunRepository
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]*runEntry // 尚未结束的运行
}

type runEntry struct {
	record  *dao.RunRecord
	waiting map[string]bool // 等待审批的节点
}

// NewRecorder 创建事件记录器（对外导出）
func NewRecorder(repo RunRepository, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Recorder{
		repo:   repo,
		logger: logger,
		runs:   make(map[string]*runEntry),
	}
}

// Record 记录一个运行事件
func (r *Recorder) Record(ctx context.Context, ev realtime.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.runs[ev.RunID]
	if !ok {
		run := &dao.RunRecord{
			ID:         ev.RunID,
			WorkflowID: ev.WorkflowID,
			Status:     string(types.RunStatusRunning),
			StartedAt:  ev.Timestamp,
			UpdatedAt:  time.Now(),
		}
		if err := r.repo.SaveRun(ctx, run); err != nil {
			return err
		}
		entry = &runEntry{record: run, waiting: make(map[string]bool)}
		r.runs[ev.RunID] = entry
	}
	run := entry.record

	rec, err := dao.FromEvent(ev)
	if err != nil {
		return err
	}
	if err := r.repo.AppendEvent(ctx, rec); err != nil {
		return err
	}

	switch {
	case ev.Type == realtime.EventApprovalRequested:
		entry.waiting[ev.NodeID] = true
		return r.setStatus(ctx, run, types.RunStatusSuspended)
	case ev.Type == realtime.EventRunOutput:
		if err := run.SetOutput(ev.Value); err != nil {
			return err
		}
		run.UpdatedAt = time.Now()
		return r.repo.SaveRun(ctx, run)
	case ev.Type.IsTerminal():
		delete(r.runs, ev.RunID)
		run.Status = string(terminalStatus(ev.Type))
		run.ErrorMsg.String, run.ErrorMsg.Valid = ev.Error, ev.Error != ""
		run.FinishedAt.Time, run.FinishedAt.Valid = ev.Timestamp, true
		run.UpdatedAt = time.Now()
		if err := r.repo.SaveRun(ctx, run); err != nil {
			return err
		}
		r.logger.Debug("运行历史已落库", "run_id", run.ID, "status", run.Status)
		return nil
	case entry.waiting[ev.NodeID] && (ev.Type == realtime.EventNodeCompleted || ev.Type == realtime.EventNodeFailed):
		// 审批答复后节点恢复并结束
		delete(entry.waiting, ev.NodeID)
		if len(entry.waiting) == 0 {
			return r.setStatus(ctx, run, types.RunStatusRunning)
		}
	}
	return nil
}

func (r *Recorder) setStatus(ctx context.Context, run *dao.RunRecord, status types.RunStatus) error {
	if run.Status == string(status) {
		return nil
	}
	run.Status = string(status)
	if err := r.repo.UpdateRunStatus(ctx, run.ID, run.Status, "", nil); err != nil {
		return fmt.Errorf("更新运行状态失败: %w", err)
	}
	return nil
}

func terminalStatus(t realtime.EventType) types.RunStatus {
	switch t {
	case realtime.EventRunCompleted:
		return types.RunStatusCompleted
	case realtime.EventRunCancelled:
		return types.RunStatusCancelled
	default:
		return types.RunStatusFailed
	}
}
