package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/LENAX/agentflow/pkg/config"
)

// CronScheduler 定时调度器（对外导出）
// 按 cron 表达式以固定输入运行已注册的 Workflow
type CronScheduler struct {
	cron      *cron.Cron
	engine    *Engine
	schedules map[string]config.ScheduleConfig // 计划名 -> 计划
	entries   map[string]cron.EntryID          // 计划名 -> cron.EntryID
	mu        sync.RWMutex
}

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// NewCronScheduler 创建定时调度器（对外导出）
func NewCronScheduler(eng *Engine) *CronScheduler {
	return &CronScheduler{
		cron:      cron.New(cron.WithParser(cronParser)), // 支持秒级精度
		engine:    eng,
		schedules: make(map[string]config.ScheduleConfig),
		entries:   make(map[string]cron.EntryID),
	}
}

// AddSchedule 添加定时运行计划（对外导出）
// 计划名为空时使用 Workflow ID
func (cs *CronScheduler) AddSchedule(s config.ScheduleConfig) error {
	if s.Name == "" {
		s.Name = s.Workflow
	}
	if _, ok := cs.engine.Workflow(s.Workflow); !ok {
		return fmt.Errorf("计划 %s: %w: %s", s.Name, ErrWorkflowNotFound, s.Workflow)
	}
	if _, err := cronParser.Parse(s.Cron); err != nil {
		return fmt.Errorf("计划 %s 的Cron表达式无效: %w", s.Name, err)
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()
	if _, exists := cs.entries[s.Name]; exists {
		return fmt.Errorf("计划 %s 已存在", s.Name)
	}

	schedule := s
	entryID, err := cs.cron.AddFunc(s.Cron, func() {
		cs.trigger(schedule)
	})
	if err != nil {
		return fmt.Errorf("添加Cron任务失败: %w", err)
	}
	cs.schedules[s.Name] = s
	cs.entries[s.Name] = entryID

	cs.engine.logger.Info("✅ [Cron调度器] 已添加计划", "name", s.Name, "workflow_id", s.Workflow, "cron", s.Cron)
	return nil
}

// RemoveSchedule 移除定时运行计划（对外导出）
func (cs *CronScheduler) RemoveSchedule(name string) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	entryID, exists := cs.entries[name]
	if !exists {
		return fmt.Errorf("计划 %s 不存在", name)
	}
	cs.cron.Remove(entryID)
	delete(cs.schedules, name)
	delete(cs.entries, name)

	cs.engine.logger.Info("✅ [Cron调度器] 已移除计划", "name", name)
	return nil
}

// Schedules 已添加的计划（按名称排序）
func (cs *CronScheduler) Schedules() []config.ScheduleConfig {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	out := make([]config.ScheduleConfig, 0, len(cs.schedules))
	for _, s := range cs.schedules {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// trigger 触发一次运行，事件由事件总线和运行历史观察
func (cs *CronScheduler) trigger(s config.ScheduleConfig) {
	logger := cs.engine.logger
	logger.Info("🕐 [Cron调度器] 触发运行", "name", s.Name, "workflow_id", s.Workflow)

	x, err := cs.engine.RunWorkflow(context.Background(), s.Workflow, s.Input)
	if err != nil {
		logger.Error("❌ [Cron调度器] 启动运行失败", "name", s.Name, "error", err)
		return
	}
	x.Detach()
	logger.Info("✅ [Cron调度器] 运行已启动", "name", s.Name, "run_id", x.ID())
}

// Start 启动定时调度器（对外导出）
func (cs *CronScheduler) Start() {
	cs.cron.Start()
}

// Stop 停止定时调度器，等待正在触发的任务返回（对外导出）
func (cs *CronScheduler) Stop() {
	<-cs.cron.Stop().Done()
}
