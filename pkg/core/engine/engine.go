// Package engine 运行调度：依赖解析、条件求值、审批挂起/恢复、事件流
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/LENAX/agentflow/pkg/config"
	"github.com/LENAX/agentflow/pkg/core/executor"
	"github.com/LENAX/agentflow/pkg/core/realtime"
	"github.com/LENAX/agentflow/pkg/core/task"
	"github.com/LENAX/agentflow/pkg/core/workflow"
	"github.com/LENAX/agentflow/pkg/logging"
	"github.com/LENAX/agentflow/pkg/plugin"
)

// EventRecorder 运行事件持久化（可选，由调用方挂接）
type EventRecorder interface {
	Record(ctx context.Context, ev realtime.Event) error
}

// Engine 调度引擎（对外导出）
// 持有共享工作池、事件总线、Workflow 目录与运行登记表
type Engine struct {
	cfg      *config.EngineConfig
	logger   *slog.Logger
	pool     *executor.Pool
	bus      *realtime.Bus
	registry *task.FunctionRegistry
	plugins  plugin.Manager
	recorder EventRecorder
	cron     *CronScheduler

	middleware []task.Middleware

	mu         sync.RWMutex
	services   map[string]any
	workflows  map[string]*workflow.Graph
	executions map[string]*Execution
	runOrder   []string
	running    bool

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// NewEngine 创建引擎实例（对外导出）
// cfg 为 nil 时使用默认配置
func NewEngine(cfg *config.EngineConfig, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		logger:     logging.Discard(),
		registry:   task.NewFunctionRegistry(),
		plugins:    plugin.NewManager(),
		services:   make(map[string]any),
		workflows:  make(map[string]*workflow.Graph),
		executions: make(map[string]*Execution),
	}
	for _, opt := range opts {
		opt(e)
	}

	pool, err := executor.NewPool(cfg.GetWorkerConcurrency(), e.logger)
	if err != nil {
		return nil, err
	}
	e.pool = pool
	e.bus = realtime.NewBus(e.logger)
	e.cron = NewCronScheduler(e)

	if err := e.setupNotifications(); err != nil {
		return nil, err
	}
	return e, nil
}

// setupNotifications 按配置注册邮件通知插件
func (e *Engine) setupNotifications() error {
	email := e.cfg.AgentFlow.Notifications.Email
	if !email.Enabled {
		return nil
	}
	params := map[string]string{
		"smtp_host": email.SMTPHost,
		"smtp_port": fmt.Sprintf("%d", email.SMTPPort),
		"username":  email.Username,
		"password":  email.Password,
		"from":      email.From,
		"to":        strings.Join(email.To, ","),
	}
	if err := e.plugins.RegisterWithInit(plugin.NewEmailPlugin(e.logger), params); err != nil {
		return err
	}
	for _, evType := range email.OnEvents {
		if err := e.plugins.Bind(plugin.Binding{PluginName: plugin.EmailPluginName, Event: realtime.EventType(evType)}); err != nil {
			return err
		}
	}
	return nil
}

// Start 启动引擎（对外导出）
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.mu.Unlock()

	if err := e.start(ctx); err != nil {
		if e.bgCancel != nil {
			e.bgCancel()
		}
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
		return err
	}
	e.logger.Info("✅ 引擎已启动", "instance", e.cfg.AgentFlow.General.InstanceName, "workers", e.pool.MaxWorkers())
	return nil
}

func (e *Engine) start(ctx context.Context) error {
	e.pool.Start()

	bgCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.bgCancel = cancel

	// 订阅在启动时建立，保证不漏掉之后的事件
	if len(e.plugins.ListPlugins()) > 0 {
		events, err := e.bus.Subscribe(bgCtx, nil)
		if err != nil {
			return err
		}
		e.bgWG.Add(1)
		go func() {
			defer e.bgWG.Done()
			plugin.Dispatch(bgCtx, events, e.plugins, e.logger)
		}()
	}
	if e.recorder != nil {
		events, err := e.bus.Subscribe(bgCtx, nil)
		if err != nil {
			return err
		}
		e.bgWG.Add(1)
		go func() {
			defer e.bgWG.Done()
			for ev := range events {
				if err := e.recorder.Record(bgCtx, ev); err != nil {
					e.logger.Warn("记录运行事件失败", "run_id", ev.RunID, "type", ev.Type, "error", err)
				}
			}
		}()
	}

	for _, s := range e.cfg.AgentFlow.Schedules {
		if err := e.cron.AddSchedule(s); err != nil {
			return err
		}
	}
	e.cron.Start()
	return nil
}

// Stop 停止引擎（对外导出）
// 取消所有未结束的运行并等待其结束，ctx 到期后不再等待
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	live := make([]*Execution, 0)
	for _, x := range e.executions {
		live = append(live, x)
	}
	e.mu.Unlock()

	e.cron.Stop()
	for _, x := range live {
		x.Cancel()
	}
	for _, x := range live {
		select {
		case <-x.Done():
		case <-ctx.Done():
			e.logger.Warn("等待运行结束超时", "run_id", x.ID())
		}
	}

	poolErr := e.pool.Shutdown(ctx)
	// 关闭总线会结束所有订阅，订阅方处理完剩余事件后退出
	busErr := e.bus.Close()
	done := make(chan struct{})
	go func() {
		e.bgWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	e.bgCancel()

	e.logger.Info("✅ 引擎已停止")
	if poolErr != nil {
		return poolErr
	}
	return busErr
}

// IsRunning 引擎是否运行中
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Run 以外部输入启动一次运行（对外导出）
// 返回后即可从 Execution.Events() 读取事件；ctx 取消等价于 Execution.Cancel()
func (e *Engine) Run(ctx context.Context, graph *workflow.Graph, input any, opts ...RunOption) (*Execution, error) {
	if graph == nil {
		return nil, fmt.Errorf("执行图不能为空")
	}
	ro := runOptions{maxConcurrency: e.cfg.AgentFlow.Execution.MaxConcurrencyPerRun}
	for _, opt := range opts {
		opt(&ro)
	}
	if ro.runID == "" {
		ro.runID = uuid.NewString()
	}

	exec := e.cfg.AgentFlow.Execution
	settings := runSettings{
		maxConcurrency: ro.maxConcurrency,
		nodeTimeout:    exec.DefaultNodeTimeout,
		retryAttempts:  exec.Retry.MaxAttempts,
		retryDelay:     exec.Retry.Delay,
		retryMaxDelay:  exec.Retry.MaxDelay,
		middleware:     e.middleware,
	}

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil, ErrEngineNotRunning
	}
	if _, exists := e.executions[ro.runID]; exists {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrRunExists, ro.runID)
	}
	services := make(map[string]any, len(e.services))
	for name, svc := range e.services {
		services[name] = svc
	}
	x := newExecution(ro.runID, graph, input, exec.EventBuffer, e.bus)
	e.executions[x.id] = x
	e.runOrder = append(e.runOrder, x.id)
	e.mu.Unlock()

	logger := e.logger.With("run_id", x.id, "workflow_id", graph.ID())
	s := newScheduler(logging.WithLogger(ctx, e.logger), x, e.pool, services, settings, logger)
	go s.loop()
	return x, nil
}

// RunWorkflow 按ID运行已注册的 Workflow（对外导出）
func (e *Engine) RunWorkflow(ctx context.Context, workflowID string, input any, opts ...RunOption) (*Execution, error) {
	graph, ok := e.Workflow(workflowID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflowID)
	}
	return e.Run(ctx, graph, input, opts...)
}

// RegisterWorkflow 把执行图登记到目录（对外导出）
func (e *Engine) RegisterWorkflow(graph *workflow.Graph) error {
	if graph == nil {
		return fmt.Errorf("执行图不能为空")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.workflows[graph.ID()]; exists {
		return fmt.Errorf("Workflow %s 已注册", graph.ID())
	}
	e.workflows[graph.ID()] = graph
	e.logger.Info("✅ Workflow已注册", "workflow_id", graph.ID(), "nodes", graph.Len())
	return nil
}

// LoadWorkflow 从YAML定义文件构建并注册执行图（对外导出）
func (e *Engine) LoadWorkflow(path string) (*workflow.Graph, error) {
	def, err := workflow.LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	graph, err := def.Build(e.registry)
	if err != nil {
		return nil, err
	}
	if err := e.RegisterWorkflow(graph); err != nil {
		return nil, err
	}
	return graph, nil
}

// Workflow 按ID获取已注册的执行图
func (e *Engine) Workflow(id string) (*workflow.Graph, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	g, ok := e.workflows[id]
	return g, ok
}

// Workflows 全部已注册的执行图（按ID排序）
func (e *Engine) Workflows() []*workflow.Graph {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*workflow.Graph, 0, len(e.workflows))
	for _, g := range e.workflows {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Execution 按运行ID获取运行句柄
func (e *Engine) Execution(runID string) (*Execution, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	x, ok := e.executions[runID]
	return x, ok
}

// ListExecutions 全部运行（按启动顺序）
func (e *Engine) ListExecutions() []*Execution {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*Execution, 0, len(e.runOrder))
	for _, id := range e.runOrder {
		out = append(out, e.executions[id])
	}
	return out
}

// SendResponses 向指定运行提交审批决定（对外导出）
func (e *Engine) SendResponses(runID string, responses map[string]any) error {
	x, ok := e.Execution(runID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return x.SendResponses(responses)
}

// Cancel 取消指定运行（对外导出）
func (e *Engine) Cancel(runID string) error {
	x, ok := e.Execution(runID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	x.Cancel()
	return nil
}

// RegisterService 注册可注入执行函数的服务
func (e *Engine) RegisterService(name string, svc any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.services[name] = svc
}

// Config 引擎配置
func (e *Engine) Config() *config.EngineConfig { return e.cfg }

// Bus 事件总线
func (e *Engine) Bus() *realtime.Bus { return e.bus }

// Registry 执行函数注册中心
func (e *Engine) Registry() *task.FunctionRegistry { return e.registry }

// Plugins 插件管理器
func (e *Engine) Plugins() plugin.Manager { return e.plugins }

// Cron 定时调度器
func (e *Engine) Cron() *CronScheduler { return e.cron }

// Logger 引擎日志
func (e *Engine) Logger() *slog.Logger { return e.logger }
