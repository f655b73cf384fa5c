package engine

import (
	"log/slog"

	"github.com/LENAX/agentflow/pkg/core/task"
	"github.com/LENAX/agentflow/pkg/plugin"
)

// Option 引擎选项
type Option func(*Engine)

// WithLogger 设置日志
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithService 注册一个可注入执行函数的服务
func WithService(name string, svc any) Option {
	return func(e *Engine) { e.services[name] = svc }
}

// WithRegistry 设置执行函数注册中心（YAML 定义按名称引用）
func WithRegistry(registry *task.FunctionRegistry) Option {
	return func(e *Engine) {
		if registry != nil {
			e.registry = registry
		}
	}
}

// WithPluginManager 设置插件管理器
func WithPluginManager(m plugin.Manager) Option {
	return func(e *Engine) {
		if m != nil {
			e.plugins = m
		}
	}
}

// WithRecorder 设置运行事件记录器
func WithRecorder(r EventRecorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithMiddleware 追加执行函数中间件，作用于所有运行的每次执行
// 先追加的在外层
func WithMiddleware(mws ...task.Middleware) Option {
	return func(e *Engine) { e.middleware = append(e.middleware, mws...) }
}

// RunOption 单次运行选项
type RunOption func(*runOptions)

type runOptions struct {
	runID          string
	maxConcurrency int
}

// WithRunID 指定运行ID（默认UUID）
func WithRunID(id string) RunOption {
	return func(o *runOptions) { o.runID = id }
}

// WithMaxConcurrency 覆盖单次运行的并发上限，0 表示不限
func WithMaxConcurrency(n int) RunOption {
	return func(o *runOptions) {
		if n >= 0 {
			o.maxConcurrency = n
		}
	}
}
