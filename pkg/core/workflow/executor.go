package workflow

import (
	"slices"
	"time"

	"github.com/LENAX/agentflow/pkg/core/task"
)

// ExecutorFunc 节点执行函数
type ExecutorFunc = task.Func

// Condition 节点执行条件
type Condition = task.ConditionFunc

// Executor 图中的一个执行单元（对外导出）
// 由声明它的 Graph 独占，构建完成后只读
type Executor struct {
	ID          string
	Description string
	Inputs      []InputBinding
	Condition   Condition
	Body        ExecutorFunc
	BestEffort  bool          // 失败不中止运行，下游按跳过处理
	Timeout     time.Duration // 0 表示使用引擎默认值
	MaxRetries  int           // 失败后的重试次数
	RetrySet    bool          // 显式设置了重试次数；未设置时使用引擎默认值
	Services    []string      // 执行函数需要的服务名
}

// ExecutorOption 执行器选项
type ExecutorOption func(*Executor)

// WithCondition 设置执行条件
func WithCondition(cond Condition) ExecutorOption {
	return func(e *Executor) { e.Condition = cond }
}

// BestEffort 标记为尽力而为节点
func BestEffort() ExecutorOption {
	return func(e *Executor) { e.BestEffort = true }
}

// WithTimeout 设置节点超时
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.Timeout = d
		}
	}
}

// WithRetry 设置失败重试次数，覆盖引擎默认值
// n 为 0 表示不重试，适用于有副作用的执行器；负数忽略
func WithRetry(n int) ExecutorOption {
	return func(e *Executor) {
		if n >= 0 {
			e.MaxRetries = n
			e.RetrySet = true
		}
	}
}

// WithServices 声明执行函数需要的服务
func WithServices(names ...string) ExecutorOption {
	return func(e *Executor) {
		for _, name := range names {
			if name != "" && !slices.Contains(e.Services, name) {
				e.Services = append(e.Services, name)
			}
		}
	}
}

// WithDescription 设置描述
func WithDescription(desc string) ExecutorOption {
	return func(e *Executor) { e.Description = desc }
}

// Dependencies 上游节点ID（按绑定顺序去重）
func (e *Executor) Dependencies() []string {
	var deps []string
	for _, b := range e.Inputs {
		if b.Source.Kind == SourceNode && !slices.Contains(deps, b.Source.NodeID) {
			deps = append(deps, b.Source.NodeID)
		}
	}
	return deps
}
