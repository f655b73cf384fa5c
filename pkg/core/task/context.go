package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/LENAX/agentflow/pkg/logging"
)

// Func 节点执行函数（对外导出）
// 返回值即节点输出；返回 ctx.RequestApproval(...) 的结果可挂起节点等待审批
type Func func(ctx *Context, in Inputs) (any, error)

// ConditionFunc 节点执行条件（对外导出）
// 只能读取已解析的输入；返回 false 时节点被跳过
type ConditionFunc func(in Inputs) (bool, error)

// ErrServiceNotDeclared 执行函数访问了未声明的服务
var ErrServiceNotDeclared = errors.New("service not declared by executor")

// Context 节点执行上下文（对外导出）
// 只暴露执行函数声明需要的服务，运行状态本身不对执行函数开放
type Context struct {
	ctx        context.Context
	RunID      string
	WorkflowID string
	NodeID     string
	Attempt    int // 当前尝试次数，从1开始

	logger      *slog.Logger
	services    map[string]any
	decision    any
	hasDecision bool
	progress    func(data any)
}

// NewContext 创建节点执行上下文（对外导出）
func NewContext(ctx context.Context, runID, workflowID, nodeID string) *Context {
	ctx = WithNodeID(WithWorkflowID(WithRunID(ctx, runID), workflowID), nodeID)
	logger := logging.FromContext(ctx).With("run_id", runID, "workflow_id", workflowID, "node_id", nodeID)
	return &Context{
		ctx:        logging.WithLogger(ctx, logger),
		RunID:      runID,
		WorkflowID: workflowID,
		NodeID:     nodeID,
		Attempt:    1,
		logger:     logger,
	}
}

// WithServices 注入执行函数声明的服务
func (c *Context) WithServices(services map[string]any) *Context {
	c.services = services
	return c
}

// WithDecision 注入审批决定（恢复执行时使用）
func (c *Context) WithDecision(decision any) *Context {
	c.decision = decision
	c.hasDecision = true
	return c
}

// WithProgress 设置进度事件回调
func (c *Context) WithProgress(fn func(data any)) *Context {
	c.progress = fn
	return c
}

// Context 返回底层context.Context（对外导出）
// 运行取消、节点超时都会反映在这里
func (c *Context) Context() context.Context {
	return c.ctx
}

// Done 等价于 Context().Done()
func (c *Context) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Err 等价于 Context().Err()
func (c *Context) Err() error {
	return c.ctx.Err()
}

// Deadline 等价于 Context().Deadline()
func (c *Context) Deadline() (time.Time, bool) {
	return c.ctx.Deadline()
}

// Logger 带 run_id/node_id 属性的 logger
func (c *Context) Logger() *slog.Logger {
	return c.logger
}

// Service 获取已声明的服务（对外导出）
func (c *Context) Service(name string) (any, error) {
	svc, ok := c.services[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServiceNotDeclared, name)
	}
	return svc, nil
}

// Decision 返回注入的审批决定；首次执行时 ok=false
func (c *Context) Decision() (any, bool) {
	return c.decision, c.hasDecision
}

// RequestApproval 构造审批请求（对外导出）
// 用法: return nil, ctx.RequestApproval(payload)
func (c *Context) RequestApproval(payload any) error {
	return &ApprovalRequest{NodeID: c.NodeID, Payload: payload}
}

// Emit 发送节点内部进度（如逐行输出），不影响调度
func (c *Context) Emit(data any) {
	if c.progress != nil {
		c.progress(data)
	}
}

// ServiceAs 按类型获取已声明的服务（对外导出）
func ServiceAs[T any](c *Context, name string) (T, error) {
	var zero T
	svc, err := c.Service(name)
	if err != nil {
		return zero, err
	}
	typed, ok := svc.(T)
	if !ok {
		return zero, fmt.Errorf("服务 %s 类型不匹配，当前类型: %T", name, svc)
	}
	return typed, nil
}
