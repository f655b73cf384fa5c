package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrRunFailed 运行因节点失败中止
	ErrRunFailed = errors.New("run failed")
	// ErrRunCancelled 运行被取消
	ErrRunCancelled = errors.New("run cancelled")
	// ErrRunStalled 无可推进节点且未产出输出（合法图不会出现）
	ErrRunStalled = errors.New("run stalled")

	// ErrUnknownRequest 审批请求ID未发出过，或已不再等待
	ErrUnknownRequest = errors.New("unknown approval request")
	// ErrDuplicateResponse 审批请求已答复
	ErrDuplicateResponse = errors.New("duplicate approval response")

	// ErrEngineNotRunning 引擎未启动
	ErrEngineNotRunning = errors.New("engine not running")
	// ErrRunExists 运行ID已被占用
	ErrRunExists = errors.New("run already exists")
	// ErrRunNotFound 运行实例不存在
	ErrRunNotFound = errors.New("run not found")
	// ErrWorkflowNotFound Workflow未注册
	ErrWorkflowNotFound = errors.New("workflow not found")
	// ErrNodeTimeout 节点执行超时
	ErrNodeTimeout = errors.New("node timeout")
)

// NodeError 节点运行期错误（对外导出）
// 执行函数返回错误、panic、条件求值失败、超时都归为此类
type NodeError struct {
	NodeID string
	Phase  string // "condition" / "body"
	Err    error
}

func (e *NodeError) Error() string {
	if e.Phase == phaseCondition {
		return fmt.Sprintf("节点 %s 条件求值失败: %v", e.NodeID, e.Err)
	}
	return fmt.Sprintf("节点 %s 执行失败: %v", e.NodeID, e.Err)
}

func (e *NodeError) Unwrap() error { return e.Err }

const (
	phaseCondition = "condition"
	phaseBody      = "body"
)

// PanicError 执行函数或条件 panic
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// ApprovalError 审批响应错误（对外导出）
type ApprovalError struct {
	RequestID string
	Err       error // ErrUnknownRequest / ErrDuplicateResponse
}

func (e *ApprovalError) Error() string {
	return fmt.Sprintf("审批请求 %s: %v", e.RequestID, e.Err)
}

func (e *ApprovalError) Unwrap() error { return e.Err }
