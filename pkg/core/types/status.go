// Package types 运行实例与节点的状态机定义
package types

// RunStatus 运行实例状态枚举（对外导出）
type RunStatus string

const (
	// RunStatusRunning 运行中（初始状态）
	RunStatusRunning RunStatus = "Running"
	// RunStatusSuspended 存在未答复的审批请求
	RunStatusSuspended RunStatus = "Suspended"
	// RunStatusCompleted 已产出输出并结束
	RunStatusCompleted RunStatus = "Completed"
	// RunStatusFailed 节点失败导致运行中止
	RunStatusFailed RunStatus = "Failed"
	// RunStatusCancelled 被外部取消
	RunStatusCancelled RunStatus = "Cancelled"
)

// IsValid 检查状态是否有效（对外导出）
func (s RunStatus) IsValid() bool {
	switch s {
	case RunStatusRunning,
		RunStatusSuspended,
		RunStatusCompleted,
		RunStatusFailed,
		RunStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal 是否为终态
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// CanTransitionTo 检查是否可以转换到目标状态（对外导出）
func (s RunStatus) CanTransitionTo(target RunStatus) bool {
	switch s {
	case RunStatusRunning:
		return target == RunStatusSuspended || target.IsTerminal()
	case RunStatusSuspended:
		// 挂起期间也可能失败或被取消
		return target == RunStatusRunning || target.IsTerminal()
	default:
		// 终态不能再转换
		return false
	}
}

// NodeStatus 节点状态枚举（对外导出）
type NodeStatus string

const (
	// NodeStatusPending 等待上游（初始状态）
	NodeStatusPending NodeStatus = "Pending"
	// NodeStatusReady 输入已解析，等待派发
	NodeStatusReady NodeStatus = "Ready"
	// NodeStatusRunning 执行函数运行中
	NodeStatusRunning NodeStatus = "Running"
	// NodeStatusSuspended 等待审批决定
	NodeStatusSuspended NodeStatus = "Suspended"
	// NodeStatusCompleted 成功产出
	NodeStatusCompleted NodeStatus = "Completed"
	// NodeStatusSkipped 条件不满足或必需上游被跳过
	NodeStatusSkipped NodeStatus = "Skipped"
	// NodeStatusFailed 执行失败
	NodeStatusFailed NodeStatus = "Failed"
)

// IsValid 检查状态是否有效（对外导出）
func (s NodeStatus) IsValid() bool {
	switch s {
	case NodeStatusPending,
		NodeStatusReady,
		NodeStatusRunning,
		NodeStatusSuspended,
		NodeStatusCompleted,
		NodeStatusSkipped,
		NodeStatusFailed:
		return true
	default:
		return false
	}
}

// IsSettled 节点是否已结束（下游可以据此解析输入）
func (s NodeStatus) IsSettled() bool {
	return s == NodeStatusCompleted || s == NodeStatusSkipped || s == NodeStatusFailed
}

// CanTransitionTo 检查是否可以转换到目标状态（对外导出）
func (s NodeStatus) CanTransitionTo(target NodeStatus) bool {
	switch s {
	case NodeStatusPending:
		// 上游跳过时直接跳过，无需经过Ready
		return target == NodeStatusReady || target == NodeStatusSkipped
	case NodeStatusReady:
		// 条件为false跳过，条件求值出错失败
		return target == NodeStatusRunning || target == NodeStatusSkipped || target == NodeStatusFailed
	case NodeStatusRunning:
		return target == NodeStatusSuspended || target == NodeStatusCompleted || target == NodeStatusFailed
	case NodeStatusSuspended:
		// 恢复执行；运行终止时审批被丢弃则记为跳过
		return target == NodeStatusRunning || target == NodeStatusFailed || target == NodeStatusSkipped
	default:
		return false
	}
}
