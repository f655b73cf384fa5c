// Package realtime 运行事件的定义、有序投递队列与进程内事件总线
package realtime

import (
	"time"

	"github.com/google/uuid"
)

// EventType 事件类型
type EventType string

const (
	// 节点事件
	EventNodeStarted   EventType = "node.started"   // 节点派发
	EventNodeCompleted EventType = "node.completed" // 节点产出结果
	EventNodeSkipped   EventType = "node.skipped"   // 节点被跳过
	EventNodeFailed    EventType = "node.failed"    // 节点失败
	EventNodeProgress  EventType = "node.progress"  // 节点内部进度（逐行输出等）

	// 审批事件
	EventApprovalRequested EventType = "approval.requested" // 节点等待审批

	// 运行事件
	EventRunOutput    EventType = "run.output"    // 输出节点结果
	EventRunCompleted EventType = "run.completed" // 运行正常结束
	EventRunFailed    EventType = "run.failed"    // 运行因节点失败中止
	EventRunCancelled EventType = "run.cancelled" // 运行被取消
)

// IsTerminal 是否为运行终止事件（之后不会再有该运行的事件）
func (t EventType) IsTerminal() bool {
	return t == EventRunCompleted || t == EventRunFailed || t == EventRunCancelled
}

// 跳过原因
const (
	SkipReasonCondition = "condition" // 条件为false
	SkipReasonUpstream  = "upstream"  // 必需上游被跳过
	SkipReasonAborted   = "aborted"   // 运行结束时仍未执行
)

// ApprovalInfo 审批请求信息
type ApprovalInfo struct {
	RequestID string `json:"request_id"`
	NodeID    string `json:"node_id"`
	Payload   any    `json:"payload,omitempty"`
}

// Event 运行事件（对外导出）
// 所有字段均为可直接JSON序列化的普通数据，便于跨进程传输
type Event struct {
	ID         string            `json:"id"`                 // 事件ID（UUID）
	Type       EventType         `json:"type"`               // 事件类型
	RunID      string            `json:"run_id"`             // 运行实例ID
	WorkflowID string            `json:"workflow_id"`        // Workflow ID
	NodeID     string            `json:"node_id,omitempty"`  // 关联节点ID
	Sequence   int64             `json:"sequence"`           // 运行内序号（用于顺序保证）
	Timestamp  time.Time         `json:"timestamp"`          // 事件时间
	Value      any               `json:"value,omitempty"`    // 节点结果 / 运行输出 / 进度数据
	Error      string            `json:"error,omitempty"`    // 错误信息
	Reason     string            `json:"reason,omitempty"`   // 跳过原因
	Request    *ApprovalInfo     `json:"request,omitempty"`  // 审批请求
	Metadata   map[string]string `json:"metadata,omitempty"` // 元数据
}

// NewEvent 创建事件
func NewEvent(eventType EventType, runID, workflowID, nodeID string) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		RunID:      runID,
		WorkflowID: workflowID,
		NodeID:     nodeID,
		Timestamp:  time.Now(),
	}
}

// WithMetadata 添加元数据
func (e Event) WithMetadata(key, value string) Event {
	meta := make(map[string]string, len(e.Metadata)+1)
	for k, v := range e.Metadata {
		meta[k] = v
	}
	meta[key] = value
	e.Metadata = meta
	return e
}
