// Package plugin 运行事件触发的插件（通知等），通过事件总线挂接到引擎
package plugin

import (
	"context"

	"github.com/LENAX/agentflow/pkg/core/realtime"
)

// Plugin 插件基础接口（对外导出）
type Plugin interface {
	// Name 插件名称
	Name() string
	// Init 初始化插件
	Init(params map[string]string) error
	// Execute 执行插件逻辑
	Execute(ctx context.Context, data Data) error
}

// Data 传递给插件的数据（对外导出）
type Data struct {
	Event      realtime.EventType     // 触发事件
	RunID      string                 // 运行ID
	WorkflowID string                 // Workflow ID
	NodeID     string                 // 节点ID（如果有）
	Error      string                 // 错误信息（如果有）
	Request    *realtime.ApprovalInfo // 审批请求（如果有）
	Value      any                    // 节点结果或运行输出
}

// DataFromEvent 由运行事件构造插件数据
func DataFromEvent(ev realtime.Event) Data {
	return Data{
		Event:      ev.Type,
		RunID:      ev.RunID,
		WorkflowID: ev.WorkflowID,
		NodeID:     ev.NodeID,
		Error:      ev.Error,
		Request:    ev.Request,
		Value:      ev.Value,
	}
}
