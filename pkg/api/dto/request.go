package dto

import "github.com/LENAX/agentflow/pkg/core/realtime"

// StartRunRequest 启动运行请求
type StartRunRequest struct {
	Input any    `json:"input"`
	RunID string `json:"run_id" binding:"omitempty,max=64"`
}

// SendResponsesRequest 提交审批决定请求
// responses: 请求ID -> 决定
type SendResponsesRequest struct {
	Responses map[string]any `json:"responses" binding:"required"`
}

// ListRunsQuery 运行列表查询
type ListRunsQuery struct {
	WorkflowID string `form:"workflow_id" binding:"omitempty"`
	Status     string `form:"status" binding:"omitempty,oneof=Running Suspended Completed Failed Cancelled"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset     int    `form:"offset" binding:"omitempty,min=0"`
}

// EventsQuery 运行事件查询
type EventsQuery struct {
	Stream bool  `form:"stream"`
	After  int64 `form:"after" binding:"omitempty,min=0"` // 只返回序号大于 after 的事件
}

// WSCommand WebSocket 客户端指令
type WSCommand struct {
	Action    string         `json:"action"` // respond / cancel
	Responses map[string]any `json:"responses,omitempty"`
}

// GetDefaultLimit 获取默认limit
func (q *ListRunsQuery) GetDefaultLimit() int {
	if q.Limit <= 0 {
		return 20
	}
	return q.Limit
}

// WSMessage WebSocket 服务端消息
type WSMessage struct {
	Type  string          `json:"type"` // event / ack / error
	Event *realtime.Event `json:"event,omitempty"`
	Error string          `json:"error,omitempty"`
}
