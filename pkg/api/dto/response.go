package dto

import (
	"time"

	"github.com/LENAX/agentflow/pkg/core/realtime"
)

// APIResponse 通用API响应结构
type APIResponse[T any] struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) APIResponse[any] {
	return APIResponse[any]{
		Code:    code,
		Message: message,
	}
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Uptime    string `json:"uptime"`
	Timestamp string `json:"timestamp"`
}

// ListResponse 列表响应
type ListResponse[T any] struct {
	Total   int  `json:"total"`
	Items   []T  `json:"items"`
	HasMore bool `json:"has_more"`
}

// WorkflowSummary Workflow摘要信息
type WorkflowSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	NodeCount   int    `json:"node_count"`
	Output      string `json:"output"`
}

// WorkflowDetail Workflow详细信息
type WorkflowDetail struct {
	WorkflowSummary
	Nodes  []NodeSummary `json:"nodes"`
	Levels [][]string    `json:"levels"`
}

// NodeSummary 执行器摘要信息
type NodeSummary struct {
	ID           string   `json:"id"`
	Description  string   `json:"description,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	Conditional  bool     `json:"conditional"`
	BestEffort   bool     `json:"best_effort"`
	Timeout      string   `json:"timeout,omitempty"`
	MaxRetries   int      `json:"max_retries,omitempty"`
	Services     []string `json:"services,omitempty"`
}

// StartRunResponse 启动运行响应
type StartRunResponse struct {
	RunID      string `json:"run_id"`
	WorkflowID string `json:"workflow_id"`
	Message    string `json:"message"`
}

// RunSummary 运行摘要信息
type RunSummary struct {
	RunID      string     `json:"run_id"`
	WorkflowID string     `json:"workflow_id"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Duration   string     `json:"duration,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// RunDetail 运行详细信息
type RunDetail struct {
	RunSummary
	Nodes        map[string]string       `json:"nodes"`
	Pending      []realtime.ApprovalInfo `json:"pending_requests,omitempty"`
	Output       any                     `json:"output,omitempty"`
	UsedFallback bool                    `json:"used_fallback,omitempty"`
}

// EventsResponse 运行事件响应
type EventsResponse struct {
	RunID string           `json:"run_id"`
	Items []realtime.Event `json:"items"`
}

// HistoryRecord 已落库的运行记录
type HistoryRecord struct {
	RunSummary
	Output any `json:"output,omitempty"`
}
