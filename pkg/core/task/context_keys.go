package task

import "context"

// context key类型，用于类型安全的context.Value访问
type contextKey string

const (
	// RunIDKey 运行实例ID在context中的key
	RunIDKey contextKey = "run.id"
	// WorkflowIDKey Workflow ID在context中的key
	WorkflowIDKey contextKey = "workflow.id"
	// NodeIDKey 节点ID在context中的key
	NodeIDKey contextKey = "node.id"
)

// WithRunID 将运行实例ID添加到context中（对外导出）
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDKey, runID)
}

// GetRunID 从context中获取运行实例ID（对外导出）
func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

// WithWorkflowID 将Workflow ID添加到context中（对外导出）
func WithWorkflowID(ctx context.Context, workflowID string) context.Context {
	return context.WithValue(ctx, WorkflowIDKey, workflowID)
}

// GetWorkflowID 从context中获取Workflow ID（对外导出）
func GetWorkflowID(ctx context.Context) string {
	if id, ok := ctx.Value(WorkflowIDKey).(string); ok {
		return id
	}
	return ""
}

// WithNodeID 将节点ID添加到context中（对外导出）
func WithNodeID(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, NodeIDKey, nodeID)
}

// GetNodeID 从context中获取节点ID（对外导出）
func GetNodeID(ctx context.Context) string {
	if id, ok := ctx.Value(NodeIDKey).(string); ok {
		return id
	}
	return ""
}
