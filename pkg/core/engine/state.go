package engine

import (
	"github.com/LENAX/agentflow/pkg/core/task"
	"github.com/LENAX/agentflow/pkg/core/types"
	"github.com/LENAX/agentflow/pkg/core/workflow"
)

// runState 单次运行的调度状态
// 只由该运行的调度协程读写
type runState struct {
	input     any
	status    map[string]types.NodeStatus
	completed map[string]any
	skipped   map[string]string // 节点 -> 跳过原因
	failed    map[string]error
	absent    map[string]bool        // 对下游视为"无值"：跳过或尽力而为节点失败
	inputs    map[string]task.Inputs // 已派发节点的输入，审批恢复时复用
	suspended map[string]string      // 节点 -> 审批请求ID
	inFlight  int
}

func newRunState(graph *workflow.Graph, input any) *runState {
	st := &runState{
		input:     input,
		status:    make(map[string]types.NodeStatus, graph.Len()),
		completed: make(map[string]any),
		skipped:   make(map[string]string),
		failed:    make(map[string]error),
		absent:    make(map[string]bool),
		inputs:    make(map[string]task.Inputs),
		suspended: make(map[string]string),
	}
	for _, id := range graph.NodeIDs() {
		st.status[id] = types.NodeStatusPending
	}
	return st
}
