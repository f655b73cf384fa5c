package engine

import (
	"github.com/LENAX/agentflow/pkg/core/task"
	"github.com/LENAX/agentflow/pkg/core/types"
	"github.com/LENAX/agentflow/pkg/core/workflow"
)

// resolution 依赖解析结果
type resolution int

const (
	resolveWait        resolution = iota // 仍有上游未结束
	resolveReady                         // 全部输入可用
	resolveUnreachable                   // 必需上游无值，节点不可达
)

// resolve 解析节点输入
// 外部输入与字面量总是可用；上游完成则取其值；
// 上游无值时，可选绑定缺席，必需绑定使节点不可达
func resolve(st *runState, exec *workflow.Executor) (task.Inputs, resolution) {
	in := make(task.Inputs, len(exec.Inputs))
	waiting := false
	for _, b := range exec.Inputs {
		switch b.Source.Kind {
		case workflow.SourceInput:
			in[b.Param] = st.input
		case workflow.SourceLiteral:
			in[b.Param] = b.Source.Value
		case workflow.SourceNode:
			src := b.Source.NodeID
			switch {
			case st.status[src] == types.NodeStatusCompleted:
				in[b.Param] = st.completed[src]
			case st.absent[src]:
				if b.Required {
					return nil, resolveUnreachable
				}
			default:
				waiting = true
			}
		}
	}
	if waiting {
		return nil, resolveWait
	}
	return in, resolveReady
}
