package workflow

import (
	"github.com/LENAX/agentflow/pkg/core/dag"
)

// Graph 已校验的不可变执行图（对外导出）
// 构建一次，可被多个运行实例并发只读共享
type Graph struct {
	id          string
	name        string
	description string
	nodes       map[string]*Executor
	order       []string
	output      string
	fallback    any
	dag         *dag.DAG
	outputPath  map[string]bool // 输出节点及其全部上游
}

// ID Graph ID
func (g *Graph) ID() string { return g.id }

// Name Graph名称
func (g *Graph) Name() string { return g.name }

// Description 描述
func (g *Graph) Description() string { return g.description }

// Output 输出节点ID
func (g *Graph) Output() string { return g.output }

// Fallback 输出节点被跳过时的输出值
func (g *Graph) Fallback() any { return g.fallback }

// Len 节点数量
func (g *Graph) Len() int { return len(g.order) }

// Node 按ID获取执行器
func (g *Graph) Node(id string) (*Executor, bool) {
	exec, ok := g.nodes[id]
	return exec, ok
}

// NodeIDs 全部节点ID（声明顺序）
func (g *Graph) NodeIDs() []string {
	return append([]string(nil), g.order...)
}

// Nodes 全部执行器（声明顺序）
func (g *Graph) Nodes() []*Executor {
	out := make([]*Executor, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Dependencies 直接上游
func (g *Graph) Dependencies(id string) []string { return g.dag.Parents(id) }

// Dependents 直接下游
func (g *Graph) Dependents(id string) []string { return g.dag.Children(id) }

// Ancestors 全部传递上游
func (g *Graph) Ancestors(id string) []string { return g.dag.Ancestors(id) }

// Levels 拓扑分层
func (g *Graph) Levels() [][]string { return g.dag.Levels() }

// OnOutputPath 节点是否位于输出节点的依赖路径上（含输出节点自身）
func (g *Graph) OnOutputPath(id string) bool { return g.outputPath[id] }
