// Package dag 封装 go-dag，提供节点依赖图的构建、循环检测与拓扑分层
package dag

import (
	"fmt"
	"sort"
	"strings"

	godag "github.com/begmaroman/go-dag"
)

// vertex go-dag 节点载体（实现 Identifiable 接口）
type vertex struct {
	nodeID string
}

// ID 实现 Identifiable 接口
func (v *vertex) ID() string {
	return v.nodeID
}

// Hash 实现 Hashable 接口，按节点ID计算哈希
// 默认哈希对结构体做JSON序列化，未导出字段会让所有节点哈希相同
func (v *vertex) Hash() (godag.VHash, error) {
	return godag.ToHash(v.nodeID)
}

// CycleError 循环依赖错误（对外导出）
type CycleError struct {
	Path []string // 环路径，首尾为同一节点
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("检测到循环依赖: %s", strings.Join(e.Path, " -> "))
}

// DAG 只读依赖图（对外导出）
// 构建完成后不再修改，可被多个运行实例并发读取
type DAG struct {
	inner *godag.DAG[*vertex]
	order []string       // 节点声明顺序
	index map[string]int // 节点ID -> 声明序号
}

// Build 根据节点列表与依赖关系构建DAG（对外导出）
// nodes: 节点ID列表（声明顺序）
// deps: 节点ID -> 该节点依赖的上游节点ID列表
// 先用DFS一次性检测循环，再写入 go-dag，避免逐条加边时的重复检查
func Build(nodes []string, deps map[string][]string) (*DAG, error) {
	index := make(map[string]int, len(nodes))
	for i, id := range nodes {
		if _, exists := index[id]; exists {
			return nil, fmt.Errorf("节点 %s 重复", id)
		}
		index[id] = i
	}

	// 邻接表：上游 -> 下游
	children := make(map[string][]string, len(nodes))
	for _, id := range nodes {
		for _, dep := range uniq(deps[id]) {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("节点 %s 依赖的节点 %s 不存在", id, dep)
			}
			children[dep] = append(children[dep], id)
		}
	}

	if path := DetectCycle(nodes, children); path != nil {
		return nil, &CycleError{Path: path}
	}

	d := &DAG{
		inner: godag.NewDAG[*vertex](),
		order: append([]string(nil), nodes...),
		index: index,
	}
	for _, id := range nodes {
		if err := d.inner.AddVertexByID(id, &vertex{nodeID: id}); err != nil {
			return nil, fmt.Errorf("添加节点失败: NodeID=%s, Error=%w", id, err)
		}
	}
	for _, id := range nodes {
		for _, dep := range uniq(deps[id]) {
			if err := d.inner.AddEdge(dep, id); err != nil {
				return nil, fmt.Errorf("添加边失败: %s -> %s, Error=%w", dep, id, err)
			}
		}
	}
	return d, nil
}

// DetectCycle 三色标记DFS检测环（对外导出）
// 按 nodes 的顺序遍历，结果确定；无环返回 nil
func DetectCycle(nodes []string, children map[string][]string) []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(nodes))
	parent := make(map[string]string, len(nodes))
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		for _, child := range children[id] {
			switch color[child] {
			case white:
				parent[child] = id
				if visit(child) {
					return true
				}
			case grey:
				// 回溯父链得到环，再反转为正向路径
				rev := []string{child, id}
				for cur := id; cur != child; {
					cur = parent[cur]
					rev = append(rev, cur)
				}
				for i := len(rev) - 1; i >= 0; i-- {
					cycle = append(cycle, rev[i])
				}
				return true
			}
		}
		color[id] = black
		return false
	}

	for _, id := range nodes {
		if color[id] == white && visit(id) {
			return cycle
		}
	}
	return nil
}

// Nodes 返回全部节点ID（声明顺序）
func (d *DAG) Nodes() []string {
	return append([]string(nil), d.order...)
}

// Size 节点数量
func (d *DAG) Size() int {
	return len(d.order)
}

// Has 节点是否存在
func (d *DAG) Has(id string) bool {
	_, ok := d.index[id]
	return ok
}

// Parents 返回直接上游节点（声明顺序）
func (d *DAG) Parents(id string) []string {
	parents, err := d.inner.GetParents(id)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(parents))
	for pid := range parents {
		ids = append(ids, pid)
	}
	return d.sorted(ids)
}

// Children 返回直接下游节点（声明顺序）
func (d *DAG) Children(id string) []string {
	children, err := d.inner.GetChildren(id)
	if err != nil {
		return nil
	}
	ids := make([]string, 0, len(children))
	for cid := range children {
		ids = append(ids, cid)
	}
	return d.sorted(ids)
}

// Roots 返回没有上游的节点（声明顺序）
func (d *DAG) Roots() []string {
	roots := d.inner.GetRoots()
	ids := make([]string, 0, len(roots))
	for id := range roots {
		ids = append(ids, id)
	}
	return d.sorted(ids)
}

// Ancestors 返回节点的全部传递上游（声明顺序，不含自身）
func (d *DAG) Ancestors(id string) []string {
	seen := make(map[string]bool)
	stack := d.Parents(id)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		stack = append(stack, d.Parents(cur)...)
	}
	ids := make([]string, 0, len(seen))
	for a := range seen {
		ids = append(ids, a)
	}
	return d.sorted(ids)
}

// Levels Kahn 算法拓扑分层，同层节点之间无依赖，可并行执行
func (d *DAG) Levels() [][]string {
	inDegree := make(map[string]int, len(d.order))
	for _, id := range d.order {
		inDegree[id] = len(d.Parents(id))
	}

	var levels [][]string
	queue := d.Roots()
	for len(queue) > 0 {
		levels = append(levels, queue)
		var next []string
		for _, id := range queue {
			for _, child := range d.Children(id) {
				inDegree[child]--
				if inDegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		queue = d.sorted(next)
	}
	return levels
}

func (d *DAG) sorted(ids []string) []string {
	sort.Slice(ids, func(i, j int) bool {
		return d.index[ids[i]] < d.index[ids[j]]
	})
	return ids
}

func uniq(ids []string) []string {
	if len(ids) < 2 {
		return ids
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
