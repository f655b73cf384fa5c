package workflow

import (
	"errors"

	"github.com/LENAX/agentflow/pkg/core/dag"
)

// Builder Graph构建器（对外导出）
// 链式调用收集定义，所有校验延迟到 Build() 时进行
type Builder struct {
	id          string
	name        string
	description string
	nodes       map[string]*Executor
	order       []string
	output      string
	fallback    any
	errs        []error
}

// NewBuilder 创建构建器（对外导出）
func NewBuilder(id, name string) *Builder {
	if name == "" {
		name = id
	}
	return &Builder{
		id:    id,
		name:  name,
		nodes: make(map[string]*Executor),
	}
}

// WithDescription 设置描述（链式构建，对外导出）
func (b *Builder) WithDescription(desc string) *Builder {
	b.description = desc
	return b
}

// AddExecutor 添加执行器（链式构建，对外导出）
// inputs 的顺序即参数声明顺序；重复的ID在 Build() 时报 DuplicateIDError
func (b *Builder) AddExecutor(id string, body ExecutorFunc, inputs []InputBinding, opts ...ExecutorOption) *Builder {
	if _, exists := b.nodes[id]; exists {
		b.errs = append(b.errs, &DuplicateIDError{ID: id})
		return b
	}

	exec := &Executor{
		ID:     id,
		Inputs: append([]InputBinding(nil), inputs...),
		Body:   body,
	}
	for _, opt := range opts {
		opt(exec)
	}
	if err := validateExecutor(exec); err != nil {
		b.errs = append(b.errs, err)
	}

	b.nodes[id] = exec
	b.order = append(b.order, id)
	return b
}

// SetOutput 设置输出节点（链式构建，对外导出）
func (b *Builder) SetOutput(id string) *Builder {
	b.output = id
	return b
}

// SetOutputFallback 输出节点被跳过时 RunOutput 使用的值（链式构建，对外导出）
func (b *Builder) SetOutputFallback(v any) *Builder {
	b.fallback = v
	return b
}

// Build 校验并构建不可变的 Graph（对外导出）
// 纯校验，不执行任何节点
func (b *Builder) Build() (*Graph, error) {
	// 重复ID优先于其他定义错误报告
	for _, err := range b.errs {
		if errors.Is(err, ErrDuplicateID) {
			return nil, err
		}
	}
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}

	deps := make(map[string][]string, len(b.order))
	for _, id := range b.order {
		exec := b.nodes[id]
		for _, binding := range exec.Inputs {
			if binding.Source.Kind != SourceNode {
				continue
			}
			if _, ok := b.nodes[binding.Source.NodeID]; !ok {
				return nil, &UnknownReferenceError{NodeID: id, Param: binding.Param, Ref: binding.Source.NodeID}
			}
		}
		deps[id] = exec.Dependencies()
	}

	d, err := dag.Build(b.order, deps)
	if err != nil {
		var cycleErr *dag.CycleError
		if errors.As(err, &cycleErr) {
			return nil, &CycleError{Path: cycleErr.Path}
		}
		return nil, err
	}

	if b.output == "" {
		return nil, &NoOutputError{}
	}
	if _, ok := b.nodes[b.output]; !ok {
		return nil, &NoOutputError{ID: b.output}
	}

	nodes := make(map[string]*Executor, len(b.nodes))
	for id, exec := range b.nodes {
		cp := *exec
		nodes[id] = &cp
	}

	g := &Graph{
		id:          b.id,
		name:        b.name,
		description: b.description,
		nodes:       nodes,
		order:       append([]string(nil), b.order...),
		output:      b.output,
		fallback:    b.fallback,
		dag:         d,
	}
	g.outputPath = make(map[string]bool)
	g.outputPath[b.output] = true
	for _, id := range d.Ancestors(b.output) {
		g.outputPath[id] = true
	}
	return g, nil
}

func validateExecutor(exec *Executor) error {
	if exec.ID == "" {
		return &InvalidExecutorError{ID: exec.ID, Reason: "ID不能为空"}
	}
	if exec.ID == InputRef {
		return &InvalidExecutorError{ID: exec.ID, Reason: "ID与外部输入引用名冲突"}
	}
	if exec.Body == nil {
		return &InvalidExecutorError{ID: exec.ID, Reason: "执行函数不能为nil"}
	}
	seen := make(map[string]bool, len(exec.Inputs))
	for _, binding := range exec.Inputs {
		if binding.Param == "" {
			return &InvalidExecutorError{ID: exec.ID, Reason: "参数名不能为空"}
		}
		if seen[binding.Param] {
			return &InvalidExecutorError{ID: exec.ID, Reason: "参数名重复: " + binding.Param}
		}
		seen[binding.Param] = true
		if binding.Source.Kind == SourceNode && binding.Source.NodeID == "" {
			return &InvalidExecutorError{ID: exec.ID, Reason: "参数 " + binding.Param + " 未指定上游节点"}
		}
	}
	return nil
}
