package workflow

import "fmt"

// SourceKind 输入来源类型（对外导出）
type SourceKind string

const (
	// SourceInput 运行的外部输入
	SourceInput SourceKind = "input"
	// SourceNode 上游节点的输出
	SourceNode SourceKind = "node"
	// SourceLiteral 字面量
	SourceLiteral SourceKind = "literal"
)

// InputRef YAML 定义中表示外部输入的引用名
const InputRef = "$input"

// Source 输入来源（对外导出）
type Source struct {
	Kind   SourceKind
	NodeID string // Kind=SourceNode 时有效
	Value  any    // Kind=SourceLiteral 时有效
}

// FromInput 外部输入来源
func FromInput() Source {
	return Source{Kind: SourceInput}
}

// FromNode 上游节点输出来源
func FromNode(nodeID string) Source {
	return Source{Kind: SourceNode, NodeID: nodeID}
}

// FromLiteral 字面量来源
func FromLiteral(v any) Source {
	return Source{Kind: SourceLiteral, Value: v}
}

func (s Source) String() string {
	switch s.Kind {
	case SourceInput:
		return InputRef
	case SourceNode:
		return s.NodeID
	default:
		return fmt.Sprintf("literal(%v)", s.Value)
	}
}

// InputBinding 节点的一个命名输入（对外导出）
// Required=false 时，上游被跳过不会导致本节点跳过，该参数缺席
type InputBinding struct {
	Param    string
	Source   Source
	Required bool
}

// Input 绑定外部输入
func Input(param string) InputBinding {
	return InputBinding{Param: param, Source: FromInput(), Required: true}
}

// Node 绑定上游节点输出（必需）
func Node(param, nodeID string) InputBinding {
	return InputBinding{Param: param, Source: FromNode(nodeID), Required: true}
}

// Optional 绑定上游节点输出（可选）
func Optional(param, nodeID string) InputBinding {
	return InputBinding{Param: param, Source: FromNode(nodeID), Required: false}
}

// Literal 绑定字面量
func Literal(param string, v any) InputBinding {
	return InputBinding{Param: param, Source: FromLiteral(v), Required: true}
}
