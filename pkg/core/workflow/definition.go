package workflow

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/LENAX/agentflow/pkg/core/task"
)

// Definition YAML 形式的 Workflow 定义（对外导出）
// 执行函数与条件函数按名称引用 FunctionRegistry 中的注册项
type Definition struct {
	WorkflowID  string           `yaml:"workflow_id"`
	Name        string           `yaml:"name"`
	Description string           `yaml:"description"`
	Params      map[string]any   `yaml:"params"`
	Output      string           `yaml:"output"`
	Fallback    any              `yaml:"fallback"`
	Nodes       []NodeDefinition `yaml:"nodes"`
}

// NodeDefinition 节点定义
type NodeDefinition struct {
	ID          string              `yaml:"id"`
	Executor    string              `yaml:"executor"`
	Description string              `yaml:"description"`
	Inputs      []BindingDefinition `yaml:"inputs"`
	Condition   string              `yaml:"condition"`
	BestEffort  bool                `yaml:"best_effort"`
	Timeout     time.Duration       `yaml:"timeout"`
	Retries     *int                `yaml:"retries"` // 未设置时使用引擎默认值
	Services    []string            `yaml:"services"`
}

// BindingDefinition 输入绑定定义
// from 为 "$input" 表示外部输入，为节点ID表示上游输出；未设置 from 时使用 literal
type BindingDefinition struct {
	Param    string `yaml:"param"`
	From     string `yaml:"from"`
	Literal  any    `yaml:"literal"`
	Optional bool   `yaml:"optional"`
}

// ParseDefinition 解析YAML定义（对外导出）
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("解析Workflow定义失败: %w", err)
	}
	if def.WorkflowID == "" {
		return nil, fmt.Errorf("Workflow定义缺少 workflow_id")
	}
	return &def, nil
}

// LoadDefinition 从文件加载YAML定义（对外导出）
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取Workflow定义文件失败: %w", err)
	}
	return ParseDefinition(data)
}

// Build 通过注册中心解析函数引用，构建 Graph（对外导出）
func (d *Definition) Build(registry *task.FunctionRegistry) (*Graph, error) {
	if registry == nil {
		return nil, fmt.Errorf("函数注册中心不能为nil")
	}

	b := NewBuilder(d.WorkflowID, d.Name).WithDescription(d.Description)
	for _, node := range d.Nodes {
		body, ok := registry.Get(node.Executor)
		if !ok {
			return nil, &InvalidExecutorError{ID: node.ID, Reason: fmt.Sprintf("执行函数 %s 未注册", node.Executor)}
		}

		inputs := make([]InputBinding, 0, len(node.Inputs))
		for _, in := range node.Inputs {
			binding, err := d.binding(in)
			if err != nil {
				return nil, &InvalidExecutorError{ID: node.ID, Reason: err.Error()}
			}
			inputs = append(inputs, binding)
		}

		opts := []ExecutorOption{
			WithDescription(node.Description),
			WithTimeout(node.Timeout),
			WithServices(node.Services...),
		}
		if node.Retries != nil {
			opts = append(opts, WithRetry(*node.Retries))
		}
		if node.BestEffort {
			opts = append(opts, BestEffort())
		}
		if node.Condition != "" {
			cond, ok := registry.GetCondition(node.Condition)
			if !ok {
				return nil, &InvalidExecutorError{ID: node.ID, Reason: fmt.Sprintf("条件函数 %s 未注册", node.Condition)}
			}
			opts = append(opts, WithCondition(cond))
		}

		b.AddExecutor(node.ID, body, inputs, opts...)
	}

	if d.Output != "" {
		b.SetOutput(d.Output)
	}
	if d.Fallback != nil {
		b.SetOutputFallback(d.Fallback)
	}
	return b.Build()
}

func (d *Definition) binding(in BindingDefinition) (InputBinding, error) {
	switch {
	case in.From == InputRef:
		return Input(in.Param), nil
	case in.From != "":
		if in.Optional {
			return Optional(in.Param, in.From), nil
		}
		return Node(in.Param, in.From), nil
	default:
		value, err := ReplaceParams(in.Literal, d.Params)
		if err != nil {
			return InputBinding{}, fmt.Errorf("参数 %s: %w", in.Param, err)
		}
		return Literal(in.Param, value), nil
	}
}
