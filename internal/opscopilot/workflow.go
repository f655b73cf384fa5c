package opscopilot

import (
	_ "embed"
	"fmt"
	"time"

	"github.com/LENAX/agentflow/pkg/core/engine"
	"github.com/LENAX/agentflow/pkg/core/task"
	"github.com/LENAX/agentflow/pkg/core/workflow"
)

// WorkflowID OpsCopilot Workflow 的ID
const WorkflowID = "opscopilot"

// 节点ID
const (
	NodePrepareClassifier = "prepare_classifier"
	NodeClassifier        = "classifier"
	NodeParseTriage       = "parse_triage"
	NodeEnrichment        = "enrichment"
	NodeDangerousAction   = "dangerous_action"
	NodePrepareWriter     = "prepare_writer"
	NodeWriter            = "writer"
	NodeParsePlan         = "parse_plan"
	NodeAggregator        = "aggregator"
)

// ConditionNeedsApproval 注册中心里的审批条件名
const ConditionNeedsApproval = "opscopilot.needs_approval"

// NoResponse 汇总节点无结果时的输出
const NoResponse = "OpsCopilot produced no response"

//go:embed opscopilot.yaml
var definitionYAML []byte

// Copilot OpsCopilot 执行函数集合（对外导出）
type Copilot struct {
	runbooks    *RunbookCatalog
	streamDelay time.Duration
}

// Option Copilot 选项
type Option func(*Copilot)

// WithRunbooks 使用自定义处置手册目录
func WithRunbooks(catalog *RunbookCatalog) Option {
	return func(c *Copilot) { c.runbooks = catalog }
}

// WithStreamDelay 计划逐行输出的间隔
func WithStreamDelay(d time.Duration) Option {
	return func(c *Copilot) { c.streamDelay = d }
}

// New 创建 Copilot（对外导出）
func New(opts ...Option) (*Copilot, error) {
	c := &Copilot{}
	for _, opt := range opts {
		opt(c)
	}
	if c.runbooks == nil {
		catalog, err := DefaultRunbooks()
		if err != nil {
			return nil, err
		}
		c.runbooks = catalog
	}
	return c, nil
}

type namedFunc struct {
	name, desc string
	fn         task.Func
}

// functions 注册名 -> 执行函数，按声明顺序
func (c *Copilot) functions() []namedFunc {
	return []namedFunc{
		{"opscopilot.prepare_classifier", "把事件转换为分类请求", c.prepareClassifier},
		{"opscopilot.classifier", "规则分类器", c.classify},
		{"opscopilot.parse_triage", "解析分类结果", c.parseTriage},
		{"opscopilot.enrichment", "查询健康状态、处置手册与已知问题", c.enrich},
		{"opscopilot.dangerous_action", "审批后执行危险操作", c.dangerousAction},
		{"opscopilot.prepare_writer", "组装计划撰写请求", c.prepareWriter},
		{"opscopilot.writer", "规则计划撰写，逐行输出", c.write},
		{"opscopilot.parse_plan", "解析处置计划", c.parsePlan},
		{"opscopilot.aggregator", "汇总为可读报告", c.aggregate},
	}
}

// Register 把执行函数与条件函数注册到注册中心（对外导出）
// 注册后可通过 YAML 定义引用
func (c *Copilot) Register(registry *task.FunctionRegistry) error {
	for _, f := range c.functions() {
		if err := registry.Register(f.name, f.fn, f.desc); err != nil {
			return err
		}
	}
	return registry.RegisterCondition(ConditionNeedsApproval, needsApproval)
}

// Graph 构建 OpsCopilot 执行图（对外导出）
func (c *Copilot) Graph() (*workflow.Graph, error) {
	return workflow.NewBuilder(WorkflowID, "OpsCopilot Incident Triage").
		WithDescription("Automated incident triage with classification, enrichment, and response planning").
		AddExecutor(NodePrepareClassifier, c.prepareClassifier,
			[]workflow.InputBinding{workflow.Input("incident")},
			workflow.WithDescription("把事件转换为分类请求")).
		AddExecutor(NodeClassifier, c.classify,
			[]workflow.InputBinding{workflow.Node("request", NodePrepareClassifier)},
			workflow.WithServices(MemoryServiceName),
			workflow.WithDescription("规则分类器")).
		AddExecutor(NodeParseTriage, c.parseTriage,
			[]workflow.InputBinding{workflow.Node("response", NodeClassifier)}).
		AddExecutor(NodeEnrichment, c.enrich,
			[]workflow.InputBinding{workflow.Input("incident"), workflow.Node("triage", NodeParseTriage)},
			workflow.WithDescription("查询健康状态、处置手册与已知问题")).
		AddExecutor(NodeDangerousAction, c.dangerousAction,
			[]workflow.InputBinding{workflow.Node("triage", NodeParseTriage), workflow.Input("incident")},
			workflow.WithCondition(needsApproval),
			workflow.WithDescription("审批后执行危险操作")).
		AddExecutor(NodePrepareWriter, c.prepareWriter,
			[]workflow.InputBinding{
				workflow.Input("incident"),
				workflow.Node("triage", NodeParseTriage),
				workflow.Node("enrichment", NodeEnrichment),
				workflow.Optional("action", NodeDangerousAction),
			}).
		AddExecutor(NodeWriter, c.write,
			[]workflow.InputBinding{workflow.Node("request", NodePrepareWriter)},
			workflow.WithServices(MemoryServiceName),
			workflow.WithDescription("规则计划撰写，逐行输出")).
		AddExecutor(NodeParsePlan, c.parsePlan,
			[]workflow.InputBinding{workflow.Node("response", NodeWriter)}).
		AddExecutor(NodeAggregator, c.aggregate,
			[]workflow.InputBinding{
				workflow.Input("incident"),
				workflow.Node("triage", NodeParseTriage),
				workflow.Node("enrichment", NodeEnrichment),
				workflow.Optional("action", NodeDangerousAction),
				workflow.Node("plan", NodeParsePlan),
			},
			workflow.WithDescription("汇总为可读报告")).
		SetOutput(NodeAggregator).
		SetOutputFallback(NoResponse).
		Build()
}

// Definition 内置的 YAML 定义
func Definition() (*workflow.Definition, error) {
	return workflow.ParseDefinition(definitionYAML)
}

// Install 把 OpsCopilot 装入引擎（对外导出）
// 注册 ops_memory 服务、执行函数与 Workflow；mem 为 nil 时创建默认记忆
func Install(eng *engine.Engine, mem *OpsMemory, opts ...Option) (*workflow.Graph, error) {
	c, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if mem == nil {
		mem = NewOpsMemory(nil, DefaultMemoryTTL)
	}
	if err := c.Register(eng.Registry()); err != nil {
		return nil, fmt.Errorf("注册OpsCopilot执行函数失败: %w", err)
	}
	graph, err := c.Graph()
	if err != nil {
		return nil, err
	}
	eng.RegisterService(MemoryServiceName, mem)
	if err := eng.RegisterWorkflow(graph); err != nil {
		return nil, err
	}
	return graph, nil
}
