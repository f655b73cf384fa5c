// Package opscopilot 事件分诊示例 Workflow
// 分类、补充信息、危险操作审批、生成处置计划，全部为确定性的规则实现，不依赖模型服务
package opscopilot

import (
	"encoding/json"
	"fmt"
	"strings"
)

// 分诊类别
const (
	CategoryIncident = "Incident"
	CategoryQuestion = "Question"
	CategoryChange   = "Change"
	CategorySecurity = "Security"
)

// 严重级别
const (
	Sev1 = "Sev1"
	Sev2 = "Sev2"
	Sev3 = "Sev3"
)

// 需要审批的危险操作
const (
	ActionRestartService = "restart_service"
	ActionOpenSev1Bridge = "open_sev1_bridge"
)

// Incident 待分诊的事件（对外导出）
type Incident struct {
	ID           string `json:"id" yaml:"id"`
	Title        string `json:"title" yaml:"title"`
	Description  string `json:"description" yaml:"description"`
	Service      string `json:"service" yaml:"service"`
	Customer     string `json:"customer" yaml:"customer"`
	SeverityHint string `json:"severity_hint,omitempty" yaml:"severity_hint"`
}

// Validate 校验必填字段
func (i Incident) Validate() error {
	var missing []string
	if i.ID == "" {
		missing = append(missing, "id")
	}
	if i.Title == "" {
		missing = append(missing, "title")
	}
	if i.Service == "" {
		missing = append(missing, "service")
	}
	if len(missing) > 0 {
		return fmt.Errorf("事件缺少字段: %s", strings.Join(missing, ", "))
	}
	return nil
}

// TriageResult 分类结果（对外导出）
type TriageResult struct {
	Category       string  `json:"category"`
	Severity       string  `json:"severity"`
	Confidence     float64 `json:"confidence"`
	NextAction     string  `json:"next_action"`
	NeedsApproval  bool    `json:"needs_approval"`
	ApprovalAction string  `json:"approval_action,omitempty"`
}

// Validate 校验取值范围
func (t TriageResult) Validate() error {
	switch t.Category {
	case CategoryIncident, CategoryQuestion, CategoryChange, CategorySecurity:
	default:
		return fmt.Errorf("未知类别: %q", t.Category)
	}
	switch t.Severity {
	case Sev1, Sev2, Sev3:
	default:
		return fmt.Errorf("未知严重级别: %q", t.Severity)
	}
	if t.Confidence < 0 || t.Confidence > 1 {
		return fmt.Errorf("置信度超出范围: %v", t.Confidence)
	}
	switch t.ApprovalAction {
	case "", ActionRestartService, ActionOpenSev1Bridge:
	default:
		return fmt.Errorf("未知审批操作: %q", t.ApprovalAction)
	}
	return nil
}

// Enrichment 工具查询得到的补充信息（对外导出）
type Enrichment struct {
	ServiceHealth  string `json:"service_health"`
	RunbookSnippet string `json:"runbook_snippet"`
	KnownIssue     string `json:"known_issue"`
}

// FinalPlan 处置计划（对外导出）
type FinalPlan struct {
	Summary         string   `json:"summary"`
	Steps           []string `json:"steps"`
	CustomerMessage string   `json:"customer_message"`
	InternalNote    string   `json:"internal_note"`
}

// ApprovalPayload 危险操作审批请求内容
type ApprovalPayload struct {
	Action     string `json:"action"`
	IncidentID string `json:"incident_id"`
	Service    string `json:"service"`
	Customer   string `json:"customer"`
	Severity   string `json:"severity"`
	Reason     string `json:"reason"`
}

// ActionResult 危险操作执行结果
type ActionResult struct {
	Action   string `json:"action"`
	Approved bool   `json:"approved"`
	Message  string `json:"message"`
}

// IncidentFrom 把运行输入转换为 Incident（对外导出）
// 支持 Incident、*Incident、事件ID字符串，以及经JSON解码得到的 map
func IncidentFrom(v any) (Incident, error) {
	switch in := v.(type) {
	case Incident:
		return in, in.Validate()
	case *Incident:
		if in == nil {
			return Incident{}, fmt.Errorf("事件为空")
		}
		return *in, in.Validate()
	case string:
		inc, ok := IncidentByID(in)
		if !ok {
			return Incident{}, fmt.Errorf("未知事件ID: %s", in)
		}
		return inc, nil
	case nil:
		return Incident{}, fmt.Errorf("事件为空")
	default:
		data, err := json.Marshal(in)
		if err != nil {
			return Incident{}, fmt.Errorf("无法识别的事件输入 %T: %w", v, err)
		}
		var inc Incident
		if err := json.Unmarshal(data, &inc); err != nil {
			return Incident{}, fmt.Errorf("无法识别的事件输入 %T: %w", v, err)
		}
		return inc, inc.Validate()
	}
}
