package opscopilot

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FallbackTriage 分类结果无法解析时使用的默认值
func FallbackTriage() TriageResult {
	return TriageResult{
		Category:   CategoryIncident,
		Severity:   Sev2,
		Confidence: 0.5,
		NextAction: "Manual review required",
	}
}

// FallbackPlan 计划无法解析时使用的默认值
func FallbackPlan(cause error) FinalPlan {
	return FinalPlan{
		Summary:         "Plan parsing failed - manual review required",
		Steps:           []string{"Review incident manually", "Contact on-call engineer"},
		CustomerMessage: "We are investigating your issue and will update you shortly.",
		InternalNote:    fmt.Sprintf("Auto-plan failed: %v", cause),
	}
}

// decodeJSON 从回复中解码JSON对象，允许前后夹带说明文字或代码块标记
func decodeJSON(v any, out any) error {
	var data []byte
	switch r := v.(type) {
	case string:
		start, end := strings.Index(r, "{"), strings.LastIndex(r, "}")
		if start < 0 || end < start {
			return fmt.Errorf("回复中没有JSON对象")
		}
		data = []byte(r[start : end+1])
	case []byte:
		data = r
	case nil:
		return fmt.Errorf("回复为空")
	default:
		var err error
		if data, err = json.Marshal(r); err != nil {
			return fmt.Errorf("无法编码回复 %T: %w", v, err)
		}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("解码回复失败: %w", err)
	}
	return nil
}

// ParseTriage 解析分类回复（对外导出）
// 失败时返回 FallbackTriage() 与原因
func ParseTriage(v any) (TriageResult, error) {
	switch r := v.(type) {
	case TriageResult:
		if err := r.Validate(); err != nil {
			return FallbackTriage(), err
		}
		return r, nil
	case *TriageResult:
		if r != nil {
			return ParseTriage(*r)
		}
	}

	var t TriageResult
	if err := decodeJSON(v, &t); err != nil {
		return FallbackTriage(), err
	}
	if err := t.Validate(); err != nil {
		return FallbackTriage(), err
	}
	if t.NeedsApproval && t.ApprovalAction == "" {
		return FallbackTriage(), fmt.Errorf("需要审批但未指定操作")
	}
	return t, nil
}

// ParsePlan 解析计划回复（对外导出）
// 失败时返回 FallbackPlan(err) 与原因
func ParsePlan(v any) (FinalPlan, error) {
	if p, ok := v.(FinalPlan); ok {
		return p, nil
	}
	var p FinalPlan
	if err := decodeJSON(v, &p); err != nil {
		return FallbackPlan(err), err
	}
	if p.Summary == "" || len(p.Steps) == 0 {
		err := fmt.Errorf("计划缺少摘要或步骤")
		return FallbackPlan(err), err
	}
	return p, nil
}

// Approved 解释审批决定（对外导出）
// 接受 bool、"approve"/"yes" 等字符串，以及 {"approved": true} 或 {"decision": "approve"}
func Approved(decision any) bool {
	switch d := decision.(type) {
	case bool:
		return d
	case string:
		switch strings.ToLower(strings.TrimSpace(d)) {
		case "approve", "approved", "yes", "y", "true", "ok":
			return true
		}
	case map[string]any:
		if v, ok := d["approved"]; ok {
			return Approved(v)
		}
		if v, ok := d["decision"]; ok {
			return Approved(v)
		}
	}
	return false
}
