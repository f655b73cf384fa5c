package opscopilot

import (
	"fmt"
	"strings"
)

// ClassifierRequest 分类请求
type ClassifierRequest struct {
	Prompt   string   `json:"prompt"`
	Incident Incident `json:"incident"`
}

// WriterRequest 计划撰写请求
type WriterRequest struct {
	Prompt     string        `json:"prompt"`
	Incident   Incident      `json:"incident"`
	Triage     TriageResult  `json:"triage"`
	Enrichment Enrichment    `json:"enrichment"`
	Action     *ActionResult `json:"action,omitempty"`
}

func classifierPrompt(inc Incident) string {
	hint := inc.SeverityHint
	if hint == "" {
		hint = "Not provided"
	}
	return fmt.Sprintf(`Please triage the following incident:

ID: %s
Title: %s
Description: %s
Service: %s
Customer: %s
Severity Hint: %s

Classify this incident and determine the appropriate response.`,
		inc.ID, inc.Title, inc.Description, inc.Service, inc.Customer, hint)
}

func writerPrompt(req WriterRequest) string {
	action := "N/A - No dangerous action was executed"
	if req.Action != nil {
		action = req.Action.Message
	}
	return fmt.Sprintf(`Create an incident response plan based on the following:

## Incident
- ID: %s
- Title: %s
- Description: %s
- Service: %s
- Customer: %s

## Triage Result
- Category: %s
- Severity: %s
- Confidence: %.2f
- Recommended Action: %s

## Enrichment Data
Service Health: %s

Runbook:
%s

Known Issues: %s

## Dangerous Action Result
%s`,
		req.Incident.ID, req.Incident.Title, req.Incident.Description, req.Incident.Service, req.Incident.Customer,
		req.Triage.Category, req.Triage.Severity, req.Triage.Confidence, req.Triage.NextAction,
		req.Enrichment.ServiceHealth, req.Enrichment.RunbookSnippet, req.Enrichment.KnownIssue, action)
}

func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

// Classify 规则分类（对外导出）
// 按标题与描述中的关键字确定类别，严重级别参考 severity hint
func Classify(inc Incident) TriageResult {
	text := strings.ToLower(inc.Title + " " + inc.Description)
	hint := strings.ToLower(inc.SeverityHint)

	var t TriageResult
	switch {
	case containsAny(text, "suspicious", "brute force", "unauthorized", "breach"):
		t.Category, t.Confidence = CategorySecurity, 0.95
	case containsAny(text, "how to", "question"):
		t.Category, t.Confidence = CategoryQuestion, 0.9
	case containsAny(text, "expires", "expiring", "renewal", "planned change"):
		t.Category, t.Confidence = CategoryChange, 0.85
	default:
		t.Category, t.Confidence = CategoryIncident, 0.8
	}
	if hint == "" {
		t.Confidence -= 0.15
	}

	switch t.Category {
	case CategorySecurity:
		t.Severity = Sev1
	case CategoryQuestion:
		t.Severity = Sev3
	case CategoryChange:
		t.Severity = Sev3
		if hint == "high" || hint == "critical" {
			t.Severity = Sev2
		}
	default:
		switch {
		case hint == "critical", containsAny(text, "outage", "data loss", "is down"):
			t.Severity = Sev1
		case hint == "high", hint == "medium":
			t.Severity = Sev2
		default:
			t.Severity = Sev3
		}
	}

	switch {
	case t.Severity == Sev1:
		t.NeedsApproval, t.ApprovalAction = true, ActionOpenSev1Bridge
	case t.Category == CategoryIncident && t.Severity == Sev2 &&
		containsAny(text, "notready", "out of memory", "cpu"):
		t.NeedsApproval, t.ApprovalAction = true, ActionRestartService
	}

	switch {
	case t.Category == CategorySecurity:
		t.NextAction = "Block the offending source and open a Sev1 bridge with the security team"
	case t.Category == CategoryQuestion:
		t.NextAction = "Reply with guidance from the product documentation"
	case t.Category == CategoryChange:
		t.NextAction = fmt.Sprintf("Schedule the change with the %s owners", inc.Service)
	case t.ApprovalAction == ActionRestartService:
		t.NextAction = fmt.Sprintf("Restart %s after approval and monitor recovery", inc.Service)
	case t.ApprovalAction == ActionOpenSev1Bridge:
		t.NextAction = fmt.Sprintf("Open a Sev1 bridge for %s and engage the service owners", inc.ID)
	default:
		t.NextAction = fmt.Sprintf("Investigate %s following the runbook and monitor", inc.Service)
	}
	return t
}

// runbookSteps 从处置手册文本中取出步骤
func runbookSteps(snippet string) []string {
	var steps []string
	for _, line := range strings.Split(snippet, "\n") {
		line = strings.TrimSpace(line)
		dot := strings.Index(line, ". ")
		if dot <= 0 {
			continue
		}
		if _, err := fmt.Sscanf(line[:dot], "%d", new(int)); err != nil {
			continue
		}
		steps = append(steps, line[dot+2:])
	}
	return steps
}

// maxPlanSteps 计划步骤上限
const maxPlanSteps = 6

// WritePlan 规则撰写处置计划（对外导出）
// language 决定客户消息语言
func WritePlan(req WriterRequest, language string) FinalPlan {
	inc, triage := req.Incident, req.Triage

	plan := FinalPlan{
		Summary: fmt.Sprintf("%s %s on %s for %s: %s. %s",
			triage.Severity, triage.Category, inc.Service, inc.Customer, inc.Title, req.Enrichment.ServiceHealth),
	}

	plan.Steps = append(plan.Steps, fmt.Sprintf("Confirm current status of %s", inc.Service))
	if steps := runbookSteps(req.Enrichment.RunbookSnippet); len(steps) > 0 {
		plan.Steps = append(plan.Steps, steps...)
	} else {
		plan.Steps = append(plan.Steps, triage.NextAction)
	}
	if strings.HasPrefix(req.Enrichment.KnownIssue, "KI-") {
		id, _, _ := strings.Cut(req.Enrichment.KnownIssue, ":")
		plan.Steps = append(plan.Steps, fmt.Sprintf("Check applicability of known issue %s", id))
	}
	if len(plan.Steps) > maxPlanSteps-1 {
		plan.Steps = plan.Steps[:maxPlanSteps-1]
	}
	switch {
	case req.Action == nil:
		plan.Steps = append(plan.Steps, "Update the customer when mitigation is confirmed")
	case req.Action.Approved:
		plan.Steps = append(plan.Steps, fmt.Sprintf("Verify the outcome of %s", req.Action.Action))
	default:
		plan.Steps = append(plan.Steps, fmt.Sprintf("%s was rejected, continue with manual mitigation", req.Action.Action))
	}

	if strings.EqualFold(language, DefaultLanguage) {
		plan.CustomerMessage = fmt.Sprintf("שלום %s, אנו מטפלים בתקלה בשירות %s (%s) ונעדכן אתכם בהקדם.",
			inc.Customer, inc.Service, inc.ID)
	} else {
		plan.CustomerMessage = fmt.Sprintf("Hello %s, we are investigating the issue affecting %s (%s) and will update you shortly.",
			inc.Customer, inc.Service, inc.ID)
	}

	note := []string{
		fmt.Sprintf("Triage %s/%s at %.0f%% confidence.", triage.Category, triage.Severity, triage.Confidence*100),
		fmt.Sprintf("Known issues: %s", req.Enrichment.KnownIssue),
	}
	if req.Action != nil {
		note = append(note, fmt.Sprintf("Action: %s", req.Action.Message))
	}
	plan.InternalNote = strings.Join(note, " ")
	return plan
}

// planLines 计划的逐行文本（用于流式输出）
func planLines(plan FinalPlan) []string {
	lines := []string{"Summary: " + plan.Summary}
	for i, step := range plan.Steps {
		lines = append(lines, fmt.Sprintf("Step %d: %s", i+1, step))
	}
	lines = append(lines, "Customer message: "+plan.CustomerMessage, "Internal note: "+plan.InternalNote)
	return lines
}
