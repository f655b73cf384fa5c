package opscopilot

import (
	"fmt"
	"strings"
)

// Report 汇总输出
type Report struct {
	Incident   Incident
	Triage     TriageResult
	Enrichment Enrichment
	Plan       FinalPlan
	Action     *ActionResult
}

// Render 渲染为可读文本
func (r Report) Render() string {
	heavy := strings.Repeat("=", 60)
	light := strings.Repeat("─", 40)
	section := func(b *strings.Builder, title string) {
		fmt.Fprintf(b, "\n%s\n%s\n%s\n", light, title, light)
	}
	approval := "No"
	if r.Triage.NeedsApproval {
		approval = "Yes"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n🎯 OPSCOPILOT INCIDENT RESPONSE\n%s\n\n", heavy, heavy)
	fmt.Fprintf(&b, "📋 Incident: %s - %s\n", r.Incident.ID, r.Incident.Title)
	fmt.Fprintf(&b, "👤 Customer: %s\n", r.Incident.Customer)
	fmt.Fprintf(&b, "🔧 Service: %s\n", r.Incident.Service)

	section(&b, "📊 TRIAGE")
	fmt.Fprintf(&b, "Category: %s\n", r.Triage.Category)
	fmt.Fprintf(&b, "Severity: %s\n", r.Triage.Severity)
	fmt.Fprintf(&b, "Confidence: %.0f%%\n", r.Triage.Confidence*100)
	fmt.Fprintf(&b, "Next Action: %s\n", r.Triage.NextAction)
	fmt.Fprintf(&b, "Approval Required: %s\n", approval)

	section(&b, "🔍 ENRICHMENT")
	fmt.Fprintf(&b, "Health: %s\n", r.Enrichment.ServiceHealth)
	fmt.Fprintf(&b, "Known Issue: %s\n", r.Enrichment.KnownIssue)

	section(&b, "📝 PLAN")
	fmt.Fprintf(&b, "Summary: %s\n\nSteps:\n", r.Plan.Summary)
	for i, step := range r.Plan.Steps {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, step)
	}

	section(&b, "💬 CUSTOMER MESSAGE")
	b.WriteString(r.Plan.CustomerMessage + "\n")

	section(&b, "🔒 INTERNAL NOTE")
	b.WriteString(r.Plan.InternalNote + "\n")

	if r.Action != nil {
		if r.Action.Approved {
			section(&b, "⚠️ DANGEROUS ACTION EXECUTED")
		} else {
			section(&b, "⛔ DANGEROUS ACTION NOT EXECUTED")
		}
		b.WriteString(r.Action.Message + "\n")
	}

	fmt.Fprintf(&b, "\n%s\n✅ END OF OPSCOPILOT RESPONSE\n%s", heavy, heavy)
	return b.String()
}
