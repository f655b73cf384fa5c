package opscopilot

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LENAX/agentflow/pkg/core/cache"
)

func TestIncidents(t *testing.T) {
	ids := IncidentIDs()
	require.Len(t, ids, 8)
	assert.Equal(t, "INC-001", ids[0])
	assert.Equal(t, "INC-008", ids[7])

	inc, ok := IncidentByID("INC-004")
	require.True(t, ok)
	assert.Equal(t, "Identity-Prod", inc.Service)

	_, ok = IncidentByID("INC-999")
	assert.False(t, ok)

	all := Incidents()
	all[0].Title = "changed"
	again, _ := IncidentByID("INC-001")
	assert.Equal(t, "AKS Node NotReady", again.Title, "Incidents 应返回副本")
}

func TestIncidentFrom(t *testing.T) {
	inc, err := IncidentFrom("INC-002")
	require.NoError(t, err)
	assert.Equal(t, "Fabrikam", inc.Customer)

	inc, err = IncidentFrom(map[string]any{
		"id": "INC-100", "title": "Disk full", "service": "VM-Web", "customer": "Contoso",
	})
	require.NoError(t, err)
	assert.Equal(t, "Disk full", inc.Title)

	ptr := &Incident{ID: "INC-101", Title: "x", Service: "y"}
	inc, err = IncidentFrom(ptr)
	require.NoError(t, err)
	assert.Equal(t, "INC-101", inc.ID)

	_, err = IncidentFrom("INC-999")
	assert.Error(t, err)
	_, err = IncidentFrom(nil)
	assert.Error(t, err)
	_, err = IncidentFrom(map[string]any{"id": "INC-102"})
	assert.ErrorContains(t, err, "title")
}

func TestClassify_Incidents(t *testing.T) {
	tests := []struct {
		id       string
		category string
		severity string
		action   string
	}{
		{"INC-001", CategoryIncident, Sev2, ActionRestartService},
		{"INC-002", CategoryIncident, Sev2, ActionRestartService},
		{"INC-003", CategoryIncident, Sev2, ""},
		{"INC-004", CategorySecurity, Sev1, ActionOpenSev1Bridge},
		{"INC-005", CategoryIncident, Sev2, ""},
		{"INC-006", CategoryChange, Sev3, ""},
		{"INC-007", CategoryQuestion, Sev3, ""},
		{"INC-008", CategoryIncident, Sev2, ActionRestartService},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			inc, ok := IncidentByID(tt.id)
			require.True(t, ok)
			got := Classify(inc)
			require.NoError(t, got.Validate())
			assert.Equal(t, tt.category, got.Category)
			assert.Equal(t, tt.severity, got.Severity)
			assert.Equal(t, tt.action, got.ApprovalAction)
			assert.Equal(t, tt.action != "", got.NeedsApproval)
			assert.NotEmpty(t, got.NextAction)
		})
	}

	q, _ := IncidentByID("INC-007")
	assert.InDelta(t, 0.75, Classify(q).Confidence, 0.001, "缺少 severity hint 时降低置信度")
}

func TestTools(t *testing.T) {
	assert.Contains(t, FetchServiceHealth("AKS-Prod-West"), "Degraded")
	assert.Contains(t, FetchServiceHealth("redis-prod"), "Critical")
	assert.Equal(t, "Status: Unknown. No health data available for Mainframe.", FetchServiceHealth("Mainframe"))

	assert.True(t, strings.HasPrefix(SearchKnownIssues("AKS-Prod-West", "aks node notready"), "KI-2024-001"))
	assert.True(t, strings.HasPrefix(SearchKnownIssues("Redis-Prod", "redis cache out of memory"), "KI-2024-015"))
	assert.Contains(t, SearchKnownIssues("Identity-Prod", "suspicious login"), "No known issues found")

	assert.Contains(t, RestartService("Redis-Prod"), "'Redis-Prod' has been restarted")
	assert.Contains(t, OpenSev1Bridge("INC-004", "AdventureWorks"), "BR-INC-004-001")
}

func TestRunbooks_Default(t *testing.T) {
	catalog, err := DefaultRunbooks()
	require.NoError(t, err)
	assert.Equal(t, 5, catalog.Len())

	rb, ok := catalog.Find("AKS-Prod-West", "incident")
	require.True(t, ok)
	assert.Equal(t, "AKS Node Recovery", rb.Title)
	require.Len(t, rb.Steps, 5)
	assert.Equal(t, "Describe problematic node: kubectl describe node <name>", rb.Steps[1])

	text, err := LookupRunbook("Identity-Prod", CategorySecurity)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "Runbook: Suspicious Login Response\n1. Block source IP immediately"))

	// 类别不匹配
	text, err = LookupRunbook("Identity-Prod", CategoryIncident)
	require.NoError(t, err)
	assert.Contains(t, text, "No specific runbook found for Identity-Prod/Incident")
}

func TestParseRunbooks_Custom(t *testing.T) {
	html := `<html><body>
<section class="runbook" data-service="Cert" data-category="Change">
  <h2>Certificate Renewal</h2>
  <ol><li>Request new certificate</li><li> </li><li>Rotate secret</li></ol>
</section>
<section class="runbook" data-category="Change"><h2>No service</h2></section>
<div class="runbook" data-service="Ignored" data-category="Change"><h2>Not a section</h2></div>
</body></html>`
	catalog, err := ParseRunbooks(strings.NewReader(html))
	require.NoError(t, err)
	require.Equal(t, 1, catalog.Len())

	rb, ok := catalog.Find("Cert-Management", CategoryChange)
	require.True(t, ok)
	assert.Equal(t, []string{"Request new certificate", "Rotate secret"}, rb.Steps)
	assert.Equal(t, []string{"Request new certificate", "Rotate secret"}, runbookSteps(rb.String()))
}

func TestParseTriage(t *testing.T) {
	got, err := ParseTriage(`Here you go: {"category":"Security","severity":"Sev1","confidence":0.9,` +
		`"next_action":"block","needs_approval":true,"approval_action":"open_sev1_bridge"}`)
	require.NoError(t, err)
	assert.Equal(t, CategorySecurity, got.Category)
	assert.True(t, got.NeedsApproval)

	direct := Classify(incidents[0])
	got, err = ParseTriage(direct)
	require.NoError(t, err)
	assert.Equal(t, direct, got)

	got, err = ParseTriage(map[string]any{"category": "Question", "severity": "Sev3", "confidence": 0.7, "next_action": "answer"})
	require.NoError(t, err)
	assert.Equal(t, CategoryQuestion, got.Category)

	for _, bad := range []any{
		"not json at all",
		`{"category":"Weather","severity":"Sev1","confidence":0.5}`,
		`{"category":"Incident","severity":"Sev2","confidence":1.5}`,
		`{"category":"Incident","severity":"Sev2","confidence":0.5,"needs_approval":true}`,
		nil,
	} {
		got, err := ParseTriage(bad)
		assert.Error(t, err, "%v", bad)
		assert.Equal(t, FallbackTriage(), got)
	}
}

func TestParsePlan(t *testing.T) {
	got, err := ParsePlan("```json\n" + `{"summary":"s","steps":["a","b"],"customer_message":"c","internal_note":"n"}` + "\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Steps)

	got, err = ParsePlan(`{"summary":"","steps":[]}`)
	require.Error(t, err)
	assert.Equal(t, "Plan parsing failed - manual review required", got.Summary)
	assert.Contains(t, got.InternalNote, "Auto-plan failed")

	got, err = ParsePlan(42)
	require.Error(t, err)
	assert.Len(t, got.Steps, 2)
}

func TestApproved(t *testing.T) {
	for _, yes := range []any{true, "approve", " Approved ", "YES", map[string]any{"approved": true}, map[string]any{"decision": "ok"}} {
		assert.True(t, Approved(yes), "%v", yes)
	}
	for _, no := range []any{false, "reject", "", nil, 1, map[string]any{"approved": "nope"}, map[string]any{}} {
		assert.False(t, Approved(no), "%v", no)
	}
}

func TestWritePlan(t *testing.T) {
	inc, _ := IncidentByID("INC-001")
	triage := Classify(inc)
	runbook, err := LookupRunbook(inc.Service, triage.Category)
	require.NoError(t, err)
	req := WriterRequest{
		Incident: inc,
		Triage:   triage,
		Enrichment: Enrichment{
			ServiceHealth:  FetchServiceHealth(inc.Service),
			RunbookSnippet: runbook,
			KnownIssue:     SearchKnownIssues(inc.Service, strings.ToLower(inc.Title)),
		},
		Action: &ActionResult{Action: ActionRestartService, Approved: true, Message: "restarted"},
	}

	plan := WritePlan(req, DefaultLanguage)
	assert.LessOrEqual(t, len(plan.Steps), maxPlanSteps)
	assert.Equal(t, "Confirm current status of AKS-Prod-West", plan.Steps[0])
	assert.Equal(t, "Verify the outcome of restart_service", plan.Steps[len(plan.Steps)-1])
	assert.Contains(t, plan.CustomerMessage, "שלום Contoso")
	assert.Contains(t, plan.InternalNote, "Action: restarted")

	req.Action = nil
	plan = WritePlan(req, "english")
	assert.True(t, strings.HasPrefix(plan.CustomerMessage, "Hello Contoso"))

	lines := planLines(plan)
	assert.True(t, strings.HasPrefix(lines[0], "Summary: Sev2 Incident on AKS-Prod-West"))
	assert.Len(t, lines, len(plan.Steps)+3)
}

func TestOpsMemory(t *testing.T) {
	mem := NewOpsMemory(nil, time.Hour)
	assert.Equal(t, DefaultLanguage, mem.Language())
	assert.Equal(t, "Respond in Hebrew when addressing the customer. Keep technical terms in English.", mem.Instructions())

	mem.Observe("Customer: Contoso\nService: AKS-Prod-West")
	state := mem.State()
	assert.Equal(t, "Contoso", state.LastCustomer)
	assert.Equal(t, "AKS-Prod-West", state.LastService)
	assert.Contains(t, mem.Instructions(), "Previous interaction involved service 'AKS-Prod-West'")
	assert.Contains(t, mem.Instructions(), "Previous customer was 'Contoso'")

	require.NoError(t, mem.SetLanguage("English"))
	assert.Equal(t, "english", mem.Language())
	assert.True(t, strings.HasPrefix(mem.Instructions(), "Respond in english. Keep answers concise."))
	assert.Error(t, mem.SetLanguage("  "))

	mem.Clear()
	state = mem.State()
	assert.Empty(t, state.LastCustomer)
	assert.Equal(t, "english", state.PreferredLanguage, "Clear 保留语言偏好")
}

func TestOpsMemory_ContextExpires(t *testing.T) {
	store := cache.NewMemoryCache(0, 0)
	defer store.Close()
	mem := NewOpsMemory(store, 20*time.Millisecond)

	mem.Observe("Customer: Fabrikam Service: Redis-Prod")
	assert.Equal(t, "Fabrikam", mem.State().LastCustomer)

	assert.Eventually(t, func() bool {
		return mem.State().LastCustomer == ""
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, DefaultLanguage, mem.Language())
}

func TestReport_Render(t *testing.T) {
	inc, _ := IncidentByID("INC-004")
	r := Report{
		Incident: inc,
		Triage:   Classify(inc),
		Plan:     FinalPlan{Summary: "s", Steps: []string{"one", "two"}, CustomerMessage: "msg", InternalNote: "note"},
	}
	out := r.Render()
	assert.Contains(t, out, "📋 Incident: INC-004 - Suspicious Login Activity")
	assert.Contains(t, out, "Confidence: 95%")
	assert.Contains(t, out, "Approval Required: Yes")
	assert.Contains(t, out, "  2. two")
	assert.NotContains(t, out, "DANGEROUS ACTION")

	r.Action = &ActionResult{Action: ActionOpenSev1Bridge, Message: "⛔ open_sev1_bridge rejected by approver"}
	assert.Contains(t, r.Render(), "⛔ DANGEROUS ACTION NOT EXECUTED")
	r.Action.Approved = true
	assert.Contains(t, r.Render(), "⚠️ DANGEROUS ACTION EXECUTED")
}
