package opscopilot

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/LENAX/agentflow/pkg/core/task"
)

// incidentInput 读取 incident 参数
func incidentInput(in task.Inputs) (Incident, error) {
	return IncidentFrom(in.Get("incident"))
}

func triageInput(in task.Inputs) (TriageResult, error) {
	t, ok := task.Value[TriageResult](in, "triage")
	if !ok {
		return TriageResult{}, fmt.Errorf("参数 triage 类型错误: %T", in.Get("triage"))
	}
	return t, nil
}

func memoryOf(ctx *task.Context) (*OpsMemory, error) {
	return task.ServiceAs[*OpsMemory](ctx, MemoryServiceName)
}

func (c *Copilot) prepareClassifier(ctx *task.Context, in task.Inputs) (any, error) {
	inc, err := incidentInput(in)
	if err != nil {
		return nil, err
	}
	return ClassifierRequest{Prompt: classifierPrompt(inc), Incident: inc}, nil
}

func (c *Copilot) classify(ctx *task.Context, in task.Inputs) (any, error) {
	req, ok := task.Value[ClassifierRequest](in, "request")
	if !ok {
		return nil, fmt.Errorf("参数 request 类型错误: %T", in.Get("request"))
	}
	mem, err := memoryOf(ctx)
	if err != nil {
		return nil, err
	}
	ctx.Logger().Debug("分类上下文", "instructions", mem.Instructions())

	triage := Classify(req.Incident)
	mem.Observe(req.Prompt)

	data, err := json.Marshal(triage)
	if err != nil {
		return nil, fmt.Errorf("编码分类结果失败: %w", err)
	}
	return string(data), nil
}

func (c *Copilot) parseTriage(ctx *task.Context, in task.Inputs) (any, error) {
	triage, err := ParseTriage(in.Get("response"))
	if err != nil {
		ctx.Logger().Warn("⚠️ 分类结果解析失败，使用默认分类", "error", err)
	}
	return triage, nil
}

func (c *Copilot) enrich(ctx *task.Context, in task.Inputs) (any, error) {
	inc, err := incidentInput(in)
	if err != nil {
		return nil, err
	}
	triage, err := triageInput(in)
	if err != nil {
		return nil, err
	}
	logger := ctx.Logger()
	keywords := strings.ToLower(inc.Title)
	return Enrichment{
		ServiceHealth: callTool(logger, "fetch_service_health", []any{"service", inc.Service}, func() string {
			return FetchServiceHealth(inc.Service)
		}),
		RunbookSnippet: callTool(logger, "lookup_runbook", []any{"service", inc.Service, "category", triage.Category}, func() string {
			return c.runbooks.Lookup(inc.Service, triage.Category)
		}),
		KnownIssue: callTool(logger, "search_known_issues", []any{"service", inc.Service, "keywords", keywords}, func() string {
			return SearchKnownIssues(inc.Service, keywords)
		}),
	}, nil
}

// needsApproval dangerous_action 的执行条件
func needsApproval(in task.Inputs) (bool, error) {
	t, ok := task.Value[TriageResult](in, "triage")
	return ok && t.NeedsApproval, nil
}

func (c *Copilot) dangerousAction(ctx *task.Context, in task.Inputs) (any, error) {
	inc, err := incidentInput(in)
	if err != nil {
		return nil, err
	}
	triage, err := triageInput(in)
	if err != nil {
		return nil, err
	}

	decision, decided := ctx.Decision()
	if !decided {
		return nil, ctx.RequestApproval(ApprovalPayload{
			Action:     triage.ApprovalAction,
			IncidentID: inc.ID,
			Service:    inc.Service,
			Customer:   inc.Customer,
			Severity:   triage.Severity,
			Reason:     triage.NextAction,
		})
	}

	result := ActionResult{Action: triage.ApprovalAction}
	if !Approved(decision) {
		result.Message = fmt.Sprintf("⛔ %s rejected by approver", triage.ApprovalAction)
		ctx.Logger().Info("危险操作被拒绝", "action", triage.ApprovalAction)
		return result, nil
	}

	result.Approved = true
	switch triage.ApprovalAction {
	case ActionRestartService:
		result.Message = "🔄 Restart Action: " + callTool(ctx.Logger(), "restart_service",
			[]any{"service", inc.Service}, func() string { return RestartService(inc.Service) })
	case ActionOpenSev1Bridge:
		result.Message = "📞 Bridge Action: " + callTool(ctx.Logger(), "open_sev1_bridge",
			[]any{"incident_id", inc.ID, "customer", inc.Customer}, func() string { return OpenSev1Bridge(inc.ID, inc.Customer) })
	default:
		result.Approved = false
		result.Message = fmt.Sprintf("Unknown approval action: %s", triage.ApprovalAction)
	}
	ctx.Logger().Info("危险操作已执行", "action", triage.ApprovalAction)
	return result, nil
}

func (c *Copilot) prepareWriter(ctx *task.Context, in task.Inputs) (any, error) {
	inc, err := incidentInput(in)
	if err != nil {
		return nil, err
	}
	triage, err := triageInput(in)
	if err != nil {
		return nil, err
	}
	enrichment, ok := task.Value[Enrichment](in, "enrichment")
	if !ok {
		return nil, fmt.Errorf("参数 enrichment 类型错误: %T", in.Get("enrichment"))
	}

	req := WriterRequest{Incident: inc, Triage: triage, Enrichment: enrichment}
	if action, ok := task.Value[ActionResult](in, "action"); ok {
		req.Action = &action
	}
	req.Prompt = writerPrompt(req)
	return req, nil
}

func (c *Copilot) write(ctx *task.Context, in task.Inputs) (any, error) {
	req, ok := task.Value[WriterRequest](in, "request")
	if !ok {
		return nil, fmt.Errorf("参数 request 类型错误: %T", in.Get("request"))
	}
	mem, err := memoryOf(ctx)
	if err != nil {
		return nil, err
	}

	plan := WritePlan(req, mem.Language())
	for _, line := range planLines(plan) {
		if c.streamDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.streamDelay):
			}
		}
		ctx.Emit(line)
	}
	mem.Observe(req.Prompt)

	data, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("编码处置计划失败: %w", err)
	}
	return string(data), nil
}

func (c *Copilot) parsePlan(ctx *task.Context, in task.Inputs) (any, error) {
	plan, err := ParsePlan(in.Get("response"))
	if err != nil {
		ctx.Logger().Warn("⚠️ 处置计划解析失败，使用默认计划", "error", err)
	}
	return plan, nil
}

func (c *Copilot) aggregate(ctx *task.Context, in task.Inputs) (any, error) {
	inc, err := incidentInput(in)
	if err != nil {
		return nil, err
	}
	triage, err := triageInput(in)
	if err != nil {
		return nil, err
	}
	plan, ok := task.Value[FinalPlan](in, "plan")
	if !ok {
		return nil, fmt.Errorf("参数 plan 类型错误: %T", in.Get("plan"))
	}
	report := Report{Incident: inc, Triage: triage, Plan: plan}
	if enrichment, ok := task.Value[Enrichment](in, "enrichment"); ok {
		report.Enrichment = enrichment
	}
	if action, ok := task.Value[ActionResult](in, "action"); ok {
		report.Action = &action
	}
	return report.Render(), nil
}
