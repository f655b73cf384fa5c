package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LENAX/agentflow/pkg/api/dto"
	"github.com/LENAX/agentflow/pkg/core/engine"
	"github.com/LENAX/agentflow/pkg/core/workflow"
)

// WorkflowHandler Workflow API处理器
type WorkflowHandler struct {
	engine *engine.Engine
}

// NewWorkflowHandler 创建WorkflowHandler
func NewWorkflowHandler(eng *engine.Engine) *WorkflowHandler {
	return &WorkflowHandler{engine: eng}
}

// List 列出已注册的Workflow
// GET /api/v1/workflows
func (h *WorkflowHandler) List(c *gin.Context) {
	graphs := h.engine.Workflows()
	items := make([]dto.WorkflowSummary, 0, len(graphs))
	for _, g := range graphs {
		items = append(items, workflowSummary(g))
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.WorkflowSummary]{
		Total: len(items),
		Items: items,
	}))
}

// Get 获取Workflow详情（节点与分层）
// GET /api/v1/workflows/:id
func (h *WorkflowHandler) Get(c *gin.Context) {
	g, ok := h.engine.Workflow(c.Param("id"))
	if !ok {
		abortWithError(c, engine.ErrWorkflowNotFound)
		return
	}

	detail := dto.WorkflowDetail{
		WorkflowSummary: workflowSummary(g),
		Levels:          g.Levels(),
	}
	for _, exec := range g.Nodes() {
		node := dto.NodeSummary{
			ID:           exec.ID,
			Description:  exec.Description,
			Dependencies: exec.Dependencies(),
			Conditional:  exec.Condition != nil,
			BestEffort:   exec.BestEffort,
			MaxRetries:   exec.MaxRetries,
			Services:     exec.Services,
		}
		if exec.Timeout > 0 {
			node.Timeout = exec.Timeout.String()
		}
		detail.Nodes = append(detail.Nodes, node)
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(detail))
}

// StartRun 启动一次运行，立即返回运行ID
// POST /api/v1/workflows/:id/runs
func (h *WorkflowHandler) StartRun(c *gin.Context) {
	var req dto.StartRunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "请求参数错误: %v", err)
			return
		}
	}

	var opts []engine.RunOption
	if req.RunID != "" {
		opts = append(opts, engine.WithRunID(req.RunID))
	}
	// 运行生命周期不随请求结束
	ctx := context.WithoutCancel(c.Request.Context())
	x, err := h.engine.RunWorkflow(ctx, c.Param("id"), req.Input, opts...)
	if err != nil {
		abortWithError(c, err)
		return
	}
	x.Detach()

	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(dto.StartRunResponse{
		RunID:      x.ID(),
		WorkflowID: x.WorkflowID(),
		Message:    "run started",
	}))
}

func workflowSummary(g *workflow.Graph) dto.WorkflowSummary {
	return dto.WorkflowSummary{
		ID:          g.ID(),
		Name:        g.Name(),
		Description: g.Description(),
		NodeCount:   g.Len(),
		Output:      g.Output(),
	}
}
