package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LENAX/agentflow/pkg/api/dto"
	"github.com/LENAX/agentflow/pkg/core/realtime"
	"github.com/LENAX/agentflow/pkg/storage"
	"github.com/LENAX/agentflow/pkg/storage/dao"
)

// HistoryHandler 运行历史API处理器（需启用存储）
type HistoryHandler struct {
	repo storage.RunRepository
}

// NewHistoryHandler 创建HistoryHandler，repo 可为 nil
func NewHistoryHandler(repo storage.RunRepository) *HistoryHandler {
	return &HistoryHandler{repo: repo}
}

// List 列出已落库的运行
// GET /api/v1/history
func (h *HistoryHandler) List(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	var query dto.ListRunsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "查询参数错误: %v", err)
		return
	}

	runs, err := h.repo.ListRuns(c.Request.Context(), storage.RunFilter{
		WorkflowID: query.WorkflowID,
		Status:     query.Status,
		Limit:      query.GetDefaultLimit(),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	items := make([]dto.HistoryRecord, 0, len(runs))
	for _, run := range runs {
		items = append(items, historyRecord(run))
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.HistoryRecord]{
		Total: len(items),
		Items: items,
	}))
}

// Get 获取已落库的运行
// GET /api/v1/history/:id
func (h *HistoryHandler) Get(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	run, err := h.repo.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(historyRecord(run)))
}

// Events 获取已落库的运行事件
// GET /api/v1/history/:id/events
func (h *HistoryHandler) Events(c *gin.Context) {
	if !h.enabled(c) {
		return
	}
	records, err := h.repo.ListEvents(c.Request.Context(), c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	items := make([]realtime.Event, 0, len(records))
	for _, rec := range records {
		ev, err := rec.Event()
		if err != nil {
			abortWithError(c, err)
			return
		}
		items = append(items, ev)
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.EventsResponse{RunID: c.Param("id"), Items: items}))
}

func (h *HistoryHandler) enabled(c *gin.Context) bool {
	if h.repo == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, dto.NewErrorResponse(503, "storage disabled"))
		return false
	}
	return true
}

func historyRecord(run *dao.RunRecord) dto.HistoryRecord {
	rec := dto.HistoryRecord{
		RunSummary: dto.RunSummary{
			RunID:      run.ID,
			WorkflowID: run.WorkflowID,
			Status:     run.Status,
			StartedAt:  run.StartedAt,
			Error:      run.ErrorMsg.String,
		},
	}
	if run.FinishedAt.Valid {
		finished := run.FinishedAt.Time
		rec.FinishedAt = &finished
		rec.Duration = formatDuration(finished.Sub(run.StartedAt))
	}
	// 输出解析失败时只返回摘要
	if out, err := run.DecodeOutput(); err == nil {
		rec.Output = out
	}
	return rec
}
