package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/LENAX/agentflow/pkg/api/dto"
	"github.com/LENAX/agentflow/pkg/core/engine"
	"github.com/LENAX/agentflow/pkg/core/realtime"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// RunHandler 运行API处理器
type RunHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

// NewRunHandler 创建RunHandler
func NewRunHandler(eng *engine.Engine, logger *slog.Logger) *RunHandler {
	return &RunHandler{engine: eng, logger: logger}
}

// List 列出本进程内的运行
// GET /api/v1/runs
func (h *RunHandler) List(c *gin.Context) {
	var query dto.ListRunsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "查询参数错误: %v", err)
		return
	}

	var items []dto.RunSummary
	for _, x := range h.engine.ListExecutions() {
		if query.WorkflowID != "" && x.WorkflowID() != query.WorkflowID {
			continue
		}
		summary := runSummary(x.Snapshot())
		if query.Status != "" && summary.Status != query.Status {
			continue
		}
		items = append(items, summary)
	}

	page, hasMore := paginate(items, query.Offset, query.GetDefaultLimit())
	c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.ListResponse[dto.RunSummary]{
		Total:   len(items),
		Items:   page,
		HasMore: hasMore,
	}))
}

// Get 获取运行详情（状态、待审批请求、输出）
// GET /api/v1/runs/:id
func (h *RunHandler) Get(c *gin.Context) {
	x, ok := h.lookup(c)
	if !ok {
		return
	}
	snap := x.Snapshot()
	detail := dto.RunDetail{
		RunSummary: runSummary(snap),
		Nodes:      make(map[string]string, len(snap.Nodes)),
		Pending:    snap.Pending,
		Output:     snap.Output,
	}
	for id, status := range snap.Nodes {
		detail.Nodes[id] = string(status)
	}
	if res := x.Result(); res != nil {
		detail.UsedFallback = res.UsedFallback
	}
	c.JSON(http.StatusOK, dto.NewSuccessResponse(detail))
}

// Events 运行事件：默认返回历史，?stream=true 时以SSE推送直到运行结束
// GET /api/v1/runs/:id/events
func (h *RunHandler) Events(c *gin.Context) {
	x, ok := h.lookup(c)
	if !ok {
		return
	}
	var query dto.EventsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		badRequest(c, "查询参数错误: %v", err)
		return
	}

	if !query.Stream {
		items := make([]realtime.Event, 0)
		for _, ev := range x.History() {
			if ev.Sequence > query.After {
				items = append(items, ev)
			}
		}
		c.JSON(http.StatusOK, dto.NewSuccessResponse(dto.EventsResponse{RunID: x.ID(), Items: items}))
		return
	}

	events, err := follow(c.Request.Context(), h.engine.Bus(), x, query.After)
	if err != nil {
		abortWithError(c, err)
		return
	}
	// 长连接不受服务器写超时限制；不支持时忽略
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		c.SSEvent(string(ev.Type), ev)
		return true
	})
}

// WebSocket 通过WebSocket推送运行事件，并接收审批答复与取消指令
// GET /api/v1/runs/:id/ws
func (h *RunHandler) WebSocket(c *gin.Context) {
	x, ok := h.lookup(c)
	if !ok {
		return
	}
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket升级失败", "run_id", x.ID(), "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	events, err := follow(ctx, h.engine.Bus(), x, 0)
	if err != nil {
		h.logger.Warn("订阅运行事件失败", "run_id", x.ID(), "error", err)
		return
	}

	var wmu sync.Mutex
	write := func(msg dto.WSMessage) error {
		wmu.Lock()
		defer wmu.Unlock()
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		return conn.WriteJSON(msg)
	}

	go func() {
		defer cancel()
		for {
			var cmd dto.WSCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("WebSocket读取结束", "run_id", x.ID(), "error", err)
				}
				return
			}
			write(h.handleCommand(x, cmd))
		}
	}()

	for ev := range events {
		ev := ev
		if err := write(dto.WSMessage{Type: "event", Event: &ev}); err != nil {
			return
		}
	}

	wmu.Lock()
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"))
	wmu.Unlock()
}

func (h *RunHandler) handleCommand(x *engine.Execution, cmd dto.WSCommand) dto.WSMessage {
	switch cmd.Action {
	case "respond":
		if err := x.SendResponses(cmd.Responses); err != nil {
			return dto.WSMessage{Type: "error", Error: err.Error()}
		}
	case "cancel":
		x.Cancel()
	default:
		return dto.WSMessage{Type: "error", Error: "unknown action: " + cmd.Action}
	}
	return dto.WSMessage{Type: "ack"}
}

// Respond 提交审批决定
// POST /api/v1/runs/:id/responses
func (h *RunHandler) Respond(c *gin.Context) {
	x, ok := h.lookup(c)
	if !ok {
		return
	}
	var req dto.SendResponsesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "请求参数错误: %v", err)
		return
	}
	if err := x.SendResponses(req.Responses); err != nil {
		abortWithError(c, err)
		return
	}
	h.logger.Info("✅ 审批决定已提交", "run_id", x.ID(), "count", len(req.Responses))
	c.JSON(http.StatusOK, dto.NewSuccessResponse(map[string]any{
		"run_id":   x.ID(),
		"accepted": len(req.Responses),
	}))
}

// Cancel 取消运行
// POST /api/v1/runs/:id/cancel
func (h *RunHandler) Cancel(c *gin.Context) {
	x, ok := h.lookup(c)
	if !ok {
		return
	}
	x.Cancel()
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(map[string]string{
		"run_id":  x.ID(),
		"message": "cancel requested",
	}))
}

func (h *RunHandler) lookup(c *gin.Context) (*engine.Execution, bool) {
	x, ok := h.engine.Execution(c.Param("id"))
	if !ok {
		abortWithError(c, engine.ErrRunNotFound)
		return nil, false
	}
	return x, true
}

func runSummary(snap engine.Snapshot) dto.RunSummary {
	summary := dto.RunSummary{
		RunID:      snap.RunID,
		WorkflowID: snap.WorkflowID,
		Status:     string(snap.Status),
		StartedAt:  snap.StartedAt,
		FinishedAt: snap.FinishedAt,
		Error:      snap.Error,
	}
	if snap.FinishedAt != nil {
		summary.Duration = formatDuration(snap.FinishedAt.Sub(snap.StartedAt))
	}
	return summary
}
