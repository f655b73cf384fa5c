package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LENAX/agentflow/pkg/api/dto"
	"github.com/LENAX/agentflow/pkg/core/engine"
	"github.com/LENAX/agentflow/pkg/core/workflow"
	"github.com/LENAX/agentflow/pkg/storage"
)

// statusFor 把领域错误映射为HTTP状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrRunNotFound),
		errors.Is(err, engine.ErrWorkflowNotFound),
		errors.Is(err, engine.ErrUnknownRequest),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrDuplicateResponse),
		errors.Is(err, engine.ErrRunExists):
		return http.StatusConflict
	case errors.Is(err, engine.ErrEngineNotRunning):
		return http.StatusServiceUnavailable
	case errors.Is(err, workflow.ErrGraph):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError 写出错误响应
func abortWithError(c *gin.Context, err error) {
	code := statusFor(err)
	c.AbortWithStatusJSON(code, dto.NewErrorResponse(code, err.Error()))
}

func badRequest(c *gin.Context, format string, args ...any) {
	c.AbortWithStatusJSON(http.StatusBadRequest, dto.NewErrorResponse(400, fmt.Sprintf(format, args...)))
}

// formatDuration 格式化时长
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// paginate 按 offset/limit 截取
func paginate[T any](items []T, offset, limit int) ([]T, bool) {
	if offset >= len(items) {
		return []T{}, false
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end], end < len(items)
}
