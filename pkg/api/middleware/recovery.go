package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/LENAX/agentflow/pkg/api/dto"
)

// Recovery panic恢复中间件
func Recovery(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("💥 [Recovery] panic recovered", "path", c.Request.URL.Path, "panic", err, "stack", string(debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError, dto.NewErrorResponse(
					500,
					"Internal Server Error",
				))
			}
		}()
		c.Next()
	}
}
