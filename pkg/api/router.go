// Package api 引擎的HTTP API：Workflow目录、运行控制、事件流与运行历史
package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/LENAX/agentflow/pkg/api/handler"
	"github.com/LENAX/agentflow/pkg/api/middleware"
	"github.com/LENAX/agentflow/pkg/core/engine"
	"github.com/LENAX/agentflow/pkg/logging"
	"github.com/LENAX/agentflow/pkg/storage"
)

// RouterOptions 路由可选依赖
type RouterOptions struct {
	Version string
	History storage.RunRepository // nil 时历史接口返回503
	Logger  *slog.Logger
}

// SetupRouter 设置路由
func SetupRouter(eng *engine.Engine, opts RouterOptions) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	router := gin.New()

	// 全局中间件
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger))
	router.Use(middleware.CORS())

	workflowHandler := handler.NewWorkflowHandler(eng)
	runHandler := handler.NewRunHandler(eng, logger)
	historyHandler := handler.NewHistoryHandler(opts.History)
	healthHandler := handler.NewHealthHandler(eng, opts.Version)

	// 健康检查路由（不带前缀）
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	v1 := router.Group("/api/v1")
	{
		workflows := v1.Group("/workflows")
		{
			workflows.GET("", workflowHandler.List)
			workflows.GET("/:id", workflowHandler.Get)
			workflows.POST("/:id/runs", workflowHandler.StartRun)
		}

		runs := v1.Group("/runs")
		{
			runs.GET("", runHandler.List)
			runs.GET("/:id", runHandler.Get)
			runs.GET("/:id/events", runHandler.Events)
			runs.GET("/:id/ws", runHandler.WebSocket)
			runs.POST("/:id/responses", runHandler.Respond)
			runs.POST("/:id/cancel", runHandler.Cancel)
		}

		history := v1.Group("/history")
		{
			history.GET("", historyHandler.List)
			history.GET("/:id", historyHandler.Get)
			history.GET("/:id/events", historyHandler.Events)
		}
	}

	return router
}
