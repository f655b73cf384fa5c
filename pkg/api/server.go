package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/LENAX/agentflow/pkg/config"
	"github.com/LENAX/agentflow/pkg/core/engine"
	"github.com/LENAX/agentflow/pkg/logging"
	"github.com/LENAX/agentflow/pkg/storage"
)

// ServerConfig API服务器配置
type ServerConfig struct {
	Host         string        // 监听地址
	Port         int           // 监听端口
	ReadTimeout  time.Duration // 读取超时
	WriteTimeout time.Duration // 写入超时，事件流连接会自行解除
}

// DefaultServerConfig 默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:         "0.0.0.0",
		Port:         8080,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// ServerConfigFrom 从引擎配置读取服务器配置
func ServerConfigFrom(cfg *config.EngineConfig) ServerConfig {
	api := cfg.AgentFlow.API
	return ServerConfig{
		Host:         api.Host,
		Port:         api.Port,
		ReadTimeout:  api.ReadTimeout,
		WriteTimeout: api.WriteTimeout,
	}
}

// APIServer HTTP API服务器
type APIServer struct {
	engine     *engine.Engine
	httpServer *http.Server
	config     ServerConfig
	version    string
	history    storage.RunRepository
	logger     *slog.Logger
}

// NewAPIServer 创建API服务器
// history 为 nil 时不提供运行历史接口
func NewAPIServer(eng *engine.Engine, cfg ServerConfig, version string, history storage.RunRepository) *APIServer {
	logger := eng.Logger()
	if logger == nil {
		logger = logging.Discard()
	}
	s := &APIServer{
		engine:  eng,
		config:  cfg,
		version: version,
		history: history,
		logger:  logger.With("component", "api"),
	}
	// 先于 Start 创建，Start 之前调用 Shutdown 也能生效
	s.httpServer = &http.Server{
		Addr:         s.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler 返回路由（测试使用）
func (s *APIServer) Handler() http.Handler {
	return SetupRouter(s.engine, RouterOptions{Version: s.version, History: s.history, Logger: s.logger})
}

// Start 启动服务器，阻塞直到关闭
func (s *APIServer) Start() error {
	s.logger.Info("🚀 AgentFlow API Server starting", "addr", s.Addr())
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server listen failed: %w", err)
	}
	return nil
}

// Shutdown 优雅关闭服务器
func (s *APIServer) Shutdown(ctx context.Context) error {
	s.logger.Info("🛑 Shutting down API Server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("✅ API Server stopped")
	return nil
}

// Addr 获取服务器地址
func (s *APIServer) Addr() string {
	return net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
}
