// Package app 组装引擎、运行历史、OpsCopilot 与 HTTP API，供命令行与服务入口共用
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/LENAX/agentflow/internal/opscopilot"
	internalstorage "github.com/LENAX/agentflow/internal/storage"
	"github.com/LENAX/agentflow/pkg/api"
	"github.com/LENAX/agentflow/pkg/config"
	"github.com/LENAX/agentflow/pkg/core/cache"
	"github.com/LENAX/agentflow/pkg/core/engine"
	"github.com/LENAX/agentflow/pkg/core/task"
	"github.com/LENAX/agentflow/pkg/logging"
	"github.com/LENAX/agentflow/pkg/storage"
)

// Options 组装选项
type Options struct {
	Version     string
	LogOutput   io.Writer     // 默认 os.Stderr
	Logger      *slog.Logger  // 非空时忽略 LogOutput 与配置中的日志设置
	StreamDelay time.Duration // OpsCopilot 计划逐行输出的间隔
	Workflows   []string      // 额外加载的 YAML Workflow 定义
}

// App 组装好的应用（对外导出）
type App struct {
	Config *config.EngineConfig
	Engine *engine.Engine
	Memory *opscopilot.OpsMemory

	repo    storage.RunRepository
	store   *cache.MemoryCache
	server  *api.APIServer
	logger  *slog.Logger
	version string
}

// New 按配置组装应用（对外导出）
// 启用数据库时创建运行历史Repository并挂接事件记录器
func New(cfg *config.EngineConfig, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		out := opts.LogOutput
		if out == nil {
			out = os.Stderr
		}
		general := cfg.AgentFlow.General
		logger = logging.New(general.LogLevel, general.LogFormat, out)
	}

	a := &App{Config: cfg, logger: logger, version: opts.Version}

	engineOpts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMiddleware(task.LoggingMiddleware()),
	}
	if cfg.AgentFlow.Storage.Database.Enabled {
		repo, err := internalstorage.NewRunRepositoryFromConfig(cfg.AgentFlow.Storage.Database)
		if err != nil {
			return nil, fmt.Errorf("创建运行历史存储失败: %w", err)
		}
		a.repo = repo
		engineOpts = append(engineOpts, engine.WithRecorder(storage.NewRecorder(repo, logger)))
		logger.Info("✅ 运行历史已启用", "type", cfg.AgentFlow.Storage.Database.Type)
	}

	eng, err := engine.NewEngine(cfg, engineOpts...)
	if err != nil {
		a.closeRepo()
		return nil, err
	}
	a.Engine = eng

	cacheCfg := cfg.AgentFlow.Storage.Cache
	a.store = cache.NewMemoryCache(cacheCfg.DefaultTTL, cacheCfg.CleanInterval)
	a.Memory = opscopilot.NewOpsMemory(a.store, opscopilot.DefaultMemoryTTL)
	if _, err := opscopilot.Install(eng, a.Memory, opscopilot.WithStreamDelay(opts.StreamDelay)); err != nil {
		a.release()
		return nil, fmt.Errorf("安装OpsCopilot失败: %w", err)
	}

	for _, path := range opts.Workflows {
		if _, err := eng.LoadWorkflow(path); err != nil {
			a.release()
			return nil, err
		}
	}
	return a, nil
}

// Load 从配置文件组装应用
func Load(path string, opts Options) (*App, error) {
	cfg, err := config.LoadFrameworkConfig(path)
	if err != nil {
		return nil, err
	}
	return New(cfg, opts)
}

// Logger 应用日志
func (a *App) Logger() *slog.Logger { return a.logger }

// History 运行历史Repository，未启用时为 nil
func (a *App) History() storage.RunRepository { return a.repo }

// Start 启动引擎
func (a *App) Start(ctx context.Context) error {
	return a.Engine.Start(ctx)
}

// Server 按配置创建 HTTP API 服务器（只创建一次）
func (a *App) Server(cfg api.ServerConfig) *api.APIServer {
	if a.server == nil {
		a.server = api.NewAPIServer(a.Engine, cfg, a.version, a.repo)
	}
	return a.server
}

// Serve 启动引擎与 HTTP 服务，阻塞到 ctx 结束或服务出错，然后优雅关闭
func (a *App) Serve(ctx context.Context, cfg api.ServerConfig) error {
	if err := a.Start(ctx); err != nil {
		return fmt.Errorf("启动引擎失败: %w", err)
	}
	srv := a.Server(cfg)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	a.logger.Info("✅ AgentFlow Server started", "addr", srv.Addr(), "version", a.version)

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("正在关闭服务...")
	case serveErr = <-errCh:
		a.logger.Error("API服务器错误", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.WriteTimeout+5*time.Second)
	defer cancel()
	if err := a.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}
	return serveErr
}

// Shutdown 关闭 HTTP 服务、引擎与存储
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("关闭API服务器失败: %w", err))
		}
	}
	if a.Engine.IsRunning() {
		if err := a.Engine.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("停止引擎失败: %w", err))
		}
	}
	a.release()
	if len(errs) == 0 {
		a.logger.Info("✅ 服务已停止")
	}
	return errors.Join(errs...)
}

func (a *App) release() {
	if a.store != nil {
		a.store.Close()
	}
	a.closeRepo()
}

func (a *App) closeRepo() {
	if a.repo == nil {
		return
	}
	if err := a.repo.Close(); err != nil {
		a.logger.Warn("关闭运行历史存储失败", "error", err)
	}
	a.repo = nil
}
