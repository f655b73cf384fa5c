package cmd

import (
	"os"
	"time"

	"github.com/LENAX/agentflow/internal/app"
	"github.com/LENAX/agentflow/pkg/config"
	"github.com/LENAX/agentflow/pkg/logging"
)

// 依次尝试的默认配置路径
var defaultConfigPaths = []string{
	"./configs/agentflow.yaml",
	"./config/agentflow.yaml",
	"./agentflow.yaml",
}

// loadConfig 读取 --config 指定或默认路径的配置；都不存在时使用默认值
func loadConfig() (*config.EngineConfig, string, error) {
	path := configPath
	if path == "" {
		for _, p := range defaultConfigPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}
	if path == "" {
		return config.Default(), "", nil
	}
	cfg, err := config.LoadFrameworkConfig(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// newLocalApp 创建本地运行用的应用，日志写到标准错误
func newLocalApp(streamDelay time.Duration) (*app.App, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}
	// 本地运行不落库
	cfg.AgentFlow.Storage.Database.Enabled = false
	cfg.AgentFlow.Schedules = nil
	return app.New(cfg, app.Options{
		Version:     Version,
		Logger:      logging.New(logLevel, cfg.AgentFlow.General.LogFormat, os.Stderr),
		StreamDelay: streamDelay,
	})
}
