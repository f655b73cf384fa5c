package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/LENAX/agentflow/internal/app"
	"github.com/LENAX/agentflow/pkg/api"
	"github.com/LENAX/agentflow/pkg/config"
)

var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	// 命令行参数
	configPath := flag.String("config", "./configs/agentflow.yaml", "配置文件路径，为空时使用默认配置")
	host := flag.String("host", "", "监听地址（覆盖配置）")
	port := flag.Int("port", 0, "监听端口（覆盖配置）")
	flag.Parse()

	log.Printf("AgentFlow Server v%s (%s, %s)", Version, GitCommit, BuildTime)

	// 1. 读取配置
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFrameworkConfig(*configPath)
		if err != nil {
			log.Fatalf("加载配置失败: %v", err)
		}
		cfg = loaded
		log.Printf("配置文件: %s", *configPath)
	}
	if *host != "" {
		cfg.AgentFlow.API.Host = *host
	}
	if *port > 0 {
		cfg.AgentFlow.API.Port = *port
	}

	// 2. 组装引擎、运行历史与OpsCopilot
	a, err := app.New(cfg, app.Options{Version: Version})
	if err != nil {
		log.Fatalf("创建应用失败: %v", err)
	}

	// 3. 启动服务，收到中断信号后优雅关闭
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := a.Serve(ctx, api.ServerConfigFrom(cfg)); err != nil {
		log.Fatalf("服务异常退出: %v", err)
	}
}
