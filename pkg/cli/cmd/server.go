package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/LENAX/agentflow/internal/app"
	"github.com/LENAX/agentflow/pkg/api"
	"github.com/LENAX/agentflow/pkg/cli/output"
)

func newServerCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "server",
		Short: "服务管理",
	}
	c.AddCommand(newServerStartCmd())
	return c
}

func newServerStartCmd() *cobra.Command {
	var (
		host      string
		port      int
		workflows []string
	)
	c := &cobra.Command{
		Use:   "start",
		Short: "启动HTTP API服务",
		Long: `启动AgentFlow HTTP API服务（阻塞直到收到中断信号）。

未指定 --config 时依次查找：
  ./configs/agentflow.yaml
  ./config/agentflow.yaml
  ./agentflow.yaml
都不存在时使用默认配置。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig()
			if err != nil {
				return err
			}
			if path != "" {
				output.Info("使用配置文件: %s", path)
			} else {
				output.Info("未找到配置文件，使用默认配置")
			}
			if host != "" {
				cfg.AgentFlow.API.Host = host
			}
			if port > 0 {
				cfg.AgentFlow.API.Port = port
			}

			a, err := app.New(cfg, app.Options{Version: Version, Workflows: workflows})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			srvCfg := api.ServerConfigFrom(cfg)
			output.Success("AgentFlow Server 监听 %s:%d", srvCfg.Host, srvCfg.Port)
			if err := a.Serve(ctx, srvCfg); err != nil {
				return err
			}
			output.Success("服务已停止")
			return nil
		},
	}
	c.Flags().StringVar(&host, "host", "", "监听地址（覆盖配置）")
	c.Flags().IntVarP(&port, "port", "p", 0, "监听端口（覆盖配置）")
	c.Flags().StringSliceVarP(&workflows, "workflow", "w", nil, "额外加载的YAML Workflow定义")
	return c
}
