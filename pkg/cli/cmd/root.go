// Package cmd agentflow 命令行
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// 全局变量
	serverURL  string
	outputJSON bool
	configPath string
	logLevel   string
)

// NewRootCommand 创建根命令及全部子命令（对外导出）
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "agentflow",
		Short: "AgentFlow CLI - 智能体工作流引擎命令行工具",
		Long: `AgentFlow CLI 用于本地运行与远程管理智能体工作流。

支持的功能：
  - 本地运行 OpsCopilot 事件分诊流程（含人工审批）
  - 查看内置事件与执行图分层
  - 管理远程运行（列出、查看状态、审批、拒绝、取消）
  - 启动HTTP API服务

使用示例：
  # 分诊事件并在审批时交互确认
  agentflow run opscopilot --incident INC-001

  # 自动批准危险操作
  agentflow run opscopilot --incident INC-004 --approve

  # 查看远程运行状态
  agentflow runs status <run-id> --server http://localhost:8080

  # 启动HTTP服务
  agentflow server start --config ./configs/agentflow.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// 全局参数
	root.PersistentFlags().StringVarP(&serverURL, "server", "s", "http://localhost:8080", "AgentFlow服务器地址")
	root.PersistentFlags().BoolVarP(&outputJSON, "json", "j", false, "使用JSON格式输出")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "配置文件路径")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "本地引擎日志级别 (debug/info/warn/error)")

	// 添加子命令
	root.AddCommand(newRunCmd())
	root.AddCommand(newIncidentsCmd())
	root.AddCommand(newGraphCmd())
	root.AddCommand(newRunsCmd())
	root.AddCommand(newServerCmd())
	root.AddCommand(newVersionCmd())
	return root
}

// Execute 执行根命令
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
