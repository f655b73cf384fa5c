package cmd

import (
	"github.com/spf13/cobra"

	"github.com/LENAX/agentflow/pkg/cli/output"
)

// 版本信息（编译时注入）
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "显示版本信息",
		RunE: func(cmd *cobra.Command, args []string) error {
			if outputJSON {
				return output.PrintJSON(map[string]string{
					"version":    Version,
					"git_commit": GitCommit,
					"build_time": BuildTime,
				})
			}
			output.Plain("AgentFlow CLI\n")
			output.Plain("  Version:    %s\n", Version)
			output.Plain("  Git Commit: %s\n", GitCommit)
			output.Plain("  Build Time: %s\n", BuildTime)
			return nil
		},
	}
}
