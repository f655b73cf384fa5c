package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LENAX/agentflow/internal/opscopilot"
	"github.com/LENAX/agentflow/pkg/cli/output"
	"github.com/LENAX/agentflow/pkg/core/engine"
	"github.com/LENAX/agentflow/pkg/core/workflow"
)

func newGraphCmd() *cobra.Command {
	var files []string
	c := &cobra.Command{
		Use:   "graph [workflow]",
		Short: "显示Workflow的执行图分层",
		Example: `  agentflow graph
  agentflow graph my_flow --file ./workflows/my_flow.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID := opscopilot.WorkflowID
			if len(args) == 1 {
				workflowID = args[0]
			}
			a, err := newLocalApp(0)
			if err != nil {
				return err
			}
			defer a.Shutdown(context.Background())

			for _, f := range files {
				if _, err := a.Engine.LoadWorkflow(f); err != nil {
					return err
				}
			}
			g, ok := a.Engine.Workflow(workflowID)
			if !ok {
				return fmt.Errorf("%w: %s", engine.ErrWorkflowNotFound, workflowID)
			}
			return printGraph(g)
		},
	}
	c.Flags().StringSliceVarP(&files, "file", "f", nil, "额外加载的YAML Workflow定义")
	return c
}

func printGraph(g *workflow.Graph) error {
	if outputJSON {
		return output.PrintJSON(map[string]any{
			"id":       g.ID(),
			"name":     g.Name(),
			"output":   g.Output(),
			"fallback": g.Fallback(),
			"levels":   g.Levels(),
		})
	}

	output.Info("%s (%s)", g.Name(), g.ID())
	if g.Description() != "" {
		output.Plain("%s\n", g.Description())
	}
	output.Plain("\n")
	for i, level := range g.Levels() {
		output.Plain("Level %d: %s\n", i, strings.Join(level, ", "))
	}
	output.Plain("\n")

	table := output.NewTable("NODE", "DEPENDS ON", "FLAGS", "SERVICES")
	for _, node := range g.Nodes() {
		table.AddRow(node.ID, strings.Join(g.Dependencies(node.ID), ","), nodeFlags(g, node), strings.Join(node.Services, ","))
	}
	table.Render()
	output.Plain("\n输出节点: %s\n", g.Output())
	return nil
}

func nodeFlags(g *workflow.Graph, node *workflow.Executor) string {
	var flags []string
	if node.Condition != nil {
		flags = append(flags, "conditional")
	}
	if node.BestEffort {
		flags = append(flags, "best-effort")
	}
	if node.MaxRetries > 0 {
		flags = append(flags, fmt.Sprintf("retry=%d", node.MaxRetries))
	}
	if node.ID == g.Output() {
		flags = append(flags, "output")
	}
	if len(flags) == 0 {
		return "-"
	}
	return strings.Join(flags, ",")
}
