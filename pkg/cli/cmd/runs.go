package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/LENAX/agentflow/internal/opscopilot"
	"github.com/LENAX/agentflow/pkg/api/client"
	"github.com/LENAX/agentflow/pkg/cli/output"
)

const requestTimeout = 30 * time.Second

func newClient() *client.Client {
	return client.New(serverURL)
}

func newRunsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "runs",
		Short: "管理远程服务上的运行",
	}
	c.AddCommand(newRunsStartCmd())
	c.AddCommand(newRunsListCmd())
	c.AddCommand(newRunsStatusCmd())
	c.AddCommand(newRunsRespondCmd("approve", true))
	c.AddCommand(newRunsRespondCmd("reject", false))
	c.AddCommand(newRunsCancelCmd())
	c.AddCommand(newRunsEventsCmd())
	c.AddCommand(newRunsHistoryCmd())
	return c
}

func newRunsStartCmd() *cobra.Command {
	opts := &runOptions{}
	c := &cobra.Command{
		Use:   "start [workflow]",
		Short: "在远程服务上启动运行",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID := opscopilot.WorkflowID
			if len(args) == 1 {
				workflowID = args[0]
			}
			input, err := opts.runInput()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			resp, err := newClient().StartRun(ctx, workflowID, input)
			if err != nil {
				return err
			}
			if outputJSON {
				return output.PrintJSON(resp)
			}
			output.Success("运行已启动: %s", resp.RunID)
			return nil
		},
	}
	c.Flags().StringVarP(&opts.incident, "incident", "i", "INC-001", "内置事件ID")
	c.Flags().StringVar(&opts.input, "input", "", "JSON格式的运行输入，优先于 --incident")
	return c
}

func newRunsListCmd() *cobra.Command {
	var status string
	c := &cobra.Command{
		Use:   "list",
		Short: "列出运行",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			runs, err := newClient().ListRuns(ctx, status)
			if err != nil {
				return err
			}
			if outputJSON {
				return output.PrintJSON(runs)
			}
			if len(runs) == 0 {
				output.Info("暂无运行")
				return nil
			}
			table := output.NewTable("RUN ID", "WORKFLOW", "STATUS", "STARTED", "DURATION")
			for _, r := range runs {
				table.AddRow(r.RunID, r.WorkflowID, output.FormatStatus(r.Status),
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Duration)
			}
			table.Render()
			return nil
		},
	}
	c.Flags().StringVar(&status, "status", "", "按状态过滤 (Running/Suspended/Completed/Failed/Cancelled)")
	return c
}

func newRunsStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <run-id>",
		Short: "查看运行状态",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			run, err := newClient().GetRun(ctx, args[0])
			if err != nil {
				if client.IsNotFound(err) {
					return fmt.Errorf("运行不存在: %s", args[0])
				}
				return err
			}
			if outputJSON {
				return output.PrintJSON(run)
			}

			output.Plain("Run ID:   %s\n", run.RunID)
			output.Plain("Workflow: %s\n", run.WorkflowID)
			output.Plain("Status:   %s\n", output.FormatStatus(run.Status))
			if run.Duration != "" {
				output.Plain("Duration: %s\n", run.Duration)
			}
			if run.Error != "" {
				output.Error("%s", run.Error)
			}

			ids := make([]string, 0, len(run.Nodes))
			for id := range run.Nodes {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			output.Plain("\n")
			table := output.NewTable("NODE", "STATUS")
			for _, id := range ids {
				table.AddRow(id, output.FormatStatus(run.Nodes[id]))
			}
			table.Render()

			if len(run.Pending) > 0 {
				output.Plain("\n")
				output.Warning("等待审批:")
				for _, req := range run.Pending {
					output.Plain("  %s (节点 %s)\n", req.RequestID, req.NodeID)
				}
			}
			if run.Output != nil {
				output.Plain("\n")
				if s, ok := run.Output.(string); ok {
					output.Plain("%s\n", s)
				} else if err := output.PrintJSON(run.Output); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// newRunsRespondCmd approve 与 reject 共用；未给出请求ID时答复全部待审批请求
func newRunsRespondCmd(use string, approved bool) *cobra.Command {
	short := "批准审批请求"
	if !approved {
		short = "拒绝审批请求"
	}
	return &cobra.Command{
		Use:   use + " <run-id> [request-id...]",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			c := newClient()
			runID, requestIDs := args[0], args[1:]
			if len(requestIDs) == 0 {
				run, err := c.GetRun(ctx, runID)
				if err != nil {
					return err
				}
				for _, req := range run.Pending {
					requestIDs = append(requestIDs, req.RequestID)
				}
			}
			if len(requestIDs) == 0 {
				return fmt.Errorf("运行 %s 没有待审批的请求", runID)
			}

			responses := make(map[string]any, len(requestIDs))
			for _, id := range requestIDs {
				responses[id] = approved
			}
			if err := c.SendResponses(ctx, runID, responses); err != nil {
				if client.IsConflict(err) {
					return fmt.Errorf("审批请求已答复或已失效: %w", err)
				}
				return err
			}
			if outputJSON {
				return output.PrintJSON(map[string]any{"run_id": runID, "responses": responses})
			}
			for _, id := range requestIDs {
				if approved {
					output.Success("已批准 %s", id)
				} else {
					output.Warning("已拒绝 %s", id)
				}
			}
			return nil
		},
	}
}

func newRunsCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "取消运行",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			if err := newClient().Cancel(ctx, args[0]); err != nil {
				return err
			}
			output.Success("已取消运行 %s", args[0])
			return nil
		},
	}
}

func newRunsEventsCmd() *cobra.Command {
	var follow bool
	c := &cobra.Command{
		Use:   "events <run-id>",
		Short: "查看运行事件",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient()
			if follow {
				return c.StreamEvents(cmd.Context(), args[0], render)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			events, err := c.Events(ctx, args[0])
			if err != nil {
				return err
			}
			if outputJSON {
				return output.PrintJSON(events)
			}
			for _, ev := range events {
				output.Event(ev)
			}
			return nil
		},
	}
	c.Flags().BoolVarP(&follow, "follow", "f", false, "持续接收事件直到运行结束")
	return c
}

func newRunsHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "列出已落库的运行记录",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			records, err := newClient().History(ctx)
			if err != nil {
				return err
			}
			if outputJSON {
				return output.PrintJSON(records)
			}
			table := output.NewTable("RUN ID", "WORKFLOW", "STATUS", "DURATION", "OUTPUT")
			for _, r := range records {
				table.AddRow(r.RunID, r.WorkflowID, output.FormatStatus(r.Status), r.Duration, output.Truncate(outputText(r.Output), 40))
			}
			table.Render()
			return nil
		},
	}
}

func outputText(v any) string {
	switch o := v.(type) {
	case nil:
		return ""
	case string:
		return o
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(data)
}
