package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/LENAX/agentflow/internal/opscopilot"
	"github.com/LENAX/agentflow/pkg/cli/output"
	"github.com/LENAX/agentflow/pkg/core/engine"
	"github.com/LENAX/agentflow/pkg/core/realtime"
	"github.com/LENAX/agentflow/pkg/core/types"
)

type runOptions struct {
	incident    string
	input       string
	approve     bool
	reject      bool
	language    string
	streamDelay time.Duration
}

func newRunCmd() *cobra.Command {
	opts := &runOptions{}
	c := &cobra.Command{
		Use:   "run [workflow]",
		Short: "在本地引擎中运行Workflow",
		Long: `在本地引擎中运行Workflow并实时显示事件。

遇到审批请求时按 --approve / --reject 答复；两者都未指定时在终端交互确认。`,
		Example: `  agentflow run opscopilot --incident INC-001
  agentflow run opscopilot --incident INC-004 --reject
  agentflow run opscopilot --input '{"id":"X-1","title":"Disk full","service":"VM-Prod"}' --approve`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			workflowID := opscopilot.WorkflowID
			if len(args) == 1 {
				workflowID = args[0]
			}
			return runWorkflow(cmd, workflowID, opts)
		},
	}
	c.Flags().StringVarP(&opts.incident, "incident", "i", "INC-001", "内置事件ID")
	c.Flags().StringVar(&opts.input, "input", "", "JSON格式的运行输入，优先于 --incident")
	c.Flags().BoolVar(&opts.approve, "approve", false, "自动批准全部审批请求")
	c.Flags().BoolVar(&opts.reject, "reject", false, "自动拒绝全部审批请求")
	c.Flags().StringVar(&opts.language, "language", "", "客户回复语言（hebrew/english）")
	c.Flags().DurationVar(&opts.streamDelay, "stream-delay", 0, "计划逐行输出的间隔")
	c.MarkFlagsMutuallyExclusive("approve", "reject")
	return c
}

func (o *runOptions) runInput() (any, error) {
	if o.input == "" {
		return o.incident, nil
	}
	var input any
	if err := json.Unmarshal([]byte(o.input), &input); err != nil {
		return nil, fmt.Errorf("解析 --input 失败: %w", err)
	}
	return input, nil
}

func runWorkflow(cmd *cobra.Command, workflowID string, opts *runOptions) error {
	input, err := opts.runInput()
	if err != nil {
		return err
	}

	a, err := newLocalApp(opts.streamDelay)
	if err != nil {
		return err
	}
	if opts.language != "" {
		if err := a.Memory.SetLanguage(opts.language); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = a.Shutdown(shutdownCtx)
	}()

	x, err := a.Engine.RunWorkflow(ctx, workflowID, input)
	if err != nil {
		return err
	}
	if !outputJSON {
		output.Info("运行 %s 已启动: %s", workflowID, x.ID())
	}

	decide := approver(opts, cmd.InOrStdin())
	events := x.Events()
	for events != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := render(ev); err != nil {
				return err
			}
			if ev.Type == realtime.EventApprovalRequested && ev.Request != nil {
				approved := decide(*ev.Request)
				if err := x.SendResponses(map[string]any{ev.Request.RequestID: approved}); err != nil {
					output.Warning("提交审批失败: %v", err)
				}
			}
		case <-ctx.Done():
			x.Cancel()
			ctx = context.Background()
		}
	}

	res, err := x.Wait(context.Background())
	if res == nil {
		return err
	}
	if outputJSON {
		return finishJSON(res)
	}
	switch res.Status {
	case types.RunStatusCompleted:
		output.Success("运行完成 (%s)", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
		return nil
	case types.RunStatusCancelled:
		output.Warning("运行已取消")
	default:
		output.Error("运行失败: %v", res.Err)
	}
	if err == nil {
		err = fmt.Errorf("运行结束状态: %s", res.Status)
	}
	return err
}

func render(ev realtime.Event) error {
	if outputJSON {
		return output.PrintJSON(ev)
	}
	output.Event(ev)
	return nil
}

func finishJSON(res *engine.Result) error {
	summary := map[string]any{
		"run_id":        res.RunID,
		"workflow_id":   res.WorkflowID,
		"status":        res.Status,
		"used_fallback": res.UsedFallback,
		"nodes":         res.Nodes,
	}
	if res.Err != nil {
		summary["error"] = res.Err.Error()
	}
	if err := output.PrintJSON(summary); err != nil {
		return err
	}
	if res.Status != types.RunStatusCompleted {
		return fmt.Errorf("运行结束状态: %s", res.Status)
	}
	return nil
}

// approver 返回审批决定函数；未指定 --approve/--reject 时从 in 读取答复，输入结束视为拒绝
func approver(opts *runOptions, in io.Reader) func(realtime.ApprovalInfo) bool {
	switch {
	case opts.approve:
		return func(req realtime.ApprovalInfo) bool {
			output.Success("已自动批准 %s", req.RequestID)
			return true
		}
	case opts.reject:
		return func(req realtime.ApprovalInfo) bool {
			output.Warning("已自动拒绝 %s", req.RequestID)
			return false
		}
	}
	reader := bufio.NewReader(in)
	return func(req realtime.ApprovalInfo) bool {
		output.Warning("节点 %s 请求审批:", req.NodeID)
		_ = output.PrintJSON(req.Payload)
		output.Plain("批准执行? [y/N]: ")
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false
		}
		return opscopilot.Approved(strings.TrimSpace(line))
	}
}
